package table

import (
	"github.com/mesaops/comanda/internal/table/domain"
	"github.com/mesaops/comanda/internal/table/service"
	"go.uber.org/fx"
)

var Module = fx.Module("table.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
