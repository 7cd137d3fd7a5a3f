package audit

import (
	"github.com/mesaops/comanda/internal/audit/domain"
	"github.com/mesaops/comanda/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
