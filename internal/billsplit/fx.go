package billsplit

import (
	"github.com/mesaops/comanda/internal/billsplit/domain"
	"github.com/mesaops/comanda/internal/billsplit/repository"
	"github.com/mesaops/comanda/internal/billsplit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billsplit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
