package payment

import (
	"github.com/mesaops/comanda/internal/payment/domain"
	"github.com/mesaops/comanda/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
