package catalog

import (
	"github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/catalog/repository"
	"github.com/mesaops/comanda/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) domain.Lookup { return s }),
)
