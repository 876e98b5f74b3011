package catalog

import (
	"github.com/streamcart/streamcart/internal/catalog/repository"
	"github.com/streamcart/streamcart/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
