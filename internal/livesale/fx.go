package livesale

import (
	"github.com/streamcart/streamcart/internal/livesale/repository"
	"github.com/streamcart/streamcart/internal/livesale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("livesale.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
