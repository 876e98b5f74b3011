package order

import (
	"github.com/streamcart/streamcart/internal/order/repository"
	"github.com/streamcart/streamcart/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
