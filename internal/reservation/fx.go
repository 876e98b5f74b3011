package reservation

import (
	"github.com/streamcart/streamcart/internal/reservation/repository"
	"github.com/streamcart/streamcart/internal/reservation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reservation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
