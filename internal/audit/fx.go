package audit

import (
	"github.com/streamcart/streamcart/internal/audit/repository"
	"github.com/streamcart/streamcart/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
