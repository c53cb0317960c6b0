package platform

import (
	"go.uber.org/fx"

	"github.com/paychunk/paychunk/internal/platform/repository"
	"github.com/paychunk/paychunk/internal/platform/service"
)

var Module = fx.Module("platform.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
