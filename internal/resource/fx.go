package resource

import (
	"go.uber.org/fx"

	"github.com/paychunk/paychunk/internal/resource/repository"
	"github.com/paychunk/paychunk/internal/resource/service"
)

var Module = fx.Module("resource.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
