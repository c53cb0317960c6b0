package session

import (
	"go.uber.org/fx"

	"github.com/paychunk/paychunk/internal/session/repository"
	"github.com/paychunk/paychunk/internal/session/service"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
