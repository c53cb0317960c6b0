package audit

import (
	"github.com/paychunk/paychunk/internal/audit/repository"
	"github.com/paychunk/paychunk/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
