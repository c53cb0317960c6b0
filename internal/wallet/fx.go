package wallet

import (
	"go.uber.org/fx"

	"github.com/paychunk/paychunk/internal/wallet/repository"
	"github.com/paychunk/paychunk/internal/wallet/service"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
