package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	"github.com/paychunk/paychunk/internal/wallet/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Ledger   domain.Ledger
	Platform platformdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	ledger   domain.Ledger
	platform platformdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("wallet.service"),
		ledger:   p.Ledger,
		platform: p.Platform,
	}
}

func (s *service) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Account, error) {
	id := strings.TrimSpace(req.AccountID)
	if id == "" || len(id) > platformdomain.MaxAccountIDLength {
		return nil, domain.ErrInvalidAccount
	}
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}

	cfg, err := s.platform.Get(ctx)
	if err != nil {
		return nil, err
	}

	var account *domain.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err = s.ledger.Deposit(ctx, tx, id, cfg.Currency, req.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit",
		zap.String("account_id", id),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("balance", account.Balance),
	)
	return account, nil
}

func (s *service) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.ledger.GetAccount(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}
