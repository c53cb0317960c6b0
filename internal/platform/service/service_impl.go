package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"github.com/paychunk/paychunk/internal/clock"
	"github.com/paychunk/paychunk/internal/platform/domain"
	"github.com/paychunk/paychunk/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Service
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("platform.service"),
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *service) Initialize(ctx context.Context, req domain.InitializeRequest) (*domain.PlatformConfig, error) {
	authority := strings.TrimSpace(req.Authority)
	if authority == "" || len(authority) > domain.MaxAccountIDLength {
		return nil, domain.ErrInvalidAuthority
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" || len(currency) > domain.MaxAccountIDLength {
		return nil, domain.ErrInvalidCurrency
	}
	if req.FeeBasisPoints > domain.MaxPlatformFeeBPS {
		return nil, domain.ErrFeeTooHigh
	}

	minPrice := req.MinPricePerUnit
	if minPrice == 0 {
		minPrice = domain.DefaultMinPricePerUnit
	}

	now := s.clock.Now().UTC()
	cfg := &domain.PlatformConfig{
		ID:              domain.SingletonID,
		Authority:       authority,
		Currency:        currency,
		FeeBasisPoints:  req.FeeBasisPoints,
		MinPricePerUnit: minPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, cfg); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyInitialized
			}
			return err
		}
		s.audit.Record(ctx, tx, authority, auditdomain.ActionPlatformInitialized,
			"platform", "1", map[string]any{
				"currency":           currency,
				"fee_basis_points":   req.FeeBasisPoints,
				"min_price_per_unit": minPrice,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("platform initialized",
		zap.String("authority", authority),
		zap.String("currency", currency),
		zap.Uint16("fee_basis_points", cfg.FeeBasisPoints),
	)
	return cfg, nil
}

func (s *service) Get(ctx context.Context) (*domain.PlatformConfig, error) {
	cfg, err := s.repo.Get(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotInitialized
	}
	return cfg, nil
}
