package repository

import (
	"context"

	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() platformdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *platformdomain.PlatformConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO platform_config (id, authority, currency, fee_basis_points, min_price_per_unit,
		 total_resources, total_sessions, total_revenue, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.Authority,
		cfg.Currency,
		cfg.FeeBasisPoints,
		cfg.MinPricePerUnit,
		cfg.TotalResources,
		cfg.TotalSessions,
		cfg.TotalRevenue,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) Get(ctx context.Context, db *gorm.DB) (*platformdomain.PlatformConfig, error) {
	var cfg platformdomain.PlatformConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, authority, currency, fee_basis_points, min_price_per_unit,
		 total_resources, total_sessions, total_revenue, created_at, updated_at
		 FROM platform_config WHERE id = ?`,
		platformdomain.SingletonID,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, cfg *platformdomain.PlatformConfig) error {
	return db.WithContext(ctx).Exec(
		`UPDATE platform_config
		 SET total_resources = ?, total_sessions = ?, total_revenue = ?, updated_at = ?
		 WHERE id = ?`,
		cfg.TotalResources,
		cfg.TotalSessions,
		cfg.TotalRevenue,
		cfg.UpdatedAt,
		cfg.ID,
	).Error
}
