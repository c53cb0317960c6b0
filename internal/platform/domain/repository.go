package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *PlatformConfig) error
	Get(ctx context.Context, db *gorm.DB) (*PlatformConfig, error)
	UpdateTotals(ctx context.Context, db *gorm.DB, cfg *PlatformConfig) error
}
