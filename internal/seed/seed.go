package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/config"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
)

// EnsurePlatform creates the platform configuration row from the bootstrap
// settings when it does not exist yet. An existing row is left untouched so
// live fee and price settings survive restarts.
func EnsurePlatform(db *gorm.DB, bootstrap config.BootstrapConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	authority := strings.TrimSpace(bootstrap.Authority)
	if authority == "" {
		return errors.New("bootstrap platform authority is required")
	}
	if bootstrap.FeeBasisPoints > platformdomain.MaxPlatformFeeBPS {
		return platformdomain.ErrFeeTooHigh
	}

	currency := strings.TrimSpace(bootstrap.Currency)
	if currency == "" {
		currency = "usdc"
	}
	minPrice := bootstrap.MinPricePerUnit
	if minPrice == 0 {
		minPrice = platformdomain.DefaultMinPricePerUnit
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Raw(`SELECT COUNT(1) FROM platform_config WHERE id = ?`,
			platformdomain.SingletonID).Scan(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Exec(`
			INSERT INTO platform_config (
				id, authority, currency, fee_basis_points, min_price_per_unit,
				total_resources, total_sessions, total_revenue, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?)
		`, platformdomain.SingletonID, authority, currency, bootstrap.FeeBasisPoints, minPrice, now, now).Error
	})
}
