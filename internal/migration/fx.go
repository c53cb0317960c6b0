package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"github.com/paychunk/paychunk/internal/config"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/internal/seed"
	sessiondomain "github.com/paychunk/paychunk/internal/session/domain"
	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned migrations are postgres only; other dialects get
			// the schema straight from the models.
			err := conn.AutoMigrate(
				&platformdomain.PlatformConfig{},
				&resourcedomain.Resource{},
				&resourcedomain.Earnings{},
				&sessiondomain.Session{},
				&walletdomain.Account{},
				&walletdomain.Delegation{},
				&auditdomain.AuditLog{},
			)
			if err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsurePlatform {
			return seed.EnsurePlatform(conn, cfg.Bootstrap)
		}
		return nil
	}),
)
