package domain

import (
	"time"

	"github.com/paychunk/paychunk/pkg/safemath"
)

const (
	// BasisPoints is the fee-rate denominator, 10000 = 100%.
	BasisPoints = 10000
	// MaxPlatformFeeBPS caps the configurable platform fee at 10%.
	MaxPlatformFeeBPS = 1000
	// DefaultPlatformFeeBPS is the 2.5% default.
	DefaultPlatformFeeBPS = 250
	// DefaultMinPricePerUnit is the default price floor, in minor token units.
	DefaultMinPricePerUnit = 1000

	// MaxAccountIDLength bounds every externally supplied account identity.
	MaxAccountIDLength = 64
)

// PlatformConfig is the one-row global configuration. ID is always
// SingletonID; creation happens exactly once.
type PlatformConfig struct {
	ID              int64     `json:"-" gorm:"primaryKey"`
	Authority       string    `json:"authority" gorm:"type:text;not null"`
	Currency        string    `json:"currency" gorm:"type:text;not null"`
	FeeBasisPoints  uint16    `json:"fee_basis_points" gorm:"not null"`
	MinPricePerUnit uint64    `json:"min_price_per_unit" gorm:"not null"`
	TotalResources  uint64    `json:"total_resources" gorm:"not null;default:0"`
	TotalSessions   uint64    `json:"total_sessions" gorm:"not null;default:0"`
	TotalRevenue    uint64    `json:"total_revenue" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (PlatformConfig) TableName() string { return "platform_config" }

// SingletonID is the fixed primary key of the configuration row.
const SingletonID int64 = 1

// CalculateFee returns the platform share of amount at the configured rate.
func (p *PlatformConfig) CalculateFee(amount uint64) (uint64, error) {
	return CalculateFee(p.FeeBasisPoints, amount)
}

// CalculateFee computes floor(amount * rateBps / 10000) with a 128-bit
// intermediate. It never rounds up. Rates above 10000 bps are rejected.
func CalculateFee(rateBps uint16, amount uint64) (uint64, error) {
	if rateBps > BasisPoints {
		return 0, safemath.ErrOverflow
	}
	return safemath.MulDivU64(amount, uint64(rateBps), BasisPoints)
}
