package domain

import (
	"time"
)

const (
	// MaxResourceIDLength bounds the caller-chosen resource identifier.
	MaxResourceIDLength = 64
	// MaxContentHashLength bounds the opaque content digest.
	MaxContentHashLength = 128
	// MaxTitleLength bounds the display title.
	MaxTitleLength = 200
	// MaxDescriptionLength bounds the display description.
	MaxDescriptionLength = 1000
	// MaxUnitsPerResource caps how many payable units one resource may have.
	MaxUnitsPerResource = 10000
)

// Resource is a piece of metered content split into sequentially numbered
// units. PricePerUnit may change after creation; open sessions keep the
// price that was current when they were authorized.
type Resource struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	Owner         string    `json:"owner" gorm:"type:text;not null;index"`
	ContentHash   string    `json:"content_hash" gorm:"type:text;not null"`
	Title         string    `json:"title" gorm:"type:text;not null"`
	Description   string    `json:"description" gorm:"type:text"`
	UnitCount     uint32    `json:"unit_count" gorm:"not null"`
	PricePerUnit  uint64    `json:"price_per_unit" gorm:"not null"`
	Active        bool      `json:"active" gorm:"not null;default:true"`
	UnitsServed   uint64    `json:"units_served" gorm:"not null;default:0"`
	TotalSessions uint64    `json:"total_sessions" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Resource) TableName() string { return "resources" }

// Earnings accumulates the owner's settled revenue for one resource, net of
// platform fees.
type Earnings struct {
	ResourceID    string    `json:"resource_id" gorm:"primaryKey;type:text"`
	Owner         string    `json:"owner" gorm:"type:text;not null;index"`
	TotalEarned   uint64    `json:"total_earned" gorm:"not null;default:0"`
	UnitsSold     uint64    `json:"units_sold" gorm:"not null;default:0"`
	TotalSessions uint64    `json:"total_sessions" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Earnings) TableName() string { return "earnings" }
