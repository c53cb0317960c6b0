package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ResourceCursor is the keyset position for resource listings.
type ResourceCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

type ListFilter struct {
	Owner      string
	ActiveOnly bool
	Cursor     *ResourceCursor
	Limit      int32
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, resource *Resource, earnings *Earnings) error
	Get(ctx context.Context, db *gorm.DB, id string) (*Resource, error)
	Update(ctx context.Context, db *gorm.DB, resource *Resource) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Resource, error)

	// IncrementSessions bumps the resource session counter by one.
	IncrementSessions(ctx context.Context, db *gorm.DB, id string, updatedAt time.Time) error

	GetEarnings(ctx context.Context, db *gorm.DB, resourceID string) (*Earnings, error)

	// AddEarnings credits settled revenue and unit volume to the resource's
	// earnings row.
	AddEarnings(ctx context.Context, db *gorm.DB, resourceID string, amount, units uint64, updatedAt time.Time) error
}
