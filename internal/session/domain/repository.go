package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SessionCursor is the keyset position for session listings.
type SessionCursor struct {
	ID       snowflake.ID
	OpenedAt time.Time
}

type ListFilter struct {
	Consumer string
	Cursor   *SessionCursor
	Limit    int32
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	Get(ctx context.Context, db *gorm.DB, consumer, resourceID string) (*Session, error)
	Update(ctx context.Context, db *gorm.DB, session *Session) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Session, error)
}
