package domain

import (
	"context"
	"errors"
	"time"

	"github.com/paychunk/paychunk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record emits an audit row on tx. Emission is fire-and-forget: failures
	// are logged, never surfaced to the caller.
	Record(ctx context.Context, tx *gorm.DB, actor, action, targetType, targetID string, metadata map[string]any)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
