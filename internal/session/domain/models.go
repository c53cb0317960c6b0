package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	// MaxUnitsPerApproval caps the units requested in a single authorization.
	MaxUnitsPerApproval = 1000

	// SessionTTL is the hard lifetime of a session, measured from OpenedAt.
	// An expired session is terminal and can only be closed.
	SessionTTL = 24 * time.Hour

	// InactivityWindow is how long a session may sit idle before unit
	// consumption and re-authorization are refused. Batch settlement of
	// already-delivered units is still allowed.
	InactivityWindow = time.Hour
)

// Session tracks one consumer's metered access to one resource. The price is
// locked at authorization time; later resource price changes do not apply.
// Closing a session deletes the row.
type Session struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Consumer        string       `json:"consumer" gorm:"type:text;not null;uniqueIndex:ux_sessions_consumer_resource,priority:1"`
	ResourceID      string       `json:"resource_id" gorm:"type:text;not null;uniqueIndex:ux_sessions_consumer_resource,priority:2"`
	LockedPrice     uint64       `json:"locked_price" gorm:"not null"`
	ApprovedCeiling uint32       `json:"approved_ceiling" gorm:"not null"`
	UnitsConsumed   uint32       `json:"units_consumed" gorm:"not null;default:0"`
	LastUnitIndex   *uint32      `json:"last_unit_index" gorm:"default:null"`
	TotalPaid       uint64       `json:"total_paid" gorm:"not null;default:0"`
	OpenedAt        time.Time    `json:"opened_at" gorm:"not null"`
	LastActivityAt  time.Time    `json:"last_activity_at" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// IsExpired reports whether the session's hard lifetime has elapsed.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.OpenedAt.Add(SessionTTL))
}

// IsInactive reports whether the idle window has elapsed since the last
// activity.
func (s *Session) IsInactive(now time.Time) bool {
	return !now.Before(s.LastActivityAt.Add(InactivityWindow))
}

// RemainingApproval returns how many more units the consumer may pay for
// under the current ceiling.
func (s *Session) RemainingApproval() uint32 {
	if s.ApprovedCeiling <= s.UnitsConsumed {
		return 0
	}
	return s.ApprovedCeiling - s.UnitsConsumed
}

// NextUnitIndex returns the only unit index the sequential pay path accepts:
// zero while no unit has ever been paid, otherwise the successor of the last
// paid unit. Batch settlement never sets the marker, so a batch-first session
// still starts the sequential path at zero.
func (s *Session) NextUnitIndex() uint32 {
	if s.LastUnitIndex == nil {
		return 0
	}
	return *s.LastUnitIndex + 1
}

// Status is the derived lifecycle state reported to clients.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// StatusAt derives the session status at the given instant. Expiry wins over
// inactivity.
func (s *Session) StatusAt(now time.Time) Status {
	switch {
	case s.IsExpired(now):
		return StatusExpired
	case s.IsInactive(now):
		return StatusInactive
	default:
		return StatusActive
	}
}
