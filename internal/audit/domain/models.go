package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an immutable record of a state-changing operation. Rows are
// written inside the same transaction as the change they describe; field
// bounds on the source records keep each row within the transport budget.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	Actor      string            `json:"actor" gorm:"type:text;not null"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	TargetType string            `json:"target_type" gorm:"type:text;not null"`
	TargetID   string            `json:"target_id" gorm:"type:text;not null;index"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Actions emitted by the core operations.
const (
	ActionPlatformInitialized = "platform.initialized"
	ActionResourceCreated     = "resource.created"
	ActionResourceUpdated     = "resource.updated"
	ActionDelegationApproved  = "session.delegation_approved"
	ActionUnitPaid            = "session.unit_paid"
	ActionSessionSettled      = "session.settled"
	ActionDelegationRevoked   = "session.delegation_revoked"
	ActionSessionClosed       = "session.closed"
)
