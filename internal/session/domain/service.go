package domain

import (
	"context"
	"errors"
	"time"

	"github.com/paychunk/paychunk/pkg/db/pagination"
)

var (
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrSessionExpired   = errors.New("session_expired")
	ErrSessionInactive  = errors.New("session_inactive")
	ErrInvalidConsumer       = errors.New("invalid_consumer")
	ErrInvalidUnitsRequested = errors.New("invalid_units_requested")

	ErrInvalidUnitIndex     = errors.New("invalid_unit_index")
	ErrOutOfSequenceUnit    = errors.New("out_of_sequence_unit")
	ErrPriceChanged         = errors.New("price_changed")
	ErrInsufficientApproval = errors.New("insufficient_approval")

	ErrInvalidUnitCount          = errors.New("invalid_unit_count")
	ErrSettlementExceedsApproval = errors.New("settlement_exceeds_approval")
	ErrSettlementTooOld          = errors.New("settlement_before_open")
	ErrSettlementInFuture        = errors.New("settlement_in_future")

	ErrInsufficientFundsForApproval = errors.New("insufficient_funds_for_approval")
	ErrInvalidPageToken             = errors.New("invalid_page_token")
)

type AuthorizeRequest struct {
	Consumer       string `json:"-"`
	ResourceID     string `json:"-"`
	RequestedUnits uint32 `json:"requested_units"`
}

type SettleUnitRequest struct {
	Consumer     string `json:"-"`
	ResourceID   string `json:"-"`
	UnitIndex    uint32 `json:"-"`
	PricePerUnit uint64 `json:"price_per_unit"`
}

type SettleBatchRequest struct {
	Consumer     string    `json:"-"`
	ResourceID   string    `json:"-"`
	UnitCount    uint32    `json:"unit_count"`
	PricePerUnit uint64    `json:"price_per_unit"`
	ReportedAt   time.Time `json:"reported_at"`
}

// Receipt summarizes one settlement: the gross amount, the platform's cut,
// and what the resource owner received.
type Receipt struct {
	SessionID   string `json:"session_id"`
	ResourceID  string `json:"resource_id"`
	Units       uint32 `json:"units"`
	Amount      uint64 `json:"amount"`
	Fee         uint64 `json:"fee"`
	OwnerAmount uint64 `json:"owner_amount"`
}

// View is a session plus its derived status and remaining allowance.
type View struct {
	Session
	Status          Status `json:"status"`
	RemainingUnits  uint32 `json:"remaining_units"`
	DelegatedAmount uint64 `json:"delegated_amount"`
}

type ListRequest struct {
	Consumer string
	pagination.Pagination
}

type ListResponse struct {
	Data     []View              `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Authorize opens a session with a ceiling of requested units, or adds
	// the requested units to the ceiling of an existing one. Either way the
	// consumer's delegation is set to exactly the unpaid remainder at the
	// locked price.
	Authorize(ctx context.Context, req AuthorizeRequest) (*View, error)

	// SettleUnit pays for one unit on the strictly sequential path.
	SettleUnit(ctx context.Context, req SettleUnitRequest) (*Receipt, error)

	// SettleBatch pays for a batch of already-delivered units in one step.
	SettleBatch(ctx context.Context, req SettleBatchRequest) (*Receipt, error)

	// Revoke withdraws the spending delegation. The session record survives
	// untouched; further settlements fail for lack of delegation.
	Revoke(ctx context.Context, consumer, resourceID string) (*View, error)

	// Close deletes the session and any outstanding delegation.
	Close(ctx context.Context, consumer, resourceID string) error

	Get(ctx context.Context, consumer, resourceID string) (*View, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
