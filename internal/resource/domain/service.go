package domain

import (
	"context"
	"errors"

	"github.com/paychunk/paychunk/pkg/db/pagination"
)

var (
	ErrResourceNotFound   = errors.New("resource_not_found")
	ErrResourceExists     = errors.New("resource_already_exists")
	ErrResourceInactive   = errors.New("resource_inactive")
	ErrInvalidResourceID  = errors.New("invalid_resource_id")
	ErrInvalidContentHash = errors.New("invalid_content_hash")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidUnitCount   = errors.New("invalid_unit_count")
	ErrPriceTooLow        = errors.New("price_below_minimum")
	ErrNotResourceOwner   = errors.New("not_resource_owner")
	ErrNoUpdateProvided   = errors.New("no_update_provided")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)

type CreateRequest struct {
	ID           string `json:"id"`
	Owner        string `json:"-"`
	ContentHash  string `json:"content_hash"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	UnitCount    uint32 `json:"unit_count"`
	PricePerUnit uint64 `json:"price_per_unit"`
}

// UpdateRequest carries the mutable fields. Nil pointers leave the field
// unchanged; at least one must be set.
type UpdateRequest struct {
	ID           string  `json:"-"`
	Owner        string  `json:"-"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	PricePerUnit *uint64 `json:"price_per_unit"`
	Active       *bool   `json:"active"`
}

type ListRequest struct {
	Owner      string `form:"owner"`
	ActiveOnly bool   `form:"active_only"`
	pagination.Pagination
}

type ListResponse struct {
	Data     []Resource          `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	Update(ctx context.Context, req UpdateRequest) (*Resource, error)
	Get(ctx context.Context, id string) (*Resource, error)
	GetEarnings(ctx context.Context, id string) (*Earnings, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
