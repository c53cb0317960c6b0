package domain

import (
	"context"
	"errors"
)

type Service interface {
	Initialize(ctx context.Context, req InitializeRequest) (*PlatformConfig, error)
	Get(ctx context.Context) (*PlatformConfig, error)
}

type InitializeRequest struct {
	Authority       string `json:"authority"`
	Currency        string `json:"currency"`
	FeeBasisPoints  uint16 `json:"fee_basis_points"`
	MinPricePerUnit uint64 `json:"min_price_per_unit"`
}

var (
	ErrAlreadyInitialized = errors.New("platform_already_initialized")
	ErrNotInitialized     = errors.New("platform_not_initialized")
	ErrFeeTooHigh         = errors.New("platform_fee_too_high")
	ErrInvalidAuthority   = errors.New("invalid_authority")
	ErrInvalidCurrency    = errors.New("invalid_currency")
)
