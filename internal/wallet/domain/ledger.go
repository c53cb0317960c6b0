package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidAccount         = errors.New("invalid_account")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrAccountNotFound        = errors.New("account_not_found")
	ErrInsufficientBalance    = errors.New("insufficient_balance")
	ErrInsufficientDelegation = errors.New("insufficient_delegation")
	ErrNoDelegation           = errors.New("no_delegation")
)

// Ledger is the low-level balance and delegation store. Every method takes
// the caller's transaction handle so that balance movements commit or roll
// back together with the business records they pay for.
type Ledger interface {
	// GetAccount returns the account row, or nil when it does not exist.
	GetAccount(ctx context.Context, db *gorm.DB, id string) (*Account, error)

	// Deposit credits an account, creating it on first use.
	Deposit(ctx context.Context, db *gorm.DB, id, currency string, amount uint64) (*Account, error)

	// Approve sets the delegate's spendable amount for the owner's account.
	// A second approval for the same pair replaces the prior amount.
	Approve(ctx context.Context, db *gorm.DB, owner, delegate string, amount uint64) error

	// GetDelegation returns the delegation row, or nil when none exists.
	GetDelegation(ctx context.Context, db *gorm.DB, owner, delegate string) (*Delegation, error)

	// Transfer moves amount from the owner's account to the recipient under
	// the delegate's authority, decrementing both the owner's balance and
	// the outstanding delegation.
	Transfer(ctx context.Context, db *gorm.DB, owner, delegate, to string, amount uint64) error

	// Revoke removes the delegation for the pair, returning ErrNoDelegation
	// when none exists.
	Revoke(ctx context.Context, db *gorm.DB, owner, delegate string) error
}
