package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account holds a spendable token balance, in minor units of the platform
// currency.
type Account struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	Balance   uint64    `json:"balance" gorm:"not null;default:0"`
	Currency  string    `json:"currency" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "wallet_accounts" }

// Delegation is a bounded spending capability granted by an account owner to
// a delegate. Granting again REPLACES the outstanding amount, it never adds
// to it. Transfers executed under the delegation decrement Amount.
type Delegation struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Owner     string       `json:"owner" gorm:"type:text;not null;uniqueIndex:ux_wallet_delegations_owner_delegate,priority:1"`
	Delegate  string       `json:"delegate" gorm:"type:text;not null;uniqueIndex:ux_wallet_delegations_owner_delegate,priority:2"`
	Amount    uint64       `json:"amount" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Delegation) TableName() string { return "wallet_delegations" }
