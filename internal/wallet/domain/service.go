package domain

import "context"

type DepositRequest struct {
	AccountID string `json:"account_id"`
	Amount    uint64 `json:"amount"`
}

// Service exposes the wallet operations reachable over HTTP. Delegations are
// managed through session authorization, not directly.
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
}
