package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/wallet/domain"
)

func setupLedger(t *testing.T) (domain.Ledger, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Account{}, &domain.Delegation{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return Provide(node), db
}

func TestDepositCreatesAndAccumulates(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()

	account, err := ledger.Deposit(ctx, db, "alice", "usdc", 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), account.Balance)
	assert.Equal(t, "usdc", account.Currency)

	account, err = ledger.Deposit(ctx, db, "alice", "usdc", 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), account.Balance)
}

func TestApproveReplacesOutstandingAmount(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Approve(ctx, db, "alice", "platform", 5000))
	require.NoError(t, ledger.Approve(ctx, db, "alice", "platform", 2000))

	delegation, err := ledger.GetDelegation(ctx, db, "alice", "platform")
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), delegation.Amount)
}

func TestTransferDecrementsBalanceAndDelegation(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.Deposit(ctx, db, "alice", "usdc", 10000)
	require.NoError(t, err)
	require.NoError(t, ledger.Approve(ctx, db, "alice", "platform", 3000))

	require.NoError(t, ledger.Transfer(ctx, db, "alice", "platform", "bob", 2000))

	alice, err := ledger.GetAccount(ctx, db, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(8000), alice.Balance)

	// Recipient account is created on first credit, in the owner's currency.
	bob, err := ledger.GetAccount(ctx, db, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), bob.Balance)
	assert.Equal(t, "usdc", bob.Currency)

	delegation, err := ledger.GetDelegation(ctx, db, "alice", "platform")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), delegation.Amount)

	err = ledger.Transfer(ctx, db, "alice", "platform", "bob", 1500)
	assert.ErrorIs(t, err, domain.ErrInsufficientDelegation)
}

func TestTransferRequiresFundsAndDelegation(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()

	err := ledger.Transfer(ctx, db, "ghost", "platform", "bob", 100)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = ledger.Deposit(ctx, db, "alice", "usdc", 100)
	require.NoError(t, err)

	err = ledger.Transfer(ctx, db, "alice", "platform", "bob", 100)
	assert.ErrorIs(t, err, domain.ErrNoDelegation)

	require.NoError(t, ledger.Approve(ctx, db, "alice", "platform", 1000))
	err = ledger.Transfer(ctx, db, "alice", "platform", "bob", 500)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestRevoke(t *testing.T) {
	ledger, db := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Approve(ctx, db, "alice", "platform", 1000))
	require.NoError(t, ledger.Revoke(ctx, db, "alice", "platform"))

	delegation, err := ledger.GetDelegation(ctx, db, "alice", "platform")
	require.NoError(t, err)
	assert.Nil(t, delegation)

	assert.ErrorIs(t, ledger.Revoke(ctx, db, "alice", "platform"), domain.ErrNoDelegation)
}
