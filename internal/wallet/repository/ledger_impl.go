package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/wallet/domain"
	"github.com/paychunk/paychunk/pkg/safemath"
)

type ledger struct {
	genID *snowflake.Node
}

// Provide returns the gorm-backed wallet ledger.
func Provide(genID *snowflake.Node) domain.Ledger {
	return &ledger{genID: genID}
}

func (l *ledger) GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(`
		SELECT id, balance, currency, created_at, updated_at
		FROM wallet_accounts
		WHERE id = ?
	`, id).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == "" {
		return nil, nil
	}
	return &account, nil
}

func (l *ledger) Deposit(ctx context.Context, db *gorm.DB, id, currency string, amount uint64) (*domain.Account, error) {
	account, err := l.GetAccount(ctx, db, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if account == nil {
		account = &domain.Account{
			ID:        id,
			Balance:   amount,
			Currency:  currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = db.WithContext(ctx).Exec(`
			INSERT INTO wallet_accounts (id, balance, currency, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, account.ID, account.Balance, account.Currency, account.CreatedAt, account.UpdatedAt).Error
		if err != nil {
			return nil, err
		}
		return account, nil
	}

	balance, err := safemath.AddU64(account.Balance, amount)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Exec(`
		UPDATE wallet_accounts SET balance = ?, updated_at = ? WHERE id = ?
	`, balance, now, id).Error
	if err != nil {
		return nil, err
	}
	account.Balance = balance
	account.UpdatedAt = now
	return account, nil
}

func (l *ledger) Approve(ctx context.Context, db *gorm.DB, owner, delegate string, amount uint64) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Exec(`
		UPDATE wallet_delegations SET amount = ?, updated_at = ?
		WHERE owner = ? AND delegate = ?
	`, amount, now, owner, delegate)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(`
		INSERT INTO wallet_delegations (id, owner, delegate, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.genID.Generate(), owner, delegate, amount, now, now).Error
}

func (l *ledger) GetDelegation(ctx context.Context, db *gorm.DB, owner, delegate string) (*domain.Delegation, error) {
	var delegation domain.Delegation
	err := db.WithContext(ctx).Raw(`
		SELECT id, owner, delegate, amount, created_at, updated_at
		FROM wallet_delegations
		WHERE owner = ? AND delegate = ?
	`, owner, delegate).Scan(&delegation).Error
	if err != nil {
		return nil, err
	}
	if delegation.ID == 0 {
		return nil, nil
	}
	return &delegation, nil
}

func (l *ledger) Transfer(ctx context.Context, db *gorm.DB, owner, delegate, to string, amount uint64) error {
	account, err := l.GetAccount(ctx, db, owner)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrAccountNotFound
	}
	if account.Balance < amount {
		return domain.ErrInsufficientBalance
	}

	delegation, err := l.GetDelegation(ctx, db, owner, delegate)
	if err != nil {
		return err
	}
	if delegation == nil {
		return domain.ErrNoDelegation
	}
	if delegation.Amount < amount {
		return domain.ErrInsufficientDelegation
	}

	now := time.Now().UTC()

	// Guarded updates so concurrent transfers cannot spend the same funds
	// twice, even without row locks.
	res := db.WithContext(ctx).Exec(`
		UPDATE wallet_accounts SET balance = balance - ?, updated_at = ?
		WHERE id = ? AND balance >= ?
	`, amount, now, owner, amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientBalance
	}

	res = db.WithContext(ctx).Exec(`
		UPDATE wallet_delegations SET amount = amount - ?, updated_at = ?
		WHERE owner = ? AND delegate = ? AND amount >= ?
	`, amount, now, owner, delegate, amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientDelegation
	}

	recipient, err := l.GetAccount(ctx, db, to)
	if err != nil {
		return err
	}
	if recipient == nil {
		return db.WithContext(ctx).Exec(`
			INSERT INTO wallet_accounts (id, balance, currency, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, to, amount, account.Currency, now, now).Error
	}

	balance, err := safemath.AddU64(recipient.Balance, amount)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`
		UPDATE wallet_accounts SET balance = ?, updated_at = ? WHERE id = ?
	`, balance, now, to).Error
}

func (l *ledger) Revoke(ctx context.Context, db *gorm.DB, owner, delegate string) error {
	res := db.WithContext(ctx).Exec(`
		DELETE FROM wallet_delegations WHERE owner = ? AND delegate = ?
	`, owner, delegate)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoDelegation
	}
	return nil
}
