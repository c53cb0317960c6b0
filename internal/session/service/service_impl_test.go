package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	auditrepo "github.com/paychunk/paychunk/internal/audit/repository"
	auditservice "github.com/paychunk/paychunk/internal/audit/service"
	"github.com/paychunk/paychunk/internal/clock"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	platformrepo "github.com/paychunk/paychunk/internal/platform/repository"
	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	resourcerepo "github.com/paychunk/paychunk/internal/resource/repository"
	"github.com/paychunk/paychunk/internal/session/domain"
	sessionrepo "github.com/paychunk/paychunk/internal/session/repository"
	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
	walletrepo "github.com/paychunk/paychunk/internal/wallet/repository"
	"github.com/paychunk/paychunk/pkg/db/pagination"
)

func listPage(token string, size int32) pagination.Pagination {
	return pagination.Pagination{PageToken: token, PageSize: size}
}

const (
	testAuthority  = "authority"
	testOwner      = "owner-1"
	testConsumer   = "consumer-1"
	testResourceID = "article-001"
)

type testEnv struct {
	db       *gorm.DB
	clk      *clock.FakeClock
	svc      domain.Service
	ledger   walletdomain.Ledger
	platform platformdomain.Repository
	resource resourcedomain.Repository
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&platformdomain.PlatformConfig{},
		&resourcedomain.Resource{},
		&resourcedomain.Earnings{},
		&domain.Session{},
		&walletdomain.Account{},
		&walletdomain.Delegation{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	ledger := walletrepo.Provide(node)
	platform := platformrepo.Provide()
	resource := resourcerepo.Provide()

	svc := NewService(Params{
		DB:           db,
		Log:          log,
		Clock:        clk,
		GenID:        node,
		Repo:         sessionrepo.Provide(),
		ResourceRepo: resource,
		PlatformRepo: platform,
		Ledger:       ledger,
		Audit:        audit,
	})

	return &testEnv{
		db:       db,
		clk:      clk,
		svc:      svc,
		ledger:   ledger,
		platform: platform,
		resource: resource,
	}
}

func (e *testEnv) seedPlatform(t *testing.T, feeBps uint16) {
	t.Helper()
	now := e.clk.Now()
	require.NoError(t, e.db.Create(&platformdomain.PlatformConfig{
		ID:              platformdomain.SingletonID,
		Authority:       testAuthority,
		Currency:        "usdc",
		FeeBasisPoints:  feeBps,
		MinPricePerUnit: 100,
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error)
}

func (e *testEnv) seedResource(t *testing.T, id string, unitCount uint32, price uint64) {
	t.Helper()
	ctx := context.Background()
	now := e.clk.Now()
	require.NoError(t, e.resource.Insert(ctx, e.db,
		&resourcedomain.Resource{
			ID:           id,
			Owner:        testOwner,
			ContentHash:  "deadbeef",
			Title:        "Test Article",
			UnitCount:    unitCount,
			PricePerUnit: price,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		&resourcedomain.Earnings{
			ResourceID: id,
			Owner:      testOwner,
			CreatedAt:  now,
			UpdatedAt:  now,
		}))
}

func (e *testEnv) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	_, err := e.ledger.Deposit(context.Background(), e.db, account, "usdc", amount)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, account string) uint64 {
	t.Helper()
	acct, err := e.ledger.GetAccount(context.Background(), e.db, account)
	require.NoError(t, err)
	if acct == nil {
		return 0
	}
	return acct.Balance
}

func (e *testEnv) delegated(t *testing.T, owner string) uint64 {
	t.Helper()
	d, err := e.ledger.GetDelegation(context.Background(), e.db, owner, testAuthority)
	require.NoError(t, err)
	if d == nil {
		return 0
	}
	return d.Amount
}

func TestAuthorizeOpensSessionAtLockedPrice(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	view, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer:    testConsumer,
		ResourceID:  testResourceID,
		RequestedUnits: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), view.LockedPrice)
	assert.Equal(t, uint32(10), view.ApprovedCeiling)
	assert.Equal(t, uint32(10), view.RemainingUnits)
	assert.Equal(t, domain.StatusActive, view.Status)
	assert.Equal(t, uint64(10000), view.DelegatedAmount)
	assert.Equal(t, uint64(10000), env.delegated(t, testConsumer))
	// The delegation is an allowance, not an escrow.
	assert.Equal(t, uint64(50000), env.balance(t, testConsumer))
}

func TestAuthorizeRejectsUnderfundedConsumer(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 5000)

	_, err := env.svc.Authorize(context.Background(), domain.AuthorizeRequest{
		Consumer:    testConsumer,
		ResourceID:  testResourceID,
		RequestedUnits: 10,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFundsForApproval)
}

func TestAuthorizeValidation(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 20, 1000)
	env.fund(t, testConsumer, 5_000_000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{Consumer: "", ResourceID: testResourceID, RequestedUnits: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidConsumer)

	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitsRequested)

	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: domain.MaxUnitsPerApproval + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitsRequested)

	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{Consumer: testConsumer, ResourceID: "missing", RequestedUnits: 5})
	assert.ErrorIs(t, err, resourcedomain.ErrResourceNotFound)
}

func TestAuthorizeLocksPriceAcrossResourceRepricing(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 5,
	})
	require.NoError(t, err)

	// Owner doubles the price. The open session keeps its locked price.
	require.NoError(t, env.db.Exec(`UPDATE resources SET price_per_unit = 2000 WHERE id = ?`, testResourceID).Error)

	view, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), view.LockedPrice)
	assert.Equal(t, uint32(15), view.ApprovedCeiling)
	assert.Equal(t, uint64(15000), view.DelegatedAmount)
}

func TestReauthorizeReplacesDelegation(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	// Ten more units on top of the 9 still unpaid. The delegation is set
	// to the whole remainder, it is not stacked on the old allowance.
	view, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(20), view.ApprovedCeiling)
	assert.Equal(t, uint32(19), view.RemainingUnits)
	assert.Equal(t, uint64(19000), view.DelegatedAmount)
	assert.Equal(t, uint64(19000), env.delegated(t, testConsumer))
}

func TestReauthorizeExtendsExhaustedCeiling(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 3,
	})
	require.NoError(t, err)

	for i := uint32(0); i < 3; i++ {
		_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
			Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: i, PricePerUnit: 1000,
		})
		require.NoError(t, err)
	}

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 3, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientApproval)

	// Topping up the ceiling reopens the sequential path where it stopped.
	view, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(6), view.ApprovedCeiling)
	assert.Equal(t, uint32(3), view.RemainingUnits)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 3, PricePerUnit: 1000,
	})
	assert.NoError(t, err)
}

func TestSettleUnitSplitsFee(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	receipt, err := env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(1), receipt.Units)
	assert.Equal(t, uint64(1000), receipt.Amount)
	assert.Equal(t, uint64(25), receipt.Fee)
	assert.Equal(t, uint64(975), receipt.OwnerAmount)

	assert.Equal(t, uint64(49000), env.balance(t, testConsumer))
	assert.Equal(t, uint64(975), env.balance(t, testOwner))
	assert.Equal(t, uint64(25), env.balance(t, testAuthority))
	assert.Equal(t, uint64(9000), env.delegated(t, testConsumer))

	earnings, err := env.resource.GetEarnings(ctx, env.db, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint64(975), earnings.TotalEarned)
	assert.Equal(t, uint64(1), earnings.UnitsSold)
}

func TestSettleUnitEnforcesSequence(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	// Only unit 0 opens the sequence.
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 3, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrOutOfSequenceUnit)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	// Replays and skips are both refused.
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrOutOfSequenceUnit)
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 2, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrOutOfSequenceUnit)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 1, PricePerUnit: 1000,
	})
	assert.NoError(t, err)
}

func TestSettleUnitRejectsStalePrice(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 999,
	})
	assert.ErrorIs(t, err, domain.ErrPriceChanged)
}

func TestSettleUnitRejectsRepricedResource(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	// Owner raises the price mid-session. The locked price no longer matches
	// the resource, so the unit path refuses even a correctly confirmed pay.
	require.NoError(t, env.db.Exec(`UPDATE resources SET price_per_unit = 2000 WHERE id = ?`, testResourceID).Error)
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrPriceChanged)

	// A price drop is refused the same way.
	require.NoError(t, env.db.Exec(`UPDATE resources SET price_per_unit = 500 WHERE id = ?`, testResourceID).Error)
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrPriceChanged)

	// Restoring the locked price reopens the path.
	require.NoError(t, env.db.Exec(`UPDATE resources SET price_per_unit = 1000 WHERE id = ?`, testResourceID).Error)
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.NoError(t, err)
}

func TestDeactivatedResourceBlocksSettlement(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Exec(`UPDATE resources SET active = ? WHERE id = ?`, false, testResourceID).Error)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, resourcedomain.ErrResourceInactive)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 3, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	assert.ErrorIs(t, err, resourcedomain.ErrResourceInactive)
}

func TestBatchFirstKeepsSequentialStartAtZero(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 3, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	require.NoError(t, err)

	// Units 0..2 were paid in bulk, but the sequential marker is untouched;
	// unit 0 is still the first sequential pay, not unit 3.
	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	view, err := env.svc.Get(ctx, testConsumer, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), view.UnitsConsumed)
	require.NotNil(t, view.LastUnitIndex)
	assert.Equal(t, uint32(0), *view.LastUnitIndex)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 1, PricePerUnit: 1000,
	})
	assert.NoError(t, err)
}

func TestSettlementAuditMetadata(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 4, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	require.NoError(t, err)

	var unitLogs []auditdomain.AuditLog
	require.NoError(t, env.db.Where("action = ?", auditdomain.ActionUnitPaid).Find(&unitLogs).Error)
	require.Len(t, unitLogs, 1)
	meta := unitLogs[0].Metadata
	assert.EqualValues(t, 0, meta["unit_index"])
	assert.EqualValues(t, 1, meta["payment_sequence"])
	assert.EqualValues(t, 9, meta["units_remaining"])

	var batchLogs []auditdomain.AuditLog
	require.NoError(t, env.db.Where("action = ?", auditdomain.ActionSessionSettled).Find(&batchLogs).Error)
	require.Len(t, batchLogs, 1)
	meta = batchLogs[0].Metadata
	assert.EqualValues(t, 4, meta["unit_count"])
	assert.EqualValues(t, 5, meta["units_consumed"])
	assert.EqualValues(t, 5, meta["units_remaining"])
}

func TestSettleUnitRejectsIndexBeyondResource(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 3, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 3,
	})
	require.NoError(t, err)

	for i := uint32(0); i < 3; i++ {
		_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
			Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: i, PricePerUnit: 1000,
		})
		require.NoError(t, err)
	}

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 3, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitIndex)
}

func TestSettleUnitExhaustedApproval(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 2,
	})
	require.NoError(t, err)

	for i := uint32(0); i < 2; i++ {
		_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
			Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: i, PricePerUnit: 1000,
		})
		require.NoError(t, err)
	}

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 2, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientApproval)
}

func TestInactivityBlocksUnitPayAndReauthorization(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 50000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	env.clk.Advance(time.Hour)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrSessionInactive)

	// An idle session cannot be revived by raising the ceiling either.
	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 20,
	})
	assert.ErrorIs(t, err, domain.ErrSessionInactive)
}

func TestBatchSettlementSplitsFeeAndToleratesInactivity(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 500, 2000)
	env.fund(t, testConsumer, 1_000_000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 100,
	})
	require.NoError(t, err)
	reportedAt := env.clk.Now()

	// The resource server reports delivered units well after the idle
	// window has elapsed. Payment still goes through.
	env.clk.Advance(2 * time.Hour)

	receipt, err := env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer:     testConsumer,
		ResourceID:   testResourceID,
		UnitCount:    50,
		PricePerUnit: 2000,
		ReportedAt:   reportedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(50), receipt.Units)
	assert.Equal(t, uint64(100000), receipt.Amount)
	assert.Equal(t, uint64(2500), receipt.Fee)
	assert.Equal(t, uint64(97500), receipt.OwnerAmount)

	assert.Equal(t, uint64(900000), env.balance(t, testConsumer))
	assert.Equal(t, uint64(97500), env.balance(t, testOwner))
	assert.Equal(t, uint64(2500), env.balance(t, testAuthority))

	// Batch settlement never advances the sequential unit position.
	view, err := env.svc.Get(ctx, testConsumer, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint32(50), view.UnitsConsumed)
	assert.Nil(t, view.LastUnitIndex)
}

func TestBatchSettlementRejectsOverage(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 11, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrSettlementExceedsApproval)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 0, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitCount)
}

func TestBatchSettlementReportedAtBounds(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	opened := env.clk.Now()
	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)
	env.clk.Advance(10 * time.Minute)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 1, PricePerUnit: 1000, ReportedAt: opened.Add(-time.Second),
	})
	assert.ErrorIs(t, err, domain.ErrSettlementTooOld)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 1, PricePerUnit: 1000, ReportedAt: env.clk.Now().Add(time.Minute),
	})
	assert.ErrorIs(t, err, domain.ErrSettlementInFuture)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 1, PricePerUnit: 1000, ReportedAt: env.clk.Now(),
	})
	assert.NoError(t, err)
}

func TestExpiredSessionIsTerminal(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)
	reportedAt := env.clk.Now()

	env.clk.Advance(domain.SessionTTL)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = env.svc.SettleBatch(ctx, domain.SettleBatchRequest{
		Consumer: testConsumer, ResourceID: testResourceID,
		UnitCount: 1, PricePerUnit: 1000, ReportedAt: reportedAt,
	})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 20,
	})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	view, err := env.svc.Get(ctx, testConsumer, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, view.Status)

	// The only remaining move is closing the session.
	assert.NoError(t, env.svc.Close(ctx, testConsumer, testResourceID))
}

func TestRevokeWithdrawsDelegationOnly(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 0, PricePerUnit: 1000,
	})
	require.NoError(t, err)

	// Revocation pulls the allowance but leaves the session record as-is.
	view, err := env.svc.Revoke(ctx, testConsumer, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), view.ApprovedCeiling)
	assert.Equal(t, uint32(1), view.UnitsConsumed)
	assert.Equal(t, uint64(0), env.delegated(t, testConsumer))

	_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
		Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: 1, PricePerUnit: 1000,
	})
	assert.ErrorIs(t, err, walletdomain.ErrNoDelegation)

	_, err = env.svc.Revoke(ctx, testConsumer, testResourceID)
	assert.ErrorIs(t, err, walletdomain.ErrNoDelegation)

	// Re-authorizing restores the allowance for the untouched remainder.
	view, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(11), view.ApprovedCeiling)
	assert.Equal(t, uint64(10000), env.delegated(t, testConsumer))
}

func TestCloseDeletesSession(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Close(ctx, testConsumer, testResourceID))
	assert.Equal(t, uint64(0), env.delegated(t, testConsumer))

	_, err = env.svc.Get(ctx, testConsumer, testResourceID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, env.svc.Close(ctx, testConsumer, testResourceID), domain.ErrSessionNotFound)

	// A fresh session can be opened right away, at the current price.
	view, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), view.UnitsConsumed)
}

func TestSessionCounters(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, testResourceID, 100, 1000)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: testResourceID, RequestedUnits: 10,
	})
	require.NoError(t, err)

	// The platform counts sessions when they open. The resource counts
	// them only once they actually consume.
	cfg, err := env.platform.Get(ctx, env.db)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.TotalSessions)

	res, err := env.resource.Get(ctx, env.db, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TotalSessions)

	for i := uint32(0); i < 3; i++ {
		_, err = env.svc.SettleUnit(ctx, domain.SettleUnitRequest{
			Consumer: testConsumer, ResourceID: testResourceID, UnitIndex: i, PricePerUnit: 1000,
		})
		require.NoError(t, err)
	}

	cfg, err = env.platform.Get(ctx, env.db)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.TotalSessions)
	assert.Equal(t, uint64(75), cfg.TotalRevenue)

	res, err = env.resource.Get(ctx, env.db, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalSessions)
	assert.Equal(t, uint64(3), res.UnitsServed)

	earnings, err := env.resource.GetEarnings(ctx, env.db, testResourceID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), earnings.TotalSessions)
	assert.Equal(t, uint64(3), earnings.UnitsSold)
}

func TestListSessionsPaginates(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.fund(t, testConsumer, 10_000_000)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := "res-" + string(rune('a'+i))
		env.seedResource(t, id, 100, 1000)
		_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
			Consumer: testConsumer, ResourceID: id, RequestedUnits: 2,
		})
		require.NoError(t, err)
		env.clk.Advance(time.Second)
	}

	first, err := env.svc.List(ctx, domain.ListRequest{Consumer: testConsumer})
	require.NoError(t, err)
	require.Len(t, first.Data, 5)

	page, err := env.svc.List(ctx, domain.ListRequest{
		Consumer:   testConsumer,
		Pagination: listPage("", 2),
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.True(t, page.PageInfo.HasMore)
	// Newest sessions come first.
	assert.Equal(t, "res-e", page.Data[0].ResourceID)

	rest, err := env.svc.List(ctx, domain.ListRequest{
		Consumer:   testConsumer,
		Pagination: listPage(page.PageInfo.NextPageToken, 10),
	})
	require.NoError(t, err)
	require.Len(t, rest.Data, 3)
	assert.False(t, rest.PageInfo.HasMore)
	assert.Equal(t, "res-c", rest.Data[0].ResourceID)

	_, err = env.svc.List(ctx, domain.ListRequest{
		Consumer:   testConsumer,
		Pagination: listPage("not-a-token", 10),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestSharedDelegationAcrossSessions(t *testing.T) {
	env := setupEnv(t)
	env.seedPlatform(t, 250)
	env.seedResource(t, "res-a", 100, 1000)
	env.seedResource(t, "res-b", 100, 500)
	env.fund(t, testConsumer, 100000)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: "res-a", RequestedUnits: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), env.delegated(t, testConsumer))

	// Authorizing a second resource overwrites the shared allowance with
	// the new session's remainder.
	_, err = env.svc.Authorize(ctx, domain.AuthorizeRequest{
		Consumer: testConsumer, ResourceID: "res-b", RequestedUnits: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), env.delegated(t, testConsumer))
}
