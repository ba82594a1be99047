package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	"github.com/vyaparai/vyaparai/internal/idempotency"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	"github.com/vyaparai/vyaparai/internal/khata/repository"
	"github.com/vyaparai/vyaparai/internal/lock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc  khatadomain.Service
	repo khatadomain.Repository
	clk  *clock.FakeClock
	db   *gorm.DB

	customerID snowflake.ID
	storeID    snowflake.ID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// every pooled connection to :memory: opens its own empty database, so
	// concurrent tests must share a single connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&khatadomain.CustomerBalance{},
		&khatadomain.CreditTransaction{},
		&idempotency.Record{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewRepository(db)

	svc := NewService(Params{
		Repo:   repo,
		Idem:   idempotency.NewStore(db, clk),
		Locker: lock.NewStripedLocker(),
		Clock:  clk,
		Log:    zap.NewNop(),
		GenID:  node,
		Cfg:    config.Config{IdempotencyTTLHours: 24},
	})

	env := &testEnv{
		svc:        svc,
		repo:       repo,
		clk:        clk,
		db:         db,
		customerID: node.Generate(),
		storeID:    node.Generate(),
	}
	require.NoError(t, svc.EnsureBalance(context.Background(), env.customerID, env.storeID, dec("5000")))
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) sale(t *testing.T, amount, key string) *khatadomain.TransactionResult {
	t.Helper()
	result, err := e.svc.RecordCreditSale(context.Background(), khatadomain.RecordRequest{
		CustomerID:     e.customerID,
		StoreID:        e.storeID,
		Amount:         dec(amount),
		ReferenceID:    "order-" + key,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return result
}

func TestRecordCreditSale_MovesBalanceAndLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.sale(t, "1200.00", "k1")
	assert.True(t, dec("1200.00").Equal(first.BalanceAfter))
	assert.Equal(t, khatadomain.TransactionCreditSale, first.Type)

	second := env.sale(t, "800.50", "k2")
	assert.True(t, dec("2000.50").Equal(second.BalanceAfter))

	payment, err := env.svc.RecordPayment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("-500.50"),
		ReferenceID:    "upi-9981",
		IdempotencyKey: "k3",
	})
	require.NoError(t, err)
	assert.True(t, dec("1500.00").Equal(payment.BalanceAfter))

	balance, err := env.svc.GetBalance(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("1500.00").Equal(balance.CurrentBalance))

	// the materialized balance must equal the sum of the ledger
	total, err := env.repo.SumTransactionAmounts(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, balance.CurrentBalance.Equal(total))

	ledger, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	for _, txn := range ledger {
		assert.False(t, txn.BalanceAfter.IsZero() && txn.Type == khatadomain.TransactionCreditSale)
	}
}

func TestRecordCreditSale_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.sale(t, "999.00", "replay-key")
	replay := env.sale(t, "999.00", "replay-key")

	assert.Equal(t, first.TransactionID, replay.TransactionID)
	assert.True(t, first.BalanceAfter.Equal(replay.BalanceAfter))
	assert.Equal(t, first.ReferenceID, replay.ReferenceID)

	// exactly one ledger row, balance moved once
	ledger, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	balance, err := env.svc.GetBalance(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("999.00").Equal(balance.CurrentBalance))
}

func TestRecordCreditSale_MissingIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RecordCreditSale(context.Background(), khatadomain.RecordRequest{
		CustomerID:  env.customerID,
		StoreID:     env.storeID,
		Amount:      dec("100"),
		ReferenceID: "order-1",
	})
	assert.ErrorIs(t, err, khatadomain.ErrInvalidIdempotencyKey)
}

func TestRecordCreditSale_CreditLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.sale(t, "4500.00", "base")

	// crossing the limit is rejected and leaves no trace
	_, err := env.svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("600.00"),
		ReferenceID:    "order-over",
		IdempotencyKey: "over",
	})
	var limitErr *khatadomain.CreditLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.True(t, dec("4500.00").Equal(limitErr.CurrentBalance))
	assert.True(t, dec("5000.00").Equal(limitErr.CreditLimit))
	assert.True(t, dec("600.00").Equal(limitErr.Attempted))

	ledger, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	// landing exactly on the limit is allowed
	result := env.sale(t, "500.00", "exact")
	assert.True(t, dec("5000.00").Equal(result.BalanceAfter))

	// a rejected key is not burned; the retried sale succeeds with override
	override, err := env.svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("600.00"),
		ReferenceID:    "order-over",
		IdempotencyKey: "over",
		OverrideLimit:  true,
	})
	require.NoError(t, err)
	assert.True(t, dec("5600.00").Equal(override.BalanceAfter))
}

func TestRecordPayment_SignAndOverpayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RecordPayment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("500"),
		IdempotencyKey: "bad-sign",
	})
	assert.ErrorIs(t, err, khatadomain.ErrInvalidAmount)

	// overpayment drives the balance negative; the store owes the customer
	result, err := env.svc.RecordPayment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("-250.00"),
		ReferenceID:    "cash",
		IdempotencyKey: "overpay",
	})
	require.NoError(t, err)
	assert.True(t, dec("-250.00").Equal(result.BalanceAfter))
}

func TestRecordAdjustment_RequiresActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RecordAdjustment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("-75.00"),
		IdempotencyKey: "adj-1",
	})
	assert.ErrorIs(t, err, khatadomain.ErrMissingActor)

	result, err := env.svc.RecordAdjustment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("-75.00"),
		IdempotencyKey: "adj-1",
		Note:           "damaged goods writeoff",
		CreatedBy:      "owner",
	})
	require.NoError(t, err)
	assert.True(t, dec("-75.00").Equal(result.BalanceAfter))
}

func TestReverseTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sale := env.sale(t, "1000.00", "rev-base")
	saleID, err := snowflake.ParseString(sale.TransactionID)
	require.NoError(t, err)

	reversal, err := env.svc.ReverseTransaction(ctx, saleID, "wrong customer", "owner")
	require.NoError(t, err)
	assert.Equal(t, khatadomain.TransactionReversal, reversal.Type)
	assert.True(t, dec("-1000.00").Equal(reversal.Amount))
	assert.True(t, reversal.BalanceAfter.IsZero())
	assert.Equal(t, sale.TransactionID, reversal.ReferenceID)

	// the ledger keeps both rows
	ledger, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, ledger, 2)

	// a second reversal of the same row is rejected
	_, err = env.svc.ReverseTransaction(ctx, saleID, "again", "owner")
	assert.ErrorIs(t, err, khatadomain.ErrAlreadyReversed)

	// a reversal row itself cannot be reversed
	reversalID, err := snowflake.ParseString(reversal.TransactionID)
	require.NoError(t, err)
	_, err = env.svc.ReverseTransaction(ctx, reversalID, "undo the undo", "owner")
	assert.ErrorIs(t, err, khatadomain.ErrInvalidReference)

	_, err = env.svc.ReverseTransaction(ctx, snowflake.ID(42), "missing", "owner")
	assert.ErrorIs(t, err, khatadomain.ErrTransactionNotFound)
}

func TestReverseTransaction_IgnoresCreditLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	payment, err := env.svc.RecordPayment(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("-100.00"),
		IdempotencyKey: "pay",
	})
	require.NoError(t, err)
	env.sale(t, "5000.00", "fill")

	// reversing the payment pushes the balance past the limit; reversals
	// restore history and must not be blocked by the limit
	paymentID, err := snowflake.ParseString(payment.TransactionID)
	require.NoError(t, err)
	reversal, err := env.svc.ReverseTransaction(ctx, paymentID, "bounced cheque", "owner")
	require.NoError(t, err)
	assert.True(t, dec("5000.00").Equal(reversal.BalanceAfter))
}

func TestGetCustomerLedger_Pagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		env.sale(t, "100.00", "page-"+string(rune('a'+i)))
		env.clk.Advance(time.Minute)
	}

	var seen []string
	filter := khatadomain.LedgerFilter{PageSize: 3}
	for {
		page, info, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, filter)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page), 3)
		for _, txn := range page {
			seen = append(seen, txn.ID.String())
		}
		if !info.HasMore {
			break
		}
		filter.PageToken = info.NextPageToken
	}

	require.Len(t, seen, 7)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestGetCustomerLedger_DateFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.sale(t, "100.00", "early")
	env.clk.Advance(48 * time.Hour)
	cutoff := env.clk.Now()
	env.sale(t, "200.00", "late")

	page, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{
		From: &cutoff,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, dec("200.00").Equal(page[0].Amount))
}

func TestGetStoreOutstandingSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	debtor := node.Generate()
	creditor := node.Generate()
	require.NoError(t, env.svc.EnsureBalance(ctx, debtor, env.storeID, dec("10000")))
	require.NoError(t, env.svc.EnsureBalance(ctx, creditor, env.storeID, dec("10000")))

	env.sale(t, "1500.00", "s1")
	_, err = env.svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
		CustomerID:     debtor,
		StoreID:        env.storeID,
		Amount:         dec("3200.00"),
		IdempotencyKey: "s2",
	})
	require.NoError(t, err)
	_, err = env.svc.RecordPayment(ctx, khatadomain.RecordRequest{
		CustomerID:     creditor,
		StoreID:        env.storeID,
		Amount:         dec("-400.00"),
		IdempotencyKey: "p1",
	})
	require.NoError(t, err)

	summary, err := env.svc.GetStoreOutstandingSummary(ctx, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("4700.00").Equal(summary.TotalOutstanding))
	assert.Equal(t, int64(2), summary.CustomersWithBalance)
	assert.Equal(t, int64(1), summary.CustomersInCredit)
	assert.True(t, dec("3200.00").Equal(summary.HighestBalance))
	assert.Equal(t, env.clk.Now(), summary.GeneratedAt)
}

func TestEnsureBalance_KeepsExistingHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.sale(t, "300.00", "k1")
	require.NoError(t, env.svc.EnsureBalance(ctx, env.customerID, env.storeID, dec("9999")))

	balance, err := env.svc.GetBalance(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("300.00").Equal(balance.CurrentBalance))
	assert.True(t, dec("5000").Equal(balance.CreditLimit))
}

func TestRecord_UnknownCustomer(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RecordCreditSale(context.Background(), khatadomain.RecordRequest{
		CustomerID:     snowflake.ID(777),
		StoreID:        env.storeID,
		Amount:         dec("10"),
		IdempotencyKey: "ghost",
	})
	assert.ErrorIs(t, err, khatadomain.ErrCustomerNotFound)
}

func TestRecordCreditSale_ConcurrentSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
				CustomerID:     env.customerID,
				StoreID:        env.storeID,
				Amount:         dec("10.00"),
				IdempotencyKey: fmt.Sprintf("conc-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := env.svc.GetBalance(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("200.00").Equal(balance.CurrentBalance))
	assert.Equal(t, int64(workers), balance.Version)

	total, err := env.repo.SumTransactionAmounts(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, balance.CurrentBalance.Equal(total))

	// ids are generated while the khata lock is held, so id order is append
	// order and the running balance must be gapless
	transactions, _, err := env.svc.GetCustomerLedger(ctx, env.customerID, env.storeID, khatadomain.LedgerFilter{PageSize: workers})
	require.NoError(t, err)
	require.Len(t, transactions, workers)
	running := decimal.Zero
	for _, txn := range transactions {
		running = running.Add(txn.Amount)
		assert.True(t, running.Equal(txn.BalanceAfter), "running balance gap at %s", txn.ID)
	}
}

// contendedRepo moves the balance version out from under the caller right
// before an append, forcing the conditional update to lose.
type contendedRepo struct {
	khatadomain.Repository
	db    *gorm.DB
	bumps int
}

func (r *contendedRepo) AppendTransaction(ctx context.Context, txn *khatadomain.CreditTransaction, newBalance decimal.Decimal, expectedVersion int64) error {
	if r.bumps > 0 {
		r.bumps--
		err := r.db.WithContext(ctx).Exec(
			`UPDATE customer_balances SET version = version + 1 WHERE customer_id = ? AND store_id = ?`,
			txn.CustomerID, txn.StoreID,
		).Error
		if err != nil {
			return err
		}
	}
	return r.Repository.AppendTransaction(ctx, txn, newBalance, expectedVersion)
}

func TestAppend_RetriesLostVersionCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	contended := &contendedRepo{Repository: env.repo, db: env.db, bumps: 1}
	svc := NewService(Params{
		Repo:   contended,
		Idem:   idempotency.NewStore(env.db, env.clk),
		Locker: lock.NewStripedLocker(),
		Clock:  env.clk,
		Log:    zap.NewNop(),
		GenID:  node,
		Cfg:    config.Config{IdempotencyTTLHours: 24},
	})

	result, err := svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("150.00"),
		IdempotencyKey: "contended-1",
	})
	require.NoError(t, err)
	assert.True(t, dec("150.00").Equal(result.BalanceAfter))

	balance, err := svc.GetBalance(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	// one lost attempt plus the successful append
	assert.Equal(t, int64(2), balance.Version)

	// exhausting every attempt surfaces the conflict to the caller with
	// nothing written
	contended.bumps = 3
	_, err = svc.RecordCreditSale(ctx, khatadomain.RecordRequest{
		CustomerID:     env.customerID,
		StoreID:        env.storeID,
		Amount:         dec("10.00"),
		IdempotencyKey: "contended-2",
	})
	assert.ErrorIs(t, err, khatadomain.ErrBalanceConflict)

	total, err := env.repo.SumTransactionAmounts(ctx, env.customerID, env.storeID)
	require.NoError(t, err)
	assert.True(t, dec("150.00").Equal(total))
}
