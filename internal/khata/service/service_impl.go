package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/internal/cache"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	"github.com/vyaparai/vyaparai/internal/idempotency"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	"github.com/vyaparai/vyaparai/internal/lock"
	obsmetrics "github.com/vyaparai/vyaparai/internal/observability/metrics"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// lockTTL caps how long a crashed holder can block a customer's khata.
	lockTTL      = 5 * time.Second
	lockAttempts = 100
	lockBackoff  = 10 * time.Millisecond

	// appendAttempts bounds optimistic retries on a lost version check.
	appendAttempts = 3

	summaryTTL = time.Minute
)

type Params struct {
	fx.In

	Repo    khatadomain.Repository
	Idem    idempotency.Store
	Locker  lock.Locker
	Clock   clock.Clock
	Log     *zap.Logger
	GenID   *snowflake.Node
	Cfg     config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	repo    khatadomain.Repository
	idem    idempotency.Store
	locker  lock.Locker
	clk     clock.Clock
	log     *zap.Logger
	genID   *snowflake.Node
	idemTTL time.Duration
	metrics *obsmetrics.Metrics

	summaries cache.Cache[snowflake.ID, khatadomain.OutstandingSummary]
}

func NewService(p Params) khatadomain.Service {
	ttl := time.Duration(p.Cfg.IdempotencyTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		repo:      p.Repo,
		idem:      p.Idem,
		locker:    p.Locker,
		clk:       p.Clock,
		log:       p.Log.Named("khata.service"),
		genID:     p.GenID,
		idemTTL:   ttl,
		metrics:   p.Metrics,
		summaries: cache.NewTTLCacheWithClock[snowflake.ID, khatadomain.OutstandingSummary](p.Clock),
	}
}

func (s *Service) EnsureBalance(ctx context.Context, customerID, storeID snowflake.ID, creditLimit decimal.Decimal) error {
	if customerID == 0 || storeID == 0 {
		return khatadomain.ErrCustomerNotFound
	}
	if creditLimit.IsNegative() {
		return khatadomain.ErrInvalidAmount
	}
	return s.repo.CreateBalance(ctx, &khatadomain.CustomerBalance{
		CustomerID:     customerID,
		StoreID:        storeID,
		CurrentBalance: decimal.Zero,
		CreditLimit:    creditLimit,
		Version:        0,
		UpdatedAt:      s.clk.Now(),
	})
}

func (s *Service) UpdateCreditLimit(ctx context.Context, customerID, storeID snowflake.ID, limit decimal.Decimal) error {
	if limit.IsNegative() {
		return khatadomain.ErrInvalidAmount
	}
	return s.repo.UpdateCreditLimit(ctx, customerID, storeID, limit)
}

func (s *Service) RecordCreditSale(ctx context.Context, req khatadomain.RecordRequest) (*khatadomain.TransactionResult, error) {
	if !req.Amount.IsPositive() {
		return nil, khatadomain.ErrInvalidAmount
	}
	return s.record(ctx, req, khatadomain.TransactionCreditSale)
}

func (s *Service) RecordPayment(ctx context.Context, req khatadomain.RecordRequest) (*khatadomain.TransactionResult, error) {
	// payments carry a negative amount: they reduce the balance, and the
	// balance may go negative when the customer has overpaid
	if !req.Amount.IsNegative() {
		return nil, khatadomain.ErrInvalidAmount
	}
	return s.record(ctx, req, khatadomain.TransactionPayment)
}

func (s *Service) RecordAdjustment(ctx context.Context, req khatadomain.RecordRequest) (*khatadomain.TransactionResult, error) {
	if req.Amount.IsZero() {
		return nil, khatadomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return nil, khatadomain.ErrMissingActor
	}
	return s.record(ctx, req, khatadomain.TransactionAdjustment)
}

// record is the single append path shared by all balance-moving operations.
// Per (customer, store): replay check, lock, re-check, optimistic append.
func (s *Service) record(ctx context.Context, req khatadomain.RecordRequest, txnType khatadomain.TransactionType) (*khatadomain.TransactionResult, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, khatadomain.ErrInvalidIdempotencyKey
	}

	if result, ok, err := s.checkReplay(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	release, err := s.acquire(ctx, req.CustomerID, req.StoreID)
	if err != nil {
		return nil, err
	}
	defer release()

	// a concurrent identical request may have won the lock first
	if result, ok, err := s.checkReplay(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	result, err := s.append(ctx, req, txnType)
	if err != nil {
		return nil, err
	}

	if err := s.idem.Put(ctx, key, result, s.idemTTL); err != nil {
		// the append is committed; losing the replay record is log-worthy
		// but must not fail the submission
		s.log.Warn("failed to record idempotency result",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
	return result, nil
}

func (s *Service) append(ctx context.Context, req khatadomain.RecordRequest, txnType khatadomain.TransactionType) (*khatadomain.TransactionResult, error) {
	reference := strings.TrimSpace(req.ReferenceID)
	if reference == "" {
		reference = ulid.Make().String()
	}

	for attempt := 0; attempt < appendAttempts; attempt++ {
		balance, err := s.repo.GetBalance(ctx, req.CustomerID, req.StoreID)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		if balance == nil {
			return nil, khatadomain.ErrCustomerNotFound
		}

		newBalance := balance.CurrentBalance.Add(req.Amount)

		// the limit check is exclusive: landing exactly on the limit is
		// allowed, only crossing it is rejected
		if txnType == khatadomain.TransactionCreditSale && !req.OverrideLimit &&
			newBalance.GreaterThan(balance.CreditLimit) {
			return nil, &khatadomain.CreditLimitExceededError{
				CurrentBalance: balance.CurrentBalance,
				CreditLimit:    balance.CreditLimit,
				Attempted:      req.Amount,
			}
		}

		txn := &khatadomain.CreditTransaction{
			ID:           s.genID.Generate(),
			CustomerID:   req.CustomerID,
			StoreID:      req.StoreID,
			Type:         txnType,
			Amount:       req.Amount,
			BalanceAfter: newBalance,
			ReferenceID:  reference,
			Note:         req.Note,
			CreatedBy:    req.CreatedBy,
			CreatedAt:    s.clk.Now(),
		}

		err = s.repo.AppendTransaction(ctx, txn, newBalance, balance.Version)
		if errors.Is(err, khatadomain.ErrBalanceConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append transaction: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordLedgerAppend(string(txnType))
		}
		s.summaries.Delete(req.StoreID)
		s.log.Info("recorded khata transaction",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("type", string(txnType)),
			zap.String("customer_id", req.CustomerID.String()),
			zap.String("store_id", req.StoreID.String()),
			zap.String("amount", req.Amount.StringFixed(2)),
		)

		return &khatadomain.TransactionResult{
			TransactionID: txn.ID.String(),
			Type:          txnType,
			Amount:        txn.Amount,
			BalanceAfter:  txn.BalanceAfter,
			CreditLimit:   balance.CreditLimit,
			ReferenceID:   txn.ReferenceID,
			CreatedAt:     txn.CreatedAt,
		}, nil
	}

	return nil, khatadomain.ErrBalanceConflict
}

func (s *Service) ReverseTransaction(ctx context.Context, transactionID snowflake.ID, reason, createdBy string) (*khatadomain.TransactionResult, error) {
	original, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if original == nil {
		return nil, khatadomain.ErrTransactionNotFound
	}
	// undoing a reversal is a fresh adjustment, not a second-order reversal
	if original.Type == khatadomain.TransactionReversal {
		return nil, khatadomain.ErrInvalidReference
	}

	release, err := s.acquire(ctx, original.CustomerID, original.StoreID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindReversal(ctx, original.ID)
	if err != nil {
		return nil, fmt.Errorf("find reversal: %w", err)
	}
	if existing != nil {
		return nil, khatadomain.ErrAlreadyReversed
	}

	for attempt := 0; attempt < appendAttempts; attempt++ {
		balance, err := s.repo.GetBalance(ctx, original.CustomerID, original.StoreID)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		if balance == nil {
			return nil, khatadomain.ErrCustomerNotFound
		}

		newBalance := balance.CurrentBalance.Sub(original.Amount)
		txn := &khatadomain.CreditTransaction{
			ID:           s.genID.Generate(),
			CustomerID:   original.CustomerID,
			StoreID:      original.StoreID,
			Type:         khatadomain.TransactionReversal,
			Amount:       original.Amount.Neg(),
			BalanceAfter: newBalance,
			ReferenceID:  original.ID.String(),
			Note:         reason,
			CreatedBy:    createdBy,
			CreatedAt:    s.clk.Now(),
		}

		err = s.repo.AppendTransaction(ctx, txn, newBalance, balance.Version)
		if errors.Is(err, khatadomain.ErrBalanceConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append reversal: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordLedgerAppend(string(khatadomain.TransactionReversal))
		}
		s.summaries.Delete(original.StoreID)
		s.log.Info("reversed khata transaction",
			zap.String("original_id", original.ID.String()),
			zap.String("reversal_id", txn.ID.String()),
			zap.String("reason", reason),
		)

		return &khatadomain.TransactionResult{
			TransactionID: txn.ID.String(),
			Type:          txn.Type,
			Amount:        txn.Amount,
			BalanceAfter:  txn.BalanceAfter,
			CreditLimit:   balance.CreditLimit,
			ReferenceID:   txn.ReferenceID,
			CreatedAt:     txn.CreatedAt,
		}, nil
	}

	return nil, khatadomain.ErrBalanceConflict
}

func (s *Service) GetBalance(ctx context.Context, customerID, storeID snowflake.ID) (*khatadomain.CustomerBalance, error) {
	balance, err := s.repo.GetBalance(ctx, customerID, storeID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, khatadomain.ErrCustomerNotFound
	}
	return balance, nil
}

func (s *Service) GetCustomerLedger(ctx context.Context, customerID, storeID snowflake.ID, filter khatadomain.LedgerFilter) ([]*khatadomain.CreditTransaction, *pagination.PageInfo, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.PageSize > 250 {
		filter.PageSize = 250
	}

	transactions, err := s.repo.ListTransactions(ctx, customerID, storeID, filter)
	if err != nil {
		return nil, nil, err
	}

	transactions, pageInfo := pagination.BuildCursorPageInfo(transactions, filter.PageSize, func(t *khatadomain.CreditTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	return transactions, pageInfo, nil
}

func (s *Service) GetStoreOutstandingSummary(ctx context.Context, storeID snowflake.ID) (*khatadomain.OutstandingSummary, error) {
	if cached, ok := s.summaries.Get(storeID); ok {
		return &cached, nil
	}

	summary, err := s.repo.OutstandingSummary(ctx, storeID)
	if err != nil {
		return nil, err
	}
	summary.GeneratedAt = s.clk.Now()
	s.summaries.Set(storeID, *summary, summaryTTL)
	return summary, nil
}

func (s *Service) checkReplay(ctx context.Context, key string) (*khatadomain.TransactionResult, bool, error) {
	raw, ok, err := s.idem.Check(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var result khatadomain.TransactionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode recorded result: %w", err)
	}
	return &result, true, nil
}

func (s *Service) acquire(ctx context.Context, customerID, storeID snowflake.ID) (func(), error) {
	key := fmt.Sprintf("khata:%s:%s", storeID.String(), customerID.String())
	for attempt := 0; attempt < lockAttempts; attempt++ {
		token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire khata lock: %w", err)
		}
		if ok {
			return func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("failed to release khata lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, fmt.Errorf("khata lock busy: %s", key)
}
