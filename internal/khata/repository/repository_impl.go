package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	"github.com/vyaparai/vyaparai/pkg/db"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) khatadomain.Repository {
	return &repository{db: db}
}

func (r *repository) GetBalance(ctx context.Context, customerID, storeID snowflake.ID) (*khatadomain.CustomerBalance, error) {
	var balance khatadomain.CustomerBalance
	err := r.db.WithContext(ctx).Raw(
		`SELECT customer_id, store_id, current_balance, credit_limit, version, updated_at
		 FROM customer_balances
		 WHERE customer_id = ? AND store_id = ?`,
		customerID,
		storeID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.CustomerID == 0 {
		return nil, nil
	}
	return &balance, nil
}

func (r *repository) CreateBalance(ctx context.Context, balance *khatadomain.CustomerBalance) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO customer_balances (
			customer_id, store_id, current_balance, credit_limit, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id, store_id) DO NOTHING`,
		balance.CustomerID,
		balance.StoreID,
		balance.CurrentBalance,
		balance.CreditLimit,
		balance.Version,
		balance.UpdatedAt,
	).Error
}

func (r *repository) UpdateCreditLimit(ctx context.Context, customerID, storeID snowflake.ID, limit decimal.Decimal) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE customer_balances
		 SET credit_limit = ?, updated_at = ?
		 WHERE customer_id = ? AND store_id = ?`,
		limit,
		time.Now().UTC(),
		customerID,
		storeID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return khatadomain.ErrCustomerNotFound
	}
	return nil
}

// AppendTransaction writes the ledger row and moves the materialized balance
// in one database transaction. The balance update is conditional on the
// version read by the caller; losing the race writes nothing.
func (r *repository) AppendTransaction(ctx context.Context, txn *khatadomain.CreditTransaction, newBalance decimal.Decimal, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`UPDATE customer_balances
			 SET current_balance = ?, version = version + 1, updated_at = ?
			 WHERE customer_id = ? AND store_id = ? AND version = ?`,
			newBalance,
			txn.CreatedAt,
			txn.CustomerID,
			txn.StoreID,
			expectedVersion,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return khatadomain.ErrBalanceConflict
		}

		err := tx.WithContext(ctx).Exec(
			`INSERT INTO credit_transactions (
				id, customer_id, store_id, type, amount, balance_after, reference_id, note, created_by, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID,
			txn.CustomerID,
			txn.StoreID,
			string(txn.Type),
			txn.Amount,
			txn.BalanceAfter,
			txn.ReferenceID,
			txn.Note,
			txn.CreatedBy,
			txn.CreatedAt,
		).Error
		if db.IsDuplicateKeyErr(err) {
			return khatadomain.ErrDuplicateTransaction
		}
		return err
	})
}

func (r *repository) FindTransaction(ctx context.Context, id snowflake.ID) (*khatadomain.CreditTransaction, error) {
	var txn khatadomain.CreditTransaction
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, customer_id, store_id, type, amount, balance_after, reference_id, note, created_by, created_at
		 FROM credit_transactions
		 WHERE id = ?`,
		id,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repository) FindReversal(ctx context.Context, originalID snowflake.ID) (*khatadomain.CreditTransaction, error) {
	var txn khatadomain.CreditTransaction
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, customer_id, store_id, type, amount, balance_after, reference_id, note, created_by, created_at
		 FROM credit_transactions
		 WHERE type = ? AND reference_id = ?
		 LIMIT 1`,
		string(khatadomain.TransactionReversal),
		originalID.String(),
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, customerID, storeID snowflake.ID, filter khatadomain.LedgerFilter) ([]*khatadomain.CreditTransaction, error) {
	stmt := r.db.WithContext(ctx).
		Model(&khatadomain.CreditTransaction{}).
		Where("customer_id = ? AND store_id = ?", customerID, storeID)

	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at < ?", filter.To.UTC())
	}
	if filter.PageToken != "" {
		cursor, err := pagination.DecodeCursor(filter.PageToken)
		if err != nil {
			return nil, err
		}
		// snowflake ids are time-ordered, so the id alone resumes the scan
		stmt = stmt.Where("id > ?", cursor.ID)
	}

	limit := filter.PageSize
	if limit <= 0 {
		limit = 50
	}

	var transactions []*khatadomain.CreditTransaction
	if err := stmt.Order("id ASC").Limit(limit + 1).Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) SumTransactionAmounts(ctx context.Context, customerID, storeID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total
		 FROM credit_transactions
		 WHERE customer_id = ? AND store_id = ?`,
		customerID,
		storeID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repository) OutstandingSummary(ctx context.Context, storeID snowflake.ID) (*khatadomain.OutstandingSummary, error) {
	var row struct {
		TotalOutstanding     decimal.Decimal
		CustomersWithBalance int64
		CustomersInCredit    int64
		HighestBalance       decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN current_balance > 0 THEN current_balance ELSE 0 END), 0) AS total_outstanding,
			COALESCE(SUM(CASE WHEN current_balance > 0 THEN 1 ELSE 0 END), 0) AS customers_with_balance,
			COALESCE(SUM(CASE WHEN current_balance < 0 THEN 1 ELSE 0 END), 0) AS customers_in_credit,
			COALESCE(MAX(current_balance), 0) AS highest_balance
		 FROM customer_balances
		 WHERE store_id = ?`,
		storeID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &khatadomain.OutstandingSummary{
		StoreID:              storeID,
		TotalOutstanding:     row.TotalOutstanding,
		CustomersWithBalance: row.CustomersWithBalance,
		CustomersInCredit:    row.CustomersInCredit,
		HighestBalance:       row.HighestBalance,
	}, nil
}
