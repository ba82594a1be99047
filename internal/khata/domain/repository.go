package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Repository is the persistent ledger store.
type Repository interface {
	GetBalance(ctx context.Context, customerID, storeID snowflake.ID) (*CustomerBalance, error)
	CreateBalance(ctx context.Context, balance *CustomerBalance) error
	UpdateCreditLimit(ctx context.Context, customerID, storeID snowflake.ID, limit decimal.Decimal) error

	// AppendTransaction inserts the transaction and moves the materialized
	// balance in one database transaction. The balance update is conditional
	// on expectedVersion; a concurrent writer winning the race surfaces as
	// ErrBalanceConflict with nothing written.
	AppendTransaction(ctx context.Context, txn *CreditTransaction, newBalance decimal.Decimal, expectedVersion int64) error

	FindTransaction(ctx context.Context, id snowflake.ID) (*CreditTransaction, error)
	// FindReversal returns the reversal pointing at originalID, if any.
	FindReversal(ctx context.Context, originalID snowflake.ID) (*CreditTransaction, error)
	ListTransactions(ctx context.Context, customerID, storeID snowflake.ID, filter LedgerFilter) ([]*CreditTransaction, error)

	// SumTransactionAmounts recomputes a balance from the ledger itself,
	// used by audits to verify the materialized row.
	SumTransactionAmounts(ctx context.Context, customerID, storeID snowflake.ID) (decimal.Decimal, error)

	OutstandingSummary(ctx context.Context, storeID snowflake.ID) (*OutstandingSummary, error)
}
