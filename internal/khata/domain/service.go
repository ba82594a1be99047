package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
)

// Service is the khata engine. All balance-moving operations are idempotent
// under their key and linearized per (customer, store) pair.
type Service interface {
	// EnsureBalance opens a khata for a customer at a store. Safe to call
	// again; an existing balance keeps its history.
	EnsureBalance(ctx context.Context, customerID, storeID snowflake.ID, creditLimit decimal.Decimal) error
	UpdateCreditLimit(ctx context.Context, customerID, storeID snowflake.ID, limit decimal.Decimal) error

	RecordCreditSale(ctx context.Context, req RecordRequest) (*TransactionResult, error)
	RecordPayment(ctx context.Context, req RecordRequest) (*TransactionResult, error)
	RecordAdjustment(ctx context.Context, req RecordRequest) (*TransactionResult, error)
	ReverseTransaction(ctx context.Context, transactionID snowflake.ID, reason, createdBy string) (*TransactionResult, error)

	GetBalance(ctx context.Context, customerID, storeID snowflake.ID) (*CustomerBalance, error)
	GetCustomerLedger(ctx context.Context, customerID, storeID snowflake.ID, filter LedgerFilter) ([]*CreditTransaction, *pagination.PageInfo, error)
	GetStoreOutstandingSummary(ctx context.Context, storeID snowflake.ID) (*OutstandingSummary, error)
}
