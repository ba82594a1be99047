package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionCreditSale TransactionType = "credit_sale"
	TransactionPayment    TransactionType = "payment"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionReversal   TransactionType = "reversal"
)

// CreditTransaction is one append-only khata entry. Rows are never updated
// or deleted; a reversal is a new row that negates a prior one and points at
// it through reference_id.
type CreditTransaction struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID    `gorm:"column:customer_id;not null;index:idx_credit_transactions_customer,priority:1" json:"customer_id"`
	StoreID      snowflake.ID    `gorm:"column:store_id;not null;index:idx_credit_transactions_customer,priority:2" json:"store_id"`
	Type         TransactionType `gorm:"type:text;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(14,2);not null" json:"balance_after"`
	ReferenceID  string          `gorm:"column:reference_id;type:text;not null;index" json:"reference_id"`
	Note         string          `gorm:"type:text" json:"note,omitempty"`
	CreatedBy    string          `gorm:"column:created_by;type:text" json:"created_by,omitempty"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// CustomerBalance is the materialized running balance for one
// (customer, store) pair. The transaction log is the source of truth; this
// row is a cache kept in step atomically with every append, guarded by an
// optimistic version check.
type CustomerBalance struct {
	CustomerID     snowflake.ID    `gorm:"column:customer_id;primaryKey" json:"customer_id"`
	StoreID        snowflake.ID    `gorm:"column:store_id;primaryKey" json:"store_id"`
	CurrentBalance decimal.Decimal `gorm:"column:current_balance;type:numeric(14,2);not null;default:0" json:"current_balance"`
	CreditLimit    decimal.Decimal `gorm:"column:credit_limit;type:numeric(14,2);not null;default:0" json:"credit_limit"`
	Version        int64           `gorm:"not null;default:0" json:"-"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CustomerBalance) TableName() string { return "customer_balances" }

// TransactionResult is returned for every successful ledger submission.
// A replay served from the idempotency store is byte-identical to the
// original response; callers cannot and need not tell them apart.
type TransactionResult struct {
	TransactionID string          `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	ReferenceID   string          `json:"reference_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OutstandingSummary aggregates a store's receivables from materialized
// balances only; it never rescans the full ledger.
type OutstandingSummary struct {
	StoreID              snowflake.ID    `json:"store_id"`
	TotalOutstanding     decimal.Decimal `json:"total_outstanding"`
	CustomersWithBalance int64           `json:"customers_with_balance"`
	CustomersInCredit    int64           `json:"customers_in_credit"`
	HighestBalance       decimal.Decimal `json:"highest_balance"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// RecordRequest carries one ledger submission.
type RecordRequest struct {
	CustomerID     snowflake.ID
	StoreID        snowflake.ID
	Amount         decimal.Decimal
	ReferenceID    string
	IdempotencyKey string
	// OverrideLimit lets staff knowingly exceed the credit limit.
	OverrideLimit bool
	Note          string
	CreatedBy     string
}

// LedgerFilter narrows and paginates a ledger read.
type LedgerFilter struct {
	From      *time.Time
	To        *time.Time
	PageSize  int
	PageToken string
}
