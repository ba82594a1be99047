package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCustomerNotFound      = errors.New("customer_not_found")
	ErrTransactionNotFound   = errors.New("transaction_not_found")
	ErrDuplicateTransaction  = errors.New("duplicate_transaction")
	ErrAlreadyReversed       = errors.New("transaction_already_reversed")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidReference      = errors.New("invalid_reference")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrMissingActor          = errors.New("missing_created_by")

	// ErrBalanceConflict signals a lost optimistic version check; the
	// service retries, callers never see it.
	ErrBalanceConflict = errors.New("balance_version_conflict")
)

// CreditLimitExceededError carries the customer's current position so the
// caller can explain the rejection.
type CreditLimitExceededError struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	Attempted      decimal.Decimal `json:"attempted_amount"`
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit_limit_exceeded: balance %s + %s exceeds limit %s",
		e.CurrentBalance.StringFixed(2), e.Attempted.StringFixed(2), e.CreditLimit.StringFixed(2))
}
