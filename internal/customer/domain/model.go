package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidName        = errors.New("invalid_customer_name")
	ErrInvalidPhone       = errors.New("invalid_phone_number")
	ErrInvalidCreditLimit = errors.New("invalid_credit_limit")
	ErrCustomerExists     = errors.New("customer_already_exists")
	ErrCustomerNotFound   = errors.New("customer_not_found")
)

// Indian mobile numbers, with or without the country prefix.
var phonePattern = regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`)

// Customer is a khata account holder at one store. The same person shopping
// at two stores is two customers; balances never cross store boundaries.
type Customer struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	StoreID     snowflake.ID    `gorm:"column:store_id;not null;uniqueIndex:idx_customers_store_phone,priority:1" json:"store_id"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Phone       string          `gorm:"type:text;not null;uniqueIndex:idx_customers_store_phone,priority:2" json:"phone"`
	CreditLimit decimal.Decimal `gorm:"column:credit_limit;type:numeric(14,2);not null;default:0" json:"credit_limit"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.ReplaceAll(strings.TrimSpace(c.Phone), " ", "")
	if c.Name == "" {
		return ErrInvalidName
	}
	if !phonePattern.MatchString(c.Phone) {
		return ErrInvalidPhone
	}
	if c.CreditLimit.IsNegative() {
		return ErrInvalidCreditLimit
	}
	return nil
}
