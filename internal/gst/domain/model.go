package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateSlab is a statutory GST rate. The set is closed by law; construction
// goes through ParseRateSlab so an out-of-set value can never enter a
// calculation.
type RateSlab int

const (
	RateSlabExempt RateSlab = 0
	RateSlab5      RateSlab = 5
	RateSlab12     RateSlab = 12
	RateSlab18     RateSlab = 18
	RateSlab28     RateSlab = 28
)

// DefaultRateSlab applies when no category, HSN or keyword match is found.
const DefaultRateSlab = RateSlab18

func ParseRateSlab(v int) (RateSlab, error) {
	switch RateSlab(v) {
	case RateSlabExempt, RateSlab5, RateSlab12, RateSlab18, RateSlab28:
		return RateSlab(v), nil
	default:
		return 0, ErrInvalidRateSlab
	}
}

func (r RateSlab) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(r))
}

// Category is a GST rate-table row. Immutable within a calculation: rate
// changes are versioned externally and the engine only ever sees the
// currently effective rate.
type Category struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	HSNPrefix   string          `gorm:"column:hsn_prefix;type:text" json:"hsn_prefix"`
	Rate        int             `gorm:"not null" json:"rate"`
	CessRate    decimal.Decimal `gorm:"column:cess_rate;type:numeric(6,2);not null;default:0" json:"cess_rate"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Category) TableName() string { return "gst_categories" }

func (c *Category) Validate() error {
	if c.Code == "" {
		return ErrInvalidCategoryCode
	}
	if c.Name == "" {
		return ErrInvalidCategoryName
	}
	if _, err := ParseRateSlab(c.Rate); err != nil {
		return err
	}
	if c.CessRate.IsNegative() {
		return ErrInvalidCessRate
	}
	return nil
}

func (c *Category) Slab() RateSlab {
	slab, err := ParseRateSlab(c.Rate)
	if err != nil {
		return DefaultRateSlab
	}
	return slab
}

// HSNMapping maps a full HSN code to a rate category. Lookup prefers the
// exact code and falls back to its 4-digit chapter-heading prefix.
type HSNMapping struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	HSNCode      string       `gorm:"column:hsn_code;type:text;not null;uniqueIndex" json:"hsn_code"`
	CategoryCode string       `gorm:"column:category_code;type:text;not null;index" json:"category_code"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (HSNMapping) TableName() string { return "hsn_mappings" }

// LineItem is one order line as submitted for tax computation.
type LineItem struct {
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Rate       RateSlab        `json:"rate"`
	CessRate   decimal.Decimal `json:"cess_rate"`
	InterState bool            `json:"inter_state"`
}

// ItemBreakdown is the per-item statutory tax split. All amounts carry
// exactly two fractional digits.
type ItemBreakdown struct {
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	IGST          decimal.Decimal `json:"igst"`
	Cess          decimal.Decimal `json:"cess"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Rate          RateSlab        `json:"rate"`
}

// RateBucket is one slab's contribution to an order. GSTR returns group by
// rate slab, not by item.
type RateBucket struct {
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

// OrderSummary aggregates item breakdowns and the rate-wise grouping
// required for filing.
type OrderSummary struct {
	Items     []ItemBreakdown         `json:"items"`
	Subtotal  decimal.Decimal         `json:"subtotal"`
	TotalCGST decimal.Decimal         `json:"total_cgst"`
	TotalSGST decimal.Decimal         `json:"total_sgst"`
	TotalIGST decimal.Decimal         `json:"total_igst"`
	TotalCess decimal.Decimal         `json:"total_cess"`
	TotalTax  decimal.Decimal         `json:"total_tax"`
	Total     decimal.Decimal         `json:"total_amount"`
	RateWise  map[RateSlab]RateBucket `json:"rate_wise"`
}

// RateSource records which step of the resolution chain produced a rate.
// A guessed rate is usable for a quote but should be confirmed before filing.
type RateSource string

const (
	RateSourceCategory  RateSource = "category"
	RateSourceHSN       RateSource = "hsn"
	RateSourceHSNPrefix RateSource = "hsn_prefix"
	RateSourceKeyword   RateSource = "keyword"
	RateSourceDefault   RateSource = "default"
)

// RateResolution is the outcome of ResolveRateForProduct.
type RateResolution struct {
	Rate         RateSlab        `json:"rate"`
	CessRate     decimal.Decimal `json:"cess_rate"`
	CategoryCode string          `json:"category_code,omitempty"`
	Source       RateSource      `json:"source"`
}
