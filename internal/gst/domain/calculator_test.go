package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalculateItemGST(t *testing.T) {
	tests := []struct {
		name       string
		unitPrice  string
		quantity   string
		rate       RateSlab
		cessRate   string
		interState bool

		taxable string
		cgst    string
		sgst    string
		igst    string
		cess    string
		total   string
	}{
		{
			name:      "intra-state 5 percent",
			unitPrice: "250", quantity: "2", rate: RateSlab5,
			cessRate: "0", interState: false,
			taxable: "500.00", cgst: "12.50", sgst: "12.50", igst: "0", cess: "0", total: "525.00",
		},
		{
			name:      "inter-state 18 percent",
			unitPrice: "1000", quantity: "1", rate: RateSlab18,
			cessRate: "0", interState: true,
			taxable: "1000.00", cgst: "0", sgst: "0", igst: "180.00", cess: "0", total: "1180.00",
		},
		{
			name:      "28 percent with 12 percent cess",
			unitPrice: "100", quantity: "1", rate: RateSlab28,
			cessRate: "12", interState: false,
			taxable: "100.00", cgst: "14.00", sgst: "14.00", igst: "0", cess: "12.00", total: "140.00",
		},
		{
			name:      "exempt slab",
			unitPrice: "45.50", quantity: "3", rate: RateSlabExempt,
			cessRate: "0", interState: false,
			taxable: "136.50", cgst: "0", sgst: "0", igst: "0", cess: "0", total: "136.50",
		},
		{
			name:      "zero quantity",
			unitPrice: "99.99", quantity: "0", rate: RateSlab12,
			cessRate: "0", interState: false,
			taxable: "0", cgst: "0", sgst: "0", igst: "0", cess: "0", total: "0",
		},
		{
			name:      "negative quantity is a tax credit",
			unitPrice: "250", quantity: "-2", rate: RateSlab5,
			cessRate: "0", interState: false,
			taxable: "-500.00", cgst: "-12.50", sgst: "-12.50", igst: "0", cess: "0", total: "-525.00",
		},
		{
			name:      "odd split rounds halves independently",
			unitPrice: "33.33", quantity: "1", rate: RateSlab5,
			cessRate: "0", interState: false,
			// 33.33 * 2.5% = 0.83325 -> 0.83 each half; a derived split
			// from the rounded total would give 0.83/0.84
			taxable: "33.33", cgst: "0.83", sgst: "0.83", igst: "0", cess: "0", total: "34.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateItemGST(d(tt.unitPrice), d(tt.quantity), tt.rate, d(tt.cessRate), tt.interState)

			assert.True(t, got.TaxableAmount.Equal(d(tt.taxable)), "taxable: got %s", got.TaxableAmount)
			assert.True(t, got.CGST.Equal(d(tt.cgst)), "cgst: got %s", got.CGST)
			assert.True(t, got.SGST.Equal(d(tt.sgst)), "sgst: got %s", got.SGST)
			assert.True(t, got.IGST.Equal(d(tt.igst)), "igst: got %s", got.IGST)
			assert.True(t, got.Cess.Equal(d(tt.cess)), "cess: got %s", got.Cess)
			assert.True(t, got.TotalAmount.Equal(d(tt.total)), "total: got %s", got.TotalAmount)

			// tax identity holds for every breakdown
			wantTax := got.CGST.Add(got.SGST).Add(got.IGST).Add(got.Cess)
			assert.True(t, got.TotalTax.Equal(wantTax))
			assert.True(t, got.TotalAmount.Equal(got.TaxableAmount.Add(got.TotalTax)))

			// locality split
			if tt.interState {
				assert.True(t, got.CGST.IsZero())
				assert.True(t, got.SGST.IsZero())
			} else {
				assert.True(t, got.IGST.IsZero())
				assert.True(t, got.CGST.Equal(got.SGST))
			}
		})
	}
}

func TestCalculateItemGST_CessAppliesRegardlessOfLocality(t *testing.T) {
	intra := CalculateItemGST(d("100"), d("1"), RateSlab28, d("12"), false)
	inter := CalculateItemGST(d("100"), d("1"), RateSlab28, d("12"), true)
	assert.True(t, intra.Cess.Equal(inter.Cess))
	assert.True(t, intra.TotalTax.Equal(inter.TotalTax))
}

func TestCalculateOrderGST_RateWiseBreakdown(t *testing.T) {
	items := []LineItem{
		{UnitPrice: d("50"), Quantity: d("4"), Rate: RateSlabExempt},
		{UnitPrice: d("250"), Quantity: d("2"), Rate: RateSlab5},
		{UnitPrice: d("120"), Quantity: d("1"), Rate: RateSlab12},
		{UnitPrice: d("1000"), Quantity: d("1"), Rate: RateSlab18},
	}

	summary := CalculateOrderGST(items)
	require.Len(t, summary.Items, 4)
	require.Len(t, summary.RateWise, 4, "one bucket per distinct slab")

	// aggregation conserves totals: buckets reconcile to order sums
	bucketTaxable := decimal.Zero
	bucketTax := decimal.Zero
	for _, bucket := range summary.RateWise {
		bucketTaxable = bucketTaxable.Add(bucket.TaxableAmount)
		bucketTax = bucketTax.Add(bucket.TaxAmount)
	}
	assert.True(t, bucketTaxable.Equal(summary.Subtotal), "taxable: %s vs %s", bucketTaxable, summary.Subtotal)
	assert.True(t, bucketTax.Equal(summary.TotalTax), "tax: %s vs %s", bucketTax, summary.TotalTax)

	assert.True(t, summary.Subtotal.Equal(d("1820.00")))
	assert.True(t, summary.TotalTax.Equal(d("219.40"))) // 0 + 25 + 14.40 + 180
	assert.True(t, summary.Total.Equal(d("2039.40")))
}

func TestCalculateOrderGST_SameSlabSharesBucket(t *testing.T) {
	items := []LineItem{
		{UnitPrice: d("100"), Quantity: d("1"), Rate: RateSlab18},
		{UnitPrice: d("200"), Quantity: d("1"), Rate: RateSlab18},
		// cess does not open a separate bucket; grouping key is the nominal rate
		{UnitPrice: d("100"), Quantity: d("1"), Rate: RateSlab28, CessRate: d("12")},
	}

	summary := CalculateOrderGST(items)
	require.Len(t, summary.RateWise, 2)

	bucket18 := summary.RateWise[RateSlab18]
	assert.True(t, bucket18.TaxableAmount.Equal(d("300.00")))
	assert.True(t, bucket18.TaxAmount.Equal(d("54.00")))

	bucket28 := summary.RateWise[RateSlab28]
	assert.True(t, bucket28.TaxableAmount.Equal(d("100.00")))
	assert.True(t, bucket28.TaxAmount.Equal(d("40.00")))
}

func TestCalculateOrderGST_Empty(t *testing.T) {
	summary := CalculateOrderGST(nil)
	assert.Empty(t, summary.Items)
	assert.Empty(t, summary.RateWise)
	assert.True(t, summary.Total.IsZero())
}

func TestParseRateSlab(t *testing.T) {
	for _, valid := range []int{0, 5, 12, 18, 28} {
		slab, err := ParseRateSlab(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, int(slab))
	}
	for _, invalid := range []int{-5, 3, 10, 15, 100} {
		_, err := ParseRateSlab(invalid)
		assert.ErrorIs(t, err, ErrInvalidRateSlab)
	}
}
