package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)
var two = decimal.NewFromInt(2)

// CalculateItemGST computes the statutory tax split for one line item.
// Pure: no I/O, no hidden state.
//
// Intra-state supplies split the rate into equal CGST and SGST halves, each
// rounded independently to the paisa. Deriving one half from a rounded total
// would put the two halves a paisa apart, which GSTR filing rejects. Cess is
// never split and applies identically in both cases.
//
// Zero or negative quantities compute literally: a negative quantity is a
// return and yields negative tax (a tax credit), never clamped.
func CalculateItemGST(unitPrice, quantity decimal.Decimal, rate RateSlab, cessRate decimal.Decimal, interState bool) ItemBreakdown {
	taxable := unitPrice.Mul(quantity).Round(2)

	var cgst, sgst, igst decimal.Decimal
	if interState {
		igst = taxable.Mul(rate.Decimal()).Div(hundred).Round(2)
		cgst = decimal.Zero
		sgst = decimal.Zero
	} else {
		half := rate.Decimal().Div(two)
		cgst = taxable.Mul(half).Div(hundred).Round(2)
		sgst = cgst
		igst = decimal.Zero
	}

	cess := taxable.Mul(cessRate).Div(hundred).Round(2)

	totalTax := cgst.Add(sgst).Add(igst).Add(cess)
	return ItemBreakdown{
		TaxableAmount: taxable,
		CGST:          cgst,
		SGST:          sgst,
		IGST:          igst,
		Cess:          cess,
		TotalTax:      totalTax,
		TotalAmount:   taxable.Add(totalTax),
		Rate:          rate,
	}
}

// CalculateOrderGST computes every item and aggregates totals plus the
// rate-wise breakdown. Each item lands in exactly one bucket, keyed by the
// nominal rate slab (cess does not open a separate bucket).
func CalculateOrderGST(items []LineItem) OrderSummary {
	summary := OrderSummary{
		Items:     make([]ItemBreakdown, 0, len(items)),
		Subtotal:  decimal.Zero,
		TotalCGST: decimal.Zero,
		TotalSGST: decimal.Zero,
		TotalIGST: decimal.Zero,
		TotalCess: decimal.Zero,
		TotalTax:  decimal.Zero,
		Total:     decimal.Zero,
		RateWise:  make(map[RateSlab]RateBucket),
	}

	for _, item := range items {
		breakdown := CalculateItemGST(item.UnitPrice, item.Quantity, item.Rate, item.CessRate, item.InterState)
		summary.Items = append(summary.Items, breakdown)

		summary.Subtotal = summary.Subtotal.Add(breakdown.TaxableAmount)
		summary.TotalCGST = summary.TotalCGST.Add(breakdown.CGST)
		summary.TotalSGST = summary.TotalSGST.Add(breakdown.SGST)
		summary.TotalIGST = summary.TotalIGST.Add(breakdown.IGST)
		summary.TotalCess = summary.TotalCess.Add(breakdown.Cess)
		summary.TotalTax = summary.TotalTax.Add(breakdown.TotalTax)
		summary.Total = summary.Total.Add(breakdown.TotalAmount)

		bucket := summary.RateWise[breakdown.Rate]
		bucket.TaxableAmount = bucket.TaxableAmount.Add(breakdown.TaxableAmount)
		bucket.TaxAmount = bucket.TaxAmount.Add(breakdown.TotalTax)
		summary.RateWise[breakdown.Rate] = bucket
	}

	return summary
}
