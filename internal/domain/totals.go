package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	maxVATRate = decimal.NewFromInt(100)
)

// LineInput is a line item as entered: quantity may be fractional (days,
// hours), the unit price is in minor currency units, the VAT rate is a
// percentage.
type LineInput struct {
	Description    string
	Quantity       decimal.Decimal
	UnitPriceCents int64
	VATRate        decimal.Decimal
}

// LineTotals holds the computed amounts of one line, in minor units.
type LineTotals struct {
	SubtotalCents int64
	VATCents      int64
	TotalCents    int64
}

// Totals holds document-level amounts. TotalCents is always
// SubtotalCents + VATCents.
type Totals struct {
	SubtotalCents int64
	VATCents      int64
	TotalCents    int64
}

// ComputeTotals prices each line as round(quantity × unitPrice) plus
// round(subtotal × rate / 100), rounding half away from zero, and sums the
// lines. Rounding per line keeps the printed lines equal to the document sum.
func ComputeTotals(lines []LineInput) (Totals, []LineTotals, error) {
	const op = "domain.ComputeTotals"

	var totals Totals
	out := make([]LineTotals, 0, len(lines))
	for i, line := range lines {
		if line.Quantity.IsNegative() {
			return Totals{}, nil, NewValidationError(op, fmt.Sprintf("lines[%d].quantity", i), "must not be negative")
		}
		if line.UnitPriceCents < 0 {
			return Totals{}, nil, NewValidationError(op, fmt.Sprintf("lines[%d].unit_price", i), "must not be negative")
		}
		if line.VATRate.IsNegative() || line.VATRate.GreaterThan(maxVATRate) {
			return Totals{}, nil, NewValidationError(op, fmt.Sprintf("lines[%d].vat_rate", i), "must be between 0 and 100")
		}

		sub := line.Quantity.Mul(decimal.NewFromInt(line.UnitPriceCents)).Round(0)
		vat := sub.Mul(line.VATRate).Div(hundred).Round(0)

		lt := LineTotals{
			SubtotalCents: sub.IntPart(),
			VATCents:      vat.IntPart(),
		}
		lt.TotalCents = lt.SubtotalCents + lt.VATCents
		out = append(out, lt)

		totals.SubtotalCents += lt.SubtotalCents
		totals.VATCents += lt.VATCents
	}
	totals.TotalCents = totals.SubtotalCents + totals.VATCents
	return totals, out, nil
}
