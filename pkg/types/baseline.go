package types

import "github.com/shopspring/decimal"

// BaselineSnapshot anchors an offer's self-financing rescale reference point.
// It is captured when equipment lines change and stays pinned at its original
// duration so repeated duration changes always scale from the same values
// instead of compounding rounding drift.
type BaselineSnapshot struct {
	DurationMonths int             `json:"duration_months"`
	Coefficient    decimal.Decimal `json:"coefficient"`
	FinancedAmount decimal.Decimal `json:"financed_amount"`
	// LinePayments maps equipment line id to the line-total monthly payment
	// observed at capture time.
	LinePayments map[string]decimal.Decimal `json:"line_payments"`
}

// PaymentFor returns the snapshotted payment for a line id, if present.
func (b *BaselineSnapshot) PaymentFor(lineID string) (decimal.Decimal, bool) {
	if b == nil || b.LinePayments == nil {
		return decimal.Zero, false
	}
	payment, ok := b.LinePayments[lineID]
	return payment, ok
}
