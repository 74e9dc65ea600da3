package calc

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
	"github.com/iTakecare/leazr-backend/pkg/types"
)

// RescaleLine carries the inputs the rescaler needs for one equipment
// line. Lines absent from the baseline (added after the snapshot) are
// recomputed from these fields instead of scaled.
type RescaleLine struct {
	ID            string
	PurchasePrice decimal.Decimal
	Quantity      int
	MarginPct     decimal.Decimal
}

// RescaleResult holds the per-line monthly payments after a duration
// change, keyed by line ID, plus the coefficient that produced them.
type RescaleResult struct {
	Payments      map[string]decimal.Decimal
	Coefficient   decimal.Decimal
	ExpectedTotal decimal.Decimal
}

// CaptureBaseline snapshots the current state of an offer so later
// duration changes always scale from the same anchor instead of
// compounding rounding drift.
func CaptureBaseline(durationMonths int, coefficient, financedAmount decimal.Decimal, linePayments map[string]decimal.Decimal) types.BaselineSnapshot {
	payments := make(map[string]decimal.Decimal, len(linePayments))
	for id, p := range linePayments {
		payments[id] = p
	}
	return types.BaselineSnapshot{
		DurationMonths: durationMonths,
		Coefficient:    coefficient,
		FinancedAmount: financedAmount,
		LinePayments:   payments,
	}
}

// RescaleForDuration recomputes every line's monthly payment for a new
// duration while keeping the aggregate financed amount fixed at the
// baseline's value. Baseline lines scale by newCoefficient/oldCoefficient;
// lines added after the snapshot are computed fresh. A sub-unit rounding
// residue between the summed payments and the coefficient-derived total is
// folded into the last line so the aggregate matches exactly. The baseline
// itself is never advanced, so toggling durations back and forth returns
// the original payments.
func RescaleForDuration(baseline types.BaselineSnapshot, lines []RescaleLine, tiers []Tier, newDurationMonths int) (RescaleResult, error) {
	if !baseline.Coefficient.IsPositive() {
		return RescaleResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "baseline snapshot has no coefficient")
	}
	if len(lines) == 0 {
		return RescaleResult{}, pkgerrors.New(pkgerrors.CodeValidation, "offer has no equipment lines to rescale")
	}

	newCoefficient := FindCoefficient(baseline.FinancedAmount, tiers, newDurationMonths)
	if !newCoefficient.IsPositive() {
		return RescaleResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "no coefficient tier covers financed amount %s at %d months", baseline.FinancedAmount.StringFixed(2), newDurationMonths)
	}

	scalingFactor := newCoefficient.Div(baseline.Coefficient)
	expectedTotal := MonthlyPayment(baseline.FinancedAmount, newCoefficient)

	payments := make(map[string]decimal.Decimal, len(lines))
	total := decimal.Zero
	var lastBaselineLine string

	for _, line := range lines {
		var payment decimal.Decimal
		if base, ok := baseline.PaymentFor(line.ID); ok {
			payment = round2(base.Mul(scalingFactor))
			lastBaselineLine = line.ID
		} else {
			quote, err := ComputeQuote(line.PurchasePrice, line.Quantity, line.MarginPct, tiers, newDurationMonths)
			if err != nil {
				return RescaleResult{}, err
			}
			payment = MonthlyPayment(quote.FinancedAmount, newCoefficient)
		}
		payments[line.ID] = payment
		total = total.Add(payment)
	}

	// The residue check only makes sense against baseline-covered lines;
	// lines added after the snapshot are outside the anchored total.
	if lastBaselineLine != "" {
		baselineSum := decimal.Zero
		for _, line := range lines {
			if _, ok := baseline.PaymentFor(line.ID); ok {
				baselineSum = baselineSum.Add(payments[line.ID])
			}
		}
		residue := expectedTotal.Sub(baselineSum)
		if !residue.IsZero() && residue.Abs().LessThan(decimal.NewFromInt(1)) {
			payments[lastBaselineLine] = payments[lastBaselineLine].Add(residue)
		}
	}

	return RescaleResult{
		Payments:      payments,
		Coefficient:   newCoefficient,
		ExpectedTotal: expectedTotal,
	}, nil
}
