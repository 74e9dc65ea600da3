package calc

import (
	"github.com/shopspring/decimal"
)

// Tier is one row of a leaser's rate table. Amounts are inclusive on both
// ends; tiers are matched in slice order and the first hit wins.
type Tier struct {
	Min         decimal.Decimal
	Max         decimal.Decimal
	Coefficient decimal.Decimal

	// DurationCoefficients overrides Coefficient for an exact duration
	// match. Keyed by duration in months.
	DurationCoefficients map[int]decimal.Decimal
}

// CoefficientFor returns the rate for the given duration, preferring an
// exact duration override over the flat tier coefficient.
func (t Tier) CoefficientFor(durationMonths int) decimal.Decimal {
	if override, ok := t.DurationCoefficients[durationMonths]; ok {
		return override
	}
	return t.Coefficient
}

// Contains reports whether the financed amount falls inside the tier,
// boundaries included.
func (t Tier) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(t.Min) && amount.LessThanOrEqual(t.Max)
}

// DefaultTiers is the fallback rate table used when a leaser carries no
// ranges of its own. Boundaries step by one cent so adjacent tiers never
// overlap.
func DefaultTiers() []Tier {
	return []Tier{
		{Min: dec("500"), Max: dec("2500"), Coefficient: dec("3.55")},
		{Min: dec("2500.01"), Max: dec("5000"), Coefficient: dec("3.27")},
		{Min: dec("5000.01"), Max: dec("12500"), Coefficient: dec("3.18")},
		{Min: dec("12500.01"), Max: dec("25000"), Coefficient: dec("3.17")},
		{Min: dec("25000.01"), Max: dec("50000"), Coefficient: dec("3.16")},
	}
}

// FindCoefficient scans the tiers in order and returns the rate of the
// first tier containing the financed amount, honoring duration overrides.
// When no tier matches it returns decimal.Zero; callers must treat a zero
// coefficient as "no rate available" and never divide by it.
func FindCoefficient(financedAmount decimal.Decimal, tiers []Tier, durationMonths int) decimal.Decimal {
	for _, tier := range tiers {
		if tier.Contains(financedAmount) {
			return tier.CoefficientFor(durationMonths)
		}
	}
	return decimal.Zero
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
