package calc

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

// selfFinancingTiers models an own-company rate table where the duration
// picks the coefficient inside a single wide tier.
func selfFinancingTiers(t *testing.T) []Tier {
	t.Helper()
	return []Tier{
		{
			Min:         mustDec(t, "500"),
			Max:         mustDec(t, "50000"),
			Coefficient: mustDec(t, "3.55"),
			DurationCoefficients: map[int]decimal.Decimal{
				24: mustDec(t, "5.07"),
				36: mustDec(t, "3.55"),
				48: mustDec(t, "3.27"),
			},
		},
	}
}

func TestRescaleForDurationSameDurationIsIdentity(t *testing.T) {
	tiers := selfFinancingTiers(t)
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), map[string]decimal.Decimal{
		"line-a": mustDec(t, "25.00"),
		"line-b": mustDec(t, "17.60"),
	})
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "704.23"), Quantity: 1},
		{ID: "line-b", PurchasePrice: mustDec(t, "495.77"), Quantity: 1},
	}

	result, err := RescaleForDuration(baseline, lines, tiers, 36)
	if err != nil {
		t.Fatalf("RescaleForDuration: %v", err)
	}

	if !result.Payments["line-a"].Equal(mustDec(t, "25.00")) {
		t.Fatalf("line-a = %s, want 25.00", result.Payments["line-a"])
	}
	if !result.Payments["line-b"].Equal(mustDec(t, "17.60")) {
		t.Fatalf("line-b = %s, want 17.60", result.Payments["line-b"])
	}
	if !result.Coefficient.Equal(mustDec(t, "3.55")) {
		t.Fatalf("coefficient = %s, want 3.55", result.Coefficient)
	}
}

func TestRescaleForDurationScalesFromBaseline(t *testing.T) {
	tiers := selfFinancingTiers(t)
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), map[string]decimal.Decimal{
		"line-a": mustDec(t, "25.00"),
		"line-b": mustDec(t, "17.60"),
	})
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "704.23"), Quantity: 1},
		{ID: "line-b", PurchasePrice: mustDec(t, "495.77"), Quantity: 1},
	}

	result, err := RescaleForDuration(baseline, lines, tiers, 24)
	if err != nil {
		t.Fatalf("RescaleForDuration: %v", err)
	}

	if !result.Coefficient.Equal(mustDec(t, "5.07")) {
		t.Fatalf("coefficient = %s, want 5.07", result.Coefficient)
	}
	// 1200 x 5.07 / 100
	if !result.ExpectedTotal.Equal(mustDec(t, "60.84")) {
		t.Fatalf("expected total = %s, want 60.84", result.ExpectedTotal)
	}

	total := result.Payments["line-a"].Add(result.Payments["line-b"])
	if !total.Equal(result.ExpectedTotal) {
		t.Fatalf("payments sum to %s, want %s", total, result.ExpectedTotal)
	}
}

func TestRescaleForDurationRoundTripReturnsOriginals(t *testing.T) {
	tiers := selfFinancingTiers(t)
	original := map[string]decimal.Decimal{
		"line-a": mustDec(t, "25.00"),
		"line-b": mustDec(t, "17.60"),
	}
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), original)
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "704.23"), Quantity: 1},
		{ID: "line-b", PurchasePrice: mustDec(t, "495.77"), Quantity: 1},
	}

	// 36 -> 24 -> 36: the baseline never advances, so the second rescale
	// reproduces the original payments exactly.
	if _, err := RescaleForDuration(baseline, lines, tiers, 24); err != nil {
		t.Fatalf("rescale to 24: %v", err)
	}
	back, err := RescaleForDuration(baseline, lines, tiers, 36)
	if err != nil {
		t.Fatalf("rescale back to 36: %v", err)
	}

	for id, want := range original {
		if !back.Payments[id].Equal(want) {
			t.Fatalf("%s = %s after round trip, want %s", id, back.Payments[id], want)
		}
	}
}

func TestRescaleForDurationFoldsResidueIntoLastLine(t *testing.T) {
	tiers := selfFinancingTiers(t)
	// Three near-equal lines whose individually rounded payments overshoot
	// the coefficient-derived total by one cent at 48 months.
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1000"), map[string]decimal.Decimal{
		"line-a": mustDec(t, "11.83"),
		"line-b": mustDec(t, "11.83"),
		"line-c": mustDec(t, "11.84"),
	})
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "333.33"), Quantity: 1},
		{ID: "line-b", PurchasePrice: mustDec(t, "333.33"), Quantity: 1},
		{ID: "line-c", PurchasePrice: mustDec(t, "333.34"), Quantity: 1},
	}

	result, err := RescaleForDuration(baseline, lines, tiers, 48)
	if err != nil {
		t.Fatalf("RescaleForDuration: %v", err)
	}

	// 1000 x 3.27 / 100
	if !result.ExpectedTotal.Equal(mustDec(t, "32.70")) {
		t.Fatalf("expected total = %s, want 32.70", result.ExpectedTotal)
	}
	total := decimal.Zero
	for _, p := range result.Payments {
		total = total.Add(p)
	}
	if !total.Equal(result.ExpectedTotal) {
		t.Fatalf("payments sum to %s, want %s", total, result.ExpectedTotal)
	}
	if !result.Payments["line-c"].Equal(mustDec(t, "10.90")) {
		t.Fatalf("last line = %s, want 10.90 after residue correction", result.Payments["line-c"])
	}
}

func TestRescaleForDurationComputesFreshForNewLines(t *testing.T) {
	tiers := selfFinancingTiers(t)
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), map[string]decimal.Decimal{
		"line-a": mustDec(t, "42.60"),
	})
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "1000"), Quantity: 1, MarginPct: mustDec(t, "20")},
		{ID: "line-new", PurchasePrice: mustDec(t, "500"), Quantity: 2, MarginPct: mustDec(t, "10")},
	}

	result, err := RescaleForDuration(baseline, lines, tiers, 24)
	if err != nil {
		t.Fatalf("RescaleForDuration: %v", err)
	}

	// Baseline line scales: 42.60 x 5.07/3.55 = 60.84.
	if !result.Payments["line-a"].Equal(mustDec(t, "60.84")) {
		t.Fatalf("line-a = %s, want 60.84", result.Payments["line-a"])
	}
	// New line computes fresh: financed 1100, 1100 x 5.07 / 100 = 55.77.
	if !result.Payments["line-new"].Equal(mustDec(t, "55.77")) {
		t.Fatalf("line-new = %s, want 55.77", result.Payments["line-new"])
	}
}

func TestRescaleForDurationSelfFinancingInvariant(t *testing.T) {
	tiers := selfFinancingTiers(t)
	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), map[string]decimal.Decimal{
		"line-a": mustDec(t, "25.00"),
		"line-b": mustDec(t, "17.60"),
	})
	lines := []RescaleLine{
		{ID: "line-a", PurchasePrice: mustDec(t, "704.23"), Quantity: 1},
		{ID: "line-b", PurchasePrice: mustDec(t, "495.77"), Quantity: 1},
	}

	tolerance := mustDec(t, "0.5")
	for _, duration := range []int{24, 48, 36, 24, 36} {
		result, err := RescaleForDuration(baseline, lines, tiers, duration)
		if err != nil {
			t.Fatalf("rescale to %d: %v", duration, err)
		}

		total := decimal.Zero
		for _, p := range result.Payments {
			total = total.Add(p)
		}
		implied := total.Mul(mustDec(t, "100")).Div(result.Coefficient)
		drift := implied.Sub(baseline.FinancedAmount).Abs()
		if drift.GreaterThan(tolerance) {
			t.Fatalf("duration %d: implied financed %s drifts from baseline 1200 by %s", duration, implied, drift)
		}
	}
}

func TestRescaleForDurationErrors(t *testing.T) {
	tiers := selfFinancingTiers(t)
	lines := []RescaleLine{{ID: "line-a", PurchasePrice: mustDec(t, "1000"), Quantity: 1}}

	noCoef := CaptureBaseline(36, decimal.Zero, mustDec(t, "1200"), nil)
	if _, err := RescaleForDuration(noCoef, lines, tiers, 24); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("zero baseline coefficient: got %v, want state conflict", err)
	}

	baseline := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "1200"), nil)
	if _, err := RescaleForDuration(baseline, nil, tiers, 24); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("no lines: got %v, want validation error", err)
	}

	outOfTable := CaptureBaseline(36, mustDec(t, "3.55"), mustDec(t, "99"), map[string]decimal.Decimal{"line-a": mustDec(t, "3.51")})
	if _, err := RescaleForDuration(outOfTable, lines, tiers, 24); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("financed amount outside tiers: got %v, want validation error", err)
	}
}
