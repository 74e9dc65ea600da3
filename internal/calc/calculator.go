package calc

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

var (
	oneHundred = decimal.NewFromInt(100)
	one        = decimal.NewFromInt(1)
)

// MarginResult is the outcome of the inverse-by-payment calculation.
type MarginResult struct {
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// SalePriceResult is the outcome of the inverse-by-sale-price calculation.
type SalePriceResult struct {
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
	MarginAmount     decimal.Decimal `json:"margin_amount"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment"`
}

// Quote bundles everything the forward calculation derives for one line.
type Quote struct {
	FinancedAmount decimal.Decimal `json:"financed_amount"`
	Coefficient    decimal.Decimal `json:"coefficient"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
}

// FinancedAmount computes the amount to finance for one equipment line:
// purchasePrice x quantity x (1 + margin/100), rounded to cents.
func FinancedAmount(purchasePrice decimal.Decimal, quantity int, marginPct decimal.Decimal) (decimal.Decimal, error) {
	if purchasePrice.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "purchase price must not be negative")
	}
	if quantity < 1 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	markup := one.Add(marginPct.Div(oneHundred))
	financed := purchasePrice.Mul(decimal.NewFromInt(int64(quantity))).Mul(markup)
	return round2(financed), nil
}

// MonthlyPayment applies a coefficient to a financed amount:
// round2(financedAmount x coefficient / 100).
func MonthlyPayment(financedAmount, coefficient decimal.Decimal) decimal.Decimal {
	return round2(financedAmount.Mul(coefficient).Div(oneHundred))
}

// ComputeQuote runs the forward calculation end to end: financed amount,
// coefficient lookup, monthly payment. It fails with a validation error
// when no tier covers the financed amount so callers never see a silent
// zero payment.
func ComputeQuote(purchasePrice decimal.Decimal, quantity int, marginPct decimal.Decimal, tiers []Tier, durationMonths int) (Quote, error) {
	financed, err := FinancedAmount(purchasePrice, quantity, marginPct)
	if err != nil {
		return Quote{}, err
	}

	coefficient := FindCoefficient(financed, tiers, durationMonths)
	if coefficient.IsZero() {
		return Quote{}, pkgerrors.Newf(pkgerrors.CodeValidation, "no coefficient tier covers financed amount %s", financed.StringFixed(2))
	}

	return Quote{
		FinancedAmount: financed,
		Coefficient:    coefficient,
		MonthlyPayment: MonthlyPayment(financed, coefficient),
	}, nil
}

// MarginFromTargetPayment derives the margin required to hit a target
// monthly payment. A tier is self-consistent when projecting the target
// back to a financed amount through its own coefficient lands inside the
// tier; the first self-consistent tier wins, and the first tier serves as
// the fallback when none is.
func MarginFromTargetPayment(targetMonthly, purchasePrice decimal.Decimal, tiers []Tier, durationMonths int) (MarginResult, error) {
	if !targetMonthly.IsPositive() {
		return MarginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "target monthly payment must be positive")
	}
	if !purchasePrice.IsPositive() {
		return MarginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "purchase price must be positive")
	}
	if len(tiers) == 0 {
		return MarginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "no coefficient tiers available")
	}

	coefficient := decimal.Zero
	for _, tier := range tiers {
		rate := tier.CoefficientFor(durationMonths)
		if !rate.IsPositive() {
			continue
		}
		estimate := targetMonthly.Mul(oneHundred).Div(rate)
		if tier.Contains(estimate) {
			coefficient = rate
			break
		}
	}
	if coefficient.IsZero() {
		coefficient = tiers[0].CoefficientFor(durationMonths)
	}
	if !coefficient.IsPositive() {
		return MarginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "no usable coefficient for target payment")
	}

	requiredFinanced := round2(targetMonthly.Mul(oneHundred).Div(coefficient))
	marginAmount := round2(requiredFinanced.Sub(purchasePrice))
	marginPct := round2(marginAmount.Div(purchasePrice).Mul(oneHundred))

	return MarginResult{
		Percentage: marginPct,
		Amount:     marginAmount,
	}, nil
}

// FromSalePrice derives margin and monthly payment from a target sale
// price. The sale price must strictly exceed the purchase price. A known
// coefficient is reused when positive; otherwise it is looked up against
// the sale price itself.
func FromSalePrice(targetSalePrice, purchasePrice, knownCoefficient decimal.Decimal, tiers []Tier, durationMonths int) (SalePriceResult, error) {
	if !purchasePrice.IsPositive() {
		return SalePriceResult{}, pkgerrors.New(pkgerrors.CodeValidation, "purchase price must be positive")
	}
	if !targetSalePrice.GreaterThan(purchasePrice) {
		return SalePriceResult{}, pkgerrors.New(pkgerrors.CodeValidation, "target sale price must exceed purchase price")
	}

	coefficient := knownCoefficient
	if !coefficient.IsPositive() {
		coefficient = FindCoefficient(targetSalePrice, tiers, durationMonths)
	}
	if !coefficient.IsPositive() {
		return SalePriceResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "no coefficient tier covers sale price %s", targetSalePrice.StringFixed(2))
	}

	marginAmount := targetSalePrice.Sub(purchasePrice)
	marginPct := round2(marginAmount.Div(purchasePrice).Mul(oneHundred))

	return SalePriceResult{
		MarginPercentage: marginPct,
		MarginAmount:     round2(marginAmount),
		MonthlyPayment:   MonthlyPayment(targetSalePrice, coefficient),
	}, nil
}

// Adjustment compares the sum of per-line payments with the payment the
// aggregate financed amount would produce under its own tier.
type Adjustment struct {
	Percentage       decimal.Decimal `json:"percentage"`
	Amount           decimal.Decimal `json:"amount"`
	NewMonthly       decimal.Decimal `json:"new_monthly"`
	CurrentCoef      decimal.Decimal `json:"current_coef"`
	NewCoef          decimal.Decimal `json:"new_coef"`
	AdaptPayment     bool            `json:"adapt_payment"`
	MarginDifference decimal.Decimal `json:"margin_difference"`
}

// GlobalAdjustment summarizes whether recomputing the monthly payment on
// the aggregate financed amount (one tier lookup for the whole offer)
// beats the sum of line-by-line payments. Returns a zero adjustment when
// the offer is empty.
func GlobalAdjustment(totalPurchase, totalFinanced, totalMonthly decimal.Decimal, tiers []Tier, durationMonths int) Adjustment {
	if !totalFinanced.IsPositive() {
		return Adjustment{}
	}

	currentCoef := decimal.Zero
	if totalMonthly.IsPositive() {
		currentCoef = round2(totalMonthly.Mul(oneHundred).Div(totalFinanced))
	}

	newCoef := FindCoefficient(totalFinanced, tiers, durationMonths)
	newMonthly := decimal.Zero
	if newCoef.IsPositive() {
		newMonthly = MonthlyPayment(totalFinanced, newCoef)
	}

	marginAmount := round2(totalFinanced.Sub(totalPurchase))
	marginPct := decimal.Zero
	if totalPurchase.IsPositive() {
		marginPct = round2(marginAmount.Div(totalPurchase).Mul(oneHundred))
	}

	return Adjustment{
		Percentage:       marginPct,
		Amount:           marginAmount,
		NewMonthly:       newMonthly,
		CurrentCoef:      currentCoef,
		NewCoef:          newCoef,
		AdaptPayment:     newCoef.IsPositive() && !newCoef.Equal(currentCoef),
		MarginDifference: newMonthly.Sub(totalMonthly),
	}
}

// RescaleQuantity adjusts a line-total monthly payment for a quantity
// change, preserving the implied per-unit rate.
func RescaleQuantity(monthlyPayment decimal.Decimal, oldQuantity, newQuantity int) (decimal.Decimal, error) {
	if oldQuantity < 1 || newQuantity < 1 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	perUnit := monthlyPayment.Div(decimal.NewFromInt(int64(oldQuantity)))
	return round2(perUnit.Mul(decimal.NewFromInt(int64(newQuantity)))), nil
}

// round2 rounds to cents, halves away from zero. Amounts in this package
// are non-negative in practice, so this matches half-up bank rounding.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
