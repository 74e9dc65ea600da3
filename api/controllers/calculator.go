package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iTakecare/leazr-backend/api/responses"
	"github.com/iTakecare/leazr-backend/api/validators"
	"github.com/iTakecare/leazr-backend/internal/calc"
	"github.com/iTakecare/leazr-backend/internal/leasers"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
	"github.com/iTakecare/leazr-backend/pkg/logger"
	"github.com/iTakecare/leazr-backend/pkg/metrics"
)

type monthlyPaymentRequest struct {
	PurchasePrice  decimal.Decimal `json:"purchase_price" validate:"required"`
	Quantity       int             `json:"quantity" validate:"required,gte=1"`
	MarginPct      decimal.Decimal `json:"margin_pct"`
	DurationMonths int             `json:"duration_months" validate:"required,gt=0"`
	LeaserID       *uuid.UUID      `json:"leaser_id"`
}

type marginFromPaymentRequest struct {
	TargetMonthlyPayment decimal.Decimal `json:"target_monthly_payment" validate:"required"`
	PurchasePrice        decimal.Decimal `json:"purchase_price" validate:"required"`
	DurationMonths       int             `json:"duration_months" validate:"required,gt=0"`
	LeaserID             *uuid.UUID      `json:"leaser_id"`
}

type marginFromSalePriceRequest struct {
	TargetSalePrice  decimal.Decimal `json:"target_sale_price" validate:"required"`
	PurchasePrice    decimal.Decimal `json:"purchase_price" validate:"required"`
	KnownCoefficient decimal.Decimal `json:"known_coefficient"`
	DurationMonths   int             `json:"duration_months" validate:"required,gt=0"`
	LeaserID         *uuid.UUID      `json:"leaser_id"`
}

// CalculatorMonthlyPayment prices one equipment line without touching any
// stored offer.
func CalculatorMonthlyPayment(svc leasers.Service, calcMetrics *metrics.CalculatorMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		var payload monthlyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers, err := resolveTiers(r, svc, payload.LeaserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := calc.ComputeQuote(payload.PurchasePrice, payload.Quantity, payload.MarginPct, tiers, payload.DurationMonths)
		calcMetrics.Observe("calc_monthly_payment", started, err)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}

// CalculatorMarginFromPayment recovers the margin a target monthly payment
// implies for a given purchase price.
func CalculatorMarginFromPayment(svc leasers.Service, calcMetrics *metrics.CalculatorMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		var payload marginFromPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers, err := resolveTiers(r, svc, payload.LeaserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := calc.MarginFromTargetPayment(payload.TargetMonthlyPayment, payload.PurchasePrice, tiers, payload.DurationMonths)
		calcMetrics.Observe("calc_margin_from_payment", started, err)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// CalculatorMarginFromSalePrice derives margin and payment from a target
// sale price, reusing a known coefficient when the caller supplies one.
func CalculatorMarginFromSalePrice(svc leasers.Service, calcMetrics *metrics.CalculatorMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		var payload marginFromSalePriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers, err := resolveTiers(r, svc, payload.LeaserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := calc.FromSalePrice(payload.TargetSalePrice, payload.PurchasePrice, payload.KnownCoefficient, tiers, payload.DurationMonths)
		calcMetrics.Observe("calc_margin_from_sale_price", started, err)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// CalculatorCoefficient looks up the rate applicable to a financed amount,
// so the form can display it before any line is stored.
func CalculatorCoefficient(svc leasers.Service, calcMetrics *metrics.CalculatorMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		amount, err := validators.ParseQueryDecimal(r, "financed_amount", decimal.Zero)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "financed_amount must be positive"))
			return
		}

		duration, err := validators.ParseQueryInt(r, "duration_months", 0, 1, 240)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var leaserID *uuid.UUID
		if raw := r.URL.Query().Get("leaser_id"); raw != "" {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid leaser_id"))
				return
			}
			leaserID = &id
		}

		tiers, err := resolveTiers(r, svc, leaserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coef := calc.FindCoefficient(amount, tiers, duration)
		if !coef.IsPositive() {
			err = pkgerrors.New(pkgerrors.CodeValidation, "no coefficient range covers this amount")
		}
		calcMetrics.Observe("calc_coefficient", started, err)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]decimal.Decimal{"coefficient": coef})
	}
}

// resolveTiers loads the leaser's rate table when a leaser is named,
// otherwise falls back to the built-in default grid.
func resolveTiers(r *http.Request, svc leasers.Service, leaserID *uuid.UUID) ([]calc.Tier, error) {
	if leaserID == nil {
		return calc.DefaultTiers(), nil
	}
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "leaser service unavailable")
	}
	leaser, err := svc.Get(r.Context(), *leaserID)
	if err != nil {
		return nil, err
	}
	return leasers.Tiers(leaser), nil
}
