package offers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iTakecare/leazr-backend/internal/calc"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

// QuoteLine is one equipment line in the aggregate quote view, with the
// per-unit payment derived from the stored line total.
type QuoteLine struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Quantity       int             `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	MarginPct      decimal.Decimal `json:"margin_pct"`
	FinancedAmount decimal.Decimal `json:"financed_amount"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	UnitMonthly    decimal.Decimal `json:"unit_monthly"`
}

// QuoteSummary is the aggregate view consumed by quote screens and PDF
// rendering: totals plus the global margin adjustment.
type QuoteSummary struct {
	OfferID        uuid.UUID       `json:"offer_id"`
	DurationMonths int             `json:"duration_months"`
	TotalPurchase  decimal.Decimal `json:"total_purchase"`
	TotalFinanced  decimal.Decimal `json:"total_financed"`
	TotalMonthly   decimal.Decimal `json:"total_monthly"`
	Adjustment     calc.Adjustment `json:"adjustment"`
	Lines          []QuoteLine     `json:"lines"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// Quote computes the aggregate summary for an offer, serving from the cache
// when a fresh copy exists. Line mutations and duration changes invalidate
// the cached entry.
func (s *service) Quote(ctx context.Context, offerID uuid.UUID) (*QuoteSummary, error) {
	started := time.Now()
	summary, err := s.quote(ctx, offerID)
	s.calcMetrics.Observe("quote", started, err)
	return summary, err
}

func (s *service) quote(ctx context.Context, offerID uuid.UUID) (*QuoteSummary, error) {
	if s.cache != nil {
		key := s.cache.QuoteCacheKey(offerID.String())
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached QuoteSummary
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			// Unreadable cache entries are replaced, not served.
			_ = s.cache.Del(ctx, key)
		}
	}

	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	summary := &QuoteSummary{
		OfferID:        offer.ID,
		DurationMonths: offer.DurationMonths,
		TotalPurchase:  decimal.Zero,
		TotalFinanced:  decimal.Zero,
		TotalMonthly:   decimal.Zero,
		Lines:          make([]QuoteLine, 0, len(offer.Lines)),
		ComputedAt:     time.Now().UTC(),
	}

	for _, line := range offer.Lines {
		financed, err := calc.FinancedAmount(line.PurchasePrice, line.Quantity, line.MarginPct)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute financed amount")
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		summary.TotalPurchase = summary.TotalPurchase.Add(line.PurchasePrice.Mul(qty))
		summary.TotalFinanced = summary.TotalFinanced.Add(financed)
		summary.TotalMonthly = summary.TotalMonthly.Add(line.MonthlyPayment)

		summary.Lines = append(summary.Lines, QuoteLine{
			ID:             line.ID,
			Title:          line.Title,
			Quantity:       line.Quantity,
			PurchasePrice:  line.PurchasePrice,
			MarginPct:      line.MarginPct,
			FinancedAmount: financed,
			MonthlyPayment: line.MonthlyPayment,
			UnitMonthly:    line.MonthlyPayment.Div(qty).Round(2),
		})
	}

	summary.Adjustment = calc.GlobalAdjustment(summary.TotalPurchase, summary.TotalFinanced, summary.TotalMonthly, tiersFor(offer), offer.DurationMonths)

	if s.cache != nil {
		if encoded, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, s.cache.QuoteCacheKey(offerID.String()), string(encoded), s.quoteTTL)
		}
	}
	return summary, nil
}
