package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/internal/calc"
	"github.com/iTakecare/leazr-backend/pkg/db/models"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

// ChangeDuration moves an offer to a new contract duration. For a
// self-financing leaser the line payments are rescaled from the baseline
// snapshot so the aggregate financed amount stays fixed; for external
// leasers every line is simply repriced at the new duration's coefficient.
func (s *service) ChangeDuration(ctx context.Context, offerID uuid.UUID, durationMonths int) (*models.Offer, error) {
	started := time.Now()
	offer, err := s.changeDuration(ctx, offerID, durationMonths)
	s.calcMetrics.Observe("change_duration", started, err)
	return offer, err
}

func (s *service) changeDuration(ctx context.Context, offerID uuid.UUID, durationMonths int) (*models.Offer, error) {
	if durationMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_months must be positive")
	}

	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := editable(offer); err != nil {
		return nil, err
	}
	if err := validateDuration(offer.Leaser, durationMonths); err != nil {
		return nil, err
	}
	if offer.DurationMonths == durationMonths {
		return offer, nil
	}

	if selfFinancing(offer) && len(offer.Lines) > 0 {
		return s.rescaleSelfFinancing(ctx, offer, durationMonths)
	}
	return s.repriceLines(ctx, offer, durationMonths)
}

// rescaleSelfFinancing applies the anchored rescale: the baseline is
// synthesized from the current state if missing (first duration change on
// this offer) but never advanced afterwards, so toggling durations returns
// to the original payments instead of drifting.
func (s *service) rescaleSelfFinancing(ctx context.Context, offer *models.Offer, durationMonths int) (*models.Offer, error) {
	baseline := offer.Baseline
	if baseline == nil {
		baseline = snapshotFromLines(offer)
		if baseline == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer state does not permit a baseline snapshot")
		}
	}

	lines := make([]calc.RescaleLine, 0, len(offer.Lines))
	for _, line := range offer.Lines {
		lines = append(lines, calc.RescaleLine{
			ID:            line.ID.String(),
			PurchasePrice: line.PurchasePrice,
			Quantity:      line.Quantity,
			MarginPct:     line.MarginPct,
		})
	}

	result, err := calc.RescaleForDuration(*baseline, lines, tiersFor(offer), durationMonths)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range offer.Lines {
			line := offer.Lines[i]
			line.MonthlyPayment = result.Payments[line.ID.String()]
			if err := repo.SaveLine(ctx, &line); err != nil {
				return err
			}
		}
		offer.DurationMonths = durationMonths
		offer.Baseline = baseline
		return repo.Save(ctx, offer)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply duration change")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}

// repriceLines recomputes every line at the new duration's coefficient.
func (s *service) repriceLines(ctx context.Context, offer *models.Offer, durationMonths int) (*models.Offer, error) {
	tiers := tiersFor(offer)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range offer.Lines {
			line := offer.Lines[i]
			quote, err := calc.ComputeQuote(line.PurchasePrice, line.Quantity, line.MarginPct, tiers, durationMonths)
			if err != nil {
				return err
			}
			line.MonthlyPayment = quote.MonthlyPayment
			if err := repo.SaveLine(ctx, &line); err != nil {
				return err
			}
		}
		offer.DurationMonths = durationMonths
		return repo.Save(ctx, offer)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply duration change")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}
