package offers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/internal/calc"
	"github.com/iTakecare/leazr-backend/pkg/db/models"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
	"github.com/iTakecare/leazr-backend/pkg/types"
)

func (s *service) AddLine(ctx context.Context, offerID uuid.UUID, input LineInput) (*models.Offer, error) {
	started := time.Now()
	offer, err := s.addLine(ctx, offerID, input)
	s.calcMetrics.Observe("add_line", started, err)
	return offer, err
}

func (s *service) addLine(ctx context.Context, offerID uuid.UUID, input LineInput) (*models.Offer, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := editable(offer); err != nil {
		return nil, err
	}

	line, err := buildLine(offer, input, tiersFor(offer))
	if err != nil {
		return nil, err
	}
	line.ID = uuid.New()
	line.OfferID = offer.ID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateLine(ctx, line); err != nil {
			return err
		}
		return s.recaptureBaseline(ctx, repo, offer.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add equipment line")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}

func (s *service) UpdateLine(ctx context.Context, offerID, lineID uuid.UUID, input LineInput) (*models.Offer, error) {
	started := time.Now()
	offer, err := s.updateLine(ctx, offerID, lineID, input)
	s.calcMetrics.Observe("update_line", started, err)
	return offer, err
}

func (s *service) updateLine(ctx context.Context, offerID, lineID uuid.UUID, input LineInput) (*models.Offer, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := editable(offer); err != nil {
		return nil, err
	}

	existing, err := s.findLine(ctx, offerID, lineID)
	if err != nil {
		return nil, err
	}

	line, err := buildLine(offer, input, tiersFor(offer))
	if err != nil {
		return nil, err
	}
	line.ID = existing.ID
	line.OfferID = offer.ID
	line.CreatedAt = existing.CreatedAt

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveLine(ctx, line); err != nil {
			return err
		}
		return s.recaptureBaseline(ctx, repo, offer.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update equipment line")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}

func (s *service) RemoveLine(ctx context.Context, offerID, lineID uuid.UUID) (*models.Offer, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := editable(offer); err != nil {
		return nil, err
	}
	if _, err := s.findLine(ctx, offerID, lineID); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteLine(ctx, offerID, lineID); err != nil {
			return err
		}
		return s.recaptureBaseline(ctx, repo, offer.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove equipment line")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}

func (s *service) UpdateQuantity(ctx context.Context, offerID, lineID uuid.UUID, quantity int) (*models.Offer, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := editable(offer); err != nil {
		return nil, err
	}

	line, err := s.findLine(ctx, offerID, lineID)
	if err != nil {
		return nil, err
	}

	newPayment, err := calc.RescaleQuantity(line.MonthlyPayment, line.Quantity, quantity)
	if err != nil {
		return nil, err
	}
	line.Quantity = quantity
	line.MonthlyPayment = newPayment

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveLine(ctx, line); err != nil {
			return err
		}
		return s.recaptureBaseline(ctx, repo, offer.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line quantity")
	}

	s.invalidateQuote(ctx, offer.ID)
	return s.GetOffer(ctx, offer.ID)
}

// LineForEdit reconstructs the form state a stored line implies: the sale
// price its margin encodes and the per-unit monthly payment.
func (s *service) LineForEdit(ctx context.Context, offerID, lineID uuid.UUID) (*LineEditView, error) {
	if _, err := s.GetOffer(ctx, offerID); err != nil {
		return nil, err
	}
	line, err := s.findLine(ctx, offerID, lineID)
	if err != nil {
		return nil, err
	}

	oneHundred := decimal.NewFromInt(100)
	salePrice := line.PurchasePrice.
		Mul(decimal.NewFromInt(1).Add(line.MarginPct.Div(oneHundred))).
		Round(2)
	perUnit := line.MonthlyPayment.
		Div(decimal.NewFromInt(int64(line.Quantity))).
		Round(2)

	return &LineEditView{
		Line:                 *line,
		TargetSalePrice:      salePrice,
		TargetMonthlyPayment: perUnit,
	}, nil
}

func (s *service) findLine(ctx context.Context, offerID, lineID uuid.UUID) (*models.OfferEquipment, error) {
	line, err := s.repo.FindLine(ctx, offerID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "equipment line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load equipment line")
	}
	return line, nil
}

// buildLine validates the input and prices the line. The stored payment is
// always the line total: a per-unit target payment is multiplied out,
// otherwise the forward calculation already produces the total.
func buildLine(offer *models.Offer, input LineInput, tiers []calc.Tier) (*models.OfferEquipment, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.PurchasePrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase_price must be positive")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var payment decimal.Decimal
	if input.TargetMonthlyPayment != nil {
		if !input.TargetMonthlyPayment.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "target_monthly_payment must be positive")
		}
		payment = input.TargetMonthlyPayment.
			Mul(decimal.NewFromInt(int64(input.Quantity))).
			Round(2)
	} else {
		quote, err := calc.ComputeQuote(input.PurchasePrice, input.Quantity, input.MarginPct, tiers, offer.DurationMonths)
		if err != nil {
			return nil, err
		}
		payment = quote.MonthlyPayment
	}

	return &models.OfferEquipment{
		Title:          title,
		PurchasePrice:  input.PurchasePrice,
		Quantity:       input.Quantity,
		MarginPct:      input.MarginPct,
		MonthlyPayment: payment,
	}, nil
}

// recaptureBaseline re-anchors the self-financing baseline after a user
// edit to the line list. Duration changes never pass through here, which is
// what keeps the baseline pinned while the rescaler runs.
func (s *service) recaptureBaseline(ctx context.Context, repo Repository, offerID uuid.UUID) error {
	offer, err := repo.FindByID(ctx, offerID)
	if err != nil {
		return err
	}
	if !selfFinancing(offer) {
		if offer.Baseline != nil {
			offer.Baseline = nil
			return repo.Save(ctx, offer)
		}
		return nil
	}

	offer.Baseline = snapshotFromLines(offer)
	return repo.Save(ctx, offer)
}

// snapshotFromLines builds a baseline from the offer's current state, or
// nil when the offer is empty or no tier covers the total.
func snapshotFromLines(offer *models.Offer) *types.BaselineSnapshot {
	if len(offer.Lines) == 0 {
		return nil
	}

	tiers := tiersFor(offer)
	totalFinanced := decimal.Zero
	payments := make(map[string]decimal.Decimal, len(offer.Lines))
	for _, line := range offer.Lines {
		financed, err := calc.FinancedAmount(line.PurchasePrice, line.Quantity, line.MarginPct)
		if err != nil {
			return nil
		}
		totalFinanced = totalFinanced.Add(financed)
		payments[line.ID.String()] = line.MonthlyPayment
	}

	coefficient := calc.FindCoefficient(totalFinanced, tiers, offer.DurationMonths)
	if !coefficient.IsPositive() {
		return nil
	}

	snapshot := calc.CaptureBaseline(offer.DurationMonths, coefficient, totalFinanced, payments)
	return &snapshot
}
