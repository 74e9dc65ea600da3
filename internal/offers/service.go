package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/internal/calc"
	"github.com/iTakecare/leazr-backend/internal/leasers"
	"github.com/iTakecare/leazr-backend/pkg/db/models"
	"github.com/iTakecare/leazr-backend/pkg/enums"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
	"github.com/iTakecare/leazr-backend/pkg/metrics"
	"github.com/iTakecare/leazr-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type leaserGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Leaser, error)
}

type quoteCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	QuoteCacheKey(offerID string) string
}

// Service exposes offer editing: the line-item manager, the duration-change
// rescaler and the aggregate quote view.
type Service interface {
	CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Offer, error)
	GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListOffers(ctx context.Context, params pagination.Params) (*OfferPage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) (*models.Offer, error)
	DeleteOffer(ctx context.Context, id uuid.UUID) error

	AddLine(ctx context.Context, offerID uuid.UUID, input LineInput) (*models.Offer, error)
	UpdateLine(ctx context.Context, offerID, lineID uuid.UUID, input LineInput) (*models.Offer, error)
	RemoveLine(ctx context.Context, offerID, lineID uuid.UUID) (*models.Offer, error)
	UpdateQuantity(ctx context.Context, offerID, lineID uuid.UUID, quantity int) (*models.Offer, error)
	LineForEdit(ctx context.Context, offerID, lineID uuid.UUID) (*LineEditView, error)

	ChangeDuration(ctx context.Context, offerID uuid.UUID, durationMonths int) (*models.Offer, error)
	Quote(ctx context.Context, offerID uuid.UUID) (*QuoteSummary, error)
}

type service struct {
	repo            Repository
	leasers         leaserGetter
	tx              txRunner
	cache           quoteCache
	calcMetrics     *metrics.CalculatorMetrics
	defaultDuration int
	quoteTTL        time.Duration
}

// NewService constructs the offer service. The cache and metrics are
// optional; everything else is required.
func NewService(repo Repository, leaserSvc leaserGetter, tx txRunner, cache quoteCache, calcMetrics *metrics.CalculatorMetrics, defaultDuration int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if leaserSvc == nil {
		return nil, fmt.Errorf("leaser service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if defaultDuration <= 0 {
		return nil, fmt.Errorf("default duration must be positive")
	}
	return &service{
		repo:            repo,
		leasers:         leaserSvc,
		tx:              tx,
		cache:           cache,
		calcMetrics:     calcMetrics,
		defaultDuration: defaultDuration,
		quoteTTL:        5 * time.Minute,
	}, nil
}

// CreateOfferInput models the payload for opening a new offer.
type CreateOfferInput struct {
	ClientName     string     `json:"client_name" validate:"required"`
	LeaserID       *uuid.UUID `json:"leaser_id"`
	DurationMonths int        `json:"duration_months" validate:"omitempty,gt=0"`
}

// LineInput models an equipment line being added or edited.
// TargetMonthlyPayment, when set, is the per-unit payment coming from a
// catalog price; the stored payment is always the line total.
type LineInput struct {
	Title                string           `json:"title" validate:"required"`
	PurchasePrice        decimal.Decimal  `json:"purchase_price" validate:"required"`
	Quantity             int              `json:"quantity" validate:"required,gte=1"`
	MarginPct            decimal.Decimal  `json:"margin_pct"`
	TargetMonthlyPayment *decimal.Decimal `json:"target_monthly_payment"`
}

// LineEditView is the form state implied by a stored line: the sale price
// its margin implies and the per-unit payment its total implies.
type LineEditView struct {
	Line                 models.OfferEquipment `json:"line"`
	TargetSalePrice      decimal.Decimal       `json:"target_sale_price"`
	TargetMonthlyPayment decimal.Decimal       `json:"target_monthly_payment"`
}

func (s *service) CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Offer, error) {
	clientName := strings.TrimSpace(input.ClientName)
	if clientName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_name is required")
	}

	duration := input.DurationMonths
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_months must be positive")
	}

	if input.LeaserID != nil {
		leaser, err := s.leasers.Get(ctx, *input.LeaserID)
		if err != nil {
			return nil, err
		}
		if err := validateDuration(leaser, duration); err != nil {
			return nil, err
		}
	}

	offer := &models.Offer{
		ID:             uuid.New(),
		ClientName:     clientName,
		LeaserID:       input.LeaserID,
		DurationMonths: duration,
		Status:         enums.OfferStatusDraft,
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist offer")
	}
	return s.GetOffer(ctx, offer.ID)
}

func (s *service) GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

func (s *service) ListOffers(ctx context.Context, params pagination.Params) (*OfferPage, error) {
	page, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	return page, nil
}

// statusTransitions lists the allowed next statuses per current status.
var statusTransitions = map[enums.OfferStatus][]enums.OfferStatus{
	enums.OfferStatusDraft:     {enums.OfferStatusSent, enums.OfferStatusCancelled},
	enums.OfferStatusSent:      {enums.OfferStatusAccepted, enums.OfferStatusRejected, enums.OfferStatusCancelled},
	enums.OfferStatusAccepted:  {},
	enums.OfferStatusRejected:  {},
	enums.OfferStatusCancelled: {},
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) (*models.Offer, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid offer status %q", status)
	}

	offer, err := s.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.Status == status {
		return offer, nil
	}

	allowed := false
	for _, next := range statusTransitions[offer.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move offer from %s to %s", offer.Status, status)
	}
	if status == enums.OfferStatusSent && len(offer.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot send an offer without equipment lines")
	}

	offer.Status = status
	if err := s.repo.Save(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer status")
	}
	return offer, nil
}

func (s *service) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetOffer(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete offer")
	}
	s.invalidateQuote(ctx, id)
	return nil
}

// editable rejects mutations on offers that already left the draft stage.
func editable(offer *models.Offer) error {
	if offer.Status != enums.OfferStatusDraft {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "offer is %s and can no longer be edited", offer.Status)
	}
	return nil
}

// validateDuration checks a duration against the leaser's advertised set,
// when the leaser restricts one.
func validateDuration(leaser *models.Leaser, durationMonths int) error {
	if leaser == nil || len(leaser.AvailableDurations) == 0 {
		return nil
	}
	for _, d := range leaser.AvailableDurations {
		if int(d) == durationMonths {
			return nil
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "leaser does not offer a %d month duration", durationMonths)
}

// tiersFor resolves the coefficient table for an offer's leaser.
func tiersFor(offer *models.Offer) []calc.Tier {
	return leasers.Tiers(offer.Leaser)
}

func selfFinancing(offer *models.Offer) bool {
	return offer.Leaser != nil && offer.Leaser.IsOwnCompany
}

func (s *service) invalidateQuote(ctx context.Context, offerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, s.cache.QuoteCacheKey(offerID.String()))
}
