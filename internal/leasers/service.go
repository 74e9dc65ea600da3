package leasers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/internal/calc"
	"github.com/iTakecare/leazr-backend/pkg/db/models"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

type leaserRepository interface {
	Create(ctx context.Context, leaser *models.Leaser) (*models.Leaser, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Leaser, error)
	List(ctx context.Context) ([]models.Leaser, error)
	Update(ctx context.Context, leaser *models.Leaser) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service exposes leaser catalog management.
type Service interface {
	Create(ctx context.Context, input LeaserInput) (*models.Leaser, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Leaser, error)
	List(ctx context.Context) ([]models.Leaser, error)
	Update(ctx context.Context, id uuid.UUID, input LeaserInput) (*models.Leaser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo leaserRepository
}

// NewService constructs a leaser service backed by the provided repository.
func NewService(repo leaserRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("leaser repository required")
	}
	return &service{repo: repo}, nil
}

// DurationCoefficientInput overrides a range's flat coefficient for one
// contract duration.
type DurationCoefficientInput struct {
	DurationMonths int             `json:"duration_months" validate:"required,gt=0"`
	Coefficient    decimal.Decimal `json:"coefficient" validate:"required"`
}

// RangeInput is one amount tier of the coefficient table, in scan order.
type RangeInput struct {
	AmountMin            decimal.Decimal            `json:"amount_min" validate:"required"`
	AmountMax            decimal.Decimal            `json:"amount_max" validate:"required"`
	Coefficient          decimal.Decimal            `json:"coefficient" validate:"required"`
	DurationCoefficients []DurationCoefficientInput `json:"duration_coefficients" validate:"omitempty,dive"`
}

// LeaserInput models the payload for creating or replacing a leaser.
type LeaserInput struct {
	Name               string       `json:"name" validate:"required"`
	IsOwnCompany       bool         `json:"is_own_company"`
	AvailableDurations []int        `json:"available_durations" validate:"omitempty,dive,gt=0"`
	Ranges             []RangeInput `json:"ranges" validate:"omitempty,dive"`
}

func (s *service) Create(ctx context.Context, input LeaserInput) (*models.Leaser, error) {
	leaser, err := buildLeaser(input)
	if err != nil {
		return nil, err
	}
	leaser.ID = uuid.New()

	created, err := s.repo.Create(ctx, leaser)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist leaser")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Leaser, error) {
	leaser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "leaser not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load leaser")
	}
	return leaser, nil
}

func (s *service) List(ctx context.Context) ([]models.Leaser, error) {
	leasers, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list leasers")
	}
	return leasers, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input LeaserInput) (*models.Leaser, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	leaser, err := buildLeaser(input)
	if err != nil {
		return nil, err
	}
	leaser.ID = id

	if err := s.repo.Update(ctx, leaser); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update leaser")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete leaser")
	}
	return nil
}

// buildLeaser validates the input and maps it onto a model, assigning ids
// so range replacement inserts never rely on database defaults.
func buildLeaser(input LeaserInput) (*models.Leaser, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	durations := make(pq.Int64Array, 0, len(input.AvailableDurations))
	seenDurations := make(map[int]struct{}, len(input.AvailableDurations))
	for _, d := range input.AvailableDurations {
		if d <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "available durations must be positive")
		}
		if _, dup := seenDurations[d]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "duration %d listed twice", d)
		}
		seenDurations[d] = struct{}{}
		durations = append(durations, int64(d))
	}

	ranges := make([]models.LeaserRange, 0, len(input.Ranges))
	for i, rng := range input.Ranges {
		if rng.AmountMin.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: amount_min must not be negative", i+1)
		}
		if rng.AmountMax.LessThan(rng.AmountMin) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: amount_max must be >= amount_min", i+1)
		}
		if !rng.Coefficient.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: coefficient must be positive", i+1)
		}

		overrides := make([]models.LeaserDurationCoefficient, 0, len(rng.DurationCoefficients))
		seenOverrides := make(map[int]struct{}, len(rng.DurationCoefficients))
		for _, dc := range rng.DurationCoefficients {
			if dc.DurationMonths <= 0 {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: override duration must be positive", i+1)
			}
			if !dc.Coefficient.IsPositive() {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: override coefficient must be positive", i+1)
			}
			if _, dup := seenOverrides[dc.DurationMonths]; dup {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "range %d: duplicate override for %d months", i+1, dc.DurationMonths)
			}
			seenOverrides[dc.DurationMonths] = struct{}{}
			overrides = append(overrides, models.LeaserDurationCoefficient{
				ID:             uuid.New(),
				DurationMonths: dc.DurationMonths,
				Coefficient:    dc.Coefficient,
			})
		}

		rangeID := uuid.New()
		for j := range overrides {
			overrides[j].RangeID = rangeID
		}
		ranges = append(ranges, models.LeaserRange{
			ID:                   rangeID,
			Position:             i,
			AmountMin:            rng.AmountMin,
			AmountMax:            rng.AmountMax,
			Coefficient:          rng.Coefficient,
			DurationCoefficients: overrides,
		})
	}

	return &models.Leaser{
		Name:               name,
		IsOwnCompany:       input.IsOwnCompany,
		AvailableDurations: durations,
		Ranges:             ranges,
	}, nil
}

// Tiers maps a leaser's coefficient table into the calculator's tier form.
// A nil leaser or one without ranges falls back to the default table.
func Tiers(leaser *models.Leaser) []calc.Tier {
	if leaser == nil || len(leaser.Ranges) == 0 {
		return calc.DefaultTiers()
	}

	tiers := make([]calc.Tier, 0, len(leaser.Ranges))
	for _, rng := range leaser.Ranges {
		tier := calc.Tier{
			Min:         rng.AmountMin,
			Max:         rng.AmountMax,
			Coefficient: rng.Coefficient,
		}
		if len(rng.DurationCoefficients) > 0 {
			tier.DurationCoefficients = make(map[int]decimal.Decimal, len(rng.DurationCoefficients))
			for _, dc := range rng.DurationCoefficients {
				tier.DurationCoefficients[dc.DurationMonths] = dc.Coefficient
			}
		}
		tiers = append(tiers, tier)
	}
	return tiers
}
