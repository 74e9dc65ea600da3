package leasers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/pkg/db/models"
	pkgerrors "github.com/iTakecare/leazr-backend/pkg/errors"
)

type stubLeaserRepository struct {
	byID    map[uuid.UUID]*models.Leaser
	created *models.Leaser
	updated *models.Leaser
	deleted []uuid.UUID
}

func newStubLeaserRepository() *stubLeaserRepository {
	return &stubLeaserRepository{byID: make(map[uuid.UUID]*models.Leaser)}
}

func (s *stubLeaserRepository) Create(_ context.Context, leaser *models.Leaser) (*models.Leaser, error) {
	s.created = leaser
	s.byID[leaser.ID] = leaser
	return leaser, nil
}

func (s *stubLeaserRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Leaser, error) {
	leaser, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return leaser, nil
}

func (s *stubLeaserRepository) List(_ context.Context) ([]models.Leaser, error) {
	out := make([]models.Leaser, 0, len(s.byID))
	for _, l := range s.byID {
		out = append(out, *l)
	}
	return out, nil
}

func (s *stubLeaserRepository) Update(_ context.Context, leaser *models.Leaser) error {
	s.updated = leaser
	s.byID[leaser.ID] = leaser
	return nil
}

func (s *stubLeaserRepository) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.byID, id)
	return nil
}

func validInput() LeaserInput {
	return LeaserInput{
		Name:               "Grenke",
		AvailableDurations: []int{24, 36},
		Ranges: []RangeInput{
			{
				AmountMin:   decimal.RequireFromString("500"),
				AmountMax:   decimal.RequireFromString("2500"),
				Coefficient: decimal.RequireFromString("3.55"),
				DurationCoefficients: []DurationCoefficientInput{
					{DurationMonths: 24, Coefficient: decimal.RequireFromString("5.07")},
				},
			},
		},
	}
}

func TestServiceCreate(t *testing.T) {
	repo := newStubLeaserRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected assigned leaser id")
	}
	if len(created.Ranges) != 1 {
		t.Fatalf("ranges = %d, want 1", len(created.Ranges))
	}
	if created.Ranges[0].ID == uuid.Nil {
		t.Fatal("expected assigned range id")
	}
	if got := created.Ranges[0].DurationCoefficients[0].RangeID; got != created.Ranges[0].ID {
		t.Fatalf("override range id = %s, want %s", got, created.Ranges[0].ID)
	}
	if len(created.AvailableDurations) != 2 {
		t.Fatalf("durations = %v, want two entries", created.AvailableDurations)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	repo := newStubLeaserRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*LeaserInput)
	}{
		{"blank name", func(in *LeaserInput) { in.Name = "  " }},
		{"negative duration", func(in *LeaserInput) { in.AvailableDurations = []int{-12} }},
		{"duplicate duration", func(in *LeaserInput) { in.AvailableDurations = []int{36, 36} }},
		{"min above max", func(in *LeaserInput) {
			in.Ranges[0].AmountMin = decimal.RequireFromString("3000")
		}},
		{"negative min", func(in *LeaserInput) {
			in.Ranges[0].AmountMin = decimal.RequireFromString("-1")
		}},
		{"zero coefficient", func(in *LeaserInput) {
			in.Ranges[0].Coefficient = decimal.Zero
		}},
		{"duplicate override", func(in *LeaserInput) {
			in.Ranges[0].DurationCoefficients = append(in.Ranges[0].DurationCoefficients,
				DurationCoefficientInput{DurationMonths: 24, Coefficient: decimal.RequireFromString("4.00")})
		}},
		{"zero override coefficient", func(in *LeaserInput) {
			in.Ranges[0].DurationCoefficients[0].Coefficient = decimal.Zero
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			input := validInput()
			c.mutate(&input)
			if _, err := svc.Create(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestServiceGetNotFound(t *testing.T) {
	repo := newStubLeaserRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Get(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestServiceUpdateKeepsID(t *testing.T) {
	repo := newStubLeaserRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	input := validInput()
	input.Name = "Grenke Renamed"
	updated, err := svc.Update(context.Background(), created.ID, input)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("id changed: %s -> %s", created.ID, updated.ID)
	}
	if updated.Name != "Grenke Renamed" {
		t.Fatalf("name = %q, want renamed", updated.Name)
	}
}

func TestServiceDeleteMissing(t *testing.T) {
	repo := newStubLeaserRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.Delete(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestTiersMapsRanges(t *testing.T) {
	leaser := &models.Leaser{
		Ranges: []models.LeaserRange{
			{
				AmountMin:   decimal.RequireFromString("500"),
				AmountMax:   decimal.RequireFromString("2500"),
				Coefficient: decimal.RequireFromString("3.55"),
				DurationCoefficients: []models.LeaserDurationCoefficient{
					{DurationMonths: 24, Coefficient: decimal.RequireFromString("5.07")},
				},
			},
		},
	}

	tiers := Tiers(leaser)
	if len(tiers) != 1 {
		t.Fatalf("tiers = %d, want 1", len(tiers))
	}
	if !tiers[0].CoefficientFor(24).Equal(decimal.RequireFromString("5.07")) {
		t.Fatalf("override coefficient = %s, want 5.07", tiers[0].CoefficientFor(24))
	}
	if !tiers[0].CoefficientFor(36).Equal(decimal.RequireFromString("3.55")) {
		t.Fatalf("flat coefficient = %s, want 3.55", tiers[0].CoefficientFor(36))
	}
}

func TestTiersFallsBackToDefaults(t *testing.T) {
	tiers := Tiers(nil)
	if len(tiers) != 5 {
		t.Fatalf("default tiers = %d, want 5", len(tiers))
	}

	tiers = Tiers(&models.Leaser{Name: "no ranges"})
	if len(tiers) != 5 {
		t.Fatalf("default tiers for empty leaser = %d, want 5", len(tiers))
	}
}
