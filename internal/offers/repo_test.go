package offers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/pkg/db/models"
	"github.com/iTakecare/leazr-backend/pkg/pagination"
	"github.com/iTakecare/leazr-backend/pkg/types"
)

func setupOffersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	leasersTable := `
CREATE TABLE IF NOT EXISTS leasers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_own_company INTEGER NOT NULL DEFAULT 0,
  available_durations TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME,
  updated_at DATETIME
);`
	rangesTable := `
CREATE TABLE IF NOT EXISTS leaser_ranges (
  id TEXT PRIMARY KEY,
  leaser_id TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  amount_min TEXT NOT NULL,
  amount_max TEXT NOT NULL,
  coefficient TEXT NOT NULL,
  created_at DATETIME
);`
	overridesTable := `
CREATE TABLE IF NOT EXISTS leaser_duration_coefficients (
  id TEXT PRIMARY KEY,
  range_id TEXT NOT NULL,
  duration_months INTEGER NOT NULL,
  coefficient TEXT NOT NULL
);`
	offersTable := `
CREATE TABLE IF NOT EXISTS offers (
  id TEXT PRIMARY KEY,
  client_name TEXT NOT NULL,
  leaser_id TEXT,
  duration_months INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  baseline TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	equipmentTable := `
CREATE TABLE IF NOT EXISTS offer_equipment (
  id TEXT PRIMARY KEY,
  offer_id TEXT NOT NULL,
  title TEXT NOT NULL,
  purchase_price TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  margin_pct TEXT NOT NULL,
  monthly_payment TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{leasersTable, rangesTable, overridesTable, offersTable, equipmentTable} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOffer(t *testing.T, db *gorm.DB, clientName string, created time.Time) *models.Offer {
	t.Helper()

	offer := &models.Offer{
		ID:             uuid.New(),
		ClientName:     clientName,
		DurationMonths: 36,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, db.Create(offer).Error)
	return offer
}

func TestOfferRepositoryCreateAndFind(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	leaser := &models.Leaser{ID: uuid.New(), Name: "Grenke"}
	require.NoError(t, db.Create(leaser).Error)

	offer := &models.Offer{
		ID:             uuid.New(),
		ClientName:     "ACME SPRL",
		LeaserID:       &leaser.ID,
		DurationMonths: 36,
	}
	require.NoError(t, repo.Create(context.Background(), offer))

	line := &models.OfferEquipment{
		ID:             uuid.New(),
		OfferID:        offer.ID,
		Title:          "ThinkPad X1",
		PurchasePrice:  decimal.RequireFromString("1000"),
		Quantity:       1,
		MarginPct:      decimal.RequireFromString("20"),
		MonthlyPayment: decimal.RequireFromString("42.60"),
	}
	require.NoError(t, repo.CreateLine(context.Background(), line))

	found, err := repo.FindByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME SPRL", found.ClientName)
	require.NotNil(t, found.Leaser)
	assert.Equal(t, "Grenke", found.Leaser.Name)
	require.Len(t, found.Lines, 1)
	assert.True(t, found.Lines[0].MonthlyPayment.Equal(decimal.RequireFromString("42.60")))
}

func TestOfferRepositorySavePersistsBaseline(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	offer := seedOffer(t, db, "ACME SPRL", time.Now().UTC())
	offer.Baseline = &types.BaselineSnapshot{
		DurationMonths: 36,
		Coefficient:    decimal.RequireFromString("3.55"),
		FinancedAmount: decimal.RequireFromString("1200"),
		LinePayments: map[string]decimal.Decimal{
			"line-a": decimal.RequireFromString("42.60"),
		},
	}
	require.NoError(t, repo.Save(context.Background(), offer))

	found, err := repo.FindByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Baseline)
	assert.Equal(t, 36, found.Baseline.DurationMonths)
	assert.True(t, found.Baseline.FinancedAmount.Equal(decimal.RequireFromString("1200")))
	payment, ok := found.Baseline.PaymentFor("line-a")
	require.True(t, ok)
	assert.True(t, payment.Equal(decimal.RequireFromString("42.60")))
}

func TestOfferRepositoryListPagination(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	seedOffer(t, db, "Oldest", now.Add(-2*time.Hour))
	seedOffer(t, db, "Middle", now.Add(-time.Hour))
	seedOffer(t, db, "Newest", now)

	first, err := repo.List(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Offers, 2)
	assert.Equal(t, "Newest", first.Offers[0].ClientName)
	assert.Equal(t, "Middle", first.Offers[1].ClientName)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.List(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Offers, 1)
	assert.Equal(t, "Oldest", second.Offers[0].ClientName)
	assert.Empty(t, second.NextCursor)
}

func TestOfferRepositoryLineLifecycle(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	offer := seedOffer(t, db, "ACME SPRL", time.Now().UTC())
	line := &models.OfferEquipment{
		ID:             uuid.New(),
		OfferID:        offer.ID,
		Title:          "Monitor",
		PurchasePrice:  decimal.RequireFromString("800"),
		Quantity:       2,
		MarginPct:      decimal.RequireFromString("10"),
		MonthlyPayment: decimal.RequireFromString("100"),
	}
	require.NoError(t, repo.CreateLine(context.Background(), line))

	found, err := repo.FindLine(context.Background(), offer.ID, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monitor", found.Title)

	found.Quantity = 3
	found.MonthlyPayment = decimal.RequireFromString("150")
	require.NoError(t, repo.SaveLine(context.Background(), found))

	reloaded, err := repo.FindLine(context.Background(), offer.ID, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Quantity)
	assert.True(t, reloaded.MonthlyPayment.Equal(decimal.RequireFromString("150")))

	require.NoError(t, repo.DeleteLine(context.Background(), offer.ID, line.ID))
	_, err = repo.FindLine(context.Background(), offer.ID, line.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Wrong offer id must not match.
	require.NoError(t, repo.CreateLine(context.Background(), line))
	_, err = repo.FindLine(context.Background(), uuid.New(), line.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
