package leasers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/pkg/db/models"
)

// Repository handles leaser persistence, including the nested coefficient
// range rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to leaser operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// withRanges preloads the full coefficient table in scan order.
func withRanges(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Ranges", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Ranges.DurationCoefficients", func(db *gorm.DB) *gorm.DB {
			return db.Order("duration_months ASC")
		})
}

// Create persists a leaser together with its ranges.
func (r *Repository) Create(ctx context.Context, leaser *models.Leaser) (*models.Leaser, error) {
	if err := r.db.WithContext(ctx).Create(leaser).Error; err != nil {
		return nil, err
	}
	return leaser, nil
}

// FindByID loads a leaser and its coefficient table.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Leaser, error) {
	var leaser models.Leaser
	if err := withRanges(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&leaser).Error; err != nil {
		return nil, err
	}
	return &leaser, nil
}

// List returns all leasers with their coefficient tables, own-company
// entities first so the self-financing leaser is easy to find.
func (r *Repository) List(ctx context.Context) ([]models.Leaser, error) {
	var leasers []models.Leaser
	if err := withRanges(r.db.WithContext(ctx)).
		Order("is_own_company DESC, name ASC").
		Find(&leasers).Error; err != nil {
		return nil, err
	}
	return leasers, nil
}

// Update saves the leaser row and replaces its entire range set. Ranges are
// replaced wholesale because tier order and boundaries are edited as one
// table in the admin UI.
func (r *Repository) Update(ctx context.Context, leaser *models.Leaser) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("leaser_id = ?", leaser.ID).Delete(&models.LeaserRange{}).Error; err != nil {
			return err
		}
		for i := range leaser.Ranges {
			leaser.Ranges[i].LeaserID = leaser.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(leaser).Error
	})
}

// Delete removes a leaser; ranges cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Leaser{}).Error
}
