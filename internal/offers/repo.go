package offers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iTakecare/leazr-backend/pkg/db/models"
	"github.com/iTakecare/leazr-backend/pkg/pagination"
)

// Repository handles offer and equipment line persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, params pagination.Params) (*OfferPage, error)
	Save(ctx context.Context, offer *models.Offer) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateLine(ctx context.Context, line *models.OfferEquipment) error
	FindLine(ctx context.Context, offerID, lineID uuid.UUID) (*models.OfferEquipment, error)
	SaveLine(ctx context.Context, line *models.OfferEquipment) error
	DeleteLine(ctx context.Context, offerID, lineID uuid.UUID) error
}

// OfferPage is one page of offers plus the cursor for the next one.
type OfferPage struct {
	Offers     []models.Offer `json:"offers"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to offer operations.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// withAssociations preloads lines in insertion order and the leaser's full
// coefficient table, which every pricing path needs.
func withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Leaser.Ranges", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Leaser.Ranges.DurationCoefficients")
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Omit("Leaser").Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := withAssociations(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params) (*OfferPage, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Preload("Lines").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Offer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	page := &OfferPage{Offers: rows}
	if len(rows) > limit {
		page.Offers = rows[:limit]
		last := page.Offers[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Save persists the offer row only; lines are managed through the line
// methods so a save never resurrects deleted rows.
func (r *repository) Save(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).
		Omit("Lines", "Leaser").
		Save(offer).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Offer{}).Error
}

func (r *repository) CreateLine(ctx context.Context, line *models.OfferEquipment) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) FindLine(ctx context.Context, offerID, lineID uuid.UUID) (*models.OfferEquipment, error) {
	var line models.OfferEquipment
	if err := r.db.WithContext(ctx).
		Where("id = ? AND offer_id = ?", lineID, offerID).
		First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) SaveLine(ctx context.Context, line *models.OfferEquipment) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *repository) DeleteLine(ctx context.Context, offerID, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND offer_id = ?", lineID, offerID).
		Delete(&models.OfferEquipment{}).Error
}
