package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iTakecare/leazr-backend/pkg/enums"
	"github.com/iTakecare/leazr-backend/pkg/types"
)

// Offer is one quote being edited: a client, a financing partner, a contract
// duration and the equipment lines priced against the leaser's coefficients.
// Baseline is only populated for self-financing leasers and anchors the
// duration-change rescale (see internal/offers).
type Offer struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientName     string                  `gorm:"column:client_name;not null"`
	LeaserID       *uuid.UUID              `gorm:"column:leaser_id;type:uuid"`
	Leaser         *Leaser                 `gorm:"foreignKey:LeaserID"`
	DurationMonths int                     `gorm:"column:duration_months;not null"`
	Status         enums.OfferStatus       `gorm:"column:status;not null;default:'draft'"`
	Baseline       *types.BaselineSnapshot `gorm:"column:baseline;type:jsonb;serializer:json"`
	Lines          []OfferEquipment        `gorm:"foreignKey:OfferID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// OfferEquipment is one equipment line of an offer. MonthlyPayment is always
// the line total (unit monthly times quantity); per-unit values are derived
// on read, never stored.
type OfferEquipment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID        uuid.UUID       `gorm:"column:offer_id;type:uuid;not null"`
	Title          string          `gorm:"column:title;not null"`
	PurchasePrice  decimal.Decimal `gorm:"column:purchase_price;type:numeric(12,2);not null"`
	Quantity       int             `gorm:"column:quantity;not null;default:1"`
	MarginPct      decimal.Decimal `gorm:"column:margin_pct;type:numeric(8,4);not null"`
	MonthlyPayment decimal.Decimal `gorm:"column:monthly_payment;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Offer) TableName() string          { return "offers" }
func (OfferEquipment) TableName() string { return "offer_equipment" }
