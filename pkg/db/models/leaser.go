package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Leaser is a financing partner whose tiered coefficient table drives
// monthly payment computation. A leaser flagged is_own_company marks the
// operator's own self-financing entity.
type Leaser struct {
	ID                 uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string        `gorm:"column:name;not null"`
	IsOwnCompany       bool          `gorm:"column:is_own_company;not null;default:false"`
	AvailableDurations pq.Int64Array `gorm:"column:available_durations;type:integer[];not null;default:ARRAY[]::integer[]"`
	Ranges             []LeaserRange `gorm:"foreignKey:LeaserID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// LeaserRange is one amount tier of a leaser's coefficient table. Position
// preserves the order tiers are scanned in; AmountMin/AmountMax bound the
// financed amounts the tier applies to (inclusive on both ends).
type LeaserRange struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LeaserID             uuid.UUID                   `gorm:"column:leaser_id;type:uuid;not null"`
	Position             int                         `gorm:"column:position;not null;default:0"`
	AmountMin            decimal.Decimal             `gorm:"column:amount_min;type:numeric(12,2);not null"`
	AmountMax            decimal.Decimal             `gorm:"column:amount_max;type:numeric(12,2);not null"`
	Coefficient          decimal.Decimal             `gorm:"column:coefficient;type:numeric(8,4);not null"`
	DurationCoefficients []LeaserDurationCoefficient `gorm:"foreignKey:RangeID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// LeaserDurationCoefficient overrides a range's flat coefficient for an
// exact contract duration.
type LeaserDurationCoefficient struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RangeID        uuid.UUID       `gorm:"column:range_id;type:uuid;not null"`
	DurationMonths int             `gorm:"column:duration_months;not null"`
	Coefficient    decimal.Decimal `gorm:"column:coefficient;type:numeric(8,4);not null"`
}

func (Leaser) TableName() string                    { return "leasers" }
func (LeaserRange) TableName() string               { return "leaser_ranges" }
func (LeaserDurationCoefficient) TableName() string { return "leaser_duration_coefficients" }
