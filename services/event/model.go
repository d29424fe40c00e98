package event

import (
	"time"

	"gorm.io/datatypes"
)

// Event is a partner-owned, time-bounded discount campaign.
type Event struct {
	ID                 string         `gorm:"column:id;primaryKey" json:"id"`
	PartnerID          string         `gorm:"column:partner_id;index;not null" json:"partner_id"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	Slug               string         `gorm:"column:slug;index" json:"slug"`
	DiscountPercentage int32          `gorm:"column:discount_percentage;not null;default:0" json:"discount_percentage"`
	StartDate          time.Time      `gorm:"column:start_date;not null" json:"start_date"`
	EndDate            time.Time      `gorm:"column:end_date;not null" json:"end_date"`
	IsActive           bool           `gorm:"column:is_active;not null" json:"is_active"`
	QREnabled          bool           `gorm:"column:qr_enabled;not null" json:"qr_enabled"`
	Metadata           datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Event) TableName() string { return "events" }
