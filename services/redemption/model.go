package redemption

import (
	"time"

	"studentslife/services/event"
)

// RedemptionCode is a single-use discount claim for one client on one event.
type RedemptionCode struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	Code      string     `gorm:"column:code;uniqueIndex;size:12;not null" json:"code"`
	EventID   string     `gorm:"column:event_id;index;not null" json:"event_id"`
	ClientID  string     `gorm:"column:client_id;index;not null" json:"client_id"`
	IsUsed    bool       `gorm:"column:is_used;not null;default:false" json:"is_used"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Event *event.Event `gorm:"foreignKey:EventID;references:ID" json:"event,omitempty"`
}

func (RedemptionCode) TableName() string { return "redemption_codes" }
