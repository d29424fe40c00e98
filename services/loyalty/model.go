package loyalty

import (
	"time"
	_ "time/tzdata"
)

const DefaultStampsRequired int32 = 10

// LoyaltyCard is a partner's stamp program. One card per partner.
type LoyaltyCard struct {
	ID                string    `gorm:"column:id;primaryKey" json:"id"`
	PartnerID         string    `gorm:"column:partner_id;uniqueIndex;not null" json:"partner_id"`
	RewardDescription string    `gorm:"column:reward_description;type:text" json:"reward_description"`
	StampsRequired    int32     `gorm:"column:stamps_required;not null;default:10" json:"stamps_required"`
	IsActive          bool      `gorm:"column:is_active;not null" json:"is_active"`
	// EarnRule is an optional CEL expression; a redemption only earns a
	// stamp when it evaluates to true. See stampRuleVariables.
	EarnRule          string    `gorm:"column:earn_rule;type:text" json:"earn_rule,omitempty"`
	// Timezone is the IANA zone earn rules read hour and weekday in.
	Timezone          string    `gorm:"column:timezone;not null;default:UTC" json:"timezone"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LoyaltyCard) TableName() string { return "loyalty_cards" }

// Location resolves Timezone, falling back to UTC.
func (c *LoyaltyCard) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClientStamp counts a client's progress on a partner's card. There is at
// most one row per (client_id, partner_id).
type ClientStamp struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	ClientID      string     `gorm:"column:client_id;not null;uniqueIndex:idx_client_stamps_client_partner" json:"client_id"`
	PartnerID     string     `gorm:"column:partner_id;not null;uniqueIndex:idx_client_stamps_client_partner;index" json:"partner_id"`
	LoyaltyCardID string     `gorm:"column:loyalty_card_id;index" json:"loyalty_card_id"`
	StampsCount   int32      `gorm:"column:stamps_count;not null;default:0" json:"stamps_count"`
	RewardClaimed bool       `gorm:"column:reward_claimed;not null" json:"reward_claimed"`
	LastStampAt   *time.Time `gorm:"column:last_stamp_at" json:"last_stamp_at,omitempty"`
	// LastCodeID is the redemption the latest stamp was earned by.
	LastCodeID    string     `gorm:"column:last_code_id;not null;default:''" json:"last_code_id,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ClientStamp) TableName() string { return "client_stamps" }

// Complete reports whether the record can be claimed against required.
func (s *ClientStamp) Complete(required int32) bool {
	return s.StampsCount >= required
}

// StampOutcome is what a redemption reports back about the loyalty side
// effect. Skipped means the partner runs no active card, Queued means the
// stamp was handed to the worker and Count is not known yet. Duplicate means
// the redemption had already been stamped.
type StampOutcome struct {
	StampID           string `json:"stamp_id,omitempty"`
	ClientID          string `json:"client_id"`
	PartnerID         string `json:"partner_id"`
	Count             int32  `json:"count"`
	Required          int32  `json:"required"`
	Complete          bool   `json:"complete"`
	RewardDescription string `json:"reward_description,omitempty"`
	Skipped           bool   `json:"skipped,omitempty"`
	Queued            bool   `json:"queued,omitempty"`
	Duplicate         bool   `json:"duplicate,omitempty"`
}

func outcomeOf(rec *ClientStamp, card *LoyaltyCard) StampOutcome {
	return StampOutcome{
		StampID:           rec.ID,
		ClientID:          rec.ClientID,
		PartnerID:         rec.PartnerID,
		Count:             rec.StampsCount,
		Required:          card.StampsRequired,
		Complete:          rec.Complete(card.StampsRequired),
		RewardDescription: card.RewardDescription,
	}
}

func duplicateOf(rec *ClientStamp, card *LoyaltyCard) StampOutcome {
	out := outcomeOf(rec, card)
	out.Duplicate = true
	return out
}
