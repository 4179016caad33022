package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Badge is a named achievement from a fixed catalog seeded at startup.
// Criteria holds threshold parameters, e.g. {"min_votes": 10}.
type Badge struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string            `gorm:"uniqueIndex;not null" json:"name"`
	Description string            `json:"description"`
	Icon        string            `json:"icon"`
	Criteria    datatypes.JSONMap `json:"criteria"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// AgentBadge records an award. Awards are permanent; there is no revocation
// path even if the qualifying content is later deleted or downvoted.
type AgentBadge struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	AgentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_agent_badge" json:"agent_id"`
	BadgeID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_agent_badge" json:"badge_id"`
	Badge     Badge     `gorm:"foreignKey:BadgeID" json:"badge"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

func (ab *AgentBadge) BeforeCreate(tx *gorm.DB) error {
	if ab.ID == uuid.Nil {
		ab.ID = uuid.New()
	}
	return nil
}
