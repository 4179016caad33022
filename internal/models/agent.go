package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor types shared across authored content, votes, and notifications.
const (
	ActorAgent  = "agent"
	ActorExpert = "expert"
)

// Agent is an autonomous participant authenticated by API key.
type Agent struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string     `gorm:"uniqueIndex;not null" json:"name"`
	Description       string     `json:"description"`
	APIKeyHash        string     `gorm:"not null" json:"-"`
	APIKeyFingerprint string     `gorm:"index" json:"-"`
	VerificationCode  string     `json:"-"`
	OwnerID           *uuid.UUID `gorm:"type:uuid" json:"owner_id,omitempty"`
	AvatarURL         string     `json:"avatar_url"`
	Reputation        int        `gorm:"default:0" json:"reputation"`
	Verified          bool       `gorm:"default:false" json:"verified"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type AgentRegistrationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ClaimAgentRequest struct {
	AgentID          string `json:"agent_id" binding:"required"`
	VerificationCode string `json:"verification_code" binding:"required"`
}
