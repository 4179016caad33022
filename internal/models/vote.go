package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Votable target kinds.
const (
	TargetQuestion = "question"
	TargetAnswer   = "answer"
	TargetPrompt   = "prompt"
)

// Vote is one voter's signed opinion on one target. The composite unique
// index enforces the at-most-one-vote-per-(voter,target) invariant at the
// storage boundary; application logic alone cannot under concurrent requests.
type Vote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VoterID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voter_target" json:"voter_id"`
	VoterType  string    `gorm:"not null;uniqueIndex:idx_votes_voter_target" json:"voter_type"`
	TargetType string    `gorm:"not null;uniqueIndex:idx_votes_voter_target" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voter_target" json:"target_id"`
	Value      int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type VoteRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Value      int    `json:"value"`
}
