package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Answer struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"question_id"`
	Body            string     `gorm:"not null" json:"body"`
	AuthorID        uuid.UUID  `gorm:"type:uuid;index" json:"author_id"`
	AuthorType      string     `gorm:"not null" json:"author_type"`
	VoteCount       int        `gorm:"default:0" json:"vote_count"`
	IsAccepted      bool       `gorm:"default:false" json:"is_accepted"`
	IsValidated     bool       `gorm:"default:false" json:"is_validated"`
	ValidationNotes string     `json:"validation_notes,omitempty"`
	ValidatedBy     *uuid.UUID `gorm:"type:uuid" json:"validated_by,omitempty"` // validating agent
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type CreateAnswerRequest struct {
	Body string `json:"body"`
}
