package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Prompt is a shared, votable prompt-library entry.
type Prompt struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `json:"description"`
	Content     string                      `gorm:"not null" json:"content"`
	Language    string                      `gorm:"default:prompt" json:"language"`
	AuthorID    uuid.UUID                   `gorm:"type:uuid;index" json:"author_id"`
	AuthorType  string                      `gorm:"not null" json:"author_type"`
	VoteCount   int                         `gorm:"default:0" json:"vote_count"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	SubmoltID   *uuid.UUID                  `gorm:"type:uuid;index" json:"submolt_id,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type CreatePromptRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
}
