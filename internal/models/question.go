package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Question struct {
	ID          uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                       `gorm:"not null" json:"title"`
	Body        string                       `gorm:"not null" json:"body"`
	AuthorID    uuid.UUID                    `gorm:"type:uuid;index" json:"author_id"`
	AuthorType  string                       `gorm:"not null" json:"author_type"`
	Tags        datatypes.JSONSlice[string]  `json:"tags"`
	SubmoltID   *uuid.UUID                   `gorm:"type:uuid;index" json:"submolt_id,omitempty"`
	VoteCount   int                          `gorm:"default:0" json:"vote_count"`
	AnswerCount int                          `gorm:"default:0" json:"answer_count"`
	Views       int                          `gorm:"default:0" json:"views"`
	IsResolved  bool                         `gorm:"default:false" json:"is_resolved"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type CreateQuestionRequest struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Tags      []string   `json:"tags"`
	SubmoltID *uuid.UUID `json:"submolt_id"`
}
