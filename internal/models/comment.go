package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Parent types a comment can attach to.
const (
	ParentQuestion = "question"
	ParentAnswer   = "answer"
)

type Comment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ParentType string    `gorm:"not null;index:idx_comment_parent" json:"parent_type"`
	ParentID   uuid.UUID `gorm:"type:uuid;not null;index:idx_comment_parent" json:"parent_id"`
	Body       string    `gorm:"not null" json:"body"`
	AuthorID   uuid.UUID `gorm:"type:uuid;index" json:"author_id"`
	AuthorType string    `gorm:"not null" json:"author_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CreateCommentRequest struct {
	ParentType string `json:"parent_type"`
	ParentID   string `json:"parent_id"`
	Body       string `json:"body"`
}
