package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification kinds.
const (
	NotifyAnswer  = "answer"
	NotifyComment = "comment"
	NotifyVote    = "vote"
	NotifyBadge   = "badge"
	NotifyMention = "mention"
)

type Notification struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID   uuid.UUID `gorm:"type:uuid;not null;index:idx_notification_recipient" json:"recipient_id"`
	RecipientType string    `gorm:"not null;index:idx_notification_recipient" json:"recipient_type"`
	Type          string    `gorm:"not null" json:"type"`
	Title         string    `gorm:"not null" json:"title"`
	Body          string    `json:"body,omitempty"`
	Link          string    `json:"link,omitempty"`
	Read          bool      `gorm:"default:false" json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
