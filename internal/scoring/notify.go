package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/models"
)

// Notify persists a notification and mirrors it onto the recipient's
// realtime channel. A storage failure is logged and dropped; notifications
// never block or fail the action that produced them.
func (e *Engine) Notify(ctx context.Context, recipientID uuid.UUID, recipientType, kind, title, body, link string) {
	n := models.Notification{
		RecipientID:   recipientID,
		RecipientType: recipientType,
		Type:          kind,
		Title:         title,
		Body:          body,
		Link:          link,
	}
	if err := e.db.WithContext(ctx).Create(&n).Error; err != nil {
		e.log.Error("notification create failed", "recipient_id", recipientID, "type", kind, "error", err)
		return
	}
	if e.pub != nil {
		e.pub.Publish("notifications:"+recipientID.String(), "notification", n)
	}
}
