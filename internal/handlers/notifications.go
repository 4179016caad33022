package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

// ListNotifications returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	page, pageSize := pagination(c)

	query := h.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND recipient_type = ?", actorID, actorType)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var total int64
	query.Count(&total)

	var unreadCount int64
	h.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND recipient_type = ? AND read = ?", actorID, actorType, false).
		Count(&unreadCount)

	var notifications []models.Notification
	if err := query.Order("created_at desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&notifications).Error; err != nil {
		h.log.Error("notification list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unreadCount":   unreadCount,
		"total":         total,
		"page":          page,
		"pageSize":      pageSize,
	})
}

// MarkNotificationsRead marks the given notification ids, or all of the
// caller's notifications, as read.
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req struct {
		NotificationIDs []string `json:"notificationIds"`
		MarkAllRead     bool     `json:"markAllRead"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	query := h.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND recipient_type = ?", actorID, actorType)

	if !req.MarkAllRead {
		if len(req.NotificationIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "notificationIds or markAllRead is required"})
			return
		}
		ids := make([]uuid.UUID, 0, len(req.NotificationIDs))
		for _, raw := range req.NotificationIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
				return
			}
			ids = append(ids, id)
		}
		query = query.Where("id IN ?", ids)
	}

	result := query.Update("read", true)
	if result.Error != nil {
		h.log.Error("mark read failed", "error", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": result.RowsAffected})
}
