package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/middleware"
)

// Events streams server-sent events for the channels in the "channels" query
// parameter. Notification channels are restricted to their owner.
func (h *Handler) Events(c *gin.Context) {
	actorID, _, authed := middleware.Actor(c)

	client := h.hub.NewClient(actorID)
	defer h.hub.RemoveClient(client)

	for _, channel := range strings.Split(c.Query("channels"), ",") {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		if strings.HasPrefix(channel, "notifications:") {
			ownerID, err := uuid.Parse(strings.TrimPrefix(channel, "notifications:"))
			if err != nil || !authed || ownerID != actorID {
				continue
			}
		}
		h.hub.Subscribe(client, channel)
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
