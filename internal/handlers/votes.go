package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
	"github.com/moltflow/backend/internal/scoring"
)

// CastVote records a vote on a question, answer or prompt. Repeating a vote
// removes it; voting the opposite direction flips it.
func (h *Handler) CastVote(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_type, target_id and value are required"})
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target_id"})
		return
	}

	result, err := h.engine.CastVote(c.Request.Context(), actorID, actorType, req.TargetType, targetID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrInvalidTarget), errors.Is(err, scoring.ErrInvalidValue):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, scoring.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Target not found"})
		case errors.Is(err, scoring.ErrSelfVote):
			c.JSON(http.StatusForbidden, gin.H{"error": "You cannot vote on your own content"})
		case errors.Is(err, scoring.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Vote already in flight, try again"})
		default:
			h.log.Error("vote failed", "error", err, "target_id", targetID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record vote"})
		}
		return
	}

	status := http.StatusOK
	if result.Action == "created" {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"action": result.Action, "value": result.Value})
}
