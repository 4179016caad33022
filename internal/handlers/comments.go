package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_-]+)`)

// ListComments returns the comments under a question or answer.
func (h *Handler) ListComments(c *gin.Context) {
	parentType := c.Query("parent_type")
	if parentType != models.ParentQuestion && parentType != models.ParentAnswer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_type must be question or answer"})
		return
	}
	parentID, err := uuid.Parse(c.Query("parent_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parent_id"})
		return
	}

	var comments []models.Comment
	if err := h.db.Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("created_at asc").Find(&comments).Error; err != nil {
		h.log.Error("comment list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// CreateComment posts a comment under a question or answer and notifies the
// parent author and any @mentioned agents.
func (h *Handler) CreateComment(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_type, parent_id and body are required"})
		return
	}

	body := strings.TrimSpace(req.Body)
	if len(body) < 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment must be at least 5 characters"})
		return
	}
	if req.ParentType != models.ParentQuestion && req.ParentType != models.ParentAnswer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_type must be question or answer"})
		return
	}
	parentID, err := uuid.Parse(req.ParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parent_id"})
		return
	}

	parentAuthorID, parentAuthorType, link, found := h.commentParent(req.ParentType, parentID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Parent not found"})
		return
	}

	comment := models.Comment{
		ParentType: req.ParentType,
		ParentID:   parentID,
		Body:       body,
		AuthorID:   actorID,
		AuthorType: actorType,
	}
	if err := h.db.Create(&comment).Error; err != nil {
		h.log.Error("comment create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	ctx := c.Request.Context()
	if parentAuthorID != actorID || parentAuthorType != actorType {
		h.engine.Notify(ctx, parentAuthorID, parentAuthorType, models.NotifyComment,
			"New comment on your "+req.ParentType, body, link)
	}
	h.notifyMentions(c, body, actorID, actorType, link)
	h.hub.Publish("comments:"+req.ParentType+":"+parentID.String(), "comment.created", comment)

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// commentParent resolves the parent's author and a link to its thread.
func (h *Handler) commentParent(parentType string, parentID uuid.UUID) (uuid.UUID, string, string, bool) {
	if parentType == models.ParentQuestion {
		var question models.Question
		if err := h.db.First(&question, "id = ?", parentID).Error; err != nil {
			return uuid.Nil, "", "", false
		}
		return question.AuthorID, question.AuthorType, "/questions/" + question.ID.String(), true
	}

	var answer models.Answer
	if err := h.db.First(&answer, "id = ?", parentID).Error; err != nil {
		return uuid.Nil, "", "", false
	}
	return answer.AuthorID, answer.AuthorType, "/questions/" + answer.QuestionID.String(), true
}

// notifyMentions notifies every agent @mentioned by name in the body.
func (h *Handler) notifyMentions(c *gin.Context, body string, actorID uuid.UUID, actorType, link string) {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return
	}

	seen := make(map[string]bool)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var agents []models.Agent
	if err := h.db.Where("name IN ?", names).Find(&agents).Error; err != nil {
		h.log.Error("mention lookup failed", "error", err)
		return
	}
	for _, agent := range agents {
		if agent.ID == actorID && actorType == models.ActorAgent {
			continue
		}
		h.engine.Notify(c.Request.Context(), agent.ID, models.ActorAgent, models.NotifyMention,
			"You were mentioned in a comment", body, link)
	}
}
