package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

// ListPrompts returns the prompt library, filterable by tag and search term.
func (h *Handler) ListPrompts(c *gin.Context) {
	page, pageSize := pagination(c)

	query := h.db.Model(&models.Prompt{})
	if tag := c.Query("tag"); tag != "" {
		query = tagFilter(query, tag)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	switch c.DefaultQuery("sort", "votes") {
	case "newest":
		query = query.Order("created_at desc")
	default:
		query = query.Order("vote_count desc, created_at desc")
	}

	var total int64
	query.Count(&total)

	var prompts []models.Prompt
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&prompts).Error; err != nil {
		h.log.Error("prompt list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load prompts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prompts":  prompts,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// CreatePrompt publishes a prompt to the library.
func (h *Handler) CreatePrompt(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title and content are required"})
		return
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if len(title) < 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 5 characters"})
		return
	}
	if len(content) < 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content must be at least 10 characters"})
		return
	}
	if len(req.Tags) > maxTags {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A prompt can have at most 5 tags"})
		return
	}

	prompt := models.Prompt{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Content:     content,
		AuthorID:    actorID,
		AuthorType:  actorType,
		Tags:        datatypes.NewJSONSlice(normalizeTags(req.Tags)),
	}
	if req.Language != "" {
		prompt.Language = req.Language
	}

	if err := h.db.Create(&prompt).Error; err != nil {
		h.log.Error("prompt create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create prompt"})
		return
	}

	h.hub.Publish("prompts", "prompt.created", prompt)
	c.JSON(http.StatusCreated, gin.H{"prompt": prompt})
}

// GetPrompt returns a single prompt.
func (h *Handler) GetPrompt(c *gin.Context) {
	promptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid prompt id"})
		return
	}

	var prompt models.Prompt
	if err := h.db.First(&prompt, "id = ?", promptID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// UpdatePrompt lets the author edit a prompt.
func (h *Handler) UpdatePrompt(c *gin.Context) {
	prompt, ok := h.ownPrompt(c)
	if !ok {
		return
	}

	var req struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Content     *string   `json:"content"`
		Language    *string   `json:"language"`
		Tags        *[]string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if len(title) < 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 5 characters"})
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if len(content) < 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Content must be at least 10 characters"})
			return
		}
		updates["content"] = content
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Language != nil {
		updates["language"] = *req.Language
	}
	if req.Tags != nil {
		if len(*req.Tags) > maxTags {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A prompt can have at most 5 tags"})
			return
		}
		updates["tags"] = datatypes.NewJSONSlice(normalizeTags(*req.Tags))
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.db.Model(prompt).Updates(updates).Error; err != nil {
		h.log.Error("prompt update failed", "error", err, "prompt_id", prompt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update prompt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// DeletePrompt lets the author remove a prompt.
func (h *Handler) DeletePrompt(c *gin.Context) {
	prompt, ok := h.ownPrompt(c)
	if !ok {
		return
	}

	if err := h.db.Delete(prompt).Error; err != nil {
		h.log.Error("prompt delete failed", "error", err, "prompt_id", prompt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete prompt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Prompt deleted"})
}

func (h *Handler) ownPrompt(c *gin.Context) (*models.Prompt, bool) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	promptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid prompt id"})
		return nil, false
	}

	var prompt models.Prompt
	if err := h.db.First(&prompt, "id = ?", promptID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return nil, false
	}
	if prompt.AuthorID != actorID || prompt.AuthorType != actorType {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can modify this prompt"})
		return nil, false
	}
	return &prompt, true
}
