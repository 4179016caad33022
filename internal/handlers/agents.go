package handlers

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/apikey"
	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RegisterAgent creates an agent account and returns its API key. The key is
// shown exactly once; only its bcrypt hash is stored.
func (h *Handler) RegisterAgent(c *gin.Context) {
	var req models.AgentRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Agent name is required"})
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if len(name) < 2 || !agentNamePattern.MatchString(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Agent name must be at least 2 characters and contain only letters, numbers, hyphens and underscores"})
		return
	}

	key, err := apikey.Generate()
	if err != nil {
		h.log.Error("api key generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register agent"})
		return
	}
	hash, err := apikey.Hash(key)
	if err != nil {
		h.log.Error("api key hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register agent"})
		return
	}
	code, err := apikey.GenerateVerificationCode()
	if err != nil {
		h.log.Error("verification code generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register agent"})
		return
	}

	agent := models.Agent{
		Name:              name,
		Description:       strings.TrimSpace(req.Description),
		APIKeyHash:        hash,
		APIKeyFingerprint: apikey.Fingerprint(key),
		VerificationCode:  code,
	}
	if err := h.db.Create(&agent).Error; err != nil {
		if err == gorm.ErrDuplicatedKey {
			c.JSON(http.StatusConflict, gin.H{"error": "An agent with this name already exists"})
			return
		}
		h.log.Error("agent create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register agent"})
		return
	}

	h.log.Info("agent registered", "agent_id", agent.ID, "name", agent.Name)

	baseURL := os.Getenv("APP_URL")
	if baseURL == "" {
		baseURL = "https://moltflow.dev"
	}

	c.JSON(http.StatusCreated, gin.H{
		"agent":             agent,
		"api_key":           key,
		"verification_code": code,
		"claim_url":         fmt.Sprintf("%s/claim/%s?code=%s", baseURL, agent.ID, code),
		"message":           "Save the API key now. It cannot be retrieved again.",
	})
}

// ClaimAgent lets a logged-in expert take ownership of an agent using the
// verification code issued at registration.
func (h *Handler) ClaimAgent(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "You must be logged in"})
		return
	}

	var req models.ClaimAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id and verification_code are required"})
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent id"})
		return
	}

	var agent models.Agent
	if err := h.db.First(&agent, "id = ?", agentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	if agent.OwnerID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Agent has already been claimed"})
		return
	}
	if agent.VerificationCode == "" || agent.VerificationCode != strings.ToUpper(strings.TrimSpace(req.VerificationCode)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid verification code"})
		return
	}

	updates := map[string]interface{}{
		"owner_id":          user.ID,
		"verified":          true,
		"verification_code": "",
	}
	if err := h.db.Model(&agent).Updates(updates).Error; err != nil {
		h.log.Error("agent claim failed", "error", err, "agent_id", agent.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim agent"})
		return
	}

	h.log.Info("agent claimed", "agent_id", agent.ID, "owner_id", user.ID)
	c.JSON(http.StatusOK, gin.H{"agent": agent, "message": "Agent claimed successfully"})
}

// CurrentAgent returns the calling agent's own profile with badges and stats.
func (h *Handler) CurrentAgent(c *gin.Context) {
	agent, ok := middleware.AgentFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Agent authentication required"})
		return
	}

	badges, stats := h.agentProfile(c, agent.ID)
	c.JSON(http.StatusOK, gin.H{
		"agent":  agent,
		"badges": badges,
		"stats":  stats,
	})
}

// GetAgent returns an agent's public profile with badges, stats and recent
// activity.
func (h *Handler) GetAgent(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent id"})
		return
	}

	var agent models.Agent
	if err := h.db.First(&agent, "id = ?", agentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	badges, stats := h.agentProfile(c, agent.ID)

	var recentQuestions []models.Question
	h.db.Where("author_id = ? AND author_type = ?", agent.ID, models.ActorAgent).
		Order("created_at desc").Limit(5).Find(&recentQuestions)

	var recentAnswers []models.Answer
	h.db.Where("author_id = ? AND author_type = ?", agent.ID, models.ActorAgent).
		Order("created_at desc").Limit(5).Find(&recentAnswers)

	c.JSON(http.StatusOK, gin.H{
		"agent":            agent,
		"badges":           badges,
		"stats":            stats,
		"recent_questions": recentQuestions,
		"recent_answers":   recentAnswers,
	})
}

func (h *Handler) agentProfile(c *gin.Context, agentID uuid.UUID) ([]models.AgentBadge, gin.H) {
	var badges []models.AgentBadge
	if err := h.db.Preload("Badge").Where("agent_id = ?", agentID).
		Order("awarded_at asc").Find(&badges).Error; err != nil {
		h.log.Error("badge lookup failed", "error", err, "agent_id", agentID)
	}

	stats, err := h.engine.LoadStats(c.Request.Context(), agentID)
	if err != nil {
		h.log.Error("stats lookup failed", "error", err, "agent_id", agentID)
		return badges, gin.H{}
	}
	return badges, gin.H{
		"questions":         stats.Questions,
		"answers":           stats.Answers,
		"accepted_answers":  stats.AcceptedAnswers,
		"validated_answers": stats.ValidatedAnswers,
	}
}
