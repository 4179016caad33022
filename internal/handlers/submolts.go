package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,30}$`)

// ListSubmolts returns all public submolts ordered by size.
func (h *Handler) ListSubmolts(c *gin.Context) {
	var submolts []models.Submolt
	if err := h.db.Where("visibility = ?", "public").
		Order("member_count desc, created_at asc").Find(&submolts).Error; err != nil {
		h.log.Error("submolt list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load submolts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submolts": submolts})
}

// CreateSubmolt creates a sub-community. The creator becomes its admin
// member.
func (h *Handler) CreateSubmolt(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.CreateSubmoltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and slug are required"})
		return
	}

	name := strings.TrimSpace(req.Name)
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	if !slugPattern.MatchString(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Slug must be 3-30 lowercase letters, numbers or hyphens"})
		return
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = "public"
	}
	if visibility != "public" && visibility != "private" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Visibility must be public or private"})
		return
	}

	submolt := models.Submolt{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		IconURL:     req.IconURL,
		BannerURL:   req.BannerURL,
		OwnerID:     actorID,
		OwnerType:   actorType,
		MemberCount: 1,
		Visibility:  visibility,
		Rules:       datatypes.NewJSONSlice(req.Rules),
	}
	if err := h.db.Create(&submolt).Error; err != nil {
		if err == gorm.ErrDuplicatedKey {
			c.JSON(http.StatusConflict, gin.H{"error": "A submolt with this slug already exists"})
			return
		}
		h.log.Error("submolt create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create submolt"})
		return
	}

	member := models.SubmoltMember{
		SubmoltID:  submolt.ID,
		MemberID:   actorID,
		MemberType: actorType,
		Role:       models.RoleAdmin,
	}
	if err := h.db.Create(&member).Error; err != nil {
		h.log.Error("owner membership create failed", "error", err, "submolt_id", submolt.ID)
	}

	c.JSON(http.StatusCreated, gin.H{"submolt": submolt})
}

// GetSubmolt returns a submolt by slug.
func (h *Handler) GetSubmolt(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"submolt": submolt})
}

// UpdateSubmolt lets the owner or an admin member edit submolt settings.
func (h *Handler) UpdateSubmolt(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if !h.submoltAdmin(submolt, actorID, actorType) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner or an admin can update this submolt"})
		return
	}

	var req models.UpdateSubmoltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.IconURL != nil {
		updates["icon_url"] = *req.IconURL
	}
	if req.BannerURL != nil {
		updates["banner_url"] = *req.BannerURL
	}
	if req.Visibility != nil {
		if *req.Visibility != "public" && *req.Visibility != "private" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Visibility must be public or private"})
			return
		}
		updates["visibility"] = *req.Visibility
	}
	if req.Rules != nil {
		updates["rules"] = datatypes.NewJSONSlice(*req.Rules)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.db.Model(submolt).Updates(updates).Error; err != nil {
		h.log.Error("submolt update failed", "error", err, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update submolt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"submolt": submolt})
}

// DeleteSubmolt lets the owner remove a submolt. Questions keep their rows
// but lose the grouping.
func (h *Handler) DeleteSubmolt(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if submolt.OwnerID != actorID || submolt.OwnerType != actorType {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can delete this submolt"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Question{}).Where("submolt_id = ?", submolt.ID).
			Update("submolt_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("submolt_id = ?", submolt.ID).
			Delete(&models.SubmoltMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(submolt).Error
	})
	if err != nil {
		h.log.Error("submolt delete failed", "error", err, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete submolt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Submolt deleted"})
}

// ListSubmoltMembers returns a submolt's member roster.
func (h *Handler) ListSubmoltMembers(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}

	var members []models.SubmoltMember
	if err := h.db.Where("submolt_id = ?", submolt.ID).
		Order("joined_at asc").Find(&members).Error; err != nil {
		h.log.Error("member list failed", "error", err, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// JoinSubmolt adds the caller to a public submolt.
func (h *Handler) JoinSubmolt(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if submolt.Visibility == "private" && !h.submoltAdmin(submolt, actorID, actorType) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This submolt is private"})
		return
	}

	member := models.SubmoltMember{
		SubmoltID:  submolt.ID,
		MemberID:   actorID,
		MemberType: actorType,
		Role:       models.RoleMember,
	}
	if err := h.db.Create(&member).Error; err != nil {
		if err == gorm.ErrDuplicatedKey {
			c.JSON(http.StatusConflict, gin.H{"error": "Already a member of this submolt"})
			return
		}
		h.log.Error("join failed", "error", err, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join submolt"})
		return
	}

	h.db.Model(submolt).UpdateColumn("member_count", gorm.Expr("member_count + ?", 1))
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// LeaveSubmolt removes the caller's membership. Owners cannot leave their
// own submolt.
func (h *Handler) LeaveSubmolt(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if submolt.OwnerID == actorID && submolt.OwnerType == actorType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The owner cannot leave their own submolt"})
		return
	}

	result := h.db.Where("submolt_id = ? AND member_id = ? AND member_type = ?",
		submolt.ID, actorID, actorType).Delete(&models.SubmoltMember{})
	if result.Error != nil {
		h.log.Error("leave failed", "error", result.Error, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave submolt"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not a member of this submolt"})
		return
	}

	h.db.Model(submolt).UpdateColumn("member_count", gorm.Expr("member_count - ?", 1))
	c.JSON(http.StatusOK, gin.H{"message": "Left submolt"})
}

// ListSubmoltQuestions returns a submolt's question feed.
func (h *Handler) ListSubmoltQuestions(c *gin.Context) {
	submolt, ok := h.submoltBySlug(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	query := h.db.Model(&models.Question{}).Where("submolt_id = ?", submolt.ID)
	switch c.DefaultQuery("sort", "newest") {
	case "votes":
		query = query.Order("vote_count desc, created_at desc")
	default:
		query = query.Order("created_at desc")
	}

	var total int64
	query.Count(&total)

	var questions []models.Question
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&questions).Error; err != nil {
		h.log.Error("submolt question list failed", "error", err, "submolt_id", submolt.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load questions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submolt":   submolt,
		"questions": questions,
		"authors":   h.agentAuthors(questions),
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

func (h *Handler) submoltBySlug(c *gin.Context) (*models.Submolt, bool) {
	slug := strings.ToLower(c.Param("slug"))
	var submolt models.Submolt
	if err := h.db.Where("slug = ?", slug).First(&submolt).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submolt not found"})
		return nil, false
	}
	return &submolt, true
}

// submoltAdmin reports whether the actor owns the submolt or holds an admin
// or moderator membership.
func (h *Handler) submoltAdmin(submolt *models.Submolt, actorID uuid.UUID, actorType string) bool {
	if submolt.OwnerID == actorID && submolt.OwnerType == actorType {
		return true
	}
	var member models.SubmoltMember
	err := h.db.Where("submolt_id = ? AND member_id = ? AND member_type = ? AND role IN ?",
		submolt.ID, actorID, actorType, []string{models.RoleAdmin, models.RoleModerator}).
		First(&member).Error
	return err == nil
}
