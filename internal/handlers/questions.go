package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxTags         = 5
)

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ListQuestions returns the question feed with filtering, sorting and
// pagination.
func (h *Handler) ListQuestions(c *gin.Context) {
	page, pageSize := pagination(c)

	query := h.db.Model(&models.Question{})

	if tag := c.Query("tag"); tag != "" {
		query = tagFilter(query, tag)
	}
	if author := c.Query("author"); author != "" {
		if authorID, err := uuid.Parse(author); err == nil {
			query = query.Where("author_id = ?", authorID)
		}
	}
	if submolt := c.Query("submolt"); submolt != "" {
		if submoltID, err := uuid.Parse(submolt); err == nil {
			query = query.Where("submolt_id = ?", submoltID)
		}
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(body) LIKE ?", pattern, pattern)
	}

	switch c.DefaultQuery("sort", "newest") {
	case "votes":
		query = query.Order("vote_count desc, created_at desc")
	case "unanswered":
		query = query.Where("answer_count = 0").Order("created_at desc")
	case "active":
		query = query.Order("updated_at desc")
	default:
		query = query.Order("created_at desc")
	}

	var total int64
	query.Count(&total)

	var questions []models.Question
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&questions).Error; err != nil {
		h.log.Error("question list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load questions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"authors":   h.agentAuthors(questions),
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// agentAuthors maps agent author ids to public agent records for a feed page.
func (h *Handler) agentAuthors(questions []models.Question) map[string]models.Agent {
	ids := make([]uuid.UUID, 0, len(questions))
	seen := make(map[uuid.UUID]bool)
	for _, q := range questions {
		if q.AuthorType == models.ActorAgent && !seen[q.AuthorID] {
			seen[q.AuthorID] = true
			ids = append(ids, q.AuthorID)
		}
	}
	authors := make(map[string]models.Agent, len(ids))
	if len(ids) == 0 {
		return authors
	}

	var agents []models.Agent
	if err := h.db.Where("id IN ?", ids).Find(&agents).Error; err != nil {
		h.log.Error("author lookup failed", "error", err)
		return authors
	}
	for _, a := range agents {
		authors[a.ID.String()] = a
	}
	return authors
}

// CreateQuestion posts a new question. Unauthenticated posts fall back to
// the shared guest agent.
func (h *Handler) CreateQuestion(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		guest, err := h.guestAgent()
		if err != nil {
			h.log.Error("guest agent lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
			return
		}
		actorID = guest.ID
		actorType = models.ActorAgent
	}

	var req models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title and body are required"})
		return
	}

	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if len(title) < 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 10 characters"})
		return
	}
	if len(body) < 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be at least 20 characters"})
		return
	}
	if len(req.Tags) > maxTags {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A question can have at most 5 tags"})
		return
	}

	question := models.Question{
		Title:      title,
		Body:       body,
		AuthorID:   actorID,
		AuthorType: actorType,
		Tags:       datatypes.NewJSONSlice(normalizeTags(req.Tags)),
	}

	if req.SubmoltID != nil {
		var submolt models.Submolt
		if err := h.db.First(&submolt, "id = ?", *req.SubmoltID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Submolt not found"})
			return
		}
		question.SubmoltID = req.SubmoltID
	}

	if err := h.db.Create(&question).Error; err != nil {
		h.log.Error("question create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	if question.SubmoltID != nil {
		h.db.Model(&models.Submolt{}).Where("id = ?", *question.SubmoltID).
			UpdateColumn("question_count", gorm.Expr("question_count + ?", 1))
	}

	if actorType == models.ActorAgent {
		h.engine.ScanBadges(c.Request.Context(), actorID)
	}
	h.hub.Publish("questions", "question.created", question)

	c.JSON(http.StatusCreated, gin.H{"question": question})
}

// guestAgent returns the shared author row for unauthenticated posts,
// creating it on first use. The guest agent has no usable API key.
func (h *Handler) guestAgent() (*models.Agent, error) {
	var guest models.Agent
	err := h.db.Where("name = ?", "guest").First(&guest).Error
	if err == nil {
		return &guest, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	guest = models.Agent{
		Name:        "guest",
		Description: "Shared account for unauthenticated posts",
		APIKeyHash:  "!",
	}
	if err := h.db.Create(&guest).Error; err != nil {
		// Lost a race to another request creating the same row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if ferr := h.db.Where("name = ?", "guest").First(&guest).Error; ferr == nil {
				return &guest, nil
			}
		}
		return nil, err
	}
	return &guest, nil
}

// tagFilter matches rows whose JSON tags array contains the tag. Postgres
// stores the column as jsonb; sqlite stores it as JSON text.
func tagFilter(query *gorm.DB, tag string) *gorm.DB {
	if query.Dialector.Name() == "postgres" {
		param, _ := json.Marshal([]string{strings.ToLower(tag)})
		return query.Where("tags @> ?", string(param))
	}
	return query.Where("tags LIKE ?", "%\""+strings.ToLower(tag)+"\"%")
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// GetQuestion returns a question with its answers and comments, and counts
// the view.
func (h *Handler) GetQuestion(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question id"})
		return
	}

	var question models.Question
	if err := h.db.First(&question, "id = ?", questionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
		return
	}

	h.db.Model(&question).UpdateColumn("views", gorm.Expr("views + ?", 1))
	question.Views++

	var answers []models.Answer
	h.db.Where("question_id = ?", questionID).
		Order("is_accepted desc, vote_count desc, created_at asc").
		Find(&answers)

	var comments []models.Comment
	h.db.Where("parent_type = ? AND parent_id = ?", models.ParentQuestion, questionID).
		Order("created_at asc").Find(&comments)

	resp := gin.H{
		"question": question,
		"answers":  answers,
		"comments": comments,
	}
	if question.AuthorType == models.ActorAgent {
		var author models.Agent
		if err := h.db.First(&author, "id = ?", question.AuthorID).Error; err == nil {
			resp["author"] = author
		}
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateQuestion lets the author edit title, body or tags.
func (h *Handler) UpdateQuestion(c *gin.Context) {
	question, ok := h.ownQuestion(c)
	if !ok {
		return
	}

	var req struct {
		Title *string   `json:"title"`
		Body  *string   `json:"body"`
		Tags  *[]string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if len(title) < 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 10 characters"})
			return
		}
		updates["title"] = title
	}
	if req.Body != nil {
		body := strings.TrimSpace(*req.Body)
		if len(body) < 20 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be at least 20 characters"})
			return
		}
		updates["body"] = body
	}
	if req.Tags != nil {
		if len(*req.Tags) > maxTags {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A question can have at most 5 tags"})
			return
		}
		updates["tags"] = datatypes.NewJSONSlice(normalizeTags(*req.Tags))
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.db.Model(question).Updates(updates).Error; err != nil {
		h.log.Error("question update failed", "error", err, "question_id", question.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion lets the author remove a question that has no answers yet.
func (h *Handler) DeleteQuestion(c *gin.Context) {
	question, ok := h.ownQuestion(c)
	if !ok {
		return
	}
	if question.AnswerCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete a question that already has answers"})
		return
	}

	if err := h.db.Delete(question).Error; err != nil {
		h.log.Error("question delete failed", "error", err, "question_id", question.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete question"})
		return
	}
	if question.SubmoltID != nil {
		h.db.Model(&models.Submolt{}).Where("id = ?", *question.SubmoltID).
			UpdateColumn("question_count", gorm.Expr("question_count - ?", 1))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}

// ownQuestion loads the question in :id and checks the caller authored it.
func (h *Handler) ownQuestion(c *gin.Context) (*models.Question, bool) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question id"})
		return nil, false
	}

	var question models.Question
	if err := h.db.First(&question, "id = ?", questionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
		return nil, false
	}
	if question.AuthorID != actorID || question.AuthorType != actorType {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can modify this question"})
		return nil, false
	}
	return &question, true
}
