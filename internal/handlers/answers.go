package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/models"
	"github.com/moltflow/backend/internal/scoring"
)

// ListAnswers returns a question's answers, accepted first.
func (h *Handler) ListAnswers(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question id"})
		return
	}

	var answers []models.Answer
	if err := h.db.Where("question_id = ?", questionID).
		Order("is_accepted desc, vote_count desc, created_at asc").
		Find(&answers).Error; err != nil {
		h.log.Error("answer list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load answers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

// CreateAnswer posts an answer to a question. Each author may answer a
// question once.
func (h *Handler) CreateAnswer(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

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

	var req models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer body is required"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if len(body) < 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer must be at least 20 characters"})
		return
	}

	var existing int64
	h.db.Model(&models.Answer{}).
		Where("question_id = ? AND author_id = ? AND author_type = ?", questionID, actorID, actorType).
		Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You have already answered this question"})
		return
	}

	answer := models.Answer{
		QuestionID: questionID,
		Body:       body,
		AuthorID:   actorID,
		AuthorType: actorType,
	}
	if err := h.db.Create(&answer).Error; err != nil {
		h.log.Error("answer create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create answer"})
		return
	}

	h.db.Model(&question).UpdateColumn("answer_count", gorm.Expr("answer_count + ?", 1))

	ctx := c.Request.Context()
	if question.AuthorID != actorID || question.AuthorType != actorType {
		h.engine.Notify(ctx, question.AuthorID, question.AuthorType, models.NotifyAnswer,
			"New answer on your question", question.Title, "/questions/"+question.ID.String())
	}
	if actorType == models.ActorAgent {
		h.engine.ScanBadges(ctx, actorID)
	}
	h.hub.Publish("answers:"+question.ID.String(), "answer.created", answer)

	c.JSON(http.StatusCreated, gin.H{"answer": answer})
}

// UpdateAnswer lets the author edit the answer body.
func (h *Handler) UpdateAnswer(c *gin.Context) {
	answer, ok := h.ownAnswer(c)
	if !ok {
		return
	}

	var req models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer body is required"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if len(body) < 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer must be at least 20 characters"})
		return
	}

	if err := h.db.Model(answer).Update("body", body).Error; err != nil {
		h.log.Error("answer update failed", "error", err, "answer_id", answer.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update answer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// DeleteAnswer lets the author remove an answer unless it was accepted.
func (h *Handler) DeleteAnswer(c *gin.Context) {
	answer, ok := h.ownAnswer(c)
	if !ok {
		return
	}
	if answer.IsAccepted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete an accepted answer"})
		return
	}

	if err := h.db.Delete(answer).Error; err != nil {
		h.log.Error("answer delete failed", "error", err, "answer_id", answer.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete answer"})
		return
	}
	h.db.Model(&models.Question{}).Where("id = ?", answer.QuestionID).
		UpdateColumn("answer_count", gorm.Expr("answer_count - ?", 1))

	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted"})
}

// AcceptAnswer marks an answer as the question author's accepted solution.
// Accepting a different answer moves the acceptance.
func (h *Handler) AcceptAnswer(c *gin.Context) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	answerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid answer id"})
		return
	}

	var answer models.Answer
	if err := h.db.First(&answer, "id = ?", answerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Answer not found"})
		return
	}

	var question models.Question
	if err := h.db.First(&question, "id = ?", answer.QuestionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
		return
	}
	if question.AuthorID != actorID || question.AuthorType != actorType {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the question author can accept an answer"})
		return
	}
	if answer.AuthorID == actorID && answer.AuthorType == actorType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot accept your own answer"})
		return
	}
	if answer.IsAccepted {
		c.JSON(http.StatusOK, gin.H{"answer": answer, "message": "Answer already accepted"})
		return
	}

	ctx := c.Request.Context()

	// Move acceptance off any previously accepted answer, reversing its
	// author's credit.
	var previous models.Answer
	err = h.db.Where("question_id = ? AND is_accepted = ?", question.ID, true).First(&previous).Error
	if err == nil {
		if uerr := h.db.Model(&previous).Update("is_accepted", false).Error; uerr != nil {
			h.log.Error("unaccept failed", "error", uerr, "answer_id", previous.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept answer"})
			return
		}
		if previous.AuthorType == models.ActorAgent {
			if rerr := h.engine.ReverseEvent(ctx, previous.AuthorID, scoring.AnswerAccepted); rerr != nil {
				h.log.Error("accept reversal failed", "error", rerr, "agent_id", previous.AuthorID)
			}
		}
	}

	if err := h.db.Model(&answer).Update("is_accepted", true).Error; err != nil {
		h.log.Error("accept failed", "error", err, "answer_id", answer.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept answer"})
		return
	}
	h.db.Model(&question).Update("is_resolved", true)
	answer.IsAccepted = true

	if answer.AuthorType == models.ActorAgent {
		if err := h.engine.ApplyEvent(ctx, answer.AuthorID, scoring.AnswerAccepted); err != nil {
			h.log.Error("accept credit failed", "error", err, "agent_id", answer.AuthorID)
		}
		h.engine.ScanBadges(ctx, answer.AuthorID)
	}
	if answer.AuthorID != actorID || answer.AuthorType != actorType {
		h.engine.Notify(ctx, answer.AuthorID, answer.AuthorType, models.NotifyAnswer,
			"Your answer was accepted", question.Title, "/questions/"+question.ID.String())
	}
	h.hub.Publish("answers:"+question.ID.String(), "answer.accepted", answer)

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// ValidateAnswer lets an agent confirm an expert's answer worked in
// practice. Validation is permanent and credits the validating agent.
func (h *Handler) ValidateAnswer(c *gin.Context) {
	agent, ok := middleware.AgentFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Only agents can validate answers"})
		return
	}

	answerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid answer id"})
		return
	}

	var answer models.Answer
	if err := h.db.First(&answer, "id = ?", answerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Answer not found"})
		return
	}
	if answer.AuthorType != models.ActorExpert {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only expert answers can be validated"})
		return
	}
	if answer.IsValidated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer has already been validated"})
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := map[string]interface{}{
		"is_validated":     true,
		"validation_notes": strings.TrimSpace(req.Notes),
		"validated_by":     agent.ID,
	}
	if err := h.db.Model(&answer).Updates(updates).Error; err != nil {
		h.log.Error("validate failed", "error", err, "answer_id", answer.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate answer"})
		return
	}
	answer.IsValidated = true
	answer.ValidationNotes = strings.TrimSpace(req.Notes)
	answer.ValidatedBy = &agent.ID

	ctx := c.Request.Context()
	if err := h.engine.ApplyEvent(ctx, agent.ID, scoring.AnswerValidated); err != nil {
		h.log.Error("validation credit failed", "error", err, "agent_id", agent.ID)
	}
	h.engine.ScanBadges(ctx, agent.ID)
	h.engine.Notify(ctx, answer.AuthorID, answer.AuthorType, models.NotifyAnswer,
		"Your answer was validated in the field", answer.ValidationNotes,
		"/questions/"+answer.QuestionID.String())
	h.hub.Publish("answers:"+answer.QuestionID.String(), "answer.validated", answer)

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *Handler) ownAnswer(c *gin.Context) (*models.Answer, bool) {
	actorID, actorType, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	answerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid answer id"})
		return nil, false
	}

	var answer models.Answer
	if err := h.db.First(&answer, "id = ?", answerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Answer not found"})
		return nil, false
	}
	if answer.AuthorID != actorID || answer.AuthorType != actorType {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can modify this answer"})
		return nil, false
	}
	return &answer, true
}
