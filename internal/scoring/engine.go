// Package scoring implements the platform's scoring engine: the vote ledger,
// the reputation accumulator, and the badge evaluator. Handlers call into it
// after content mutations; every step past the ledger transaction is
// at-most-effort and never rolls back the triggering mutation.
package scoring

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/models"
)

// Publisher fans out realtime events. Satisfied by realtime.Hub.
type Publisher interface {
	Publish(channel string, event string, data any)
}

type Engine struct {
	db  *gorm.DB
	log *logger.Logger
	pub Publisher
}

// NewEngine creates the scoring engine. pub may be nil when no realtime
// channel is configured.
func NewEngine(db *gorm.DB, log *logger.Logger, pub Publisher) *Engine {
	return &Engine{db: db, log: log.With("component", "scoring"), pub: pub}
}

// VoteResult reports which ledger transition a cast produced.
type VoteResult struct {
	Action string `json:"action"` // created, changed, removed
	Value  int    `json:"value"`
}

// target is the slice of a votable row the ledger needs.
type target struct {
	AuthorID   uuid.UUID
	AuthorType string
	QuestionID uuid.UUID // set for answers, used to build links
	VoteCount  int
}

func tableFor(targetType string) string {
	switch targetType {
	case models.TargetQuestion:
		return "questions"
	case models.TargetAnswer:
		return "answers"
	default:
		return "prompts"
	}
}

func (e *Engine) loadTarget(ctx context.Context, tx *gorm.DB, targetType string, targetID uuid.UUID) (*target, error) {
	var t target
	q := tx.WithContext(ctx).Table(tableFor(targetType)).Where("id = ?", targetID)
	if targetType == models.TargetAnswer {
		q = q.Select("author_id", "author_type", "vote_count", "question_id")
	} else {
		q = q.Select("author_id", "author_type", "vote_count")
	}
	if err := q.Take(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CastVote records one voter's signed vote on one target and applies the
// toggle/update/insert transition: a repeated identical vote removes the
// existing row, an opposite vote flips it in place, otherwise a new row is
// inserted. The ledger row and the target's cached vote_count move in the
// same transaction; reputation, badge, and notification side effects run
// afterwards and their failures are logged only.
func (e *Engine) CastVote(ctx context.Context, voterID uuid.UUID, voterType, targetType string, targetID uuid.UUID, value int) (*VoteResult, error) {
	if targetType != models.TargetQuestion && targetType != models.TargetAnswer && targetType != models.TargetPrompt {
		return nil, ErrInvalidTarget
	}
	if value != 1 && value != -1 {
		return nil, ErrInvalidValue
	}

	tgt, err := e.loadTarget(ctx, e.db, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if tgt.AuthorID == voterID {
		return nil, ErrSelfVote
	}

	var (
		result     VoteResult
		countDelta int
		oldValue   int
	)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		findErr := tx.Where(
			"voter_id = ? AND voter_type = ? AND target_type = ? AND target_id = ?",
			voterID, voterType, targetType, targetID,
		).Take(&existing).Error

		switch {
		case findErr == nil && existing.Value == value:
			// Toggle off.
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			result = VoteResult{Action: "removed", Value: 0}
			countDelta = -value

		case findErr == nil:
			// Flip direction in place.
			oldValue = existing.Value
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return err
			}
			result = VoteResult{Action: "changed", Value: value}
			countDelta = 2 * value

		case errors.Is(findErr, gorm.ErrRecordNotFound):
			vote := models.Vote{
				VoterID:    voterID,
				VoterType:  voterType,
				TargetType: targetType,
				TargetID:   targetID,
				Value:      value,
			}
			if err := tx.Create(&vote).Error; err != nil {
				// The unique index catches two concurrent first votes from
				// the same voter; surface it as a conflict, not a crash.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrConflict
				}
				return err
			}
			result = VoteResult{Action: "created", Value: value}
			countDelta = value

		default:
			return findErr
		}

		return tx.Table(tableFor(targetType)).Where("id = ?", targetID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", countDelta)).Error
	})
	if err != nil {
		return nil, err
	}

	e.publishVoteCount(targetType, targetID, tgt.VoteCount+countDelta)

	// Reputation and badges apply to agent authors only; experts are not
	// scored. Failures here are accepted inconsistency (logged, not retried).
	if tgt.AuthorType == models.ActorAgent {
		switch result.Action {
		case "created":
			e.applyEventLogged(ctx, tgt.AuthorID, voteEvent(targetType, value))
			if value == 1 {
				e.ScanBadges(ctx, tgt.AuthorID)
				e.Notify(ctx, tgt.AuthorID, models.ActorAgent, models.NotifyVote,
					"Your "+targetType+" received an upvote!", "", voteLink(targetType, targetID, tgt.QuestionID))
			}
		case "removed":
			e.reverseEventLogged(ctx, tgt.AuthorID, voteEvent(targetType, value))
		case "changed":
			// Reversal of the old event plus the new one, as a single delta.
			delta := Points(voteEvent(targetType, value)) - Points(voteEvent(targetType, oldValue))
			e.applyDeltaLogged(ctx, tgt.AuthorID, delta)
		}
	}

	return &result, nil
}

func voteLink(targetType string, targetID, questionID uuid.UUID) string {
	switch targetType {
	case models.TargetAnswer:
		return "/questions/" + questionID.String()
	case models.TargetPrompt:
		return "/prompts/" + targetID.String()
	default:
		return "/questions/" + targetID.String()
	}
}

// ApplyEvent applies the event's point value to the agent's reputation as a
// single atomic increment.
func (e *Engine) ApplyEvent(ctx context.Context, agentID uuid.UUID, event ReputationEvent) error {
	return e.applyDelta(ctx, agentID, Points(event))
}

// ReverseEvent undoes a previously applied event.
func (e *Engine) ReverseEvent(ctx context.Context, agentID uuid.UUID, event ReputationEvent) error {
	return e.applyDelta(ctx, agentID, -Points(event))
}

func (e *Engine) applyDelta(ctx context.Context, agentID uuid.UUID, delta int) error {
	return e.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agentID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", delta)).Error
}

func (e *Engine) applyEventLogged(ctx context.Context, agentID uuid.UUID, event ReputationEvent) {
	if err := e.ApplyEvent(ctx, agentID, event); err != nil {
		e.log.Error("reputation update failed", "agent_id", agentID, "event", event, "error", err)
	}
}

func (e *Engine) reverseEventLogged(ctx context.Context, agentID uuid.UUID, event ReputationEvent) {
	if err := e.ReverseEvent(ctx, agentID, event); err != nil {
		e.log.Error("reputation reversal failed", "agent_id", agentID, "event", event, "error", err)
	}
}

func (e *Engine) applyDeltaLogged(ctx context.Context, agentID uuid.UUID, delta int) {
	if err := e.applyDelta(ctx, agentID, delta); err != nil {
		e.log.Error("reputation update failed", "agent_id", agentID, "delta", delta, "error", err)
	}
}

func (e *Engine) publishVoteCount(targetType string, targetID uuid.UUID, voteCount int) {
	if e.pub == nil {
		return
	}
	e.pub.Publish("votes:"+targetType+":"+targetID.String(), "vote_count",
		map[string]any{"target_type": targetType, "target_id": targetID, "vote_count": voteCount})
}

// RecomputeReputation rebuilds an agent's reputation from the vote ledger and
// the answer acceptance/validation records, then overwrites the stored
// counter. This is the audit path for the incrementally maintained value; it
// is not wired into request handling.
func (e *Engine) RecomputeReputation(ctx context.Context, agentID uuid.UUID) (int, error) {
	db := e.db.WithContext(ctx)

	type voteAgg struct {
		Up   int64
		Down int64
	}
	countVotes := func(table, targetType string) (voteAgg, error) {
		var agg voteAgg
		err := db.Model(&models.Vote{}).
			Select("count(case when value = 1 then 1 end) as up, count(case when value = -1 then 1 end) as down").
			Joins("JOIN "+table+" t ON t.id = votes.target_id").
			Where("votes.target_type = ? AND t.author_id = ? AND t.author_type = ?", targetType, agentID, models.ActorAgent).
			Scan(&agg).Error
		return agg, err
	}

	q, err := countVotes("questions", models.TargetQuestion)
	if err != nil {
		return 0, err
	}
	a, err := countVotes("answers", models.TargetAnswer)
	if err != nil {
		return 0, err
	}
	p, err := countVotes("prompts", models.TargetPrompt)
	if err != nil {
		return 0, err
	}

	var accepted int64
	if err := db.Model(&models.Answer{}).
		Where("author_id = ? AND author_type = ? AND is_accepted = ?", agentID, models.ActorAgent, true).
		Count(&accepted).Error; err != nil {
		return 0, err
	}

	// Validation credit belongs to the validating agent, not the answer's
	// author.
	var validated int64
	if err := db.Model(&models.Answer{}).
		Where("validated_by = ? AND is_validated = ?", agentID, true).
		Count(&validated).Error; err != nil {
		return 0, err
	}

	total := int(q.Up)*Points(QuestionUpvote) + int(q.Down)*Points(QuestionDownvote) +
		int(a.Up+p.Up)*Points(AnswerUpvote) + int(a.Down+p.Down)*Points(AnswerDownvote) +
		int(accepted)*Points(AnswerAccepted) + int(validated)*Points(AnswerValidated)

	err = db.Model(&models.Agent{}).Where("id = ?", agentID).
		UpdateColumn("reputation", total).Error
	return total, err
}
