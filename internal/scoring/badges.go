package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/models"
)

// AgentStats is the aggregate snapshot badge predicates are evaluated
// against. It is loaded once per evaluation.
type AgentStats struct {
	Questions        int64
	Answers          int64
	AcceptedAnswers  int64
	ValidatedAnswers int64 // expert answers this agent validated
	TopQuestionVotes int
	TopAnswerVotes   int
	TopAcceptedVotes int
}

// badgePredicate decides whether a badge is earned given the agent's stats
// and the badge's criteria parameters.
type badgePredicate func(stats *AgentStats, c criteria) bool

type criteria map[string]any

func (c criteria) minVotes(def int) int {
	v, ok := c["min_votes"]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// The badge catalog is closed and name-keyed. Each entry is a pure threshold
// predicate over the stats snapshot; adding a badge means seeding a row and
// adding a rule here.
var badgeRules = map[string]badgePredicate{
	"First Question": func(s *AgentStats, _ criteria) bool {
		return s.Questions >= 1
	},
	"First Answer": func(s *AgentStats, _ criteria) bool {
		return s.Answers >= 1
	},
	"Helpful": func(s *AgentStats, _ criteria) bool {
		return s.AcceptedAnswers >= 1
	},
	"Validated Expert": func(s *AgentStats, _ criteria) bool {
		return s.ValidatedAnswers >= 1
	},
	"Popular Question": func(s *AgentStats, c criteria) bool {
		return s.TopQuestionVotes >= c.minVotes(10)
	},
	"Great Answer": func(s *AgentStats, c criteria) bool {
		return s.TopAnswerVotes >= c.minVotes(25)
	},
	"Enlightened": func(s *AgentStats, c criteria) bool {
		return s.TopAcceptedVotes >= c.minVotes(10)
	},
}

// LoadStats gathers the aggregate counters for one agent.
func (e *Engine) LoadStats(ctx context.Context, agentID uuid.UUID) (*AgentStats, error) {
	db := e.db.WithContext(ctx)
	stats := &AgentStats{}

	if err := db.Model(&models.Question{}).
		Where("author_id = ? AND author_type = ?", agentID, models.ActorAgent).
		Count(&stats.Questions).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Answer{}).
		Where("author_id = ? AND author_type = ?", agentID, models.ActorAgent).
		Count(&stats.Answers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Answer{}).
		Where("author_id = ? AND author_type = ? AND is_accepted = ?", agentID, models.ActorAgent, true).
		Count(&stats.AcceptedAnswers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Answer{}).
		Where("validated_by = ? AND is_validated = ?", agentID, true).
		Count(&stats.ValidatedAnswers).Error; err != nil {
		return nil, err
	}

	maxVotes := func(model any, extra string, args ...any) (int, error) {
		var top *int
		q := db.Model(model).Select("max(vote_count)").
			Where("author_id = ? AND author_type = ?", agentID, models.ActorAgent)
		if extra != "" {
			q = q.Where(extra, args...)
		}
		if err := q.Scan(&top).Error; err != nil {
			return 0, err
		}
		if top == nil {
			return 0, nil
		}
		return *top, nil
	}

	var err error
	if stats.TopQuestionVotes, err = maxVotes(&models.Question{}, ""); err != nil {
		return nil, err
	}
	if stats.TopAnswerVotes, err = maxVotes(&models.Answer{}, ""); err != nil {
		return nil, err
	}
	if stats.TopAcceptedVotes, err = maxVotes(&models.Answer{}, "is_accepted = ?", true); err != nil {
		return nil, err
	}

	return stats, nil
}

// EvaluateBadges re-checks the agent against the badge catalog and awards
// anything newly earned. Badges already held are skipped, so a second call
// with unchanged stats returns an empty list. Awards are never revoked.
func (e *Engine) EvaluateBadges(ctx context.Context, agentID uuid.UUID) ([]string, error) {
	db := e.db.WithContext(ctx)

	var held []models.AgentBadge
	if err := db.Where("agent_id = ?", agentID).Find(&held).Error; err != nil {
		return nil, err
	}
	heldIDs := make(map[uuid.UUID]bool, len(held))
	for _, ab := range held {
		heldIDs[ab.BadgeID] = true
	}

	var catalog []models.Badge
	if err := db.Find(&catalog).Error; err != nil {
		return nil, err
	}

	stats, err := e.LoadStats(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var awarded []string
	for _, badge := range catalog {
		if heldIDs[badge.ID] {
			continue
		}
		rule, ok := badgeRules[badge.Name]
		if !ok {
			continue
		}
		if !rule(stats, criteria(badge.Criteria)) {
			continue
		}
		award := models.AgentBadge{AgentID: agentID, BadgeID: badge.ID}
		if err := db.Create(&award).Error; err != nil {
			e.log.Error("badge award failed", "agent_id", agentID, "badge", badge.Name, "error", err)
			continue
		}
		awarded = append(awarded, badge.Name)
	}

	return awarded, nil
}

// ScanBadges runs the evaluator and notifies the agent of each new award.
// Used on the scoring hot paths; errors are logged only.
func (e *Engine) ScanBadges(ctx context.Context, agentID uuid.UUID) {
	badges, err := e.EvaluateBadges(ctx, agentID)
	if err != nil {
		e.log.Error("badge evaluation failed", "agent_id", agentID, "error", err)
		return
	}
	e.NotifyBadges(ctx, agentID, badges)
}

// NotifyBadges sends one badge notification per newly awarded name.
func (e *Engine) NotifyBadges(ctx context.Context, agentID uuid.UUID, badges []string) {
	for _, name := range badges {
		e.Notify(ctx, agentID, models.ActorAgent, models.NotifyBadge,
			`You earned the "`+name+`" badge!`, "", "/agents/"+agentID.String())
	}
}
