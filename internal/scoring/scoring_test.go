package scoring

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/database"
	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Agent{}, &models.User{}, &models.Question{}, &models.Answer{},
		&models.Comment{}, &models.Vote{}, &models.Prompt{}, &models.Submolt{},
		&models.SubmoltMember{}, &models.Badge{}, &models.AgentBadge{},
		&models.Notification{},
	))
	require.NoError(t, database.SeedBadges(db))
	return db
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewEngine(db, logger.NewNop(), nil), db
}

func seedAgent(t *testing.T, db *gorm.DB, name string) *models.Agent {
	t.Helper()
	agent := &models.Agent{Name: name, APIKeyHash: "x", APIKeyFingerprint: name}
	require.NoError(t, db.Create(agent).Error)
	return agent
}

func seedQuestion(t *testing.T, db *gorm.DB, author *models.Agent) *models.Question {
	t.Helper()
	q := &models.Question{
		Title:      "How do I parse JSON streams?",
		Body:       "Looking for a streaming approach that does not buffer everything.",
		AuthorID:   author.ID,
		AuthorType: models.ActorAgent,
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

func seedAnswer(t *testing.T, db *gorm.DB, q *models.Question, author *models.Agent) *models.Answer {
	t.Helper()
	a := &models.Answer{
		QuestionID: q.ID,
		Body:       "Use a decoder over the reader and consume tokens one at a time.",
		AuthorID:   author.ID,
		AuthorType: models.ActorAgent,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func reputation(t *testing.T, db *gorm.DB, agentID uuid.UUID) int {
	t.Helper()
	var agent models.Agent
	require.NoError(t, db.First(&agent, "id = ?", agentID).Error)
	return agent.Reputation
}

func answerVoteCount(t *testing.T, db *gorm.DB, answerID uuid.UUID) int {
	t.Helper()
	var answer models.Answer
	require.NoError(t, db.First(&answer, "id = ?", answerID).Error)
	return answer.VoteCount
}

func TestCastVoteFirstUpvote(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	asker := seedAgent(t, db, "asker")
	author := seedAgent(t, db, "author")
	voter := seedAgent(t, db, "voter")
	q := seedQuestion(t, db, asker)
	a := seedAnswer(t, db, q, author)

	result, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Action)
	assert.Equal(t, 1, result.Value)

	assert.Equal(t, 1, answerVoteCount(t, db, a.ID))
	assert.Equal(t, 10, reputation(t, db, author.ID))

	// First Answer is awarded on the author's first scoring pass.
	var held []models.AgentBadge
	require.NoError(t, db.Preload("Badge").Where("agent_id = ?", author.ID).Find(&held).Error)
	names := make([]string, 0, len(held))
	for _, b := range held {
		names = append(names, b.Badge.Name)
	}
	assert.Contains(t, names, "First Answer")
	assert.NotContains(t, names, "Great Answer")

	var notif models.Notification
	require.NoError(t, db.Where("recipient_id = ?", author.ID).First(&notif).Error)
	assert.Equal(t, models.NotifyVote, notif.Type)
}

func TestCastVoteToggleRemoves(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	asker := seedAgent(t, db, "asker")
	author := seedAgent(t, db, "author")
	voter := seedAgent(t, db, "voter")
	a := seedAnswer(t, db, seedQuestion(t, db, asker), author)

	_, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)

	result, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "removed", result.Action)
	assert.Equal(t, 0, result.Value)

	assert.Equal(t, 0, answerVoteCount(t, db, a.ID))
	assert.Equal(t, 0, reputation(t, db, author.ID))

	var count int64
	db.Model(&models.Vote{}).Where("voter_id = ?", voter.ID).Count(&count)
	assert.Zero(t, count)
}

func TestCastVoteFlipDirection(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	asker := seedAgent(t, db, "asker")
	author := seedAgent(t, db, "author")
	voter := seedAgent(t, db, "voter")
	a := seedAnswer(t, db, seedQuestion(t, db, asker), author)

	_, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 10, reputation(t, db, author.ID))

	result, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, "changed", result.Action)
	assert.Equal(t, -1, result.Value)

	// Count swings by two, reputation by -(10) + (-2).
	assert.Equal(t, -1, answerVoteCount(t, db, a.ID))
	assert.Equal(t, -2, reputation(t, db, author.ID))

	var vote models.Vote
	require.NoError(t, db.Where("voter_id = ?", voter.ID).Take(&vote).Error)
	assert.Equal(t, -1, vote.Value)
}

func TestCastVoteSelfVoteRejected(t *testing.T) {
	engine, db := newTestEngine(t)

	author := seedAgent(t, db, "author")
	q := seedQuestion(t, db, author)

	_, err := engine.CastVote(context.Background(), author.ID, models.ActorAgent, models.TargetQuestion, q.ID, 1)
	assert.ErrorIs(t, err, ErrSelfVote)
	assert.Equal(t, 0, reputation(t, db, author.ID))
}

func TestCastVoteValidation(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	voter := seedAgent(t, db, "voter")

	_, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, "submolt", uuid.New(), 1)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetQuestion, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetQuestion, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCastVoteQuestionPoints(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	author := seedAgent(t, db, "author")
	up := seedAgent(t, db, "up")
	down := seedAgent(t, db, "down")
	q := seedQuestion(t, db, author)

	_, err := engine.CastVote(ctx, up.ID, models.ActorAgent, models.TargetQuestion, q.ID, 1)
	require.NoError(t, err)
	_, err = engine.CastVote(ctx, down.ID, models.ActorAgent, models.TargetQuestion, q.ID, -1)
	require.NoError(t, err)

	assert.Equal(t, 5-2, reputation(t, db, author.ID))

	var question models.Question
	require.NoError(t, db.First(&question, "id = ?", q.ID).Error)
	assert.Equal(t, 0, question.VoteCount)
}

func TestCastVotePromptScoresAsAnswer(t *testing.T) {
	engine, db := newTestEngine(t)

	author := seedAgent(t, db, "author")
	voter := seedAgent(t, db, "voter")
	prompt := &models.Prompt{
		Title:      "Summarize politely",
		Content:    "Summarize the following text in three sentences.",
		AuthorID:   author.ID,
		AuthorType: models.ActorAgent,
	}
	require.NoError(t, db.Create(prompt).Error)

	_, err := engine.CastVote(context.Background(), voter.ID, models.ActorAgent, models.TargetPrompt, prompt.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, Points(AnswerUpvote), reputation(t, db, author.ID))
}

func TestCastVoteExpertAuthorNotScored(t *testing.T) {
	engine, db := newTestEngine(t)

	asker := seedAgent(t, db, "asker")
	voter := seedAgent(t, db, "voter")
	expert := &models.User{Email: "e@example.com", Name: "expert", PasswordHash: "x"}
	require.NoError(t, db.Create(expert).Error)

	q := seedQuestion(t, db, asker)
	a := &models.Answer{
		QuestionID: q.ID,
		Body:       "Expert answers are not part of the reputation system at all.",
		AuthorID:   expert.ID,
		AuthorType: models.ActorExpert,
	}
	require.NoError(t, db.Create(a).Error)

	result, err := engine.CastVote(context.Background(), voter.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Action)
	assert.Equal(t, 1, answerVoteCount(t, db, a.ID))

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestEvaluateBadgesIdempotent(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	author := seedAgent(t, db, "author")
	seedQuestion(t, db, author)

	first, err := engine.EvaluateBadges(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"First Question"}, first)

	second, err := engine.EvaluateBadges(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, second)

	var count int64
	db.Model(&models.AgentBadge{}).Where("agent_id = ?", author.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEvaluateBadgesThresholds(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	author := seedAgent(t, db, "author")
	q := seedQuestion(t, db, author)
	require.NoError(t, db.Model(q).Update("vote_count", 10).Error)

	awarded, err := engine.EvaluateBadges(ctx, author.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"First Question", "Popular Question"}, awarded)
}

func TestApplyAndReverseEvent(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()
	agent := seedAgent(t, db, "agent")

	require.NoError(t, engine.ApplyEvent(ctx, agent.ID, AnswerValidated))
	assert.Equal(t, 20, reputation(t, db, agent.ID))

	require.NoError(t, engine.ReverseEvent(ctx, agent.ID, AnswerValidated))
	assert.Equal(t, 0, reputation(t, db, agent.ID))
}

func TestReputationHasNoFloor(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	author := seedAgent(t, db, "author")
	q := seedQuestion(t, db, author)
	for i := 0; i < 3; i++ {
		voter := seedAgent(t, db, "voter"+string(rune('a'+i)))
		_, err := engine.CastVote(ctx, voter.ID, models.ActorAgent, models.TargetQuestion, q.ID, -1)
		require.NoError(t, err)
	}

	assert.Equal(t, -6, reputation(t, db, author.ID))
}

func TestRecomputeMatchesIncremental(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	author := seedAgent(t, db, "author")
	asker := seedAgent(t, db, "asker")
	voterA := seedAgent(t, db, "votera")
	voterB := seedAgent(t, db, "voterb")
	expert := &models.User{Email: "e@example.com", Name: "expert", PasswordHash: "x"}
	require.NoError(t, db.Create(expert).Error)

	q := seedQuestion(t, db, asker)
	a := seedAnswer(t, db, q, author)
	ownQ := seedQuestion(t, db, author)

	_, err := engine.CastVote(ctx, voterA.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	_, err = engine.CastVote(ctx, voterB.ID, models.ActorAgent, models.TargetAnswer, a.ID, 1)
	require.NoError(t, err)
	_, err = engine.CastVote(ctx, voterA.ID, models.ActorAgent, models.TargetQuestion, ownQ.ID, 1)
	require.NoError(t, err)
	_, err = engine.CastVote(ctx, voterB.ID, models.ActorAgent, models.TargetQuestion, ownQ.ID, -1)
	require.NoError(t, err)

	// Author's answer gets accepted; author also validates an expert answer.
	require.NoError(t, db.Model(a).Update("is_accepted", true).Error)
	require.NoError(t, engine.ApplyEvent(ctx, author.ID, AnswerAccepted))

	expertAnswer := &models.Answer{
		QuestionID:  q.ID,
		Body:        "An expert take that the author later validated in the field.",
		AuthorID:    expert.ID,
		AuthorType:  models.ActorExpert,
		IsValidated: true,
		ValidatedBy: &author.ID,
	}
	require.NoError(t, db.Create(expertAnswer).Error)
	require.NoError(t, engine.ApplyEvent(ctx, author.ID, AnswerValidated))

	incremental := reputation(t, db, author.ID)

	recomputed, err := engine.RecomputeReputation(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, incremental, recomputed)
	assert.Equal(t, 10+10+5-2+15+20, recomputed)
	assert.Equal(t, recomputed, reputation(t, db, author.ID))
}

func TestDuplicateVoteRowRejected(t *testing.T) {
	_, db := newTestEngine(t)

	voter := seedAgent(t, db, "voter")
	targetID := uuid.New()

	vote := models.Vote{
		VoterID: voter.ID, VoterType: models.ActorAgent,
		TargetType: models.TargetQuestion, TargetID: targetID, Value: 1,
	}
	require.NoError(t, db.Create(&vote).Error)

	dup := models.Vote{
		VoterID: voter.ID, VoterType: models.ActorAgent,
		TargetType: models.TargetQuestion, TargetID: targetID, Value: -1,
	}
	err := db.Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestNotifyCreatesRow(t *testing.T) {
	engine, db := newTestEngine(t)

	agent := seedAgent(t, db, "agent")
	engine.Notify(context.Background(), agent.ID, models.ActorAgent, models.NotifyBadge,
		"You earned the \"Helpful\" badge!", "", "/agents/"+agent.ID.String())

	var notif models.Notification
	require.NoError(t, db.Where("recipient_id = ?", agent.ID).Take(&notif).Error)
	assert.Equal(t, models.NotifyBadge, notif.Type)
	assert.False(t, notif.Read)
}
