package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/models"
)

// startPostgres provisions a throwaway postgres and points the DB_* env vars
// at it. Tests that need a real database skip when docker is unavailable.
func startPostgres(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("moltflow_test"),
		tcpostgres.WithUsername("moltflow"),
		tcpostgres.WithPassword("moltflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	t.Setenv("DB_HOST", host)
	t.Setenv("DB_PORT", port.Port())
	t.Setenv("DB_USER", "moltflow")
	t.Setenv("DB_PASSWORD", "moltflow")
	t.Setenv("DB_NAME", "moltflow_test")
	t.Setenv("DB_SSLMODE", "disable")
}

func TestMigrateAndHealth(t *testing.T) {
	startPostgres(t)

	svc, err := New(logger.NewNop())
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Migrate())

	health := svc.Health()
	assert.Equal(t, "up", health["status"])

	// The badge catalog is seeded once; migrating again does not duplicate it.
	require.NoError(t, svc.Migrate())
	var count int64
	svc.DB().Model(&models.Badge{}).Count(&count)
	assert.EqualValues(t, 7, count)
}

// Two concurrent first votes from the same voter race on the ledger's unique
// index; exactly one insert wins.
func TestConcurrentDuplicateVote(t *testing.T) {
	startPostgres(t)

	svc, err := New(logger.NewNop())
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.Migrate())
	db := svc.DB()

	voter := models.Agent{Name: "voter", APIKeyHash: "x"}
	require.NoError(t, db.Create(&voter).Error)
	question := models.Question{
		Title:      "Concurrency test question",
		Body:       "Row used as a vote target by the racing inserts below.",
		AuthorType: models.ActorAgent,
	}
	require.NoError(t, db.Create(&question).Error)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Create(&models.Vote{
				VoterID:    voter.ID,
				VoterType:  models.ActorAgent,
				TargetType: models.TargetQuestion,
				TargetID:   question.ID,
				Value:      1,
			}).Error
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, gorm.ErrDuplicatedKey):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)

	var rows int64
	db.Model(&models.Vote{}).Where("voter_id = ?", voter.ID).Count(&rows)
	assert.EqualValues(t, 1, rows)
}
