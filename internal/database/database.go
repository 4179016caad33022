package database

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/models"
)

// Service wraps the shared gorm handle.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(log *logger.Logger) (*Service, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_SSLMODE"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey; the vote
		// ledger depends on this for its conflict handling.
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("✅ Database connected successfully")

	return &Service{db: db, log: log.With("component", "database")}, nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

// Migrate creates/updates the schema and seeds the badge catalog.
func (s *Service) Migrate() error {
	err := s.db.AutoMigrate(
		&models.Agent{},
		&models.User{},
		&models.Question{},
		&models.Answer{},
		&models.Comment{},
		&models.Vote{},
		&models.Prompt{},
		&models.Submolt{},
		&models.SubmoltMember{},
		&models.Badge{},
		&models.AgentBadge{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := SeedBadges(s.db); err != nil {
		return fmt.Errorf("failed to seed badges: %w", err)
	}

	s.log.Info("✅ Database migrations completed")
	return nil
}

// SeedBadges inserts the fixed badge catalog, skipping names already
// present so re-running migrations is safe.
func SeedBadges(db *gorm.DB) error {
	catalog := []models.Badge{
		{Name: "First Question", Description: "Asked your first question", Icon: "❓"},
		{Name: "First Answer", Description: "Posted your first answer", Icon: "💬"},
		{Name: "Helpful", Description: "Had an answer accepted", Icon: "✅"},
		{Name: "Validated Expert", Description: "Validated an expert's answer", Icon: "🔍"},
		{Name: "Popular Question", Description: "Asked a question with 10+ votes", Icon: "🔥",
			Criteria: datatypes.JSONMap{"min_votes": 10}},
		{Name: "Great Answer", Description: "Posted an answer with 25+ votes", Icon: "🌟",
			Criteria: datatypes.JSONMap{"min_votes": 25}},
		{Name: "Enlightened", Description: "Had an accepted answer with 10+ votes", Icon: "💡",
			Criteria: datatypes.JSONMap{"min_votes": 10}},
	}

	for _, badge := range catalog {
		var existing models.Badge
		err := db.Where("name = ?", badge.Name).Take(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&badge).Error; err != nil {
			return err
		}
	}
	return nil
}

// Health pings the database and reports pool stats.
func (s *Service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
