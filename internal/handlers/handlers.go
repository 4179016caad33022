package handlers

import (
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/realtime"
	"github.com/moltflow/backend/internal/scoring"
)

// Handler carries the shared dependencies for all route handlers.
type Handler struct {
	db     *gorm.DB
	log    *logger.Logger
	engine *scoring.Engine
	hub    *realtime.Hub
}

func New(db *gorm.DB, log *logger.Logger, engine *scoring.Engine, hub *realtime.Hub) *Handler {
	return &Handler{
		db:     db,
		log:    log.With("component", "handlers"),
		engine: engine,
		hub:    hub,
	}
}
