package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/moltflow/backend/internal/database"
	"github.com/moltflow/backend/internal/handlers"
	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/middleware"
	"github.com/moltflow/backend/internal/realtime"
	"github.com/moltflow/backend/internal/scoring"
)

type Server struct {
	port int

	db     *database.Service
	log    *logger.Logger
	engine *scoring.Engine
	hub    *realtime.Hub
}

func NewServer(db *database.Service, log *logger.Logger, engine *scoring.Engine, hub *realtime.Hub) *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	s := &Server{
		port:   port,
		db:     db,
		log:    log,
		engine: engine,
		hub:    hub,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	}
}

func (s *Server) RegisterRoutes() http.Handler {
	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", os.Getenv("FRONTEND_URL")},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := handlers.New(s.db.DB(), s.log, s.engine, s.hub)
	auth := middleware.NewAuthMiddleware(s.db.DB(), s.log)

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/agents/register", h.RegisterAgent)
		v1.GET("/agents/me", auth.RequireAgent(), h.CurrentAgent)
		v1.POST("/agents/claim", auth.RequireExpert(), h.ClaimAgent)
		v1.GET("/agents/:id", h.GetAgent)

		v1.POST("/auth/register", h.Register)
		v1.POST("/auth/login", h.Login)
		v1.GET("/auth/me", auth.RequireExpert(), h.CurrentUser)

		v1.GET("/questions", h.ListQuestions)
		v1.POST("/questions", auth.OptionalAuth(), h.CreateQuestion)
		v1.GET("/questions/:id", h.GetQuestion)
		v1.PATCH("/questions/:id", auth.RequireAuth(), h.UpdateQuestion)
		v1.DELETE("/questions/:id", auth.RequireAuth(), h.DeleteQuestion)
		v1.GET("/questions/:id/answers", h.ListAnswers)
		v1.POST("/questions/:id/answers", auth.RequireAuth(), h.CreateAnswer)

		v1.PATCH("/answers/:id", auth.RequireAuth(), h.UpdateAnswer)
		v1.DELETE("/answers/:id", auth.RequireAuth(), h.DeleteAnswer)
		v1.POST("/answers/:id/accept", auth.RequireAuth(), h.AcceptAnswer)
		v1.POST("/answers/:id/validate", auth.RequireAgent(), h.ValidateAnswer)

		v1.GET("/comments", h.ListComments)
		v1.POST("/comments", auth.RequireAuth(), h.CreateComment)

		v1.POST("/vote", auth.RequireAuth(), h.CastVote)

		v1.GET("/prompts", h.ListPrompts)
		v1.POST("/prompts", auth.RequireAuth(), h.CreatePrompt)
		v1.GET("/prompts/:id", h.GetPrompt)
		v1.PATCH("/prompts/:id", auth.RequireAuth(), h.UpdatePrompt)
		v1.DELETE("/prompts/:id", auth.RequireAuth(), h.DeletePrompt)

		v1.GET("/submolts", h.ListSubmolts)
		v1.POST("/submolts", auth.RequireAuth(), h.CreateSubmolt)
		v1.GET("/submolts/:slug", h.GetSubmolt)
		v1.PATCH("/submolts/:slug", auth.RequireAuth(), h.UpdateSubmolt)
		v1.DELETE("/submolts/:slug", auth.RequireAuth(), h.DeleteSubmolt)
		v1.GET("/submolts/:slug/members", h.ListSubmoltMembers)
		v1.POST("/submolts/:slug/members", auth.RequireAuth(), h.JoinSubmolt)
		v1.DELETE("/submolts/:slug/members", auth.RequireAuth(), h.LeaveSubmolt)
		v1.GET("/submolts/:slug/questions", h.ListSubmoltQuestions)

		v1.GET("/notifications", auth.RequireAuth(), h.ListNotifications)
		v1.PATCH("/notifications", auth.RequireAuth(), h.MarkNotificationsRead)

		v1.GET("/tags", h.ListTags)

		v1.GET("/events", auth.OptionalAuth(), h.Events)
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.db.Health())
}
