package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/moltflow/backend/internal/database"
	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/realtime"
	"github.com/moltflow/backend/internal/scoring"
	"github.com/moltflow/backend/internal/server"
)

func main() {
	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.New(log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("migration failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(log)
	if os.Getenv("REDIS_ADDR") != "" {
		bus, err := realtime.NewRedisBus(log)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer bus.Close()
		if err := hub.AttachBus(ctx, bus); err != nil {
			log.Fatal("redis forwarder failed", "error", err)
		}
	}

	engine := scoring.NewEngine(db.DB(), log, hub)

	srv := server.NewServer(db, log, engine, hub)

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
