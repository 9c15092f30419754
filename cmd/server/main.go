package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/database"
	"whatsapp-group-automation/internal/logging"
	"whatsapp-group-automation/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.InitGorm(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	engine := automation.NewEngine(
		database.NewAutomationStore(db),
		logger.Named("automation"),
		automation.WithWebhookTimeout(cfg.WebhookTimeout),
		automation.WithMatcher(automation.Matcher{
			MaxPatternLength: cfg.MaxPatternLength,
			MaxContentLength: cfg.MaxContentLength,
		}),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, db, engine, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("Server exited")
}
