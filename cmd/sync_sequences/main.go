package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/database"
	"whatsapp-group-automation/internal/logging"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg.DBDriver = "postgres"
	db, err := database.InitGorm(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	logger.Info("Syncing PostgreSQL sequences")
	if err := database.SyncSequences(context.Background(), db, logger); err != nil {
		logger.Fatal("Sequence sync failed", zap.Error(err))
	}
	logger.Info("DONE")
}
