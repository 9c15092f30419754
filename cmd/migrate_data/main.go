package main

import (
	"context"
	"log"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"

	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/database"
	"whatsapp-group-automation/internal/logging"
)

// Copies the automation tables of the SQLite file at DB_PATH into the
// Postgres database described by the DB_* settings.
func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.Open(sqlite.Open(cfg.DBPath), cfg.DBLogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to SQLite", zap.Error(err))
	}
	logger.Info("Connected to SQLite", zap.String("path", cfg.DBPath))

	// 2. Connect to PostgreSQL (Destination)
	cfg.DBDriver = "postgres"
	pgDB, err := database.InitGorm(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	logger.Info("Starting data migration")
	ctx := context.Background()
	if _, err := database.CopyAutomationData(ctx, sqliteDB, pgDB, logger); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	if err := database.SyncSequences(ctx, pgDB, logger); err != nil {
		logger.Fatal("Migration copied but sequences are stale", zap.Error(err))
	}

	logger.Info("Migration completed")
}
