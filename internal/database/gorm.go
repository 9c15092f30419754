package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/models"
)

// AutomationModels are the tables owned by the automation engine, in
// dependency order.
var AutomationModels = []any{
	&models.AutomationRule{},
	&models.CollectedData{},
	&models.AutomationLog{},
}

// InitGorm opens the configured database and migrates the automation tables.
func InitGorm(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.PostgresDSN())
	case "", "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := Open(dialector, cfg.DBLogLevel)
	if err != nil {
		return nil, err
	}
	if isMemorySQLite(cfg) {
		// every pooled connection would otherwise get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	log.Info("Connected to database", zap.String("driver", db.Dialector.Name()))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database migration completed")
	return db, nil
}

// Open connects through dialector with the gorm logger set to logLevel
// (silent, error, warn or info).
func Open(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialector.Name(), err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AutomationModels...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func isMemorySQLite(cfg *config.Config) bool {
	driver := strings.ToLower(cfg.DBDriver)
	if driver != "" && driver != "sqlite" && driver != "sqlite3" {
		return false
	}
	return cfg.DBPath == ":memory:" || strings.Contains(cfg.DBPath, "mode=memory")
}
