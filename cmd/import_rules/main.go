package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/database"
	"whatsapp-group-automation/internal/logging"
	"whatsapp-group-automation/internal/ruleimport"
)

func main() {
	file := flag.String("file", "rules.yaml", "YAML file with rule definitions")
	company := flag.String("company", "", "company the rules belong to")
	flag.Parse()

	if *company == "" {
		log.Fatal("-company is required")
	}

	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("Failed to open rules file", zap.String("file", *file), zap.Error(err))
	}
	defer f.Close()

	defs, err := ruleimport.Parse(f)
	if err != nil {
		logger.Fatal("Failed to parse rules file", zap.Error(err))
	}

	db, err := database.InitGorm(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	result, err := ruleimport.Import(context.Background(), db, *company, defs, cfg.MaxPatternLength)
	if err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}
	logger.Info("Rules imported",
		zap.String("company_id", *company),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))
}
