package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-group-automation/internal/models"
)

const copyBatchSize = 500

// SerialTables have integer ids backed by a postgres sequence
var SerialTables = []string{"collected_data", "automation_logs"}

// CopyAutomationData copies the automation tables from src into dst, one
// transaction per table. Rows already present in dst are left untouched,
// so the copy can be re-run. It returns the number of rows read per table.
func CopyAutomationData(ctx context.Context, src, dst *gorm.DB, logger *zap.Logger) (map[string]int, error) {
	counts := make(map[string]int, 3)

	steps := []struct {
		table string
		copy  func() (int, error)
	}{
		{"automation_rules", func() (int, error) { return copyTable[models.AutomationRule](ctx, src, dst) }},
		{"collected_data", func() (int, error) { return copyTable[models.CollectedData](ctx, src, dst) }},
		{"automation_logs", func() (int, error) { return copyTable[models.AutomationLog](ctx, src, dst) }},
	}

	for _, step := range steps {
		logger.Info("Migrating table", zap.String("table", step.table))
		n, err := step.copy()
		if err != nil {
			return counts, fmt.Errorf("failed to migrate %s: %w", step.table, err)
		}
		counts[step.table] = n
		logger.Info("Successfully migrated table", zap.String("table", step.table), zap.Int("rows", n))
	}
	return counts, nil
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB) (int, error) {
	var rows []T
	if err := src.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, copyBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return len(rows), nil
}

// SyncSequences moves each postgres id sequence past the largest copied id
func SyncSequences(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	var failed []string
	for _, table := range SerialTables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.WithContext(ctx).Exec(query).Error; err != nil {
			logger.Error("Error syncing sequence", zap.String("table", table), zap.Error(err))
			failed = append(failed, table)
			continue
		}
		logger.Info("Successfully synced sequence", zap.String("table", table))
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to sync sequences for %v", failed)
	}
	return nil
}
