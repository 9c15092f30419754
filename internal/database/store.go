package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/models"
)

var _ automation.Store = (*AutomationStore)(nil)

// AutomationStore is the gorm backed store used by the automation engine
type AutomationStore struct {
	db *gorm.DB
}

func NewAutomationStore(db *gorm.DB) *AutomationStore {
	return &AutomationStore{db: db}
}

// ActiveRules prefilters the company's rules in SQL. Window bounds are
// stored in UTC; the engine re-checks the window in Go.
func (s *AutomationStore) ActiveRules(ctx context.Context, companyID string, now time.Time) ([]models.AutomationRule, error) {
	now = now.UTC()

	var rules []models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// InsertCollected relies on the unique dedupe_key index: a second insert
// with the same key is dropped and reports inserted false.
func (s *AutomationStore) InsertCollected(ctx context.Context, datum *models.CollectedData) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(datum)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *AutomationStore) FindCollected(ctx context.Context, ruleID, participantJID string) (*models.CollectedData, error) {
	var datum models.CollectedData
	err := s.db.WithContext(ctx).
		Where("rule_id = ? AND participant_jid = ?", ruleID, participantJID).
		Order("id ASC").
		First(&datum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &datum, nil
}

func (s *AutomationStore) ListCollected(ctx context.Context, ruleID string) ([]models.CollectedData, error) {
	var data []models.CollectedData
	if err := s.db.WithContext(ctx).Where("rule_id = ?", ruleID).Order("id ASC").Find(&data).Error; err != nil {
		return nil, err
	}
	return data, nil
}

func (s *AutomationStore) LogExecution(ctx context.Context, entry *models.AutomationLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
