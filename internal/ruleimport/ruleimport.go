// Package ruleimport loads automation rule definitions from YAML files and
// upserts them by name for a company.
package ruleimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/models"
)

type File struct {
	Rules []Definition `yaml:"rules"`
}

// Definition mirrors AutomationRule with a structured action config
type Definition struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	GroupRemoteJID string         `yaml:"groupRemoteJid"`
	GroupNameMatch string         `yaml:"groupNameMatch"`
	CapturePattern string         `yaml:"capturePattern"`
	ActionType     string         `yaml:"actionType"`
	ActionConfig   map[string]any `yaml:"actionConfig"`
	StartsAt       *yamlTime      `yaml:"startsAt"`
	ExpiresAt      *yamlTime      `yaml:"expiresAt"`
	Priority       int            `yaml:"priority"`
	ShouldReply    bool           `yaml:"shouldReply"`
	ReplyOnlyOnce  bool           `yaml:"replyOnlyOnce"`
	SkipAIAfter    bool           `yaml:"skipAiAfter"`
	IsActive       *bool          `yaml:"isActive"`
}

// Parse decodes a rules file. Unknown keys are rejected so typos do not
// silently drop settings.
func Parse(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return file.Rules, nil
}

// ToModel builds the stored rule for companyID and validates it
func (d Definition) ToModel(companyID string, maxPatternLength int) (*models.AutomationRule, error) {
	config := "{}"
	if len(d.ActionConfig) > 0 {
		data, err := json.Marshal(d.ActionConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: action config: %v", automation.ErrInvalidRule, err)
		}
		config = string(data)
	}

	rule := &models.AutomationRule{
		CompanyID:      companyID,
		Name:           d.Name,
		Description:    d.Description,
		GroupRemoteJID: d.GroupRemoteJID,
		GroupNameMatch: d.GroupNameMatch,
		CapturePattern: d.CapturePattern,
		ActionType:     d.ActionType,
		ActionConfig:   config,
		StartsAt:       d.StartsAt.ptr(),
		ExpiresAt:      d.ExpiresAt.ptr(),
		Priority:       d.Priority,
		ShouldReply:    d.ShouldReply,
		ReplyOnlyOnce:  d.ReplyOnlyOnce,
		SkipAIAfter:    d.SkipAIAfter,
		IsActive:       d.IsActive == nil || *d.IsActive,
	}
	if err := automation.ValidateRule(rule, maxPatternLength); err != nil {
		return nil, fmt.Errorf("rule %q: %w", d.Name, err)
	}
	return rule, nil
}

type Result struct {
	Created int
	Updated int
}

// Import validates every definition first, then creates or updates each
// rule by (company, name) in one transaction.
func Import(ctx context.Context, db *gorm.DB, companyID string, defs []Definition, maxPatternLength int) (Result, error) {
	var result Result

	rules := make([]*models.AutomationRule, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.Name] {
			return result, fmt.Errorf("%w: duplicate rule name %q", automation.ErrInvalidRule, d.Name)
		}
		seen[d.Name] = true

		rule, err := d.ToModel(companyID, maxPatternLength)
		if err != nil {
			return result, err
		}
		rules = append(rules, rule)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result = Result{}
		for _, rule := range rules {
			var existing models.AutomationRule
			err := tx.Where("company_id = ? AND name = ?", companyID, rule.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(rule).Error; err != nil {
					return fmt.Errorf("failed to create rule %q: %w", rule.Name, err)
				}
				result.Created++
			case err != nil:
				return err
			default:
				rule.ID = existing.ID
				rule.CreatedAt = existing.CreatedAt
				if err := tx.Save(rule).Error; err != nil {
					return fmt.Errorf("failed to update rule %q: %w", rule.Name, err)
				}
				result.Updated++
			}
		}
		return nil
	})
	return result, err
}
