package automation

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/models"
)

// SelectCandidates returns the rules that may apply to a message in the
// given group at now, highest priority first. It never writes.
func (e *Engine) SelectCandidates(ctx context.Context, companyID, groupJID, groupName string, now time.Time) ([]models.AutomationRule, error) {
	rules, err := e.store.ActiveRules(ctx, companyID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation rules: %w", err)
	}

	candidates := make([]models.AutomationRule, 0, len(rules))
	for _, rule := range rules {
		if !inWindow(&rule, now) {
			continue
		}
		if !e.targets(&rule, groupJID, groupName) {
			continue
		}
		candidates = append(candidates, rule)
	}

	slices.SortStableFunc(candidates, func(a, b models.AutomationRule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return candidates, nil
}

// inWindow: starts_at is inclusive, expires_at exclusive
func inWindow(rule *models.AutomationRule, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
		return false
	}
	if rule.ExpiresAt != nil && !now.Before(*rule.ExpiresAt) {
		return false
	}
	return true
}

// targets reports whether the rule is aimed at the group. An exact JID,
// when set, is the only test applied.
func (e *Engine) targets(rule *models.AutomationRule, groupJID, groupName string) bool {
	if rule.GroupRemoteJID != "" {
		return rule.GroupRemoteJID == groupJID
	}
	if rule.GroupNameMatch == "" {
		return false
	}

	re, err := e.matcher.Compile(rule.GroupNameMatch)
	if err != nil {
		e.logger.Debug("Group name pattern does not compile, using substring match",
			zap.String("rule_id", rule.ID),
			zap.String("pattern", rule.GroupNameMatch),
			zap.Error(err))
		return strings.Contains(strings.ToLower(groupName), strings.ToLower(rule.GroupNameMatch))
	}
	return re.MatchString(e.matcher.clip(groupName))
}
