package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whatsapp-group-automation/internal/models"
)

func TestCopyAutomationData(t *testing.T) {
	src := newTestDB(t)
	dst := newTestDB(t)
	ctx := context.Background()

	rule := createRule(t, src, models.AutomationRule{Name: "r", IsActive: true, Priority: 3})
	key := rule.ID + ":p@c.us"
	require.NoError(t, src.Create(&models.CollectedData{RuleID: rule.ID, ParticipantJID: "p@c.us", CapturedData: `{"raw":"1"}`, DedupeKey: &key}).Error)
	require.NoError(t, src.Create(&models.CollectedData{RuleID: rule.ID, ParticipantJID: "q@c.us", CapturedData: `{"raw":"2"}`}).Error)
	require.NoError(t, src.Create(&models.AutomationLog{RuleID: rule.ID, CompanyID: "C", Success: true}).Error)

	counts, err := CopyAutomationData(ctx, src, dst, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"automation_rules": 1, "collected_data": 2, "automation_logs": 1}, counts)

	var copied models.AutomationRule
	require.NoError(t, dst.First(&copied, "id = ?", rule.ID).Error)
	assert.Equal(t, 3, copied.Priority)
	assert.True(t, copied.IsActive)

	var data []models.CollectedData
	require.NoError(t, dst.Order("id ASC").Find(&data).Error)
	require.Len(t, data, 2)
	require.NotNil(t, data[0].DedupeKey)
	assert.Equal(t, key, *data[0].DedupeKey)

	// a second run leaves existing rows alone
	_, err = CopyAutomationData(ctx, src, dst, zap.NewNop())
	require.NoError(t, err)
	var total int64
	dst.Model(&models.CollectedData{}).Count(&total)
	assert.Equal(t, int64(2), total)
}

func TestCopyAutomationData_EmptySource(t *testing.T) {
	counts, err := CopyAutomationData(context.Background(), newTestDB(t), newTestDB(t), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, counts["automation_rules"])
}
