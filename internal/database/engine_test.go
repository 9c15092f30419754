package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/models"
)

func TestEngineWithStore_LotteryScenario(t *testing.T) {
	db := newTestDB(t)
	rule := createRule(t, db, models.AutomationRule{
		Name:           "Bolão",
		GroupRemoteJID: "120@g.us",
		CapturePattern: `\d+`,
		ActionType:     "collect_data",
		ActionConfig:   `{"dataType":"lottery_numbers","replyTemplate":"Got {{numbers}}"}`,
		ShouldReply:    true,
		ReplyOnlyOnce:  true,
		IsActive:       true,
	})

	engine := automation.NewEngine(NewAutomationStore(db), nil)
	msg := automation.GroupMessage{
		CompanyID:       "C",
		GroupRemoteJID:  "120@g.us",
		GroupName:       "Bolão",
		ParticipantJID:  "5511999@c.us",
		ParticipantName: "Ana",
		Content:         "my picks: 4 8 15 16 23 42",
		MessageID:       "m1",
		InstanceKey:     "inst1",
	}

	result, err := engine.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "Got 4 - 8 - 15 - 16 - 23 - 42", result.Response)
	assert.False(t, result.SkipAI)

	msg.MessageID = "m2"
	result, err = engine.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Empty(t, result.Response)

	var count int64
	require.NoError(t, db.Model(&models.CollectedData{}).Where("rule_id = ?", rule.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEngineWithStore_NoMatchWritesNothing(t *testing.T) {
	db := newTestDB(t)
	createRule(t, db, models.AutomationRule{
		Name:           "r",
		GroupRemoteJID: "120@g.us",
		CapturePattern: `\d+`,
		ActionType:     "collect_data",
		IsActive:       true,
	})
	engine := automation.NewEngine(NewAutomationStore(db), nil, automation.WithClock(func() time.Time {
		return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	}))

	result, err := engine.ProcessMessage(context.Background(), automation.GroupMessage{
		CompanyID:      "C",
		GroupRemoteJID: "999@g.us",
		ParticipantJID: "p@c.us",
		Content:        "1 2 3",
		MessageID:      "m1",
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)

	var data, logs int64
	db.Model(&models.CollectedData{}).Count(&data)
	db.Model(&models.AutomationLog{}).Count(&logs)
	assert.Zero(t, data)
	assert.Zero(t, logs)
}
