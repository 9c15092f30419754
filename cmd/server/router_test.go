package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/database"
	"whatsapp-group-automation/internal/ws"
)

func TestRouter_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.Open(sqlite.Open(":memory:"), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{VerifyToken: "tok", MaxPatternLength: automation.DefaultMaxPatternLength}
	engine := automation.NewEngine(database.NewAutomationStore(db), zap.NewNop())
	hub := ws.NewHub(zap.NewNop())
	r := newRouter(cfg, db, engine, hub, zap.NewNop())

	do := func(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range header {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodPost, "/api/companies/C/automation/rules", `{
		"name": "Bolão",
		"group_remote_jid": "120@g.us",
		"capture_pattern": "\\d+",
		"action_type": "collect_data",
		"action_config": {"dataType": "lottery_numbers", "replyTemplate": "Got {{numbers}}"},
		"should_reply": true,
		"reply_only_once": true,
		"skip_ai_after": true
	}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	event := `{
		"instanceName": "inst1",
		"groupName": "Bolão",
		"event": {
			"Info": {"ID": "m1", "Sender": "5511999:3@s.whatsapp.net", "Chat": "120@g.us", "PushName": "Ana"},
			"Message": {"conversation": "my picks: 4 8 15 16 23 42"}
		}
	}`

	w = do(http.MethodPost, "/webhook/C/group", event, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/webhook/C/group", event, map[string]string{"X-Webhook-Token": "tok"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"response":"Got 4 - 8 - 15 - 16 - 23 - 42"`)
	assert.Contains(t, w.Body.String(), `"skipAi":true`)

	w = do(http.MethodGet, "/api/companies/C/automation/analytics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"collected_data":1`)
	assert.Contains(t, w.Body.String(), `"successful_executions":1`)

	w = do(http.MethodOptions, "/api/companies/C/automation/rules", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
