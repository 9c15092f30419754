package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T) (*Hub, string, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/companies/:companyId/automation", hub.ServeWs)
	srv := httptest.NewServer(r)

	stop := func() {
		cancel()
		<-hub.done
		srv.Close()
	}
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), stop
}

func dial(t *testing.T, hub *Hub, base, companyID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/companies/"+companyID+"/automation", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ConnectedClients(companyID) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHub_PublishReachesOnlyTheCompany(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, base, stop := startHub(t)
	defer stop()

	connC := dial(t, hub, base, "C")
	defer connC.Close()

	hub.Publish("D", EventRuleMatched, map[string]any{"ruleId": "other"})
	hub.Publish("C", EventRuleMatched, map[string]any{"ruleId": "r1"})

	connC.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := connC.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type      string         `json:"type"`
		CompanyID string         `json:"companyId"`
		Data      map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventRuleMatched, event.Type)
	assert.Equal(t, "C", event.CompanyID)
	assert.Equal(t, "r1", event.Data["ruleId"])
}

func TestHub_ClientDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, base, stop := startHub(t)
	defer stop()

	conn := dial(t, hub, base, "C")
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ConnectedClients("C") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, base, stop := startHub(t)
	conn := dial(t, hub, base, "C")
	defer conn.Close()

	stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, hub.ConnectedClients("C"))
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < broadcastQueue+10; i++ {
		hub.Publish("C", EventRuleMatched, i)
	}
	assert.Len(t, hub.broadcast, broadcastQueue)
}
