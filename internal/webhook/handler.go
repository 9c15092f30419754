package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/ws"
	"whatsapp-group-automation/pkg/models"
)

const TokenHeader = "X-Webhook-Token"

// MessageProcessor runs a group message through the automation rules
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg automation.GroupMessage) (*automation.MatchResult, error)
}

// EventPublisher receives matched results, e.g. for live dashboards
type EventPublisher interface {
	Publish(companyID, eventType string, data any)
}

type Handler struct {
	Config           *config.Config
	AutomationEngine MessageProcessor
	Events           EventPublisher
	Logger           *zap.Logger
}

// NewHandler builds the ingress handler; events may be nil
func NewHandler(cfg *config.Config, automationEngine MessageProcessor, events EventPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Config:           cfg,
		AutomationEngine: automationEngine,
		Events:           events,
		Logger:           logger,
	}
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.Config == nil || h.Config.VerifyToken == "" {
		return true
	}
	token := c.GetHeader(TokenHeader)
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.Config.VerifyToken)) == 1
}

// HandleGroupMessage evaluates one group message for the company in the
// path. It never sends the reply itself.
func (h *Handler) HandleGroupMessage(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid webhook token"})
		return
	}

	companyID := c.Param("companyId")

	var payload models.GroupMessageEvent
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Logger.Warn("Invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	info := payload.Event.Info
	if info.IsFromMe {
		c.JSON(http.StatusOK, gin.H{"matched": false, "message": "Skipped: own message"})
		return
	}
	if !info.IsGroupChat() {
		c.JSON(http.StatusOK, gin.H{"matched": false, "message": "Skipped: not a group message"})
		return
	}

	body := payload.Event.Message.Text()
	if strings.TrimSpace(body) == "" {
		c.JSON(http.StatusOK, gin.H{"matched": false, "message": "Non-text message ignored"})
		return
	}

	msg := automation.GroupMessage{
		CompanyID:       companyID,
		GroupRemoteJID:  info.Chat,
		GroupName:       payload.GroupName,
		ParticipantJID:  models.CleanJID(info.Sender),
		ParticipantName: info.PushName,
		Content:         body,
		MessageID:       info.ID,
		InstanceKey:     payload.InstanceName,
	}

	h.Logger.Debug("Group message received",
		zap.String("company_id", companyID),
		zap.String("group", msg.GroupRemoteJID),
		zap.String("participant", msg.ParticipantJID),
		zap.String("message_id", msg.MessageID))

	result, err := h.AutomationEngine.ProcessMessage(c.Request.Context(), msg)
	if err != nil {
		h.Logger.Error("Automation processing failed",
			zap.String("company_id", companyID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	out := toResult(result)
	if out.Matched && h.Events != nil {
		h.Events.Publish(companyID, ws.EventRuleMatched, matchEvent{
			GroupMessageResult: out,
			GroupRemoteJID:     msg.GroupRemoteJID,
			ParticipantJID:     msg.ParticipantJID,
			MessageID:          msg.MessageID,
		})
	}

	c.JSON(http.StatusOK, out)
}

type matchEvent struct {
	models.GroupMessageResult
	GroupRemoteJID string `json:"groupRemoteJid"`
	ParticipantJID string `json:"participantJid"`
	MessageID      string `json:"messageId"`
}

func toResult(result *automation.MatchResult) models.GroupMessageResult {
	out := models.GroupMessageResult{
		Matched:  result.Matched,
		Response: result.Response,
		SkipAI:   result.SkipAI,
	}
	if result.Rule != nil {
		out.RuleID = result.Rule.ID
		out.RuleName = result.Rule.Name
	}
	if len(result.CapturedData) > 0 {
		out.CapturedData = map[string]any(result.CapturedData)
	}
	return out
}
