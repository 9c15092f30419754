package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/models"
)

const defaultParticipantName = "Participant"

// actionOutcome is what an executor did. failure is a non-fatal action
// error (webhook down, ...) kept for the automation log.
type actionOutcome struct {
	response string
	taken    string
	failure  error
}

// execute dispatches to the executor of the config variant. Returned errors
// come from the store only.
func (e *Engine) execute(ctx context.Context, rule *models.AutomationRule, cfg ActionConfig, msg *GroupMessage, capture Capture) (actionOutcome, error) {
	switch c := cfg.(type) {
	case *CollectDataConfig:
		return e.collectData(ctx, rule, c, msg, capture)
	case *AutoReplyConfig:
		return e.autoReply(rule, c, msg, capture), nil
	case *WebhookConfig:
		return e.webhook(ctx, rule, c, msg, capture), nil
	case *AggregateConfig:
		return e.aggregate(ctx, rule, c, msg, capture)
	case *AIProcessConfig:
		return e.aiProcess(rule, c), nil
	default:
		e.logger.Warn("Unsupported action config", zap.String("rule_id", rule.ID), zap.String("action_type", rule.ActionType))
		return actionOutcome{taken: "unsupported_action"}, nil
	}
}

func (e *Engine) collectData(ctx context.Context, rule *models.AutomationRule, cfg *CollectDataConfig, msg *GroupMessage, capture Capture) (actionOutcome, error) {
	if rule.ReplyOnlyOnce {
		existing, err := e.store.FindCollected(ctx, rule.ID, msg.ParticipantJID)
		if err != nil {
			return actionOutcome{}, fmt.Errorf("failed to check collected data: %w", err)
		}
		if existing != nil {
			return actionOutcome{taken: "duplicate_ignored"}, nil
		}
	}

	datum, err := newDatum(rule, msg, capture)
	if err != nil {
		return actionOutcome{}, err
	}
	if rule.ReplyOnlyOnce {
		key := dedupeKey(rule.ID, msg.ParticipantJID)
		datum.DedupeKey = &key
	}

	inserted, err := e.store.InsertCollected(ctx, datum)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("failed to store collected data: %w", err)
	}
	if !inserted {
		// lost a race against a concurrent submission from the same participant
		return actionOutcome{taken: "duplicate_ignored"}, nil
	}

	outcome := actionOutcome{taken: "data_collected"}
	if rule.ShouldReply {
		if cfg.ReplyTemplate != "" {
			outcome.response = Interpolate(cfg.ReplyTemplate, replyData(msg, capture, nil))
		} else {
			outcome.response = defaultCollectReply(capture)
		}
	}
	return outcome, nil
}

func defaultCollectReply(capture Capture) string {
	if numbers, ok := capture["numbers"].([]int); ok && len(numbers) > 0 {
		return "✅ Numbers registered: " + stringify(numbers)
	}
	return "✅ Data registered successfully!"
}

func (e *Engine) autoReply(rule *models.AutomationRule, cfg *AutoReplyConfig, msg *GroupMessage, capture Capture) actionOutcome {
	if !rule.ShouldReply || cfg.ReplyTemplate == "" {
		return actionOutcome{taken: "no_reply"}
	}
	return actionOutcome{
		response: Interpolate(cfg.ReplyTemplate, replyData(msg, capture, nil)),
		taken:    "auto_reply",
	}
}

type webhookPayload struct {
	RuleID          string    `json:"ruleId"`
	RuleName        string    `json:"ruleName"`
	GroupRemoteJID  string    `json:"groupRemoteJid"`
	ParticipantJID  string    `json:"participantJid"`
	ParticipantName string    `json:"participantName,omitempty"`
	MessageID       string    `json:"messageId"`
	InstanceKey     string    `json:"instanceKey,omitempty"`
	Content         string    `json:"content"`
	CapturedData    Capture   `json:"capturedData"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e *Engine) webhook(ctx context.Context, rule *models.AutomationRule, cfg *WebhookConfig, msg *GroupMessage, capture Capture) actionOutcome {
	if cfg.WebhookURL == "" {
		return actionOutcome{taken: "webhook_skipped"}
	}

	payload := webhookPayload{
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		GroupRemoteJID:  msg.GroupRemoteJID,
		ParticipantJID:  msg.ParticipantJID,
		ParticipantName: msg.ParticipantName,
		MessageID:       msg.MessageID,
		InstanceKey:     msg.InstanceKey,
		Content:         msg.Content,
		CapturedData:    capture,
		Timestamp:       e.now().UTC(),
	}

	if err := e.callWebhook(ctx, cfg, payload); err != nil {
		e.logger.Warn("Webhook call failed",
			zap.String("rule_id", rule.ID),
			zap.String("url", cfg.WebhookURL),
			zap.Error(err))
		return actionOutcome{taken: "webhook_failed", failure: err}
	}

	outcome := actionOutcome{taken: "webhook_sent"}
	if rule.ShouldReply && cfg.SuccessReply != "" {
		outcome.response = Interpolate(cfg.SuccessReply, replyData(msg, capture, nil))
	}
	return outcome
}

func (e *Engine) callWebhook(ctx context.Context, cfg *WebhookConfig, payload webhookPayload) error {
	ctx, cancel := context.WithTimeout(ctx, e.webhookTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := newJSONRequest(ctx, cfg.method(), cfg.WebhookURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if readErr != nil {
		e.logger.Debug("Failed to read webhook response body",
			zap.String("url", cfg.WebhookURL),
			zap.Int("status", resp.StatusCode),
			zap.Error(readErr))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if readErr != nil {
			return fmt.Errorf("webhook returned %s (body unreadable: %v)", resp.Status, readErr)
		}
		return fmt.Errorf("webhook returned %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (e *Engine) aggregate(ctx context.Context, rule *models.AutomationRule, cfg *AggregateConfig, msg *GroupMessage, capture Capture) (actionOutcome, error) {
	datum, err := newDatum(rule, msg, capture)
	if err != nil {
		return actionOutcome{}, err
	}
	if _, err := e.store.InsertCollected(ctx, datum); err != nil {
		return actionOutcome{}, fmt.Errorf("failed to store collected data: %w", err)
	}

	history, err := e.store.ListCollected(ctx, rule.ID)
	if err != nil {
		return actionOutcome{}, fmt.Errorf("failed to load collected data: %w", err)
	}
	totals := summarize(history, cfg.Field, e.logger)

	outcome := actionOutcome{taken: "aggregated"}
	if rule.ShouldReply && cfg.ReplyTemplate != "" {
		outcome.response = Interpolate(cfg.ReplyTemplate, replyData(msg, capture, totals))
	}
	return outcome, nil
}

// summarize computes count, uniqueParticipants and, when field is set, sum
func summarize(history []models.CollectedData, field string, logger *zap.Logger) map[string]any {
	participants := make(map[string]struct{}, len(history))
	sum := 0.0
	for _, datum := range history {
		participants[datum.ParticipantJID] = struct{}{}
		if field == "" {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(datum.CapturedData), &data); err != nil {
			logger.Debug("Unreadable captured data", zap.Uint("datum_id", datum.ID), zap.Error(err))
			continue
		}
		sum += toNumber(data[field])
	}

	totals := map[string]any{
		"count":              len(history),
		"uniqueParticipants": len(participants),
	}
	if field != "" {
		totals["sum"] = sum
	}
	return totals
}

// toNumber is a best-effort numeric coercion, 0 when nothing sensible is found
func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(s), "R$"))
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func (e *Engine) aiProcess(rule *models.AutomationRule, cfg *AIProcessConfig) actionOutcome {
	if strings.TrimSpace(cfg.Prompt) == "" {
		return actionOutcome{taken: "ai_process_skipped"}
	}
	e.logger.Debug("AI processing requested; left to the caller", zap.String("rule_id", rule.ID))
	return actionOutcome{taken: "ai_process_deferred"}
}

func newDatum(rule *models.AutomationRule, msg *GroupMessage, capture Capture) (*models.CollectedData, error) {
	encoded, err := json.Marshal(capture)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	return &models.CollectedData{
		RuleID:          rule.ID,
		GroupRemoteJID:  msg.GroupRemoteJID,
		ParticipantJID:  msg.ParticipantJID,
		ParticipantName: msg.ParticipantName,
		SourceMessageID: msg.MessageID,
		CapturedData:    string(encoded),
	}, nil
}

func dedupeKey(ruleID, participantJID string) string {
	return ruleID + ":" + participantJID
}

// replyData layers participantName, then extra, then the capture
func replyData(msg *GroupMessage, capture Capture, extra map[string]any) map[string]any {
	name := msg.ParticipantName
	if name == "" {
		name = defaultParticipantName
	}
	data := make(map[string]any, len(capture)+len(extra)+1)
	data["participantName"] = name
	for k, v := range extra {
		data[k] = v
	}
	for k, v := range capture {
		data[k] = v
	}
	return data
}

func newJSONRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
