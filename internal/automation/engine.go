package automation

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"whatsapp-group-automation/internal/models"
)

const DefaultWebhookTimeout = 10 * time.Second

// HTTPDoer is the outbound client used by webhook actions
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Engine matches inbound group messages against automation rules and runs
// the action of the first rule that applies. It keeps no state between
// messages and is safe for concurrent use.
type Engine struct {
	store          Store
	logger         *zap.Logger
	httpClient     HTTPDoer
	webhookTimeout time.Duration
	matcher        Matcher
	now            func() time.Time
}

type Option func(*Engine)

func WithHTTPClient(client HTTPDoer) Option {
	return func(e *Engine) { e.httpClient = client }
}

func WithWebhookTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.webhookTimeout = timeout
		}
	}
}

func WithMatcher(m Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithClock overrides time.Now, used to evaluate rule time windows
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:          store,
		logger:         logger,
		webhookTimeout: DefaultWebhookTimeout,
		matcher:        DefaultMatcher(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: e.webhookTimeout}
	}
	return e
}

// GroupMessage is an inbound group chat message as seen by the engine
type GroupMessage struct {
	CompanyID       string
	GroupRemoteJID  string
	GroupName       string
	ParticipantJID  string
	ParticipantName string
	Content         string
	MessageID       string
	InstanceKey     string
}

// MatchResult tells the caller what happened to a message. The caller
// decides whether to send Response and whether to run the AI responder.
type MatchResult struct {
	Matched      bool                   `json:"matched"`
	Rule         *models.AutomationRule `json:"rule,omitempty"`
	CapturedData Capture                `json:"capturedData,omitempty"`
	Response     string                 `json:"response,omitempty"`
	SkipAI       bool                   `json:"skipAi"`
}

// ProcessMessage runs one message through the company's rules. The first
// matching rule wins; lower priority rules never see the message.
// Only store failures are returned as errors.
func (e *Engine) ProcessMessage(ctx context.Context, msg GroupMessage) (*MatchResult, error) {
	candidates, err := e.SelectCandidates(ctx, msg.CompanyID, msg.GroupRemoteJID, msg.GroupName, e.now())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &MatchResult{}, nil
	}

	for i := range candidates {
		rule := &candidates[i]

		cfg, err := ParseActionConfig(rule.ActionType, rule.ActionConfig)
		if err != nil {
			e.logger.Warn("Skipping rule with unusable config",
				zap.String("rule_id", rule.ID),
				zap.String("action_type", rule.ActionType),
				zap.Error(err))
			continue
		}

		capture, ok, err := e.matcher.Extract(msg.Content, rule.CapturePattern, cfg.Capture())
		if err != nil {
			e.logger.Warn("Capture pattern rejected",
				zap.String("rule_id", rule.ID),
				zap.String("pattern", rule.CapturePattern),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		e.logger.Info("Rule matched",
			zap.String("rule_id", rule.ID),
			zap.String("rule", rule.Name),
			zap.String("group", msg.GroupRemoteJID),
			zap.String("participant", msg.ParticipantJID))

		outcome, err := e.execute(ctx, rule, cfg, &msg, capture)
		if err != nil {
			return nil, err
		}
		e.logExecution(ctx, rule, &msg, outcome)

		return &MatchResult{
			Matched:      true,
			Rule:         rule,
			CapturedData: capture,
			Response:     outcome.response,
			SkipAI:       rule.SkipAIAfter,
		}, nil
	}

	return &MatchResult{}, nil
}

func (e *Engine) logExecution(ctx context.Context, rule *models.AutomationRule, msg *GroupMessage, outcome actionOutcome) {
	entry := &models.AutomationLog{
		RuleID:         rule.ID,
		CompanyID:      msg.CompanyID,
		GroupRemoteJID: msg.GroupRemoteJID,
		ParticipantJID: msg.ParticipantJID,
		MessageID:      msg.MessageID,
		ActionType:     rule.ActionType,
		ActionTaken:    outcome.taken,
		Success:        outcome.failure == nil,
	}
	if outcome.failure != nil {
		entry.ErrorMessage = outcome.failure.Error()
	}
	if err := e.store.LogExecution(ctx, entry); err != nil {
		e.logger.Warn("Failed to write automation log", zap.String("rule_id", rule.ID), zap.Error(err))
	}
}
