package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"whatsapp-group-automation/internal/models"
)

// ErrInvalidRule is wrapped by every validation failure
var ErrInvalidRule = errors.New("invalid automation rule")

type ActionType string

const (
	ActionCollectData ActionType = "collect_data"
	ActionAutoReply   ActionType = "auto_reply"
	ActionWebhook     ActionType = "webhook"
	ActionAggregate   ActionType = "aggregate"
	ActionAIProcess   ActionType = "ai_process"
)

// DataType selects the specialized extraction applied on top of the raw capture
type DataType string

const (
	DataTypeNone           DataType = ""
	DataTypeText           DataType = "text"
	DataTypeLotteryNumbers DataType = "lottery_numbers"
	DataTypeMoney          DataType = "money"
)

type AggregateOperation string

const (
	AggregateCount AggregateOperation = "count"
	AggregateSum   AggregateOperation = "sum"
)

// ActionConfig is the typed configuration of a rule. The set of
// implementations is closed: one struct per ActionType.
type ActionConfig interface {
	Type() ActionType
	Capture() DataType
	validate() error
}

// CaptureConfig is shared by every action: it drives the Capture Extractor.
type CaptureConfig struct {
	DataType DataType `json:"dataType,omitempty" yaml:"dataType,omitempty"`
}

func (c CaptureConfig) Capture() DataType { return c.DataType }

func (c CaptureConfig) validate() error {
	switch c.DataType {
	case DataTypeNone, DataTypeText, DataTypeLotteryNumbers, DataTypeMoney:
		return nil
	}
	return fmt.Errorf("unknown dataType %q", c.DataType)
}

type CollectDataConfig struct {
	CaptureConfig
	ReplyTemplate string `json:"replyTemplate,omitempty" yaml:"replyTemplate,omitempty"`
}

func (CollectDataConfig) Type() ActionType { return ActionCollectData }

type AutoReplyConfig struct {
	CaptureConfig
	ReplyTemplate string `json:"replyTemplate,omitempty" yaml:"replyTemplate,omitempty"`
}

func (AutoReplyConfig) Type() ActionType { return ActionAutoReply }

type WebhookConfig struct {
	CaptureConfig
	WebhookURL   string            `json:"webhookUrl,omitempty" yaml:"webhookUrl,omitempty"`
	Method       string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	SuccessReply string            `json:"successReply,omitempty" yaml:"successReply,omitempty"`
}

func (WebhookConfig) Type() ActionType { return ActionWebhook }

func (c WebhookConfig) validate() error {
	if err := c.CaptureConfig.validate(); err != nil {
		return err
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhookUrl %q must be an absolute http(s) URL", c.WebhookURL)
		}
	}
	switch strings.ToUpper(c.Method) {
	case "", http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodGet, http.MethodDelete:
		return nil
	}
	return fmt.Errorf("unsupported webhook method %q", c.Method)
}

// method returns the configured verb, POST when unset
func (c WebhookConfig) method() string {
	if c.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(c.Method)
}

type AggregateConfig struct {
	CaptureConfig
	Operation     AggregateOperation `json:"operation,omitempty" yaml:"operation,omitempty"`
	Field         string             `json:"field,omitempty" yaml:"field,omitempty"`
	ReplyTemplate string             `json:"replyTemplate,omitempty" yaml:"replyTemplate,omitempty"`
}

func (AggregateConfig) Type() ActionType { return ActionAggregate }

func (c AggregateConfig) validate() error {
	if err := c.CaptureConfig.validate(); err != nil {
		return err
	}
	switch c.Operation {
	case "", AggregateCount:
		return nil
	case AggregateSum:
		if c.Field == "" {
			return errors.New("aggregate operation sum requires a field")
		}
		return nil
	}
	return fmt.Errorf("unknown aggregate operation %q", c.Operation)
}

type AIProcessConfig struct {
	CaptureConfig
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

func (AIProcessConfig) Type() ActionType { return ActionAIProcess }

func (c AIProcessConfig) validate() error {
	if err := c.CaptureConfig.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Prompt) == "" {
		return errors.New("ai_process requires a prompt")
	}
	return nil
}

// ParseActionConfig decodes the stored JSON config for the given action type.
// Unknown action types and malformed JSON are rejected.
func ParseActionConfig(actionType string, raw string) (ActionConfig, error) {
	var cfg ActionConfig
	switch ActionType(actionType) {
	case ActionCollectData:
		cfg = &CollectDataConfig{}
	case ActionAutoReply:
		cfg = &AutoReplyConfig{}
	case ActionWebhook:
		cfg = &WebhookConfig{}
	case ActionAggregate:
		cfg = &AggregateConfig{}
	case ActionAIProcess:
		cfg = &AIProcessConfig{}
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, actionType)
	}

	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil, fmt.Errorf("%w: action config: %v", ErrInvalidRule, err)
		}
	}
	return cfg, nil
}

// EncodeActionConfig serializes a typed config for storage
func EncodeActionConfig(cfg ActionConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ValidateRule checks a rule before it is stored: config shape, capture
// pattern syntax and time window. Group name patterns are not rejected
// because selection falls back to substring matching.
func ValidateRule(rule *models.AutomationRule, maxPatternLength int) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.CompanyID) == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidRule)
	}

	cfg, err := ParseActionConfig(rule.ActionType, rule.ActionConfig)
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if rule.CapturePattern != "" {
		if maxPatternLength > 0 && len(rule.CapturePattern) > maxPatternLength {
			return fmt.Errorf("%w: capture pattern longer than %d characters", ErrInvalidRule, maxPatternLength)
		}
		if _, err := regexp.Compile("(?i)" + rule.CapturePattern); err != nil {
			return fmt.Errorf("%w: capture pattern: %v", ErrInvalidRule, err)
		}
	}

	if rule.StartsAt != nil && rule.ExpiresAt != nil && !rule.ExpiresAt.After(*rule.StartsAt) {
		return fmt.Errorf("%w: expires_at must be after starts_at", ErrInvalidRule)
	}
	return nil
}
