package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationRule represents a group automation trigger owned by a company
type AutomationRule struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CompanyID      string     `gorm:"type:varchar(64);not null;index:idx_rules_company_active,priority:1" json:"company_id"`
	Name           string     `gorm:"type:varchar(255);not null" json:"name"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	GroupRemoteJID string     `gorm:"column:group_remote_jid;type:varchar(128)" json:"group_remote_jid,omitempty"`
	GroupNameMatch string     `gorm:"type:varchar(512)" json:"group_name_match,omitempty"`
	CapturePattern string     `gorm:"type:text" json:"capture_pattern,omitempty"`
	ActionType     string     `gorm:"type:varchar(32);not null" json:"action_type"`
	ActionConfig   string     `gorm:"type:text" json:"action_config"` // JSON, shape depends on ActionType
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Priority       int        `gorm:"not null;default:0" json:"priority"`
	ShouldReply    bool       `gorm:"not null" json:"should_reply"`
	ReplyOnlyOnce  bool       `gorm:"not null" json:"reply_only_once"`
	SkipAIAfter    bool       `gorm:"column:skip_ai_after;not null" json:"skip_ai_after"`
	IsActive       bool       `gorm:"not null;index:idx_rules_company_active,priority:2" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutomationRule) TableName() string {
	return "automation_rules"
}

// BeforeCreate assigns a uuid when the caller did not pick one
func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps the time window in UTC so window comparisons in SQL stay ordered on every driver
func (r *AutomationRule) BeforeSave(tx *gorm.DB) error {
	if r.StartsAt != nil {
		t := r.StartsAt.UTC()
		r.StartsAt = &t
	}
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		r.ExpiresAt = &t
	}
	return nil
}

// CollectedData is one captured submission for a rule. Rows are append-only.
type CollectedData struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RuleID          string    `gorm:"type:varchar(36);not null;index:idx_collected_rule_participant,priority:1" json:"rule_id"`
	GroupRemoteJID  string    `gorm:"column:group_remote_jid;type:varchar(128)" json:"group_remote_jid"`
	ParticipantJID  string    `gorm:"column:participant_jid;type:varchar(128);not null;index:idx_collected_rule_participant,priority:2" json:"participant_jid"`
	ParticipantName string    `gorm:"type:varchar(255)" json:"participant_name,omitempty"`
	SourceMessageID string    `gorm:"type:varchar(255)" json:"source_message_id"`
	CapturedData    string    `gorm:"type:text" json:"captured_data"` // JSON object
	DedupeKey       *string   `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CollectedData) TableName() string {
	return "collected_data"
}

// AutomationLog represents a log entry for a matched rule execution
type AutomationLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RuleID         string    `gorm:"type:varchar(36);index" json:"rule_id"`
	CompanyID      string    `gorm:"type:varchar(64);index" json:"company_id"`
	GroupRemoteJID string    `gorm:"column:group_remote_jid;type:varchar(128)" json:"group_remote_jid"`
	ParticipantJID string    `gorm:"column:participant_jid;type:varchar(128)" json:"participant_jid"`
	MessageID      string    `gorm:"type:varchar(255)" json:"message_id"`
	ActionType     string    `gorm:"type:varchar(32)" json:"action_type"`
	ActionTaken    string    `gorm:"type:text" json:"action_taken"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AutomationLog) TableName() string {
	return "automation_logs"
}
