package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"whatsapp-group-automation/internal/automation"
	"whatsapp-group-automation/internal/models"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type AutomationHandler struct {
	DB               *gorm.DB
	MaxPatternLength int
}

func NewAutomationHandler(db *gorm.DB, maxPatternLength int) *AutomationHandler {
	return &AutomationHandler{DB: db, MaxPatternLength: maxPatternLength}
}

// RegisterRoutes mounts the company scoped automation endpoints on group
func (h *AutomationHandler) RegisterRoutes(group *gin.RouterGroup) {
	rules := group.Group("/companies/:companyId/automation")
	rules.GET("/rules", h.GetRules)
	rules.POST("/rules", h.CreateRule)
	rules.GET("/rules/:id", h.GetRule)
	rules.PUT("/rules/:id", h.UpdateRule)
	rules.DELETE("/rules/:id", h.DeleteRule)
	rules.POST("/rules/:id/toggle", h.ToggleRule)
	rules.GET("/rules/:id/data", h.GetRuleData)
	rules.GET("/logs", h.GetLogs)
	rules.GET("/analytics", h.GetAnalytics)
}

// RuleRequest is the body of create and update calls. Update only applies
// the fields that are present.
type RuleRequest struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	GroupRemoteJID *string         `json:"group_remote_jid"`
	GroupNameMatch *string         `json:"group_name_match"`
	CapturePattern *string         `json:"capture_pattern"`
	ActionType     *string         `json:"action_type"`
	ActionConfig   json.RawMessage `json:"action_config"`
	StartsAt       OptionalTime    `json:"starts_at"`
	ExpiresAt      OptionalTime    `json:"expires_at"`
	Priority       *int            `json:"priority"`
	ShouldReply    *bool           `json:"should_reply"`
	ReplyOnlyOnce  *bool           `json:"reply_only_once"`
	SkipAIAfter    *bool           `json:"skip_ai_after"`
	IsActive       *bool           `json:"is_active"`
}

// Apply copies the present fields onto rule
func (r *RuleRequest) Apply(rule *models.AutomationRule) {
	setString(&rule.Name, r.Name)
	setString(&rule.Description, r.Description)
	setString(&rule.GroupRemoteJID, r.GroupRemoteJID)
	setString(&rule.GroupNameMatch, r.GroupNameMatch)
	setString(&rule.CapturePattern, r.CapturePattern)
	setString(&rule.ActionType, r.ActionType)
	if len(r.ActionConfig) > 0 && string(r.ActionConfig) != "null" {
		rule.ActionConfig = string(r.ActionConfig)
	}
	r.StartsAt.apply(&rule.StartsAt)
	r.ExpiresAt.apply(&rule.ExpiresAt)
	if r.Priority != nil {
		rule.Priority = *r.Priority
	}
	setBool(&rule.ShouldReply, r.ShouldReply)
	setBool(&rule.ReplyOnlyOnce, r.ReplyOnlyOnce)
	setBool(&rule.SkipAIAfter, r.SkipAIAfter)
	setBool(&rule.IsActive, r.IsActive)
}

// OptionalTime tells an absent field apart from an explicit null, which
// clears the window bound.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func (o OptionalTime) apply(dst **time.Time) {
	if o.Set {
		*dst = o.Value
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (h *AutomationHandler) findRule(c *gin.Context) (*models.AutomationRule, bool) {
	var rule models.AutomationRule
	err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ?", c.Param("id"), c.Param("companyId")).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return &rule, true
}

func (h *AutomationHandler) validate(c *gin.Context, rule *models.AutomationRule) bool {
	if err := automation.ValidateRule(rule, h.MaxPatternLength); err != nil {
		if errors.Is(err, automation.ErrInvalidRule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return false
	}
	return true
}

// GetRules returns the company's rules in evaluation order
func (h *AutomationHandler) GetRules(c *gin.Context) {
	var rules []models.AutomationRule
	if err := h.DB.WithContext(c.Request.Context()).
		Where("company_id = ?", c.Param("companyId")).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rules)
}

func (h *AutomationHandler) GetRule(c *gin.Context) {
	rule, ok := h.findRule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rule)
}

// CreateRule creates a new automation rule. Rules are active unless the
// body says otherwise.
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := models.AutomationRule{
		CompanyID: c.Param("companyId"),
		IsActive:  true,
	}
	req.Apply(&rule)

	if !h.validate(c, &rule) {
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// UpdateRule updates an existing automation rule
func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	rule, ok := h.findRule(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Apply(rule)
	rule.CompanyID = c.Param("companyId")

	if !h.validate(c, rule) {
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule deletes a rule together with its collected data
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	rule, ok := h.findRule(c)
	if !ok {
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&models.CollectedData{}).Error; err != nil {
			return err
		}
		return tx.Delete(rule).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// ToggleRule sets is_active from the body, or flips it when the body is empty
func (h *AutomationHandler) ToggleRule(c *gin.Context) {
	rule, ok := h.findRule(c)
	if !ok {
		return
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	active := !rule.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(rule).Update("is_active", active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": rule.ID, "is_active": active})
}

type collectedDataView struct {
	ID              uint            `json:"id"`
	ParticipantJID  string          `json:"participant_jid"`
	ParticipantName string          `json:"participant_name,omitempty"`
	GroupRemoteJID  string          `json:"group_remote_jid"`
	SourceMessageID string          `json:"source_message_id"`
	CapturedData    json.RawMessage `json:"captured_data"`
	CreatedAt       time.Time       `json:"created_at"`
}

// GetRuleData returns everything a rule has collected, oldest first
func (h *AutomationHandler) GetRuleData(c *gin.Context) {
	rule, ok := h.findRule(c)
	if !ok {
		return
	}

	var data []models.CollectedData
	if err := h.DB.WithContext(c.Request.Context()).
		Where("rule_id = ?", rule.ID).
		Order("id ASC").
		Find(&data).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]collectedDataView, 0, len(data))
	for _, d := range data {
		captured := json.RawMessage(d.CapturedData)
		if !json.Valid(captured) {
			captured = json.RawMessage("null")
		}
		views = append(views, collectedDataView{
			ID:              d.ID,
			ParticipantJID:  d.ParticipantJID,
			ParticipantName: d.ParticipantName,
			GroupRemoteJID:  d.GroupRemoteJID,
			SourceMessageID: d.SourceMessageID,
			CapturedData:    captured,
			CreatedAt:       d.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"rule_id": rule.ID, "count": len(views), "data": views})
}

// GetLogs returns the company's automation execution logs, newest first
func (h *AutomationHandler) GetLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	var logs []models.AutomationLog
	if err := h.DB.WithContext(c.Request.Context()).
		Where("company_id = ?", c.Param("companyId")).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

type Analytics struct {
	TotalRules      int64 `json:"total_rules"`
	ActiveRules     int64 `json:"active_rules"`
	TotalExecutions int64 `json:"total_executions"`
	SuccessfulExecs int64 `json:"successful_executions"`
	FailedExecs     int64 `json:"failed_executions"`
	CollectedData   int64 `json:"collected_data"`
}

// GetAnalytics returns automation counters for the company
func (h *AutomationHandler) GetAnalytics(c *gin.Context) {
	companyID := c.Param("companyId")
	db := h.DB.WithContext(c.Request.Context())

	var stats Analytics
	queries := []*gorm.DB{
		db.Model(&models.AutomationRule{}).Where("company_id = ?", companyID).Count(&stats.TotalRules),
		db.Model(&models.AutomationRule{}).Where("company_id = ? AND is_active = ?", companyID, true).Count(&stats.ActiveRules),
		db.Model(&models.AutomationLog{}).Where("company_id = ?", companyID).Count(&stats.TotalExecutions),
		db.Model(&models.AutomationLog{}).Where("company_id = ? AND success = ?", companyID, true).Count(&stats.SuccessfulExecs),
		db.Model(&models.AutomationLog{}).Where("company_id = ? AND success = ?", companyID, false).Count(&stats.FailedExecs),
		db.Model(&models.CollectedData{}).
			Joins("JOIN automation_rules ON automation_rules.id = collected_data.rule_id").
			Where("automation_rules.company_id = ?", companyID).
			Count(&stats.CollectedData),
	}
	for _, q := range queries {
		if q.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": q.Error.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}
