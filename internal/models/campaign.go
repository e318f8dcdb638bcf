package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// CampaignType classifies the campaign purpose.
type CampaignType string

const (
	CampaignWelcome            CampaignType = "welcome"
	CampaignFeeReminder        CampaignType = "fee_reminder"
	CampaignAttendanceFollowup CampaignType = "attendance_followup"
	CampaignBirthday           CampaignType = "birthday"
	CampaignEvent              CampaignType = "event"
	CampaignCustom             CampaignType = "custom"
)

// CampaignStatus is the admin-controlled lifecycle state.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// CampaignTrigger decides how a campaign is started.
type CampaignTrigger string

const (
	TriggerManual    CampaignTrigger = "manual"
	TriggerAutomated CampaignTrigger = "automated"
	TriggerScheduled CampaignTrigger = "scheduled"
)

// Automation rule types understood by the scheduler.
const (
	RuleFeeReminder        = "fee_reminder"
	RuleWelcomeMessage     = "welcome_message"
	RuleAttendanceFollowup = "attendance_followup"
	RuleBirthdayWishes     = "birthday_wishes"
)

// MessageTemplate is the text sent to each recipient.
type MessageTemplate struct {
	Text      string   `json:"text" validate:"required"`
	Variables []string `json:"variables,omitempty"`
}

// Value implements driver.Valuer.
func (t MessageTemplate) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *MessageTemplate) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// AutomationRules parameterises an automated campaign.
type AutomationRules struct {
	Type       string                 `json:"type"`
	Conditions map[string]interface{} `json:"conditions,omitempty"`
	Actions    []string               `json:"actions,omitempty"`
}

// Value implements driver.Valuer.
func (r AutomationRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *AutomationRules) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// IntCondition reads a numeric condition, falling back to def when absent
// or not a positive number.
func (r AutomationRules) IntCondition(key string, def int) int {
	raw, ok := r.Conditions[key]
	if !ok {
		return def
	}
	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return def
		}
		n = int(parsed)
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

// CampaignAnalytics aggregates dispatch outcomes.
type CampaignAnalytics struct {
	Sent      int `db:"sent_count" json:"sent"`
	Delivered int `db:"delivered_count" json:"delivered"`
	Read      int `db:"read_count" json:"read"`
	Failed    int `db:"failed_count" json:"failed"`
}

// Campaign is a templated messaging rule.
type Campaign struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	Type            CampaignType    `db:"type" json:"type"`
	Status          CampaignStatus  `db:"status" json:"status"`
	Trigger         CampaignTrigger `db:"trigger" json:"trigger"`
	TargetAudience  JSONMap         `db:"target_audience" json:"target_audience,omitempty"`
	MessageTemplate MessageTemplate `db:"message_template" json:"message_template"`
	AutomationRules AutomationRules `db:"automation_rules" json:"automation_rules"`

	CampaignAnalytics `json:"analytics"`

	LastRunAt *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Automated reports whether the scheduler should install a timer.
func (c Campaign) Automated() bool {
	return c.Status == CampaignActive && c.Trigger == TriggerAutomated
}

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	Status  CampaignStatus
	Trigger CampaignTrigger
	Type    CampaignType
}

// MessageStatus tracks one dispatch attempt.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// CampaignMessage is the audit row of one dispatch attempt.
type CampaignMessage struct {
	ID             string        `db:"id" json:"id"`
	CampaignID     string        `db:"campaign_id" json:"campaign_id"`
	Recipient      string        `db:"recipient" json:"recipient"`
	StudentID      *string       `db:"student_id" json:"student_id,omitempty"`
	OccurrenceKey  string        `db:"occurrence_key" json:"occurrence_key,omitempty"`
	MessageContent string        `db:"message_content" json:"message_content"`
	Status         MessageStatus `db:"status" json:"status"`
	ExternalID     *string       `db:"external_id" json:"external_id,omitempty"`
	ErrorMessage   *string       `db:"error_message" json:"error_message,omitempty"`
	SentAt         *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt    *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// AutomationStatus reports an installed campaign timer.
type AutomationStatus struct {
	CampaignID  string        `json:"campaign_id"`
	RuleType    string        `json:"rule_type"`
	Interval    time.Duration `json:"interval"`
	InstalledAt time.Time     `json:"installed_at"`
	LastTickAt  *time.Time    `json:"last_tick_at,omitempty"`
}
