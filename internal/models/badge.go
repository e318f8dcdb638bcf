package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// BadgeCategory groups badges for display.
type BadgeCategory string

const (
	BadgeCategoryAttendance  BadgeCategory = "attendance"
	BadgeCategoryPayment     BadgeCategory = "payment"
	BadgeCategoryPerformance BadgeCategory = "performance"
	BadgeCategoryMilestone   BadgeCategory = "milestone"
)

// ConditionOperator is the comparison applied by a badge condition.
type ConditionOperator string

const (
	OperatorEquals  ConditionOperator = "equals"
	OperatorGreater ConditionOperator = "greater"
	OperatorLess    ConditionOperator = "less"
	OperatorStreak  ConditionOperator = "streak"
)

// Timeframe bounds the data window of a condition.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeYearly  Timeframe = "yearly"
	TimeframeAllTime Timeframe = "all_time"
)

// BadgeCondition is the single rule a badge is earned by. Threshold is
// stored as "value" in the requirement JSON.
type BadgeCondition struct {
	Type      BadgeCategory     `json:"type" validate:"required,oneof=attendance payment performance milestone"`
	Operator  ConditionOperator `json:"operator" validate:"required,oneof=equals greater less streak"`
	Threshold float64           `json:"value"`
	Timeframe Timeframe         `json:"timeframe,omitempty" validate:"omitempty,oneof=daily weekly monthly yearly all_time"`
}

// Value implements driver.Valuer.
func (c BadgeCondition) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *BadgeCondition) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// Badge is an earnable recognition.
type Badge struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Icon        string         `db:"icon" json:"icon"`
	Color       string         `db:"color" json:"color"`
	Category    BadgeCategory  `db:"category" json:"category"`
	Requirement BadgeCondition `db:"requirement" json:"requirement"`
	Points      int            `db:"points" json:"points"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentBadge records a badge earned by a student.
type StudentBadge struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	BadgeID     string    `db:"badge_id" json:"badge_id"`
	EarnedAt    time.Time `db:"earned_at" json:"earned_at"`
	Progress    JSONMap   `db:"progress" json:"progress,omitempty"`
	IsDisplayed bool      `db:"is_displayed" json:"is_displayed"`
}

// EarnedBadge joins a student badge with its definition for profile views.
type EarnedBadge struct {
	StudentBadge
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	Icon        string        `db:"icon" json:"icon"`
	Color       string        `db:"color" json:"color"`
	Category    BadgeCategory `db:"category" json:"category"`
	Points      int           `db:"points" json:"points"`
}
