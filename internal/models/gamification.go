package models

import "time"

// PointsPerLevel is the experience needed to advance one level.
const PointsPerLevel = 1000

// LevelFor derives the level from accumulated experience.
func LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/PointsPerLevel + 1
}

// Gamification event types.
const (
	EventAttendanceMarked = "attendance_marked"
	EventPaymentMade      = "payment_made"
	EventMilestoneReached = "milestone_reached"
)

// Achievement history actions.
const (
	ActionBadgeEarned   = "badge_earned"
	ActionPointsAwarded = "points_awarded"
	ActionLevelUp       = "level_up"
)

// StudentPoints holds a student's running score.
type StudentPoints struct {
	StudentID        string    `db:"student_id" json:"student_id"`
	TotalPoints      int       `db:"total_points" json:"total_points"`
	ExperiencePoints int       `db:"experience_points" json:"experience_points"`
	MonthlyPoints    int       `db:"monthly_points" json:"monthly_points"`
	Level            int       `db:"level" json:"level"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// AchievementHistory is an append-only audit row.
type AchievementHistory struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	Points      int       `db:"points" json:"points"`
	Metadata    JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GamificationResult summarises the effects of one processed event.
type GamificationResult struct {
	StudentID     string  `json:"student_id"`
	EventType     string  `json:"event_type"`
	NewBadges     []Badge `json:"new_badges"`
	PointsAwarded int     `json:"points_awarded"`
	TotalPoints   int     `json:"total_points"`
	Level         int     `json:"level"`
	LeveledUp     bool    `json:"leveled_up"`
}

// StudentProfile is the gamification view of one student.
type StudentProfile struct {
	StudentID string               `json:"student_id"`
	Points    StudentPoints        `json:"points"`
	Badges    []EarnedBadge        `json:"badges"`
	History   []AchievementHistory `json:"history"`
}

// LeaderboardEntry is one ranked student.
type LeaderboardEntry struct {
	Rank        int    `db:"-" json:"rank"`
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	Level       int    `db:"level" json:"level"`
	BadgeCount  int    `db:"badge_count" json:"badge_count"`
}
