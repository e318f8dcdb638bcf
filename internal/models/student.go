package models

import "time"

// SkillLevel is the coach-assessed level of a student.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Rank maps a skill level onto 1..4; unknown levels rank 0.
func (s SkillLevel) Rank() int {
	switch s {
	case SkillBeginner:
		return 1
	case SkillIntermediate:
		return 2
	case SkillAdvanced:
		return 3
	case SkillExpert:
		return 4
	default:
		return 0
	}
}

// Student represents an enrolled academy student with sport/batch context.
type Student struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Phone       string     `db:"phone" json:"phone"`
	Email       *string    `db:"email" json:"email,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	JoiningDate time.Time  `db:"joining_date" json:"joining_date"`
	SportID     *string    `db:"sport_id" json:"sport_id,omitempty"`
	SportName   *string    `db:"sport_name" json:"sport_name,omitempty"`
	BatchID     *string    `db:"batch_id" json:"batch_id,omitempty"`
	BatchName   *string    `db:"batch_name" json:"batch_name,omitempty"`
	SkillLevel  SkillLevel `db:"skill_level" json:"skill_level"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// SportLabel returns the sport name or an empty string.
func (s Student) SportLabel() string {
	if s.SportName == nil {
		return ""
	}
	return *s.SportName
}

// BatchLabel returns the batch name or an empty string.
func (s Student) BatchLabel() string {
	if s.BatchName == nil {
		return ""
	}
	return *s.BatchName
}
