package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

// ErrUnsupportedRule is returned for automation rule types with no scanner.
var ErrUnsupportedRule = errors.New("unsupported automation rule")

const (
	defaultFeeReminderDays     = 3
	defaultConsecutiveAbsences = 3
	followupWindow             = 7 * 24 * time.Hour
	welcomeWindow              = 24 * time.Hour
)

type ruleStudentReader interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
}

type rulePaymentReader interface {
	ListPending(ctx context.Context) ([]models.Payment, error)
}

type ruleAttendanceCounter interface {
	CountStatusSince(ctx context.Context, studentID string, status models.AttendanceStatus, since time.Time) (int, error)
}

// RuleIntervals sets the tick period of each automation rule.
type RuleIntervals struct {
	FeeReminder        time.Duration
	WelcomeMessage     time.Duration
	AttendanceFollowup time.Duration
	BirthdayWishes     time.Duration
}

// DefaultRuleIntervals returns the stock tick periods.
func DefaultRuleIntervals() RuleIntervals {
	return RuleIntervals{
		FeeReminder:        24 * time.Hour,
		WelcomeMessage:     time.Hour,
		AttendanceFollowup: 7 * 24 * time.Hour,
		BirthdayWishes:     24 * time.Hour,
	}
}

// Recipient is one student selected by a rule, with the template variables
// to render for them. Occurrence names the event the message is about, such
// as a payment ID, when a student can match the same rule more than once.
type Recipient struct {
	Student    models.Student
	Occurrence string
	Variables  map[string]interface{}
}

// OccurrenceKey is the dedupe identity of the recipient. It falls back to the
// student ID for rules that match a student at most once per run.
func (r Recipient) OccurrenceKey() string {
	if r.Occurrence != "" {
		return r.Occurrence
	}
	return r.Student.ID
}

// CampaignRules selects the recipients of each automation rule.
type CampaignRules struct {
	students   ruleStudentReader
	payments   rulePaymentReader
	attendance ruleAttendanceCounter
	intervals  RuleIntervals
	logger     *zap.Logger
}

// NewCampaignRules constructs the rule scanners. Zero intervals fall back to
// DefaultRuleIntervals.
func NewCampaignRules(students ruleStudentReader, payments rulePaymentReader, attendance ruleAttendanceCounter, intervals RuleIntervals, logger *zap.Logger) *CampaignRules {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultRuleIntervals()
	if intervals.FeeReminder <= 0 {
		intervals.FeeReminder = def.FeeReminder
	}
	if intervals.WelcomeMessage <= 0 {
		intervals.WelcomeMessage = def.WelcomeMessage
	}
	if intervals.AttendanceFollowup <= 0 {
		intervals.AttendanceFollowup = def.AttendanceFollowup
	}
	if intervals.BirthdayWishes <= 0 {
		intervals.BirthdayWishes = def.BirthdayWishes
	}
	return &CampaignRules{students: students, payments: payments, attendance: attendance, intervals: intervals, logger: logger}
}

// SupportedRule reports whether ruleType has a scanner.
func SupportedRule(ruleType string) bool {
	switch ruleType {
	case models.RuleFeeReminder, models.RuleWelcomeMessage, models.RuleAttendanceFollowup, models.RuleBirthdayWishes:
		return true
	}
	return false
}

// Interval returns the tick period for ruleType.
func (r *CampaignRules) Interval(ruleType string) (time.Duration, bool) {
	switch ruleType {
	case models.RuleFeeReminder:
		return r.intervals.FeeReminder, true
	case models.RuleWelcomeMessage:
		return r.intervals.WelcomeMessage, true
	case models.RuleAttendanceFollowup:
		return r.intervals.AttendanceFollowup, true
	case models.RuleBirthdayWishes:
		return r.intervals.BirthdayWishes, true
	}
	return 0, false
}

// Candidates runs the campaign's rule at now. Failures loading a single
// student are logged and that student is skipped.
func (r *CampaignRules) Candidates(ctx context.Context, campaign models.Campaign, now time.Time) ([]Recipient, error) {
	rules := campaign.AutomationRules
	switch rules.Type {
	case models.RuleFeeReminder:
		return r.feeReminders(ctx, campaign.ID, rules.IntCondition("daysBefore", defaultFeeReminderDays), now)
	case models.RuleWelcomeMessage:
		return r.welcomes(ctx, now)
	case models.RuleAttendanceFollowup:
		return r.attendanceFollowups(ctx, campaign.ID, rules.IntCondition("consecutiveAbsences", defaultConsecutiveAbsences), now)
	case models.RuleBirthdayWishes:
		return r.birthdays(ctx, now)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRule, rules.Type)
}

// FeeReminderDue reports whether due falls inside the reminder window that
// opens daysBefore days ahead of it. Both bounds are exclusive.
func FeeReminderDue(now, due time.Time, daysBefore int) bool {
	return now.Before(due) && now.After(due.AddDate(0, 0, -daysBefore))
}

func (r *CampaignRules) feeReminders(ctx context.Context, campaignID string, daysBefore int, now time.Time) ([]Recipient, error) {
	payments, err := r.payments.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}

	students := make(map[string]*models.Student)
	var out []Recipient
	for _, payment := range payments {
		if !FeeReminderDue(now, payment.DueDate, daysBefore) {
			continue
		}
		student, ok := students[payment.StudentID]
		if !ok {
			student, err = r.students.Get(ctx, payment.StudentID)
			if err != nil {
				r.logger.Sugar().Warnw("skip fee reminder recipient", "campaign_id", campaignID, "student_id", payment.StudentID, "error", err)
				continue
			}
			students[payment.StudentID] = student
		}
		out = append(out, Recipient{
			Student:    *student,
			Occurrence: payment.ID,
			Variables: map[string]interface{}{
				"amount":      payment.Amount.StringFixed(2),
				"dueDate":     payment.DueDate.Format("02 Jan 2006"),
				"studentName": student.Name,
			},
		})
	}
	return out, nil
}

func (r *CampaignRules) welcomes(ctx context.Context, now time.Time) ([]Recipient, error) {
	students, err := r.students.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	cutoff := now.Add(-welcomeWindow)
	var out []Recipient
	for _, student := range students {
		if !student.JoiningDate.After(cutoff) {
			continue
		}
		out = append(out, Recipient{
			Student: student,
			Variables: map[string]interface{}{
				"studentName": student.Name,
				"sportName":   student.SportLabel(),
				"batchName":   student.BatchLabel(),
			},
		})
	}
	return out, nil
}

func (r *CampaignRules) attendanceFollowups(ctx context.Context, campaignID string, threshold int, now time.Time) ([]Recipient, error) {
	students, err := r.students.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	since := now.Add(-followupWindow)
	var out []Recipient
	for _, student := range students {
		absent, err := r.attendance.CountStatusSince(ctx, student.ID, models.AttendanceAbsent, since)
		if err != nil {
			r.logger.Sugar().Warnw("skip attendance followup recipient", "campaign_id", campaignID, "student_id", student.ID, "error", err)
			continue
		}
		if absent < threshold {
			continue
		}
		out = append(out, Recipient{
			Student: student,
			Variables: map[string]interface{}{
				"studentName": student.Name,
				"absentDays":  absent,
				"sportName":   student.SportLabel(),
			},
		})
	}
	return out, nil
}

func (r *CampaignRules) birthdays(ctx context.Context, now time.Time) ([]Recipient, error) {
	students, err := r.students.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	var out []Recipient
	for _, student := range students {
		dob := student.DateOfBirth
		if dob == nil || dob.Month() != now.Month() || dob.Day() != now.Day() {
			continue
		}
		out = append(out, Recipient{
			Student: student,
			Variables: map[string]interface{}{
				"studentName": student.Name,
				"age":         now.Year() - dob.Year(),
			},
		})
	}
	return out, nil
}
