package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

// Milestone thresholds with a fixed meaning.
const (
	milestoneFirstWeek   = 7
	milestoneCentury     = 100
	milestoneAnniversary = 365
)

type evaluatorStudentReader interface {
	Get(ctx context.Context, id string) (*models.Student, error)
}

type evaluatorAttendanceReader interface {
	ListByStudent(ctx context.Context, studentID string, start, end *time.Time) ([]models.Attendance, error)
	CountPresent(ctx context.Context, studentID string) (int, error)
}

type evaluatorPaymentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

// BadgeEvaluator decides which badges a student has newly earned.
type BadgeEvaluator struct {
	students   evaluatorStudentReader
	attendance evaluatorAttendanceReader
	payments   evaluatorPaymentReader
	now        func() time.Time
}

// NewBadgeEvaluator constructs an evaluator.
func NewBadgeEvaluator(students evaluatorStudentReader, attendance evaluatorAttendanceReader, payments evaluatorPaymentReader) *BadgeEvaluator {
	return &BadgeEvaluator{students: students, attendance: attendance, payments: payments, now: time.Now}
}

// Evaluate returns the active badges not yet earned whose condition holds.
// Student data is loaded at most once per call and only when a condition
// needs it. Unknown condition types are never eligible.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, studentID string, badges []models.Badge, earnedIDs []string, eventType string, eventData map[string]interface{}) ([]models.Badge, error) {
	earned := make(map[string]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}

	snap := &studentSnapshot{e: e, studentID: studentID, now: e.now()}
	var eligible []models.Badge
	for _, badge := range badges {
		if !badge.IsActive {
			continue
		}
		if _, ok := earned[badge.ID]; ok {
			continue
		}
		ok, err := snap.satisfies(ctx, badge.Requirement, eventData)
		if err != nil {
			return nil, fmt.Errorf("evaluate badge %q: %w", badge.Name, err)
		}
		if ok {
			eligible = append(eligible, badge)
		}
	}
	return eligible, nil
}

// studentSnapshot memoises the reads one evaluation needs.
type studentSnapshot struct {
	e         *BadgeEvaluator
	studentID string
	now       time.Time

	student      *models.Student
	attendance   []models.Attendance
	attLoaded    bool
	payments     []models.Payment
	payLoaded    bool
	presentCount *int
}

func (s *studentSnapshot) satisfies(ctx context.Context, cond models.BadgeCondition, eventData map[string]interface{}) (bool, error) {
	switch cond.Type {
	case models.BadgeCategoryAttendance:
		return s.attendanceRule(ctx, cond)
	case models.BadgeCategoryPayment:
		return s.paymentRule(ctx, cond)
	case models.BadgeCategoryPerformance:
		return s.performanceRule(ctx, cond, eventData)
	case models.BadgeCategoryMilestone:
		return s.milestoneRule(ctx, cond)
	default:
		return false, nil
	}
}

func (s *studentSnapshot) attendanceRule(ctx context.Context, cond models.BadgeCondition) (bool, error) {
	records, err := s.loadAttendance(ctx)
	if err != nil {
		return false, err
	}
	switch cond.Operator {
	case models.OperatorStreak:
		return float64(AttendanceStreak(records)) >= cond.Threshold, nil
	case models.OperatorGreater:
		pct, ok := AttendancePercentage(records, cond.Timeframe, s.now)
		return ok && float64(pct) >= cond.Threshold, nil
	default:
		return false, nil
	}
}

func (s *studentSnapshot) paymentRule(ctx context.Context, cond models.BadgeCondition) (bool, error) {
	payments, err := s.loadPayments(ctx)
	if err != nil {
		return false, err
	}
	switch cond.Operator {
	case models.OperatorStreak:
		return float64(OnTimePaymentStreak(payments)) >= cond.Threshold, nil
	case models.OperatorEquals:
		overdue := 0
		for _, p := range payments {
			if p.Status == models.PaymentOverdue {
				overdue++
			}
		}
		return float64(overdue) == cond.Threshold, nil
	default:
		return false, nil
	}
}

func (s *studentSnapshot) performanceRule(ctx context.Context, cond models.BadgeCondition, eventData map[string]interface{}) (bool, error) {
	switch cond.Operator {
	case models.OperatorEquals:
		student, err := s.loadStudent(ctx)
		if err != nil {
			return false, err
		}
		return float64(student.SkillLevel.Rank()) >= cond.Threshold, nil
	case models.OperatorGreater:
		improvement, ok := numberFrom(eventData, "performanceImprovement")
		return ok && improvement >= cond.Threshold, nil
	default:
		return false, nil
	}
}

func (s *studentSnapshot) milestoneRule(ctx context.Context, cond models.BadgeCondition) (bool, error) {
	if cond.Operator != models.OperatorGreater {
		return false, nil
	}
	switch int(cond.Threshold) {
	case milestoneAnniversary, milestoneFirstWeek:
		student, err := s.loadStudent(ctx)
		if err != nil {
			return false, err
		}
		return float64(daysBetween(student.JoiningDate, s.now)) >= cond.Threshold, nil
	case milestoneCentury:
		count, err := s.loadPresentCount(ctx)
		if err != nil {
			return false, err
		}
		return count >= milestoneCentury, nil
	default:
		return false, nil
	}
}

func (s *studentSnapshot) loadStudent(ctx context.Context) (*models.Student, error) {
	if s.student != nil {
		return s.student, nil
	}
	student, err := s.e.students.Get(ctx, s.studentID)
	if err != nil {
		return nil, err
	}
	s.student = student
	return student, nil
}

func (s *studentSnapshot) loadAttendance(ctx context.Context) ([]models.Attendance, error) {
	if s.attLoaded {
		return s.attendance, nil
	}
	records, err := s.e.attendance.ListByStudent(ctx, s.studentID, nil, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date.After(records[j].Date) })
	s.attendance, s.attLoaded = records, true
	return records, nil
}

func (s *studentSnapshot) loadPayments(ctx context.Context) ([]models.Payment, error) {
	if s.payLoaded {
		return s.payments, nil
	}
	payments, err := s.e.payments.ListByStudent(ctx, s.studentID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].DueDate.After(payments[j].DueDate) })
	s.payments, s.payLoaded = payments, true
	return payments, nil
}

func (s *studentSnapshot) loadPresentCount(ctx context.Context) (int, error) {
	if s.presentCount != nil {
		return *s.presentCount, nil
	}
	count, err := s.e.attendance.CountPresent(ctx, s.studentID)
	if err != nil {
		return 0, err
	}
	s.presentCount = &count
	return count, nil
}

// AttendanceStreak counts present records from the newest backwards,
// stopping at the first record that is not present. Records must be
// ordered newest first.
func AttendanceStreak(records []models.Attendance) int {
	streak := 0
	for _, r := range records {
		if r.Status != models.AttendancePresent {
			break
		}
		streak++
	}
	return streak
}

// AttendancePercentage returns the rounded present ratio inside the
// timeframe window. ok is false when the window holds no records.
func AttendancePercentage(records []models.Attendance, timeframe models.Timeframe, now time.Time) (int, bool) {
	var since time.Time
	switch timeframe {
	case models.TimeframeMonthly:
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case models.TimeframeWeekly:
		since = now.AddDate(0, 0, -7)
	}

	total, present := 0, 0
	for _, r := range records {
		if !since.IsZero() && r.Date.Before(since) {
			continue
		}
		total++
		if r.Status == models.AttendancePresent {
			present++
		}
	}
	if total == 0 {
		return 0, false
	}
	return int(math.Round(float64(present) / float64(total) * 100)), true
}

// OnTimePaymentStreak counts payments settled on or before their due date,
// newest due date first, stopping at the first that was not.
func OnTimePaymentStreak(payments []models.Payment) int {
	streak := 0
	for _, p := range payments {
		if !p.PaidOnTime() {
			break
		}
		streak++
	}
	return streak
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

func numberFrom(data map[string]interface{}, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
