package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/repository"
)

type fakeStudents struct {
	mu       sync.Mutex
	students map[string]*models.Student
	order    []string
	getCalls int
	listErr  error
}

func newFakeStudents(students ...models.Student) *fakeStudents {
	f := &fakeStudents{students: map[string]*models.Student{}}
	for i := range students {
		s := students[i]
		f.students[s.ID] = &s
		f.order = append(f.order, s.ID)
	}
	return f
}

func (f *fakeStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	s, ok := f.students[id]
	if !ok {
		return nil, fmt.Errorf("get student %s: %w", id, sql.ErrNoRows)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) ListActive(ctx context.Context) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Student, 0, len(f.order))
	for _, id := range f.order {
		if s := f.students[id]; s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeAttendance struct {
	mu        sync.Mutex
	records   map[string][]models.Attendance
	listCalls int
	err       error
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{records: map[string][]models.Attendance{}}
}

func (f *fakeAttendance) add(studentID string, date time.Time, status models.AttendanceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[studentID] = append(f.records[studentID], models.Attendance{
		ID: fmt.Sprintf("%s-%d", studentID, len(f.records[studentID])), StudentID: studentID, Date: date, Status: status,
	})
}

func (f *fakeAttendance) ListByStudent(ctx context.Context, studentID string, start, end *time.Time) ([]models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Attendance
	for _, r := range f.records[studentID] {
		if start != nil && r.Date.Before(*start) {
			continue
		}
		if end != nil && r.Date.After(*end) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeAttendance) CountPresent(ctx context.Context, studentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records[studentID] {
		if r.Status == models.AttendancePresent {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttendance) CountStatusSince(ctx context.Context, studentID string, status models.AttendanceStatus, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, r := range f.records[studentID] {
		if r.Status == status && !r.Date.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakePayments struct {
	byStudent map[string][]models.Payment
	pending   []models.Payment
	err       error
}

func (f *fakePayments) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Payment(nil), f.byStudent[studentID]...), nil
}

func (f *fakePayments) ListPending(ctx context.Context) ([]models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Payment(nil), f.pending...), nil
}

// memGamification is an in-memory badge and gamification store. WithTx
// restores the prior state when fn fails.
type memGamification struct {
	badges        []models.Badge
	studentBadges map[string]map[string]models.StudentBadge
	points        map[string]models.StudentPoints
	history       []models.AchievementHistory

	failAddPoints error
	duplicateOn   string
	leaderboards  int
}

func newMemGamification(badges ...models.Badge) *memGamification {
	m := &memGamification{
		studentBadges: map[string]map[string]models.StudentBadge{},
		points:        map[string]models.StudentPoints{},
	}
	for _, b := range badges {
		if b.ID == "" {
			b.ID = "badge-" + b.Name
		}
		m.badges = append(m.badges, b)
	}
	return m
}

func (m *memGamification) List(ctx context.Context, activeOnly bool) ([]models.Badge, error) {
	var out []models.Badge
	for _, b := range m.badges {
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memGamification) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	for _, b := range m.badges {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find badge %s: %w", id, sql.ErrNoRows)
}

func (m *memGamification) FindByName(ctx context.Context, name string) (*models.Badge, error) {
	for _, b := range m.badges {
		if b.Name == name {
			cp := b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find badge %q: %w", name, sql.ErrNoRows)
}

func (m *memGamification) Create(ctx context.Context, badge *models.Badge) error {
	if badge.Name == m.duplicateOn {
		return fmt.Errorf("create badge %q: %w", badge.Name, repository.ErrDuplicate)
	}
	for _, b := range m.badges {
		if b.Name == badge.Name {
			return fmt.Errorf("create badge %q: %w", badge.Name, repository.ErrDuplicate)
		}
	}
	if badge.ID == "" {
		badge.ID = "badge-" + badge.Name
	}
	m.badges = append(m.badges, *badge)
	return nil
}

func (m *memGamification) WithTx(ctx context.Context, fn func(repository.GamificationWriter) error) error {
	snapBadges := map[string]map[string]models.StudentBadge{}
	for sid, set := range m.studentBadges {
		inner := map[string]models.StudentBadge{}
		for bid, sb := range set {
			inner[bid] = sb
		}
		snapBadges[sid] = inner
	}
	snapPoints := map[string]models.StudentPoints{}
	for sid, p := range m.points {
		snapPoints[sid] = p
	}
	snapHistory := append([]models.AchievementHistory(nil), m.history...)

	if err := fn(m); err != nil {
		m.studentBadges, m.points, m.history = snapBadges, snapPoints, snapHistory
		return err
	}
	return nil
}

func (m *memGamification) CreateStudentBadge(ctx context.Context, badge *models.StudentBadge) (bool, error) {
	set, ok := m.studentBadges[badge.StudentID]
	if !ok {
		set = map[string]models.StudentBadge{}
		m.studentBadges[badge.StudentID] = set
	}
	if _, exists := set[badge.BadgeID]; exists {
		return false, nil
	}
	set[badge.BadgeID] = *badge
	return true, nil
}

func (m *memGamification) AddStudentPoints(ctx context.Context, studentID string, delta int) (*models.StudentPoints, error) {
	if m.failAddPoints != nil {
		return nil, m.failAddPoints
	}
	if delta < 0 {
		return nil, errors.New("negative delta")
	}
	p, ok := m.points[studentID]
	if !ok {
		p = models.StudentPoints{StudentID: studentID, Level: 1}
	}
	p.TotalPoints += delta
	p.ExperiencePoints += delta
	p.MonthlyPoints += delta
	m.points[studentID] = p
	return &p, nil
}

func (m *memGamification) UpdateStudentLevel(ctx context.Context, studentID string, level int) error {
	p := m.points[studentID]
	if level > p.Level {
		p.Level = level
	}
	m.points[studentID] = p
	return nil
}

func (m *memGamification) CreateAchievementHistory(ctx context.Context, entry *models.AchievementHistory) error {
	m.history = append(m.history, *entry)
	return nil
}

func (m *memGamification) GetStudentPoints(ctx context.Context, studentID string) (*models.StudentPoints, error) {
	p, ok := m.points[studentID]
	if !ok {
		return &models.StudentPoints{StudentID: studentID, Level: 1}, nil
	}
	return &p, nil
}

func (m *memGamification) ListStudentBadges(ctx context.Context, studentID string) ([]models.EarnedBadge, error) {
	var out []models.EarnedBadge
	for _, sb := range m.studentBadges[studentID] {
		out = append(out, models.EarnedBadge{StudentBadge: sb})
	}
	return out, nil
}

func (m *memGamification) ListHistory(ctx context.Context, studentID string, limit int) ([]models.AchievementHistory, error) {
	var out []models.AchievementHistory
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].StudentID == studentID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memGamification) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.leaderboards++
	var out []models.LeaderboardEntry
	for sid, p := range m.points {
		out = append(out, models.LeaderboardEntry{StudentID: sid, TotalPoints: p.TotalPoints, Level: p.Level, BadgeCount: len(m.studentBadges[sid])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (m *memGamification) historyFor(studentID, action string) []models.AchievementHistory {
	var out []models.AchievementHistory
	for _, h := range m.history {
		if h.StudentID == studentID && h.Action == action {
			out = append(out, h)
		}
	}
	return out
}

type fakeLeaderboardCache struct {
	data          map[string][]byte
	invalidations int
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{data: map[string][]byte{}}
}

func (c *fakeLeaderboardCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeLeaderboardCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *fakeLeaderboardCache) Invalidate(ctx context.Context, pattern string) error {
	c.invalidations++
	c.data = map[string][]byte{}
	return nil
}
