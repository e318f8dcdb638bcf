package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sports-academy-api/internal/models"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
)

type gamificationFixture struct {
	svc        *GamificationService
	store      *memGamification
	attendance *fakeAttendance
	students   *fakeStudents
	cache      *fakeLeaderboardCache
}

func newGamificationFixture(t *testing.T, badges ...models.Badge) *gamificationFixture {
	t.Helper()
	store := newMemGamification(badges...)
	att := newFakeAttendance()
	students := newFakeStudents(models.Student{ID: "s-1", Name: "Asha", JoiningDate: evalNow.AddDate(0, -2, 0), SkillLevel: models.SkillBeginner, IsActive: true})
	evaluator := newTestEvaluator(students, att, &fakePayments{})
	cache := newFakeLeaderboardCache()
	svc := NewGamificationService(store, store, evaluator, nil, cache, nil, GamificationConfig{}, nil)
	svc.now = func() time.Time { return evalNow }
	return &gamificationFixture{svc: svc, store: store, attendance: att, students: students, cache: cache}
}

func perfectAttendance() models.Badge {
	for _, b := range DefaultBadges() {
		if b.Name == "Perfect Attendance" {
			b.ID = "perfect-attendance"
			return b
		}
	}
	panic("perfect attendance badge missing")
}

func TestThirtyPresentDaysEarnsPerfectAttendanceOnce(t *testing.T) {
	f := newGamificationFixture(t, perfectAttendance())
	ctx := context.Background()

	start := evalNow.AddDate(0, 0, -29)
	var last *models.GamificationResult
	for day := 0; day < 30; day++ {
		f.attendance.add("s-1", start.AddDate(0, 0, day), models.AttendancePresent)
		result, err := f.svc.TriggerAttendanceEvent(ctx, "s-1", nil)
		require.NoError(t, err)
		if day < 29 {
			assert.Empty(t, result.NewBadges, "day %d", day+1)
		}
		last = result
	}

	require.Len(t, last.NewBadges, 1)
	assert.Equal(t, "Perfect Attendance", last.NewBadges[0].Name)
	assert.Equal(t, 500+10*30, last.TotalPoints)
	assert.Equal(t, models.LevelFor(800), last.Level)

	f.attendance.add("s-1", evalNow.AddDate(0, 0, 1), models.AttendancePresent)
	again, err := f.svc.TriggerAttendanceEvent(ctx, "s-1", nil)
	require.NoError(t, err)
	assert.Empty(t, again.NewBadges)
	assert.Equal(t, 810, again.TotalPoints)
	assert.Len(t, f.store.studentBadges["s-1"], 1)
	assert.Len(t, f.store.historyFor("s-1", models.ActionBadgeEarned), 1)
}

func TestProcessEventTwiceAwardsBadgeOnce(t *testing.T) {
	f := newGamificationFixture(t, models.Badge{
		ID: "week", Name: "Streak", IsActive: true, Points: 100, Category: models.BadgeCategoryAttendance,
		Requirement: models.BadgeCondition{Type: models.BadgeCategoryAttendance, Operator: models.OperatorStreak, Threshold: 1},
	})
	f.attendance.add("s-1", evalNow, models.AttendancePresent)
	ctx := context.Background()

	first, err := f.svc.ProcessEvent(ctx, "s-1", "custom", nil)
	require.NoError(t, err)
	second, err := f.svc.ProcessEvent(ctx, "s-1", "custom", nil)
	require.NoError(t, err)

	assert.Len(t, first.NewBadges, 1)
	assert.Empty(t, second.NewBadges)
	assert.Equal(t, 100+5+5, second.TotalPoints)
}

func TestProcessEventRollsBackOnFailure(t *testing.T) {
	f := newGamificationFixture(t, perfectAttendance())
	ctx := context.Background()
	for day := 0; day < 30; day++ {
		f.attendance.add("s-1", evalNow.AddDate(0, 0, -day), models.AttendancePresent)
	}
	f.store.failAddPoints = errors.New("write failed")

	_, err := f.svc.TriggerAttendanceEvent(ctx, "s-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, f.store.studentBadges["s-1"])
	assert.Empty(t, f.store.history)
	assert.Equal(t, 0, f.cache.invalidations)

	f.store.failAddPoints = nil
	result, err := f.svc.TriggerAttendanceEvent(ctx, "s-1", nil)
	require.NoError(t, err)
	assert.Len(t, result.NewBadges, 1)
	assert.Equal(t, 510, result.TotalPoints)
}

func TestProcessEventLevelUp(t *testing.T) {
	f := newGamificationFixture(t)
	ctx := context.Background()
	_, err := f.store.AddStudentPoints(ctx, "s-1", 990)
	require.NoError(t, err)

	result, err := f.svc.TriggerPaymentEvent(ctx, "s-1", nil)
	require.NoError(t, err)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.Level)
	assert.Equal(t, 1010, result.TotalPoints)
}

func TestProcessEventUnknownStudent(t *testing.T) {
	f := newGamificationFixture(t, models.Badge{
		ID: "skill", Name: "Skill", IsActive: true, Category: models.BadgeCategoryPerformance,
		Requirement: models.BadgeCondition{Type: models.BadgeCategoryPerformance, Operator: models.OperatorEquals, Threshold: 1},
	})

	_, err := f.svc.TriggerMilestoneEvent(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProcessEventValidatesInput(t *testing.T) {
	f := newGamificationFixture(t)
	_, err := f.svc.ProcessEvent(context.Background(), "", models.EventAttendanceMarked, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTriggerStampsTimestampWithoutMutatingInput(t *testing.T) {
	f := newGamificationFixture(t)
	input := map[string]interface{}{"points": 70}
	stamped := f.svc.stamp(input)

	assert.Equal(t, evalNow.Format(time.RFC3339), stamped["timestamp"])
	assert.Equal(t, 70, stamped["points"])
	_, mutated := input["timestamp"]
	assert.False(t, mutated)

	result, err := f.svc.TriggerMilestoneEvent(context.Background(), "s-1", input)
	require.NoError(t, err)
	assert.Equal(t, 70, result.PointsAwarded)
}

func TestSafeTriggerSwallowsErrors(t *testing.T) {
	f := newGamificationFixture(t)
	f.store.failAddPoints = errors.New("write failed")

	assert.Nil(t, f.svc.SafeTriggerAttendanceEvent(context.Background(), "s-1", nil))
	assert.Nil(t, f.svc.SafeTriggerPaymentEvent(context.Background(), "s-1", nil))

	f.store.failAddPoints = nil
	result := f.svc.SafeTriggerMilestoneEvent(context.Background(), "s-1", nil)
	require.NotNil(t, result)
	assert.Equal(t, 50, result.PointsAwarded)
}

func TestInitializeDefaultBadgesIsIdempotent(t *testing.T) {
	f := newGamificationFixture(t)
	ctx := context.Background()

	created, err := f.svc.InitializeDefaultBadges(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultBadges()), created)
	assert.Len(t, DefaultBadges(), 11)

	created, err = f.svc.InitializeDefaultBadges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, f.store.badges, 11)
}

func TestInitializeDefaultBadgesSwallowsConcurrentDuplicate(t *testing.T) {
	f := newGamificationFixture(t)
	f.store.duplicateOn = "Early Bird"

	created, err := f.svc.InitializeDefaultBadges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, created)
}

func TestAwardBadgeManually(t *testing.T) {
	badge := perfectAttendance()
	f := newGamificationFixture(t, badge)
	ctx := context.Background()

	result, err := f.svc.AwardBadgeManually(ctx, "s-1", badge.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, result.TotalPoints)

	_, err = f.svc.AwardBadgeManually(ctx, "s-1", badge.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyEarned))

	balance, _ := f.store.GetStudentPoints(ctx, "s-1")
	assert.Equal(t, 500, balance.TotalPoints)

	_, err = f.svc.AwardBadgeManually(ctx, "s-1", "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLeaderboardIsCachedAndInvalidatedOnAward(t *testing.T) {
	f := newGamificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.TriggerPaymentEvent(ctx, "s-1", nil)
	require.NoError(t, err)

	first, err := f.svc.Leaderboard(ctx, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := f.svc.Leaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.store.leaderboards)

	_, err = f.svc.TriggerPaymentEvent(ctx, "s-1", nil)
	require.NoError(t, err)
	third, err := f.svc.Leaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.leaderboards)
	assert.Equal(t, 40, third[0].TotalPoints)
}

func TestStudentProfile(t *testing.T) {
	f := newGamificationFixture(t, perfectAttendance())
	ctx := context.Background()
	_, err := f.svc.TriggerPaymentEvent(ctx, "s-1", nil)
	require.NoError(t, err)

	profile, err := f.svc.StudentProfile(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 20, profile.Points.TotalPoints)
	assert.Empty(t, profile.Badges)
	require.Len(t, profile.History, 1)
	assert.Equal(t, models.ActionPointsAwarded, profile.History[0].Action)
}
