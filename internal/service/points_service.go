package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/repository"
)

// Fixed point values per event type.
const (
	pointsAttendance       = 10
	pointsPayment          = 20
	pointsMilestoneDefault = 50
	pointsOther            = 5
	levelUpBonusPerLevel   = 100
)

// PointsService applies badge awards, event points and level changes through
// a GamificationWriter, normally one bound to a transaction.
type PointsService struct {
	logger *zap.Logger
}

// NewPointsService constructs a PointsService.
func NewPointsService(logger *zap.Logger) *PointsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{logger: logger}
}

// PointsForEvent returns the points an event is worth. Milestones may carry
// their own positive value in eventData["points"].
func PointsForEvent(eventType string, eventData map[string]interface{}) int {
	switch eventType {
	case models.EventAttendanceMarked:
		return pointsAttendance
	case models.EventPaymentMade:
		return pointsPayment
	case models.EventMilestoneReached:
		if v, ok := numberFrom(eventData, "points"); ok && v > 0 {
			return int(v)
		}
		return pointsMilestoneDefault
	default:
		return pointsOther
	}
}

// AwardBadge records the badge and credits its points. It returns false
// without crediting anything when the student already holds the badge.
func (s *PointsService) AwardBadge(ctx context.Context, w repository.GamificationWriter, studentID string, badge models.Badge) (bool, error) {
	created, err := w.CreateStudentBadge(ctx, &models.StudentBadge{
		StudentID:   studentID,
		BadgeID:     badge.ID,
		Progress:    models.JSONMap{"requirement": badge.Requirement},
		IsDisplayed: true,
	})
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	if badge.Points > 0 {
		if _, err := w.AddStudentPoints(ctx, studentID, badge.Points); err != nil {
			return false, err
		}
	}
	if err := w.CreateAchievementHistory(ctx, &models.AchievementHistory{
		StudentID:   studentID,
		Action:      models.ActionBadgeEarned,
		Description: fmt.Sprintf("Earned the %s badge", badge.Name),
		Points:      badge.Points,
		Metadata:    models.JSONMap{"badgeId": badge.ID, "category": string(badge.Category)},
	}); err != nil {
		return false, err
	}
	s.logger.Sugar().Infow("badge awarded", "student_id", studentID, "badge", badge.Name, "points", badge.Points)
	return true, nil
}

// AwardPoints credits the fixed value of eventType.
func (s *PointsService) AwardPoints(ctx context.Context, w repository.GamificationWriter, studentID, eventType string, eventData map[string]interface{}) (int, error) {
	points := PointsForEvent(eventType, eventData)
	if _, err := w.AddStudentPoints(ctx, studentID, points); err != nil {
		return 0, err
	}
	if err := w.CreateAchievementHistory(ctx, &models.AchievementHistory{
		StudentID:   studentID,
		Action:      models.ActionPointsAwarded,
		Description: fmt.Sprintf("Earned %d points for %s", points, eventType),
		Points:      points,
		Metadata:    models.JSONMap{"eventType": eventType},
	}); err != nil {
		return 0, err
	}
	return points, nil
}

// UpdateLevel recomputes the level from experience and persists it when it
// rose. The level-up bonus is written to history only and never credited.
func (s *PointsService) UpdateLevel(ctx context.Context, w repository.GamificationWriter, studentID string) (int, bool, error) {
	points, err := w.GetStudentPoints(ctx, studentID)
	if err != nil {
		return 0, false, err
	}
	newLevel := models.LevelFor(points.ExperiencePoints)
	if newLevel <= points.Level {
		return points.Level, false, nil
	}
	if err := w.UpdateStudentLevel(ctx, studentID, newLevel); err != nil {
		return 0, false, err
	}
	if err := w.CreateAchievementHistory(ctx, &models.AchievementHistory{
		StudentID:   studentID,
		Action:      models.ActionLevelUp,
		Description: fmt.Sprintf("Reached level %d", newLevel),
		Points:      newLevel * levelUpBonusPerLevel,
		Metadata:    models.JSONMap{"previousLevel": points.Level, "level": newLevel},
	}); err != nil {
		return 0, false, err
	}
	s.logger.Sugar().Infow("student levelled up", "student_id", studentID, "level", newLevel)
	return newLevel, true, nil
}
