package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/repository"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
)

const (
	leaderboardCachePattern = "leaderboard:*"
	maxLeaderboardLimit     = 100
	profileHistoryLimit     = 20
)

type badgeStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Badge, error)
	FindByID(ctx context.Context, id string) (*models.Badge, error)
	FindByName(ctx context.Context, name string) (*models.Badge, error)
	Create(ctx context.Context, badge *models.Badge) error
}

type gamificationStore interface {
	WithTx(ctx context.Context, fn func(repository.GamificationWriter) error) error
	ListStudentBadges(ctx context.Context, studentID string) ([]models.EarnedBadge, error)
	GetStudentPoints(ctx context.Context, studentID string) (*models.StudentPoints, error)
	ListHistory(ctx context.Context, studentID string, limit int) ([]models.AchievementHistory, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type leaderboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// GamificationConfig tunes leaderboard caching.
type GamificationConfig struct {
	LeaderboardTTL   time.Duration
	LeaderboardLimit int
}

// GamificationService sequences badge evaluation, point awards and level
// changes for student events.
type GamificationService struct {
	badges    badgeStore
	store     gamificationStore
	evaluator *BadgeEvaluator
	points    *PointsService
	cache     leaderboardCache
	metrics   *MetricsService
	cfg       GamificationConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewGamificationService wires the orchestrator.
func NewGamificationService(
	badges badgeStore,
	store gamificationStore,
	evaluator *BadgeEvaluator,
	points *PointsService,
	cache leaderboardCache,
	metrics *MetricsService,
	cfg GamificationConfig,
	logger *zap.Logger,
) *GamificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if points == nil {
		points = NewPointsService(logger)
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 10
	}
	if cfg.LeaderboardTTL <= 0 {
		cfg.LeaderboardTTL = 5 * time.Minute
	}
	return &GamificationService{
		badges:    badges,
		store:     store,
		evaluator: evaluator,
		points:    points,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessEvent evaluates badges for the student and applies every resulting
// award, the event points and any level change in one transaction.
func (s *GamificationService) ProcessEvent(ctx context.Context, studentID, eventType string, eventData map[string]interface{}) (*models.GamificationResult, error) {
	if studentID == "" || eventType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id and event type are required")
	}

	active, err := s.badges.List(ctx, true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load badges")
	}
	earned, err := s.store.ListStudentBadges(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student badges")
	}
	earnedIDs := make([]string, 0, len(earned))
	for _, b := range earned {
		earnedIDs = append(earnedIDs, b.BadgeID)
	}

	eligible, err := s.evaluator.Evaluate(ctx, studentID, active, earnedIDs, eventType, eventData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to evaluate badges")
	}

	result := &models.GamificationResult{StudentID: studentID, EventType: eventType, NewBadges: []models.Badge{}}
	err = s.store.WithTx(ctx, func(w repository.GamificationWriter) error {
		for _, badge := range eligible {
			awarded, err := s.points.AwardBadge(ctx, w, studentID, badge)
			if err != nil {
				return fmt.Errorf("award badge %q: %w", badge.Name, err)
			}
			if awarded {
				result.NewBadges = append(result.NewBadges, badge)
			}
		}
		awardedPoints, err := s.points.AwardPoints(ctx, w, studentID, eventType, eventData)
		if err != nil {
			return fmt.Errorf("award points: %w", err)
		}
		result.PointsAwarded = awardedPoints

		level, up, err := s.points.UpdateLevel(ctx, w, studentID)
		if err != nil {
			return fmt.Errorf("update level: %w", err)
		}
		result.Level, result.LeveledUp = level, up

		balance, err := w.GetStudentPoints(ctx, studentID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		result.TotalPoints = balance.TotalPoints
		return nil
	})
	if err != nil {
		s.logger.Sugar().Errorw("gamification event rolled back", "student_id", studentID, "event", eventType, "error", err)
		return nil, appErrors.Internal(err, "failed to apply gamification event")
	}

	badgePoints := 0
	for _, b := range result.NewBadges {
		badgePoints += b.Points
	}
	s.metrics.RecordAward(eventType, len(result.NewBadges), result.PointsAwarded+badgePoints)
	s.invalidateLeaderboard(ctx)

	if len(result.NewBadges) > 0 || result.LeveledUp {
		s.logger.Sugar().Infow("gamification event processed",
			"student_id", studentID,
			"event", eventType,
			"new_badges", len(result.NewBadges),
			"level", result.Level,
			"total_points", result.TotalPoints,
		)
	}
	return result, nil
}

// TriggerAttendanceEvent processes an attendance_marked event.
func (s *GamificationService) TriggerAttendanceEvent(ctx context.Context, studentID string, data map[string]interface{}) (*models.GamificationResult, error) {
	return s.ProcessEvent(ctx, studentID, models.EventAttendanceMarked, s.stamp(data))
}

// TriggerPaymentEvent processes a payment_made event.
func (s *GamificationService) TriggerPaymentEvent(ctx context.Context, studentID string, data map[string]interface{}) (*models.GamificationResult, error) {
	return s.ProcessEvent(ctx, studentID, models.EventPaymentMade, s.stamp(data))
}

// TriggerMilestoneEvent processes a milestone_reached event.
func (s *GamificationService) TriggerMilestoneEvent(ctx context.Context, studentID string, data map[string]interface{}) (*models.GamificationResult, error) {
	return s.ProcessEvent(ctx, studentID, models.EventMilestoneReached, s.stamp(data))
}

// TriggerEvent routes an arbitrary event type, stamping the time like the
// typed triggers do.
func (s *GamificationService) TriggerEvent(ctx context.Context, studentID, eventType string, data map[string]interface{}) (*models.GamificationResult, error) {
	return s.ProcessEvent(ctx, studentID, eventType, s.stamp(data))
}

// SafeTriggerAttendanceEvent is TriggerAttendanceEvent for hosts whose own
// write must not fail because of gamification. Errors are logged and dropped.
func (s *GamificationService) SafeTriggerAttendanceEvent(ctx context.Context, studentID string, data map[string]interface{}) *models.GamificationResult {
	result, err := s.TriggerAttendanceEvent(ctx, studentID, data)
	return s.swallow(result, err, studentID, models.EventAttendanceMarked)
}

// SafeTriggerPaymentEvent is the isolated variant of TriggerPaymentEvent.
func (s *GamificationService) SafeTriggerPaymentEvent(ctx context.Context, studentID string, data map[string]interface{}) *models.GamificationResult {
	result, err := s.TriggerPaymentEvent(ctx, studentID, data)
	return s.swallow(result, err, studentID, models.EventPaymentMade)
}

// SafeTriggerMilestoneEvent is the isolated variant of TriggerMilestoneEvent.
func (s *GamificationService) SafeTriggerMilestoneEvent(ctx context.Context, studentID string, data map[string]interface{}) *models.GamificationResult {
	result, err := s.TriggerMilestoneEvent(ctx, studentID, data)
	return s.swallow(result, err, studentID, models.EventMilestoneReached)
}

func (s *GamificationService) swallow(result *models.GamificationResult, err error, studentID, eventType string) *models.GamificationResult {
	if err != nil {
		s.logger.Sugar().Warnw("gamification trigger failed", "student_id", studentID, "event", eventType, "error", err)
		return nil
	}
	return result
}

func (s *GamificationService) stamp(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["timestamp"] = s.now().UTC().Format(time.RFC3339)
	return out
}

// AwardBadgeManually grants a badge outside rule evaluation. A badge the
// student already holds yields ErrAlreadyEarned.
func (s *GamificationService) AwardBadgeManually(ctx context.Context, studentID, badgeID string) (*models.GamificationResult, error) {
	badge, err := s.badges.FindByID(ctx, badgeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
		}
		return nil, appErrors.Internal(err, "failed to load badge")
	}

	result := &models.GamificationResult{StudentID: studentID, EventType: "manual_award", NewBadges: []models.Badge{}}
	err = s.store.WithTx(ctx, func(w repository.GamificationWriter) error {
		awarded, err := s.points.AwardBadge(ctx, w, studentID, *badge)
		if err != nil {
			return err
		}
		if !awarded {
			return appErrors.ErrAlreadyEarned
		}
		result.NewBadges = append(result.NewBadges, *badge)
		level, up, err := s.points.UpdateLevel(ctx, w, studentID)
		if err != nil {
			return err
		}
		result.Level, result.LeveledUp = level, up
		balance, err := w.GetStudentPoints(ctx, studentID)
		if err != nil {
			return err
		}
		result.TotalPoints = balance.TotalPoints
		return nil
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrAlreadyEarned) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEarned, fmt.Sprintf("badge %q already earned", badge.Name))
		}
		return nil, appErrors.Internal(err, "failed to award badge")
	}
	s.metrics.RecordAward("manual_award", 1, badge.Points)
	s.invalidateLeaderboard(ctx)
	return result, nil
}

// InitializeDefaultBadges creates any missing canonical badge and returns
// how many were created. Safe to run concurrently with itself.
func (s *GamificationService) InitializeDefaultBadges(ctx context.Context) (int, error) {
	created := 0
	for _, badge := range DefaultBadges() {
		_, err := s.badges.FindByName(ctx, badge.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return created, appErrors.Internal(err, "failed to look up badge")
		}
		b := badge
		if err := s.badges.Create(ctx, &b); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				s.logger.Sugar().Debugw("badge created concurrently", "badge", b.Name)
				continue
			}
			return created, appErrors.Internal(err, "failed to create badge")
		}
		created++
	}
	if created > 0 {
		s.logger.Sugar().Infow("default badges seeded", "created", created)
	}
	return created, nil
}

// ListBadges returns badge definitions.
func (s *GamificationService) ListBadges(ctx context.Context, activeOnly bool) ([]models.Badge, error) {
	badges, err := s.badges.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list badges")
	}
	return badges, nil
}

// StudentProfile returns a student's balance, badges and recent history.
func (s *GamificationService) StudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	points, err := s.store.GetStudentPoints(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load points")
	}
	badges, err := s.store.ListStudentBadges(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load badges")
	}
	history, err := s.store.ListHistory(ctx, studentID, profileHistoryLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load history")
	}
	if badges == nil {
		badges = []models.EarnedBadge{}
	}
	if history == nil {
		history = []models.AchievementHistory{}
	}
	return &models.StudentProfile{StudentID: studentID, Points: *points, Badges: badges, History: history}, nil
}

// Leaderboard returns the top students by total points, served from cache
// when possible.
func (s *GamificationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	key := fmt.Sprintf("leaderboard:%d", limit)

	var cached []models.LeaderboardEntry
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load leaderboard")
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, entries, s.cfg.LeaderboardTTL)
	}
	return entries, nil
}

func (s *GamificationService) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, leaderboardCachePattern); err != nil {
		s.logger.Sugar().Warnw("leaderboard invalidation failed", "error", err)
	}
}

// DefaultBadges is the canonical seed set.
func DefaultBadges() []models.Badge {
	return []models.Badge{
		{Name: "Perfect Attendance", Description: "Attend 30 sessions in a row", Icon: "calendar-check", Color: "#FFD700", Category: models.BadgeCategoryAttendance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryAttendance, Operator: models.OperatorStreak, Threshold: 30}, Points: 500, IsActive: true},
		{Name: "Attendance Champion", Description: "Keep 95% attendance this month", Icon: "trophy", Color: "#F59E0B", Category: models.BadgeCategoryAttendance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryAttendance, Operator: models.OperatorGreater, Threshold: 95, Timeframe: models.TimeframeMonthly}, Points: 300, IsActive: true},
		{Name: "Regular Trainee", Description: "Keep 80% attendance this week", Icon: "dumbbell", Color: "#10B981", Category: models.BadgeCategoryAttendance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryAttendance, Operator: models.OperatorGreater, Threshold: 80, Timeframe: models.TimeframeWeekly}, Points: 100, IsActive: true},
		{Name: "Early Bird", Description: "Attend 7 sessions in a row", Icon: "sunrise", Color: "#F97316", Category: models.BadgeCategoryAttendance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryAttendance, Operator: models.OperatorStreak, Threshold: 7}, Points: 100, IsActive: true},
		{Name: "Prompt Payer", Description: "Pay 3 fees on time in a row", Icon: "wallet", Color: "#3B82F6", Category: models.BadgeCategoryPayment,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryPayment, Operator: models.OperatorStreak, Threshold: 3}, Points: 200, IsActive: true},
		{Name: "Debt Free", Description: "No overdue fees", Icon: "badge-check", Color: "#22C55E", Category: models.BadgeCategoryPayment,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryPayment, Operator: models.OperatorEquals, Threshold: 0}, Points: 150, IsActive: true},
		{Name: "Skill Master", Description: "Reach expert skill level", Icon: "star", Color: "#8B5CF6", Category: models.BadgeCategoryPerformance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryPerformance, Operator: models.OperatorEquals, Threshold: 4}, Points: 1000, IsActive: true},
		{Name: "Rising Star", Description: "Improve performance by 20% in a month", Icon: "trending-up", Color: "#EC4899", Category: models.BadgeCategoryPerformance,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryPerformance, Operator: models.OperatorGreater, Threshold: 20, Timeframe: models.TimeframeMonthly}, Points: 250, IsActive: true},
		{Name: "Loyal Student", Description: "One year with the academy", Icon: "heart", Color: "#EF4444", Category: models.BadgeCategoryMilestone,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryMilestone, Operator: models.OperatorGreater, Threshold: 365}, Points: 1000, IsActive: true},
		{Name: "Century Club", Description: "Complete 100 sessions", Icon: "medal", Color: "#0EA5E9", Category: models.BadgeCategoryMilestone,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryMilestone, Operator: models.OperatorGreater, Threshold: 100}, Points: 500, IsActive: true},
		{Name: "First Week", Description: "Complete your first week", Icon: "flag", Color: "#64748B", Category: models.BadgeCategoryMilestone,
			Requirement: models.BadgeCondition{Type: models.BadgeCategoryMilestone, Operator: models.OperatorGreater, Threshold: 7}, Points: 50, IsActive: true},
	}
}
