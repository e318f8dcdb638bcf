package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

// GamificationWriter is the set of writes applied while processing one event.
// Implementations returned by WithTx share a single transaction.
type GamificationWriter interface {
	CreateStudentBadge(ctx context.Context, badge *models.StudentBadge) (bool, error)
	AddStudentPoints(ctx context.Context, studentID string, delta int) (*models.StudentPoints, error)
	UpdateStudentLevel(ctx context.Context, studentID string, level int) error
	CreateAchievementHistory(ctx context.Context, entry *models.AchievementHistory) error
	GetStudentPoints(ctx context.Context, studentID string) (*models.StudentPoints, error)
}

// GamificationRepository persists earned badges, point balances and history.
type GamificationRepository struct {
	db   *sqlx.DB
	exec sqlx.ExtContext
}

// NewGamificationRepository constructs the repository.
func NewGamificationRepository(db *sqlx.DB) *GamificationRepository {
	return &GamificationRepository{db: db, exec: db}
}

// WithTx runs fn inside one transaction, rolling back when fn fails.
func (r *GamificationRepository) WithTx(ctx context.Context, fn func(GamificationWriter) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gamification transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&GamificationRepository{db: r.db, exec: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit gamification transaction: %w", err)
	}
	return nil
}

// CreateStudentBadge records an earned badge. It reports false when the
// student already holds the badge.
func (r *GamificationRepository) CreateStudentBadge(ctx context.Context, badge *models.StudentBadge) (bool, error) {
	if badge.EarnedAt.IsZero() {
		badge.EarnedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_badges (student_id, badge_id, earned_at, progress, is_displayed)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (student_id, badge_id) DO NOTHING`
	res, err := r.exec.ExecContext(ctx, query, badge.StudentID, badge.BadgeID, badge.EarnedAt, badge.Progress, badge.IsDisplayed)
	if err != nil {
		return false, fmt.Errorf("create student badge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create student badge rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddStudentPoints credits delta to total, experience and monthly points,
// creating the balance row on first use.
func (r *GamificationRepository) AddStudentPoints(ctx context.Context, studentID string, delta int) (*models.StudentPoints, error) {
	if delta < 0 {
		return nil, fmt.Errorf("add student points: negative delta %d", delta)
	}
	const query = `INSERT INTO student_points (student_id, total_points, experience_points, monthly_points, level, updated_at)
        VALUES ($1, $2, $2, $2, 1, $3)
        ON CONFLICT (student_id) DO UPDATE SET
            total_points = student_points.total_points + EXCLUDED.total_points,
            experience_points = student_points.experience_points + EXCLUDED.experience_points,
            monthly_points = student_points.monthly_points + EXCLUDED.monthly_points,
            updated_at = EXCLUDED.updated_at
        RETURNING student_id, total_points, experience_points, monthly_points, level, updated_at`
	var points models.StudentPoints
	if err := sqlx.GetContext(ctx, r.exec, &points, query, studentID, delta, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("add student points: %w", err)
	}
	return &points, nil
}

// UpdateStudentLevel raises the stored level. Lower values are ignored.
func (r *GamificationRepository) UpdateStudentLevel(ctx context.Context, studentID string, level int) error {
	const query = `UPDATE student_points SET level = $2, updated_at = $3 WHERE student_id = $1 AND level < $2`
	if _, err := r.exec.ExecContext(ctx, query, studentID, level, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student level: %w", err)
	}
	return nil
}

// CreateAchievementHistory appends an audit row.
func (r *GamificationRepository) CreateAchievementHistory(ctx context.Context, entry *models.AchievementHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO achievement_history (id, student_id, action, description, points, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.exec.ExecContext(ctx, query, entry.ID, entry.StudentID, entry.Action, entry.Description, entry.Points, entry.Metadata, entry.CreatedAt); err != nil {
		return fmt.Errorf("create achievement history: %w", err)
	}
	return nil
}

// GetStudentPoints returns the balance, or a zero balance at level 1 when the
// student has never scored.
func (r *GamificationRepository) GetStudentPoints(ctx context.Context, studentID string) (*models.StudentPoints, error) {
	var points models.StudentPoints
	const query = `SELECT student_id, total_points, experience_points, monthly_points, level, updated_at FROM student_points WHERE student_id = $1`
	if err := sqlx.GetContext(ctx, r.exec, &points, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.StudentPoints{StudentID: studentID, Level: 1}, nil
		}
		return nil, fmt.Errorf("get student points: %w", err)
	}
	return &points, nil
}

// ListStudentBadges returns earned badges joined with their definitions.
func (r *GamificationRepository) ListStudentBadges(ctx context.Context, studentID string) ([]models.EarnedBadge, error) {
	const query = `SELECT sb.student_id, sb.badge_id, sb.earned_at, sb.progress, sb.is_displayed,
        b.name, b.description, b.icon, b.color, b.category, b.points
        FROM student_badges sb
        JOIN badges b ON b.id = sb.badge_id
        WHERE sb.student_id = $1
        ORDER BY sb.earned_at DESC`
	var badges []models.EarnedBadge
	if err := sqlx.SelectContext(ctx, r.exec, &badges, query, studentID); err != nil {
		return nil, fmt.Errorf("list student badges: %w", err)
	}
	return badges, nil
}

// ListHistory returns the most recent achievement rows for a student.
func (r *GamificationRepository) ListHistory(ctx context.Context, studentID string, limit int) ([]models.AchievementHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, student_id, action, description, points, metadata, created_at
        FROM achievement_history WHERE student_id = $1 ORDER BY created_at DESC LIMIT $2`
	var history []models.AchievementHistory
	if err := sqlx.SelectContext(ctx, r.exec, &history, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list achievement history: %w", err)
	}
	return history, nil
}

// Leaderboard ranks students by total points.
func (r *GamificationRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT sp.student_id, s.name AS student_name, sp.total_points, sp.level, COUNT(sb.badge_id) AS badge_count
        FROM student_points sp
        JOIN students s ON s.id = sp.student_id
        LEFT JOIN student_badges sb ON sb.student_id = sp.student_id
        GROUP BY sp.student_id, s.name, sp.total_points, sp.level
        ORDER BY sp.total_points DESC, s.name ASC
        LIMIT $1`
	var entries []models.LeaderboardEntry
	if err := sqlx.SelectContext(ctx, r.exec, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
