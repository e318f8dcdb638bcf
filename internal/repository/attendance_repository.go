package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

// AttendanceRepository reads session attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByStudent returns a student's attendance newest first, optionally bounded by date.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, start, end *time.Time) ([]models.Attendance, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if start != nil {
		args = append(args, *start)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT id, student_id, batch_id, date, status, created_at FROM attendance WHERE %s ORDER BY date DESC`, strings.Join(conditions, " AND "))

	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance for %s: %w", studentID, err)
	}
	return records, nil
}

// CountPresent returns the number of sessions the student attended.
func (r *AttendanceRepository) CountPresent(ctx context.Context, studentID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM attendance WHERE student_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &total, query, studentID, models.AttendancePresent); err != nil {
		return 0, fmt.Errorf("count present attendance for %s: %w", studentID, err)
	}
	return total, nil
}

// CountStatusSince counts records with the given status on or after since.
func (r *AttendanceRepository) CountStatusSince(ctx context.Context, studentID string, status models.AttendanceStatus, since time.Time) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM attendance WHERE student_id = $1 AND status = $2 AND date >= $3`
	if err := r.db.GetContext(ctx, &total, query, studentID, status, since); err != nil {
		return 0, fmt.Errorf("count %s attendance for %s: %w", status, studentID, err)
	}
	return total, nil
}
