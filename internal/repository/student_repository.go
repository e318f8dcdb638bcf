package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

const studentSelect = `SELECT s.id, s.name, s.phone, s.email, s.date_of_birth, s.joining_date, s.sport_id, sp.name AS sport_name,
        s.batch_id, b.name AS batch_name, s.skill_level, s.is_active, s.created_at, s.updated_at
        FROM students s
        LEFT JOIN sports sp ON sp.id = s.sport_id
        LEFT JOIN batches b ON b.id = s.batch_id`

// StudentRepository reads student records together with their sport and batch.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Get fetches a student by ID.
func (r *StudentRepository) Get(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, studentSelect+" WHERE s.id = $1", id); err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return &student, nil
}

// ListActive returns every active student ordered by name.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, studentSelect+" WHERE s.is_active = TRUE ORDER BY s.name ASC"); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}
