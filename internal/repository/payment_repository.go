package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

const paymentColumns = `id, student_id, amount, due_date, paid_date, status, created_at, updated_at`

// PaymentRepository reads fee instalments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ListByStudent returns the student's payments, latest due date first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE student_id = $1 ORDER BY due_date DESC`
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", studentID, err)
	}
	return payments, nil
}

// ListPending returns all pending payments ordered by due date.
func (r *PaymentRepository) ListPending(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 ORDER BY due_date ASC`
	if err := r.db.SelectContext(ctx, &payments, query, models.PaymentPending); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}
