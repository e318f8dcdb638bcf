package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks a fee instalment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is a fee instalment owed by a student.
type Payment struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	DueDate   time.Time       `db:"due_date" json:"due_date"`
	PaidDate  *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	Status    PaymentStatus   `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// PaidOnTime reports a completed payment settled on or before its due date.
func (p Payment) PaidOnTime() bool {
	return p.Status == PaymentCompleted && p.PaidDate != nil && !p.PaidDate.After(p.DueDate)
}
