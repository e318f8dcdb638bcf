package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

const badgeColumns = `id, name, description, icon, color, category, requirement, points, is_active, created_at, updated_at`

// BadgeRepository persists badge definitions.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs the repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// List returns badge definitions, optionally only the active ones.
func (r *BadgeRepository) List(ctx context.Context, activeOnly bool) ([]models.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY category ASC, name ASC`

	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, query); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// FindByID fetches a badge definition.
func (r *BadgeRepository) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	var badge models.Badge
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE id = $1`
	if err := r.db.GetContext(ctx, &badge, query, id); err != nil {
		return nil, fmt.Errorf("find badge %s: %w", id, err)
	}
	return &badge, nil
}

// FindByName looks a badge up by its unique name.
func (r *BadgeRepository) FindByName(ctx context.Context, name string) (*models.Badge, error) {
	var badge models.Badge
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE name = $1`
	if err := r.db.GetContext(ctx, &badge, query, name); err != nil {
		return nil, fmt.Errorf("find badge %q: %w", name, err)
	}
	return &badge, nil
}

// Create inserts a badge. A name clash yields ErrDuplicate.
func (r *BadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if badge.CreatedAt.IsZero() {
		badge.CreatedAt = now
	}
	badge.UpdatedAt = now
	const query = `INSERT INTO badges (id, name, description, icon, color, category, requirement, points, is_active, created_at, updated_at)
        VALUES (:id, :name, :description, :icon, :color, :category, :requirement, :points, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create badge %q: %w", badge.Name, ErrDuplicate)
		}
		return fmt.Errorf("create badge %q: %w", badge.Name, err)
	}
	return nil
}
