package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

const campaignColumns = `id, name, description, type, status, trigger, target_audience, message_template, automation_rules,
        sent_count, delivered_count, read_count, failed_count, last_run_at, created_by, created_at, updated_at`

// CampaignRepository persists campaigns and their aggregate analytics.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs the repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// List returns campaigns matching the filter, newest first.
func (r *CampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Trigger != "" {
		args = append(args, filter.Trigger)
		conditions = append(conditions, fmt.Sprintf("trigger = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM campaigns WHERE %s ORDER BY created_at DESC", campaignColumns, strings.Join(conditions, " AND "))

	var campaigns []models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// FindByID fetches a campaign.
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	query := fmt.Sprintf("SELECT %s FROM campaigns WHERE id = $1", campaignColumns)
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		return nil, fmt.Errorf("find campaign %s: %w", id, err)
	}
	return &campaign, nil
}

// Create inserts a campaign with zeroed analytics.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}
	campaign.UpdatedAt = now
	campaign.CampaignAnalytics = models.CampaignAnalytics{}
	const query = `INSERT INTO campaigns (id, name, description, type, status, trigger, target_audience, message_template, automation_rules, created_by, created_at, updated_at)
        VALUES (:id, :name, :description, :type, :status, :trigger, :target_audience, :message_template, :automation_rules, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// Update rewrites the admin-editable fields. Analytics are left untouched.
func (r *CampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	campaign.UpdatedAt = time.Now().UTC()
	const query = `UPDATE campaigns SET name = :name, description = :description, type = :type, status = :status, trigger = :trigger,
        target_audience = :target_audience, message_template = :message_template, automation_rules = :automation_rules, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, campaign)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireAffected(res, "update campaign")
}

// Delete removes a campaign and, by cascade, its messages.
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireAffected(res, "delete campaign")
}

// RecordSent increments the sent counter and stamps the last run.
func (r *CampaignRepository) RecordSent(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE campaigns SET sent_count = sent_count + 1, last_run_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("record sent for campaign %s: %w", id, err)
	}
	return nil
}

// RecordFailed increments the failed counter.
func (r *CampaignRepository) RecordFailed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE campaigns SET failed_count = failed_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("record failure for campaign %s: %w", id, err)
	}
	return nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
