package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sports-academy-api/internal/models"
)

const campaignMessageColumns = `id, campaign_id, recipient, student_id, occurrence_key, message_content, status, external_id, error_message,
        sent_at, delivered_at, read_at, created_at, updated_at`

// MessageFilter narrows campaign message listings.
type MessageFilter struct {
	CampaignID string
	Status     models.MessageStatus
	Page       int
	PageSize   int
}

// CampaignMessageRepository persists dispatch attempts.
type CampaignMessageRepository struct {
	db *sqlx.DB
}

// NewCampaignMessageRepository constructs the repository.
func NewCampaignMessageRepository(db *sqlx.DB) *CampaignMessageRepository {
	return &CampaignMessageRepository{db: db}
}

// Create inserts a message row, defaulting to pending.
func (r *CampaignMessageRepository) Create(ctx context.Context, msg *models.CampaignMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = models.MessagePending
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	const query = `INSERT INTO campaign_messages (id, campaign_id, recipient, student_id, occurrence_key, message_content, status, created_at, updated_at)
        VALUES (:id, :campaign_id, :recipient, :student_id, :occurrence_key, :message_content, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create campaign message: %w", err)
	}
	return nil
}

// UpdateStatus persists the delivery outcome of a message.
func (r *CampaignMessageRepository) UpdateStatus(ctx context.Context, msg *models.CampaignMessage) error {
	msg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE campaign_messages SET status = :status, external_id = :external_id, error_message = :error_message,
        sent_at = :sent_at, delivered_at = :delivered_at, read_at = :read_at, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, msg)
	if err != nil {
		return fmt.Errorf("update campaign message: %w", err)
	}
	return requireAffected(res, "update campaign message")
}

// List returns one page of a campaign's messages and the total count.
func (r *CampaignMessageRepository) List(ctx context.Context, filter MessageFilter) ([]models.CampaignMessage, int, error) {
	conditions := []string{"campaign_id = $1"}
	args := []interface{}{filter.CampaignID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM campaign_messages WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", campaignMessageColumns, where, size, (page-1)*size)
	var messages []models.CampaignMessage
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list campaign messages: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM campaign_messages WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count campaign messages: %w", err)
	}
	return messages, total, nil
}

// ListAll returns every message of a campaign in send order, for exports.
func (r *CampaignMessageRepository) ListAll(ctx context.Context, campaignID string) ([]models.CampaignMessage, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_messages WHERE campaign_id = $1 ORDER BY created_at ASC", campaignMessageColumns)
	var messages []models.CampaignMessage
	if err := r.db.SelectContext(ctx, &messages, query, campaignID); err != nil {
		return nil, fmt.Errorf("list all campaign messages: %w", err)
	}
	return messages, nil
}

// HasSentSince reports whether the student already received this campaign
// for the given occurrence on or after since.
func (r *CampaignMessageRepository) HasSentSince(ctx context.Context, campaignID, studentID, occurrence string, since time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM campaign_messages WHERE campaign_id = $1 AND student_id = $2 AND occurrence_key = $3
        AND status = $4 AND created_at >= $5)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, campaignID, studentID, occurrence, models.MessageSent, since); err != nil {
		return false, fmt.Errorf("check sent campaign message: %w", err)
	}
	return exists, nil
}
