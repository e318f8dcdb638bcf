package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
	"github.com/noah-isme/sports-academy-api/pkg/whatsapp"
)

type campaignMessageWriter interface {
	Create(ctx context.Context, msg *models.CampaignMessage) error
	UpdateStatus(ctx context.Context, msg *models.CampaignMessage) error
}

type campaignCounter interface {
	RecordSent(ctx context.Context, id string, at time.Time) error
	RecordFailed(ctx context.Context, id string, at time.Time) error
}

// CampaignDispatcher sends one campaign message to one student and records
// the outcome on the message row and the campaign analytics.
type CampaignDispatcher struct {
	messages  campaignMessageWriter
	campaigns campaignCounter
	notifier  whatsapp.Sender
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewCampaignDispatcher constructs a dispatcher.
func NewCampaignDispatcher(messages campaignMessageWriter, campaigns campaignCounter, notifier whatsapp.Sender, metrics *MetricsService, logger *zap.Logger) *CampaignDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignDispatcher{
		messages:  messages,
		campaigns: campaigns,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Send renders the template, stores a pending message, calls the notifier
// and records the result. The pending row is written before the notifier is
// called. A notifier failure is recorded and returned as ErrNotifier.
func (d *CampaignDispatcher) Send(ctx context.Context, campaign models.Campaign, recipient Recipient) (*models.CampaignMessage, error) {
	student := recipient.Student
	studentID := student.ID
	msg := &models.CampaignMessage{
		CampaignID:     campaign.ID,
		Recipient:      student.Phone,
		StudentID:      &studentID,
		OccurrenceKey:  recipient.OccurrenceKey(),
		MessageContent: RenderTemplate(campaign.MessageTemplate.Text, recipient.Variables),
		Status:         models.MessagePending,
	}
	if err := d.messages.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to record campaign message")
	}

	result, sendErr := d.notifier.Send(ctx, whatsapp.Message{To: student.Phone, Body: msg.MessageContent, Type: whatsapp.TypeGeneral})
	if sendErr == nil && (result == nil || !result.Success) {
		sendErr = errors.New("notifier rejected message")
	}
	now := d.now().UTC()
	rule := campaign.AutomationRules.Type

	if sendErr != nil {
		reason := sendErr.Error()
		msg.Status = models.MessageFailed
		msg.ErrorMessage = &reason
		if err := d.messages.UpdateStatus(ctx, msg); err != nil {
			d.logger.Sugar().Errorw("failed to mark campaign message failed", "campaign_id", campaign.ID, "message_id", msg.ID, "error", err)
		}
		if err := d.campaigns.RecordFailed(ctx, campaign.ID, now); err != nil {
			d.logger.Sugar().Errorw("failed to record campaign failure", "campaign_id", campaign.ID, "error", err)
		}
		d.metrics.RecordDispatch(rule, false)
		return msg, appErrors.Wrap(sendErr, appErrors.ErrNotifier.Code, appErrors.ErrNotifier.Status, appErrors.ErrNotifier.Message)
	}

	externalID := result.MessageID
	msg.Status = models.MessageSent
	msg.SentAt = &now
	msg.ExternalID = &externalID
	if err := d.messages.UpdateStatus(ctx, msg); err != nil {
		d.logger.Sugar().Errorw("failed to mark campaign message sent", "campaign_id", campaign.ID, "message_id", msg.ID, "error", err)
	}
	if err := d.campaigns.RecordSent(ctx, campaign.ID, now); err != nil {
		d.logger.Sugar().Errorw("failed to record campaign send", "campaign_id", campaign.ID, "error", err)
	}
	d.metrics.RecordDispatch(rule, true)
	return msg, nil
}
