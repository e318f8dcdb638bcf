package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/repository"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
	"github.com/noah-isme/sports-academy-api/pkg/export"
)

type campaignStore interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, id string) error
}

type campaignMessageReader interface {
	List(ctx context.Context, filter repository.MessageFilter) ([]models.CampaignMessage, int, error)
	ListAll(ctx context.Context, campaignID string) ([]models.CampaignMessage, error)
}

type automationController interface {
	Restart(ctx context.Context, campaignID string) error
	Stop(campaignID string) bool
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// CampaignRequest is the create and update payload.
type CampaignRequest struct {
	Name            string                  `json:"name" validate:"required,max=255"`
	Description     string                  `json:"description"`
	Type            models.CampaignType     `json:"type" validate:"required,oneof=welcome fee_reminder attendance_followup birthday event custom"`
	Status          models.CampaignStatus   `json:"status" validate:"omitempty,oneof=draft active paused completed"`
	Trigger         models.CampaignTrigger  `json:"trigger" validate:"required,oneof=manual automated scheduled"`
	TargetAudience  models.JSONMap          `json:"target_audience"`
	MessageTemplate models.MessageTemplate  `json:"message_template"`
	AutomationRules *models.AutomationRules `json:"automation_rules"`
}

// MessageExport is a rendered delivery report.
type MessageExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// CampaignService manages campaign definitions and keeps the scheduler in
// step with them.
type CampaignService struct {
	repo       campaignStore
	messages   campaignMessageReader
	automation automationController
	csv        datasetRenderer
	pdf        datasetRenderer
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewCampaignService constructs CampaignService.
func NewCampaignService(repo campaignStore, messages campaignMessageReader, automation automationController, validate *validator.Validate, logger *zap.Logger) *CampaignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		repo:       repo,
		messages:   messages,
		automation: automation,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns campaigns matching filter.
func (s *CampaignService) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	campaigns, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list campaigns")
	}
	return campaigns, nil
}

// Get returns one campaign.
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Internal(err, "failed to load campaign")
	}
	return campaign, nil
}

// Create stores a campaign and installs its automation when it is active
// and automated.
func (s *CampaignService) Create(ctx context.Context, req CampaignRequest, createdBy string) (*models.Campaign, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	campaign := &models.Campaign{}
	applyCampaignRequest(campaign, req)
	if campaign.Status == "" {
		campaign.Status = models.CampaignDraft
	}
	if createdBy != "" {
		campaign.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, appErrors.Internal(err, "failed to create campaign")
	}
	s.restart(ctx, campaign.ID)
	return campaign, nil
}

// Update replaces a campaign's definition and restarts its automation.
func (s *CampaignService) Update(ctx context.Context, id string, req CampaignRequest) (*models.Campaign, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCampaignRequest(campaign, req)
	if err := s.repo.Update(ctx, campaign); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Internal(err, "failed to update campaign")
	}
	s.restart(ctx, campaign.ID)
	return campaign, nil
}

// Delete stops the campaign's automation and removes it.
func (s *CampaignService) Delete(ctx context.Context, id string) error {
	s.automation.Stop(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return appErrors.Internal(err, "failed to delete campaign")
	}
	return nil
}

// ListMessages returns one page of a campaign's delivery log.
func (s *CampaignService) ListMessages(ctx context.Context, campaignID string, status models.MessageStatus, page, pageSize int) ([]models.CampaignMessage, *models.Pagination, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, nil, err
	}
	page, pageSize = models.NormalizePage(page, pageSize)
	messages, total, err := s.messages.List(ctx, repository.MessageFilter{CampaignID: campaignID, Status: status, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list campaign messages")
	}
	return messages, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ExportMessages renders the full delivery log as CSV or PDF.
func (s *CampaignService) ExportMessages(ctx context.Context, campaignID, rawFormat string) (*MessageExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListAll(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load campaign messages")
	}

	dataset := messageDataset(campaign, messages)
	renderer := s.csv
	if format == export.FormatPDF {
		renderer = s.pdf
	}
	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	return &MessageExport{
		Filename:    fmt.Sprintf("campaign-%s-%s.%s", campaign.ID, s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *CampaignService) validate(req CampaignRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	if req.Trigger == models.TriggerAutomated {
		if req.AutomationRules == nil || !SupportedRule(req.AutomationRules.Type) {
			return appErrors.Clone(appErrors.ErrValidation, "automated campaigns need a supported automation rule")
		}
	}
	return nil
}

// restart logs scheduler failures without failing the write.
func (s *CampaignService) restart(ctx context.Context, id string) {
	if s.automation == nil {
		return
	}
	if err := s.automation.Restart(ctx, id); err != nil {
		s.logger.Sugar().Warnw("failed to restart campaign automation", "campaign_id", id, "error", err)
	}
}

func applyCampaignRequest(campaign *models.Campaign, req CampaignRequest) {
	campaign.Name = req.Name
	campaign.Description = req.Description
	campaign.Type = req.Type
	if req.Status != "" {
		campaign.Status = req.Status
	}
	campaign.Trigger = req.Trigger
	campaign.TargetAudience = req.TargetAudience
	campaign.MessageTemplate = req.MessageTemplate
	if req.AutomationRules != nil {
		campaign.AutomationRules = *req.AutomationRules
	} else {
		campaign.AutomationRules = models.AutomationRules{}
	}
}

func messageDataset(campaign *models.Campaign, messages []models.CampaignMessage) export.Dataset {
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Campaign delivery report: %s", campaign.Name),
		Headers: []string{"Recipient", "Student", "Status", "Sent At", "Error", "Message"},
	}
	for _, m := range messages {
		row := map[string]string{
			"Recipient": m.Recipient,
			"Status":    string(m.Status),
			"Message":   m.MessageContent,
		}
		if m.StudentID != nil {
			row["Student"] = *m.StudentID
		}
		if m.SentAt != nil {
			row["Sent At"] = m.SentAt.UTC().Format(time.RFC3339)
		}
		if m.ErrorMessage != nil {
			row["Error"] = *m.ErrorMessage
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}
