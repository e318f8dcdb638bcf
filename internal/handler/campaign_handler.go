package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/service"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
	"github.com/noah-isme/sports-academy-api/pkg/response"
)

type campaignService interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	Get(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, req service.CampaignRequest, createdBy string) (*models.Campaign, error)
	Update(ctx context.Context, id string, req service.CampaignRequest) (*models.Campaign, error)
	Delete(ctx context.Context, id string) error
	ListMessages(ctx context.Context, campaignID string, status models.MessageStatus, page, pageSize int) ([]models.CampaignMessage, *models.Pagination, error)
	ExportMessages(ctx context.Context, campaignID, format string) (*service.MessageExport, error)
}

type campaignAutomation interface {
	Stop(campaignID string) bool
	Restart(ctx context.Context, campaignID string) error
	RunOnce(ctx context.Context, campaignID string) (string, error)
	Status() []models.AutomationStatus
}

// CampaignHandler exposes campaign administration and automation controls.
type CampaignHandler struct {
	campaigns  campaignService
	automation campaignAutomation
}

// NewCampaignHandler constructs a campaign handler.
func NewCampaignHandler(campaigns campaignService, automation campaignAutomation) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, automation: automation}
}

// List godoc
// @Summary List campaigns
// @Tags Campaigns
// @Produce json
// @Param status query string false "draft, active, paused or completed"
// @Param trigger query string false "manual, automated or scheduled"
// @Param type query string false "Campaign type"
// @Success 200 {object} response.Envelope
// @Router /campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	filter := models.CampaignFilter{
		Status:  models.CampaignStatus(c.Query("status")),
		Trigger: models.CampaignTrigger(c.Query("trigger")),
		Type:    models.CampaignType(c.Query("type")),
	}
	campaigns, err := h.campaigns.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaigns, nil)
}

// Get godoc
// @Summary Get campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Create godoc
// @Summary Create campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param payload body service.CampaignRequest true "Campaign payload"
// @Success 201 {object} response.Envelope
// @Router /campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req service.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	campaign, err := h.campaigns.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, campaign)
}

// Update godoc
// @Summary Update campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body service.CampaignRequest true "Campaign payload"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id} [put]
func (h *CampaignHandler) Update(c *gin.Context) {
	var req service.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	campaign, err := h.campaigns.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Delete godoc
// @Summary Delete campaign
// @Tags Campaigns
// @Param id path string true "Campaign ID"
// @Success 204
// @Router /campaigns/{id} [delete]
func (h *CampaignHandler) Delete(c *gin.Context) {
	if err := h.campaigns.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AutomationStatus godoc
// @Summary List installed campaign timers
// @Tags Campaigns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campaigns/automation [get]
func (h *CampaignHandler) AutomationStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.automation.Status(), nil)
}

// StopAutomation godoc
// @Summary Stop a campaign timer
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/automation/stop [post]
func (h *CampaignHandler) StopAutomation(c *gin.Context) {
	id := c.Param("id")
	stopped := h.automation.Stop(id)
	response.JSON(c, http.StatusOK, gin.H{"campaign_id": id, "stopped": stopped}, nil)
}

// RestartAutomation godoc
// @Summary Reload and reinstall a campaign timer
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/automation/restart [post]
func (h *CampaignHandler) RestartAutomation(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.campaigns.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.automation.Restart(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	installed := false
	for _, st := range h.automation.Status() {
		if st.CampaignID == id {
			installed = true
			break
		}
	}
	response.JSON(c, http.StatusOK, gin.H{"campaign_id": id, "installed": installed}, nil)
}

// RunNow godoc
// @Summary Run a campaign rule once in the background
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 202 {object} response.Envelope
// @Router /campaigns/{id}/automation/run [post]
func (h *CampaignHandler) RunNow(c *gin.Context) {
	id := c.Param("id")
	jobID, err := h.automation.RunOnce(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"campaign_id": id, "job_id": jobID})
}

// Messages godoc
// @Summary List campaign messages
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Param status query string false "Message status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/messages [get]
func (h *CampaignHandler) Messages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	messages, pagination, err := h.campaigns.ListMessages(c.Request.Context(), c.Param("id"), models.MessageStatus(c.Query("status")), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}

// ExportMessages godoc
// @Summary Download the campaign delivery report
// @Tags Campaigns
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Campaign ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /campaigns/{id}/messages/export [get]
func (h *CampaignHandler) ExportMessages(c *gin.Context) {
	result, err := h.campaigns.ExportMessages(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
