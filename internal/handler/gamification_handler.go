package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sports-academy-api/internal/models"
	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
	"github.com/noah-isme/sports-academy-api/pkg/response"
)

type gamificationService interface {
	ListBadges(ctx context.Context, activeOnly bool) ([]models.Badge, error)
	InitializeDefaultBadges(ctx context.Context) (int, error)
	TriggerEvent(ctx context.Context, studentID, eventType string, data map[string]interface{}) (*models.GamificationResult, error)
	AwardBadgeManually(ctx context.Context, studentID, badgeID string) (*models.GamificationResult, error)
	StudentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// TriggerEventRequest reports a student event to the badge engine.
type TriggerEventRequest struct {
	EventType string                 `json:"event_type" binding:"required"`
	Data      map[string]interface{} `json:"data"`
}

// AwardBadgeRequest grants a badge outside of rule evaluation.
type AwardBadgeRequest struct {
	BadgeID string `json:"badge_id" binding:"required"`
}

// GamificationHandler exposes badges, points and the leaderboard.
type GamificationHandler struct {
	service gamificationService
}

// NewGamificationHandler constructs a gamification handler.
func NewGamificationHandler(svc gamificationService) *GamificationHandler {
	return &GamificationHandler{service: svc}
}

// Badges godoc
// @Summary List badges
// @Tags Gamification
// @Produce json
// @Param all query bool false "Include inactive badges"
// @Success 200 {object} response.Envelope
// @Router /gamification/badges [get]
func (h *GamificationHandler) Badges(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))
	badges, err := h.service.ListBadges(c.Request.Context(), !includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// SeedBadges godoc
// @Summary Create the default badge catalogue
// @Tags Gamification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /gamification/badges/seed [post]
func (h *GamificationHandler) SeedBadges(c *gin.Context) {
	created, err := h.service.InitializeDefaultBadges(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"created": created}, nil)
}

// TriggerEvent godoc
// @Summary Process a student event
// @Tags Gamification
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body TriggerEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /gamification/students/{id}/events [post]
func (h *GamificationHandler) TriggerEvent(c *gin.Context) {
	var req TriggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.TriggerEvent(c.Request.Context(), c.Param("id"), req.EventType, req.Data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AwardBadge godoc
// @Summary Award a badge manually
// @Tags Gamification
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body AwardBadgeRequest true "Badge"
// @Success 201 {object} response.Envelope
// @Router /gamification/students/{id}/badges [post]
func (h *GamificationHandler) AwardBadge(c *gin.Context) {
	var req AwardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.AwardBadgeManually(c.Request.Context(), c.Param("id"), req.BadgeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Profile godoc
// @Summary Get a student's points, badges and history
// @Tags Gamification
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /gamification/students/{id} [get]
func (h *GamificationHandler) Profile(c *gin.Context) {
	profile, err := h.service.StudentProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Leaderboard godoc
// @Summary Top students by points
// @Tags Gamification
// @Produce json
// @Param limit query int false "Entries to return"
// @Success 200 {object} response.Envelope
// @Router /gamification/leaderboard [get]
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
