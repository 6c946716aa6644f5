package handlers

import (
	"net/http"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
	}
}

// GetMySummary returns the authenticated student's aggregate history
func (h *AnalyticsHandler) GetMySummary(c *gin.Context) {
	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	summary, err := h.analyticsService.StudentSummary(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetMyResults lists the authenticated student's completed attempts
func (h *AnalyticsHandler) GetMyResults(c *gin.Context) {
	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	results, total, err := h.analyticsService.StudentResults(c.Request.Context(), studentID, h.parseResultFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: results, Total: total})
}

// GetResult returns one result by attempt ID
func (h *AnalyticsHandler) GetResult(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.analyticsService.ResultByAttempt(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTestStats returns aggregate statistics of one test for its creator
func (h *AnalyticsHandler) GetTestStats(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.analyticsService.TestStats(c.Request.Context(), code, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetTestResults lists all results of one test for its creator
func (h *AnalyticsHandler) GetTestResults(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	results, total, err := h.analyticsService.TestResults(c.Request.Context(), code, h.parseResultFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: results, Total: total})
}

func (h *AnalyticsHandler) parseResultFilters(c *gin.Context) repositories.ResultFilters {
	limit, offset := parsePagination(c)
	filters := repositories.ResultFilters{
		Limit:  limit,
		Offset: offset,
	}
	if tier := c.Query("tier"); tier != "" {
		t := models.DifficultyTier(tier)
		filters.Tier = &t
	}
	return filters
}
