package handlers

import (
	"net/http"

	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/edadapt/assessment-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
}

func NewSessionHandler(sessionService services.SessionService, v *validator.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      v,
	}
}

type enterSessionRequest struct {
	TestCode string `json:"test_code" validate:"required,test_code"`
}

type selectAnswerRequest struct {
	Index int    `json:"index" validate:"min=0"`
	Value string `json:"value" validate:"required"`
}

type navigateRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type toggleFlagRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// EnterSession starts a new attempt on a test code
func (h *SessionHandler) EnterSession(c *gin.Context) {
	var req enterSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
		return
	}

	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Entering assessment session", "test_code", req.TestCode)

	snap, err := h.sessionService.Enter(c.Request.Context(), req.TestCode, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// GetSession returns the current snapshot of a live attempt
func (h *SessionHandler) GetSession(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}
	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.Snapshot(c.Request.Context(), attemptID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SelectAnswer records an answer for a question index
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}

	var req selectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
		return
	}

	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.SelectAnswer(c.Request.Context(), attemptID, studentID, req.Index, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Navigate moves the current question index
func (h *SessionHandler) Navigate(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}

	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.Navigate(c.Request.Context(), attemptID, studentID, req.Delta)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ToggleFlag flips the review-later mark on a question
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}

	var req toggleFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.ToggleFlag(c.Request.Context(), attemptID, studentID, req.Index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SubmitSession ends the attempt and returns the stored result
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "attempt_id")
	if attemptID == "" {
		return
	}
	studentID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting assessment session", "attempt_id", attemptID)

	result, err := h.sessionService.Submit(c.Request.Context(), attemptID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
