package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/edadapt/assessment-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type TestHandler struct {
	BaseHandler
	testService   services.TestService
	importService services.ImportExportService
	validator     *validator.Validator
}

func NewTestHandler(testService services.TestService, importService services.ImportExportService, v *validator.Validator, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler:   NewBaseHandler(logger),
		testService:   testService,
		importService: importService,
		validator:     v,
	}
}

type updateStatusRequest struct {
	Status models.TestStatus `json:"status" validate:"required,test_status"`
}

type replaceQuestionsRequest struct {
	Questions []services.QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// CreateTest creates a new test in draft status
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	test, err := h.testService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, test)
}

// GetTest retrieves a test by code
func (h *TestHandler) GetTest(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}

	test, err := h.testService.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// ListTests lists tests with filters
func (h *TestHandler) ListTests(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseTestFilters(c)

	tests, total, err := h.testService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: tests, Total: total})
}

// GetTestsByCreator lists the authenticated teacher's tests
func (h *TestHandler) GetTestsByCreator(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseTestFilters(c)

	tests, total, err := h.testService.GetByCreator(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: tests, Total: total})
}

// UpdateTest updates title, subject or duration
func (h *TestHandler) UpdateTest(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}

	var req services.UpdateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	test, err := h.testService.Update(c.Request.Context(), code, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// UpdateTestStatus moves a test through its lifecycle
func (h *TestHandler) UpdateTestStatus(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}

	var req updateStatusRequest
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

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.testService.UpdateStatus(c.Request.Context(), code, req.Status, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Test status updated"})
}

// DeleteTest removes a test and its questions
func (h *TestHandler) DeleteTest(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), code, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Test deleted"})
}

// GetQuestions returns all question pools of a test, answer keys included,
// for the creator only
func (h *TestHandler) GetQuestions(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	questions, err := h.testService.GetQuestions(c.Request.Context(), code, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// ReplaceQuestions swaps the full question set of a test
func (h *TestHandler) ReplaceQuestions(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}

	var req replaceQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.testService.ReplaceQuestions(c.Request.Context(), code, req.Questions, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions replaced"})
}

// ImportQuestions uploads a CSV or XLSX file of questions
func (h *TestHandler) ImportQuestions(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing upload file",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Could not read upload file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")

	h.LogRequest(c, "Importing questions", "test_code", code, "filename", fileHeader.Filename)

	result, err := h.importService.ImportQuestions(c.Request.Context(), code, format, file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportResults downloads the test's results as an XLSX workbook
func (h *TestHandler) ExportResults(c *gin.Context) {
	code := ParseStringIDParam(c, "code")
	if code == "" {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	data, err := h.importService.ExportResults(c.Request.Context(), code, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("results_%s_%s.xlsx", code, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *TestHandler) parseTestFilters(c *gin.Context) repositories.TestFilters {
	limit, offset := parsePagination(c)
	filters := repositories.TestFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.TestStatus(status)
		filters.Status = &s
	}
	if subject := c.Query("subject"); subject != "" {
		filters.Subject = &subject
	}
	return filters
}
