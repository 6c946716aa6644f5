package handlers

import (
	"net/http"

	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ExtractionHandler struct {
	BaseHandler
	extractionService services.ExtractionService
}

func NewExtractionHandler(extractionService services.ExtractionService, logger utils.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		BaseHandler:       NewBaseHandler(logger),
		extractionService: extractionService,
	}
}

// ExtractQuestions generates question drafts from source text. The drafts
// are returned for review; nothing is persisted until the teacher replaces
// a test's questions with them.
func (h *ExtractionHandler) ExtractQuestions(c *gin.Context) {
	var req services.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if _, ok := h.currentUserID(c); !ok {
		return
	}

	h.LogRequest(c, "Extracting questions", "subject", req.Subject)

	questions, err := h.extractionService.ExtractQuestions(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}
