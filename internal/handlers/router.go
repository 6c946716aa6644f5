package handlers

import (
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/edadapt/assessment-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler    *SessionHandler
	testHandler       *TestHandler
	analyticsHandler  *AnalyticsHandler
	extractionHandler *ExtractionHandler
	authClient        *casdoorsdk.Client
	logger            utils.Logger
}

func NewHandlerManager(
	sessionService services.SessionService,
	testService services.TestService,
	analyticsService services.AnalyticsService,
	extractionService services.ExtractionService,
	importService services.ImportExportService,
	authClient *casdoorsdk.Client,
	v *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:    NewSessionHandler(sessionService, v, logger),
		testHandler:       NewTestHandler(testService, importService, v, logger),
		analyticsHandler:  NewAnalyticsHandler(analyticsService, logger),
		extractionHandler: NewExtractionHandler(extractionService, logger),
		authClient:        authClient,
		logger:            logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "assessment-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.authClient, hm.logger))
	{
		// Session routes (students)
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/enter", hm.sessionHandler.EnterSession)
			sessions.GET("/:attempt_id", hm.sessionHandler.GetSession)
			sessions.POST("/:attempt_id/answer", hm.sessionHandler.SelectAnswer)
			sessions.POST("/:attempt_id/navigate", hm.sessionHandler.Navigate)
			sessions.POST("/:attempt_id/flag", hm.sessionHandler.ToggleFlag)
			sessions.POST("/:attempt_id/submit", hm.sessionHandler.SubmitSession)
		}

		// Test routes (teachers)
		tests := v1.Group("/tests")
		{
			tests.GET("/:code", hm.testHandler.GetTest)

			teacherOnly := tests.Group("")
			teacherOnly.Use(RequireRole(models.RoleTeacher))
			{
				teacherOnly.POST("", hm.testHandler.CreateTest)
				teacherOnly.GET("", hm.testHandler.ListTests)
				teacherOnly.GET("/mine", hm.testHandler.GetTestsByCreator)
				teacherOnly.PUT("/:code", hm.testHandler.UpdateTest)
				teacherOnly.PUT("/:code/status", hm.testHandler.UpdateTestStatus)
				teacherOnly.DELETE("/:code", hm.testHandler.DeleteTest)

				// Question management
				teacherOnly.GET("/:code/questions", hm.testHandler.GetQuestions)
				teacherOnly.PUT("/:code/questions", hm.testHandler.ReplaceQuestions)
				teacherOnly.POST("/:code/questions/import", hm.testHandler.ImportQuestions)

				// Analytics
				teacherOnly.GET("/:code/stats", hm.analyticsHandler.GetTestStats)
				teacherOnly.GET("/:code/results", hm.analyticsHandler.GetTestResults)
				teacherOnly.GET("/:code/results/export", hm.testHandler.ExportResults)
			}
		}

		// Result and analytics routes
		results := v1.Group("/results")
		{
			results.GET("/me", hm.analyticsHandler.GetMyResults)
			results.GET("/me/summary", hm.analyticsHandler.GetMySummary)
			results.GET("/:attempt_id", hm.analyticsHandler.GetResult)
		}

		// Extraction routes (teachers)
		extraction := v1.Group("/extraction")
		extraction.Use(RequireRole(models.RoleTeacher))
		{
			extraction.POST("/questions", hm.extractionHandler.ExtractQuestions)
		}
	}
}
