package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/edadapt/assessment-service/internal/cache"
	"github.com/edadapt/assessment-service/internal/config"
	"github.com/edadapt/assessment-service/internal/handlers"
	"github.com/edadapt/assessment-service/internal/repositories/postgres"
	"github.com/edadapt/assessment-service/internal/services"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/edadapt/assessment-service/internal/validator"
	"github.com/edadapt/assessment-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	repo := postgres.NewRepository(db)
	defer repo.Close()

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	cacheService := cache.NewRedisCache(redisClient, logger)

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	authClient := casdoorsdk.NewClient(
		cfg.CasdoorEndpoint,
		cfg.CasdoorClientID,
		cfg.CasdoorClientSecret,
		cfg.CasdoorCertificate,
		cfg.CasdoorOrganization,
		cfg.CasdoorApplication,
	)

	v := validator.New()

	questionSource := services.NewQuestionSource(repo.Question(), cacheService, slogger)
	resultSink := services.NewResultSink(repo.Result(), publisher, slogger)

	sessionService := services.NewSessionService(repo, questionSource, resultSink, publisher, slogger)
	testService := services.NewTestService(repo, cacheService, publisher, slogger, v)
	analyticsService := services.NewAnalyticsService(repo, slogger)
	extractionService := services.NewExtractionService(cfg.ExtractionAPIKey, cfg.ExtractionBaseURL, cfg.ExtractionModel, slogger, v)
	importService := services.NewImportExportService(repo, cacheService, slogger, v)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(utils.ContextLogger(logger))

	handlerManager := handlers.NewHandlerManager(
		sessionService,
		testService,
		analyticsService,
		extractionService,
		importService,
		authClient,
		v,
		logger,
	)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting assessment service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Live attempts are auto-submitted before the listener closes so no
	// student work is lost on deploys.
	if err := sessionService.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close session service", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}
