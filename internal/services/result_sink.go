package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edadapt/assessment-service/internal/events"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/session"
)

// repoResultSink persists completed results and publishes the completion
// event. Persistence failure is the sink's error; a publish failure is only
// logged, events are best effort.
type repoResultSink struct {
	repo      repositories.ResultRepository
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewResultSink(repo repositories.ResultRepository, publisher events.EventPublisher, logger *slog.Logger) session.ResultSink {
	return &repoResultSink{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *repoResultSink) Store(ctx context.Context, result *models.TestResult) error {
	if err := s.repo.Create(ctx, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	if s.publisher != nil {
		event := events.NewAttemptCompletedEvent(result)
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish attempt completed event",
				"attempt_id", result.AttemptID, "error", err)
		}
	}
	return nil
}
