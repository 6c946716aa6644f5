package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edadapt/assessment-service/internal/cache"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/session"
)

const questionCacheTTL = 5 * time.Minute

// repoQuestionSource adapts the question repository to the session's
// QuestionSource, with a read-through Redis cache per test and tier.
type repoQuestionSource struct {
	repo   repositories.QuestionRepository
	cache  cache.CacheService
	logger *slog.Logger
}

func NewQuestionSource(repo repositories.QuestionRepository, cacheService cache.CacheService, logger *slog.Logger) session.QuestionSource {
	return &repoQuestionSource{
		repo:   repo,
		cache:  cacheService,
		logger: logger,
	}
}

func (s *repoQuestionSource) ResolvePractice(ctx context.Context, testCode string) ([]models.Question, error) {
	return s.resolve(ctx, testCode, models.TierPractice)
}

func (s *repoQuestionSource) ResolveTier(ctx context.Context, testCode string, tier models.DifficultyTier) ([]models.Question, error) {
	return s.resolve(ctx, testCode, tier)
}

func (s *repoQuestionSource) resolve(ctx context.Context, testCode string, tier models.DifficultyTier) ([]models.Question, error) {
	key := questionCacheKey(testCode, tier)

	if s.cache != nil {
		var cached []models.Question
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	questions, err := s.repo.GetByTestAndStage(ctx, testCode, tier)
	if err != nil {
		return nil, fmt.Errorf("load %s questions for test %s: %w", tier, testCode, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, questions, questionCacheTTL); err != nil {
			s.logger.Warn("Failed to cache question set",
				"test_code", testCode, "tier", tier, "error", err)
		}
	}
	return questions, nil
}

func questionCacheKey(testCode string, tier models.DifficultyTier) string {
	return fmt.Sprintf("questions:%s:%s", testCode, tier)
}

// questionCachePattern matches every cached pool of one test, for
// invalidation after question edits or imports.
func questionCachePattern(testCode string) string {
	return fmt.Sprintf("questions:%s:*", testCode)
}
