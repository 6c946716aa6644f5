package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
)

type analyticsService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewAnalyticsService(repo repositories.Repository, logger *slog.Logger) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		logger: logger,
	}
}

// StudentSummary aggregates every completed attempt of one student into
// averages, a chronological score trend and per-subject / per-tier breakdowns.
func (s *analyticsService) StudentSummary(ctx context.Context, studentID string) (*StudentSummary, error) {
	results, _, err := s.repo.Result().GetByStudent(ctx, studentID, repositories.ResultFilters{})
	if err != nil {
		return nil, fmt.Errorf("load student results: %w", err)
	}

	summary := &StudentSummary{
		StudentID: studentID,
		BySubject: make(map[string]SubjectStats),
		ByTier:    make(map[models.DifficultyTier]int),
	}

	if user, err := s.repo.User().GetByID(ctx, studentID); err == nil {
		summary.Student = user
	} else if !repositories.IsNotFoundError(err) {
		s.logger.Warn("Failed to load student profile", "student_id", studentID, "error", err)
	}

	if len(results) == 0 {
		return summary, nil
	}

	subjects, err := s.subjectsByCode(ctx, results)
	if err != nil {
		return nil, err
	}

	var scoreSum int
	subjectSums := make(map[string]int)
	subjectCounts := make(map[string]int)

	// GetByStudent returns newest first; the trend reads oldest first.
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		scoreSum += r.Score
		if r.Score > summary.BestScore {
			summary.BestScore = r.Score
		}

		summary.ScoreTrend = append(summary.ScoreTrend, TrendPoint{
			TestCode:    r.TestCode,
			Score:       r.Score,
			CompletedAt: r.CompletedAt.Format(time.RFC3339),
		})

		if subject, ok := subjects[r.TestCode]; ok {
			subjectSums[subject] += r.Score
			subjectCounts[subject]++
		}
		if r.AssignedTier != nil {
			summary.ByTier[*r.AssignedTier]++
		}
	}

	summary.TotalAttempts = len(results)
	summary.AverageScore = float64(scoreSum) / float64(len(results))
	for subject, count := range subjectCounts {
		summary.BySubject[subject] = SubjectStats{
			Attempts:     count,
			AverageScore: float64(subjectSums[subject]) / float64(count),
		}
	}
	return summary, nil
}

func (s *analyticsService) StudentResults(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	results, total, err := s.repo.Result().GetByStudent(ctx, studentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("load student results: %w", err)
	}
	return results, total, nil
}

func (s *analyticsService) TestStats(ctx context.Context, testCode, userID string) (*repositories.TestStats, error) {
	if err := s.requireTestOwner(ctx, testCode, userID, "view stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Result().GetTestStats(ctx, testCode)
	if err != nil {
		return nil, fmt.Errorf("load test stats: %w", err)
	}

	counts, err := s.repo.Question().CountByStage(ctx, testCode)
	if err != nil {
		s.logger.Warn("Failed to load question counts", "test_code", testCode, "error", err)
	} else {
		stats.QuestionCounts = counts
	}
	return stats, nil
}

func (s *analyticsService) TestResults(ctx context.Context, testCode string, filters repositories.ResultFilters, userID string) ([]*models.TestResult, int64, error) {
	if err := s.requireTestOwner(ctx, testCode, userID, "view results"); err != nil {
		return nil, 0, err
	}

	results, total, err := s.repo.Result().GetByTest(ctx, testCode, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("load test results: %w", err)
	}
	return results, total, nil
}

// ResultByAttempt returns one result, visible to its student and to the
// creator of the test it belongs to.
func (s *analyticsService) ResultByAttempt(ctx context.Context, attemptID, userID string) (*models.TestResult, error) {
	result, err := s.repo.Result().GetByAttemptID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load result: %w", err)
	}

	if result.StudentID == userID {
		return result, nil
	}
	test, err := s.repo.Test().GetByCode(ctx, result.TestCode)
	if err == nil && test.CreatedBy == userID {
		return result, nil
	}
	return nil, NewPermissionError(userID, "attempt "+attemptID, "read", "not the student or test creator")
}

func (s *analyticsService) requireTestOwner(ctx context.Context, testCode, userID, action string) error {
	test, err := s.repo.Test().GetByCode(ctx, testCode)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("get test: %w", err)
	}
	if test.CreatedBy != userID {
		return NewPermissionError(userID, "test "+testCode, action, "not the creator")
	}
	return nil
}

func (s *analyticsService) subjectsByCode(ctx context.Context, results []*models.TestResult) (map[string]string, error) {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, r := range results {
		if _, ok := seen[r.TestCode]; !ok {
			seen[r.TestCode] = struct{}{}
			codes = append(codes, r.TestCode)
		}
	}

	tests, err := s.repo.Test().GetByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load tests for summary: %w", err)
	}

	subjects := make(map[string]string, len(tests))
	for _, t := range tests {
		subjects[t.Code] = t.Subject
	}
	return subjects, nil
}
