package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/edadapt/assessment-service/internal/cache"
	"github.com/edadapt/assessment-service/internal/events"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/validator"
)

const (
	testCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	testCodeLength   = 6
	testCodeAttempts = 10
)

type testService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewTestService(repo repositories.Repository, cacheService cache.CacheService, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) TestService {
	return &testService{
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

// ===== CORE TEST OPERATIONS =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*models.Test, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	test := &models.Test{
		Code:      code,
		Title:     req.Title,
		Subject:   req.Subject,
		Duration:  req.Duration,
		Status:    models.TestStatusDraft,
		CreatedBy: creatorID,
	}

	if err := s.repo.Test().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.logger.Info("Test created",
		"test_code", test.Code,
		"title", test.Title,
		"created_by", creatorID)

	return test, nil
}

func (s *testService) GetByCode(ctx context.Context, code string) (*models.Test, error) {
	test, err := s.repo.Test().GetByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	counts, err := s.repo.Question().CountByStage(ctx, code)
	if err != nil {
		s.logger.Warn("Failed to load question counts", "test_code", code, "error", err)
	} else {
		test.QuestionCounts = counts
	}
	return test, nil
}

func (s *testService) List(ctx context.Context, filters repositories.TestFilters, userID string) ([]*models.Test, int64, error) {
	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list tests: %w", err)
	}
	return tests, total, nil
}

func (s *testService) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	tests, total, err := s.repo.Test().GetByCreator(ctx, creatorID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list tests by creator: %w", err)
	}
	return tests, total, nil
}

func (s *testService) Update(ctx context.Context, code string, req *UpdateTestRequest, userID string) (*models.Test, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	test, err := s.getOwnedTest(ctx, code, userID, "update")
	if err != nil {
		return nil, err
	}
	if test.Status == models.TestStatusArchived {
		return nil, ErrTestNotEditable
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Subject != nil {
		test.Subject = *req.Subject
	}
	if req.Duration != nil {
		test.Duration = *req.Duration
	}

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return test, nil
}

// UpdateStatus moves a test through Draft -> Active -> Archived. Activation
// requires at least one practice question so a student can always enter.
func (s *testService) UpdateStatus(ctx context.Context, code string, status models.TestStatus, userID string) error {
	test, err := s.getOwnedTest(ctx, code, userID, "change status")
	if err != nil {
		return err
	}

	if !validStatusTransition(test.Status, status) {
		return ErrTestInvalidStatus
	}

	if status == models.TestStatusActive {
		counts, err := s.repo.Question().CountByStage(ctx, code)
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		if counts[models.TierPractice] == 0 {
			return ErrTestHasNoQuestions
		}
	}

	test.Status = status
	if err := s.repo.Test().Update(ctx, test); err != nil {
		return fmt.Errorf("update test status: %w", err)
	}

	s.logger.Info("Test status changed",
		"test_code", code, "status", status, "changed_by", userID)

	if s.publisher != nil {
		var eventType events.EventType
		switch status {
		case models.TestStatusActive:
			eventType = events.EventTestActivated
		case models.TestStatusArchived:
			eventType = events.EventTestArchived
		default:
			return nil
		}
		event := events.NewTestStatusEvent(eventType, test, userID)
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish test status event",
				"test_code", code, "error", err)
		}
	}
	return nil
}

func (s *testService) Delete(ctx context.Context, code string, userID string) error {
	if _, err := s.getOwnedTest(ctx, code, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Test().Delete(ctx, code); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("delete test: %w", err)
	}

	s.invalidateQuestionCache(ctx, code)
	s.logger.Info("Test deleted", "test_code", code, "deleted_by", userID)
	return nil
}

// ===== QUESTION MANAGEMENT =====

func (s *testService) GetQuestions(ctx context.Context, code string, userID string) ([]models.Question, error) {
	if _, err := s.getOwnedTest(ctx, code, userID, "read questions"); err != nil {
		return nil, err
	}
	questions, err := s.repo.Question().GetByTest(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (s *testService) ReplaceQuestions(ctx context.Context, code string, inputs []QuestionInput, userID string) error {
	test, err := s.getOwnedTest(ctx, code, userID, "replace questions")
	if err != nil {
		return err
	}
	if test.Status == models.TestStatusArchived {
		return ErrTestNotEditable
	}

	questions, err := s.buildQuestions(code, inputs, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Question().ReplaceForTest(ctx, code, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}

	s.invalidateQuestionCache(ctx, code)
	s.logger.Info("Question pools replaced",
		"test_code", code, "questions", len(questions), "updated_by", userID)
	return nil
}

func (s *testService) buildQuestions(code string, inputs []QuestionInput, userID string) ([]*models.Question, error) {
	questions := make([]*models.Question, 0, len(inputs))
	positions := make(map[models.DifficultyTier]int)

	for i, in := range inputs {
		if err := s.validator.ValidateStruct(&in); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if in.Stage == models.TierPractice && in.CorrectAnswer == nil {
			return nil, NewValidationError("correct_answer",
				fmt.Sprintf("practice question %d must have a correct answer", i+1), nil)
		}

		q := &models.Question{
			TestCode:      code,
			Stage:         in.Stage,
			Position:      positions[in.Stage],
			Prompt:        in.Prompt,
			PassageTitle:  in.PassageTitle,
			PassageText:   in.PassageText,
			CorrectAnswer: in.CorrectAnswer,
			CreatedBy:     userID,
		}
		if err := q.SetOptionValues(in.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", i+1, err)
		}
		positions[in.Stage]++
		questions = append(questions, q)
	}
	return questions, nil
}

// ===== HELPERS =====

func (s *testService) getOwnedTest(ctx context.Context, code, userID, action string) (*models.Test, error) {
	test, err := s.repo.Test().GetByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, "test "+code, action, "not the creator")
	}
	return test, nil
}

func (s *testService) invalidateQuestionCache(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, questionCachePattern(code)); err != nil {
		s.logger.Warn("Failed to invalidate question cache", "test_code", code, "error", err)
	}
}

func (s *testService) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < testCodeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.Test().ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrTestCodeExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, testCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate test code: %w", err)
	}
	for i, b := range buf {
		buf[i] = testCodeAlphabet[int(b)%len(testCodeAlphabet)]
	}
	return string(buf), nil
}

func validStatusTransition(from, to models.TestStatus) bool {
	switch from {
	case models.TestStatusDraft:
		return to == models.TestStatusActive
	case models.TestStatusActive:
		return to == models.TestStatusArchived
	}
	return false
}
