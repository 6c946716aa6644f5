package services

import (
	"context"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// MockTestRepository is a mock implementation of TestRepository
type MockTestRepository struct {
	mock.Mock
}

func (m *MockTestRepository) Create(ctx context.Context, test *models.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) GetByCode(ctx context.Context, code string) (*models.Test, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Test), args.Error(1)
}

func (m *MockTestRepository) GetByCodes(ctx context.Context, codes []string) ([]*models.Test, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Test), args.Error(1)
}

func (m *MockTestRepository) Update(ctx context.Context, test *models.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) Delete(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockTestRepository) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Test), args.Get(1).(int64), args.Error(2)
}

func (m *MockTestRepository) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	args := m.Called(ctx, creatorID, filters)
	return args.Get(0).([]*models.Test), args.Get(1).(int64), args.Error(2)
}

func (m *MockTestRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByTestAndStage(ctx context.Context, testCode string, stage models.DifficultyTier) ([]models.Question, error) {
	args := m.Called(ctx, testCode, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByTest(ctx context.Context, testCode string) ([]models.Question, error) {
	args := m.Called(ctx, testCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Question), args.Error(1)
}

func (m *MockQuestionRepository) ReplaceForTest(ctx context.Context, testCode string, questions []*models.Question) error {
	args := m.Called(ctx, testCode, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) CountByStage(ctx context.Context, testCode string) (map[models.DifficultyTier]int, error) {
	args := m.Called(ctx, testCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.DifficultyTier]int), args.Error(1)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockResultRepository is a mock implementation of ResultRepository
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Create(ctx context.Context, result *models.TestResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepository) GetByAttemptID(ctx context.Context, attemptID string) (*models.TestResult, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestResult), args.Error(1)
}

func (m *MockResultRepository) GetByStudent(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	args := m.Called(ctx, studentID, filters)
	return args.Get(0).([]*models.TestResult), args.Get(1).(int64), args.Error(2)
}

func (m *MockResultRepository) GetByTest(ctx context.Context, testCode string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	args := m.Called(ctx, testCode, filters)
	return args.Get(0).([]*models.TestResult), args.Get(1).(int64), args.Error(2)
}

func (m *MockResultRepository) HasCompleted(ctx context.Context, studentID, testCode string) (bool, error) {
	args := m.Called(ctx, studentID, testCode)
	return args.Bool(0), args.Error(1)
}

func (m *MockResultRepository) GetTestStats(ctx context.Context, testCode string) (*repositories.TestStats, error) {
	args := m.Called(ctx, testCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.TestStats), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockRepository aggregates the entity mocks behind the Repository interface
type MockRepository struct {
	testRepo     *MockTestRepository
	questionRepo *MockQuestionRepository
	resultRepo   *MockResultRepository
	userRepo     *MockUserRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		testRepo:     &MockTestRepository{},
		questionRepo: &MockQuestionRepository{},
		resultRepo:   &MockResultRepository{},
		userRepo:     &MockUserRepository{},
	}
}

func (m *MockRepository) Test() repositories.TestRepository         { return m.testRepo }
func (m *MockRepository) Question() repositories.QuestionRepository { return m.questionRepo }
func (m *MockRepository) Result() repositories.ResultRepository     { return m.resultRepo }
func (m *MockRepository) User() repositories.UserRepository         { return m.userRepo }
func (m *MockRepository) Ping(ctx context.Context) error            { return nil }
func (m *MockRepository) Close() error                              { return nil }
