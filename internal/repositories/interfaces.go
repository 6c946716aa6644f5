package repositories

import (
	"context"
	"time"

	"github.com/edadapt/assessment-service/internal/models"
)

// Repository aggregates the per-entity repositories behind one handle.
type Repository interface {
	Test() TestRepository
	Question() QuestionRepository
	Result() ResultRepository
	User() UserRepository

	Ping(ctx context.Context) error
	Close() error
}

// TestRepository persists tests and their lifecycle.
type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	GetByCode(ctx context.Context, code string) (*models.Test, error)
	GetByCodes(ctx context.Context, codes []string) ([]*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	Delete(ctx context.Context, code string) error

	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters TestFilters) ([]*models.Test, int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// QuestionRepository persists the per-tier question pools of a test.
type QuestionRepository interface {
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByTestAndStage(ctx context.Context, testCode string, stage models.DifficultyTier) ([]models.Question, error)
	GetByTest(ctx context.Context, testCode string) ([]models.Question, error)
	ReplaceForTest(ctx context.Context, testCode string, questions []*models.Question) error
	CountByStage(ctx context.Context, testCode string) (map[models.DifficultyTier]int, error)
	Delete(ctx context.Context, id uint) error
}

// ResultRepository persists completed attempt outcomes. Results are write-once.
type ResultRepository interface {
	Create(ctx context.Context, result *models.TestResult) error
	GetByAttemptID(ctx context.Context, attemptID string) (*models.TestResult, error)
	GetByStudent(ctx context.Context, studentID string, filters ResultFilters) ([]*models.TestResult, int64, error)
	GetByTest(ctx context.Context, testCode string, filters ResultFilters) ([]*models.TestResult, int64, error)
	HasCompleted(ctx context.Context, studentID, testCode string) (bool, error)
	GetTestStats(ctx context.Context, testCode string) (*TestStats, error)
}

// UserRepository persists profile data for students and teachers.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	Status    *models.TestStatus `json:"status"`
	Subject   *string            `json:"subject"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type ResultFilters struct {
	Tier     *models.DifficultyTier `json:"tier"`
	DateFrom *time.Time             `json:"date_from"`
	DateTo   *time.Time             `json:"date_to"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type TestStats struct {
	TotalAttempts    int                           `json:"total_attempts"`
	AverageScore     float64                       `json:"average_score"`
	BestScore        int                           `json:"best_score"`
	AverageTimeSpent int                           `json:"average_time_spent"`
	TierBreakdown    map[models.DifficultyTier]int `json:"tier_breakdown"`
	QuestionCounts   map[models.DifficultyTier]int `json:"question_counts,omitempty"`
}
