package services

import (
	"context"
	"io"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/session"
)

// ===== SESSION SERVICE =====

// SessionService owns the registry of live attempt sessions. Each session
// runs a one-second scheduler that drives the countdown; the service routes
// student actions to the right session and enforces ownership.
type SessionService interface {
	Enter(ctx context.Context, testCode, studentID string) (*session.Snapshot, error)
	Snapshot(ctx context.Context, attemptID, studentID string) (*session.Snapshot, error)
	SelectAnswer(ctx context.Context, attemptID, studentID string, index int, value string) (*session.Snapshot, error)
	Navigate(ctx context.Context, attemptID, studentID string, delta int) (*session.Snapshot, error)
	ToggleFlag(ctx context.Context, attemptID, studentID string, index int) (*session.Snapshot, error)
	Submit(ctx context.Context, attemptID, studentID string) (*models.TestResult, error)

	// Close stops all schedulers. Live sessions are auto-submitted so no
	// attempt is silently lost on shutdown.
	Close(ctx context.Context) error
}

// ===== TEST SERVICE =====

type CreateTestRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	Subject  string `json:"subject" validate:"required,min=1,max=100"`
	Duration int    `json:"duration" validate:"required,min=5,max=300"`
}

type UpdateTestRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Subject  *string `json:"subject" validate:"omitempty,min=1,max=100"`
	Duration *int    `json:"duration" validate:"omitempty,min=5,max=300"`
}

type QuestionInput struct {
	Stage         models.DifficultyTier `json:"stage" validate:"required,difficulty_tier"`
	Position      int                   `json:"position"`
	Prompt        string                `json:"prompt" validate:"required"`
	PassageTitle  *string               `json:"passage_title"`
	PassageText   *string               `json:"passage_text"`
	Options       []string              `json:"options"`
	CorrectAnswer *string               `json:"correct_answer"`
}

type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*models.Test, error)
	GetByCode(ctx context.Context, code string) (*models.Test, error)
	List(ctx context.Context, filters repositories.TestFilters, userID string) ([]*models.Test, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error)
	Update(ctx context.Context, code string, req *UpdateTestRequest, userID string) (*models.Test, error)
	UpdateStatus(ctx context.Context, code string, status models.TestStatus, userID string) error
	Delete(ctx context.Context, code string, userID string) error

	GetQuestions(ctx context.Context, code string, userID string) ([]models.Question, error)
	ReplaceQuestions(ctx context.Context, code string, inputs []QuestionInput, userID string) error
}

// ===== ANALYTICS SERVICE =====

// StudentSummary aggregates a student's completed attempts.
type StudentSummary struct {
	StudentID     string                        `json:"student_id"`
	Student       *models.User                  `json:"student,omitempty"`
	TotalAttempts int                           `json:"total_attempts"`
	AverageScore  float64                       `json:"average_score"`
	BestScore     int                           `json:"best_score"`
	ScoreTrend    []TrendPoint                  `json:"score_trend"`
	BySubject     map[string]SubjectStats       `json:"by_subject"`
	ByTier        map[models.DifficultyTier]int `json:"by_tier"`
}

type TrendPoint struct {
	TestCode    string `json:"test_code"`
	Score       int    `json:"score"`
	CompletedAt string `json:"completed_at"`
}

type SubjectStats struct {
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
}

type AnalyticsService interface {
	StudentSummary(ctx context.Context, studentID string) (*StudentSummary, error)
	StudentResults(ctx context.Context, studentID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error)
	TestStats(ctx context.Context, testCode, userID string) (*repositories.TestStats, error)
	TestResults(ctx context.Context, testCode string, filters repositories.ResultFilters, userID string) ([]*models.TestResult, int64, error)
	ResultByAttempt(ctx context.Context, attemptID, userID string) (*models.TestResult, error)
}

// ===== EXTRACTION SERVICE =====

type ExtractionRequest struct {
	SourceText    string `json:"source_text" validate:"required,min=20"`
	Subject       string `json:"subject" validate:"required"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=50"`
	// Page images from the source document, for figures the text layer loses.
	ImageURLs []string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

// ExtractedQuestion is one model-proposed question before review. It maps
// onto QuestionInput once a teacher accepts it.
type ExtractedQuestion struct {
	Stage         models.DifficultyTier `json:"stage"`
	Prompt        string                `json:"prompt"`
	PassageTitle  *string               `json:"passage_title,omitempty"`
	PassageText   *string               `json:"passage_text,omitempty"`
	Options       []string              `json:"options"`
	CorrectAnswer string                `json:"correct_answer"`
}

type ExtractionService interface {
	ExtractQuestions(ctx context.Context, req *ExtractionRequest) ([]ExtractedQuestion, error)
}

// ===== IMPORT / EXPORT SERVICE =====

type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

type ImportExportService interface {
	// ImportQuestions parses an uploaded CSV or XLSX file and replaces the
	// test's question pools with its contents.
	ImportQuestions(ctx context.Context, testCode, format string, r io.Reader, userID string) (*ImportResult, error)

	// ExportResults renders all results of a test as an XLSX workbook.
	ExportResults(ctx context.Context, testCode, userID string) ([]byte, error)
}
