package events

import (
	"time"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents different types of attempt events
type EventType string

const (
	// Attempt events
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptCompleted EventType = "attempt.completed"

	// Test events
	EventTestActivated EventType = "test.activated"
	EventTestArchived  EventType = "test.archived"
)

// AttemptEvent is the base event structure published to the events topic
type AttemptEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID string    `json:"attempt_id"`
	TestCode  string    `json:"test_code"`
	TestTitle string    `json:"test_title"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  int       `json:"duration"` // minutes
}

type AttemptCompletedEvent struct {
	AttemptID    string                 `json:"attempt_id"`
	TestCode     string                 `json:"test_code"`
	StudentID    string                 `json:"student_id"`
	AssignedTier *models.DifficultyTier `json:"assigned_tier,omitempty"`
	Score        int                    `json:"score"`
	TimeSpent    int                    `json:"time_spent"` // seconds
	CompletedAt  time.Time              `json:"completed_at"`
}

// Test event payloads

type TestStatusEvent struct {
	TestCode  string            `json:"test_code"`
	TestTitle string            `json:"test_title"`
	Status    models.TestStatus `json:"status"`
	ChangedBy string            `json:"changed_by"`
	ChangedAt time.Time         `json:"changed_at"`
}

// Event factory functions

func NewAttemptStartedEvent(attemptID, testCode, testTitle, studentID string, startedAt time.Time, duration int) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      EventAttemptStarted,
		Timestamp: time.Now(),
		Source:    "assessment-service",
		Version:   "1.0",
		Data: AttemptStartedEvent{
			AttemptID: attemptID,
			TestCode:  testCode,
			TestTitle: testTitle,
			StudentID: studentID,
			StartedAt: startedAt,
			Duration:  duration,
		},
	}
}

func NewAttemptCompletedEvent(result *models.TestResult) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      EventAttemptCompleted,
		Timestamp: time.Now(),
		Source:    "assessment-service",
		Version:   "1.0",
		Data: AttemptCompletedEvent{
			AttemptID:    result.AttemptID,
			TestCode:     result.TestCode,
			StudentID:    result.StudentID,
			AssignedTier: result.AssignedTier,
			Score:        result.Score,
			TimeSpent:    result.TimeSpent,
			CompletedAt:  result.CompletedAt,
		},
	}
}

func NewTestStatusEvent(eventType EventType, test *models.Test, changedBy string) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "assessment-service",
		Version:   "1.0",
		Data: TestStatusEvent{
			TestCode:  test.Code,
			TestTitle: test.Title,
			Status:    test.Status,
			ChangedBy: changedBy,
			ChangedAt: time.Now(),
		},
	}
}
