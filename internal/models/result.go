package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TestResult is the persisted outcome of one completed attempt. Immutable once
// stored; owned by the result repository after hand-off from the session.
type TestResult struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttemptID string `json:"attempt_id" gorm:"uniqueIndex;not null;size:36"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index" validate:"required"`
	TestCode  string `json:"test_code" gorm:"not null;size:6;index" validate:"required,len=6"`

	// AssignedTier is nil when the attempt ended during the practice phase.
	AssignedTier *DifficultyTier `json:"assigned_tier" gorm:"size:16"`

	Score     int `json:"score" gorm:"not null" validate:"min=0,max=100"`
	TimeSpent int `json:"time_spent" gorm:"not null"` // seconds

	// Answers maps question index (within the final active sequence) to the
	// selected option value. Flags holds the indices marked review-later.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	Flags   datatypes.JSON `json:"flags" gorm:"type:jsonb"`

	CompletedAt time.Time `json:"completed_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TestResult) TableName() string {
	return "test_results"
}

// SetAnswers encodes the per-index answer snapshot.
func (r *TestResult) SetAnswers(answers map[int]string) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	r.Answers = raw
	return nil
}

// AnswerSnapshot decodes the stored answer map.
func (r *TestResult) AnswerSnapshot() (map[int]string, error) {
	answers := make(map[int]string)
	if len(r.Answers) == 0 {
		return answers, nil
	}
	err := json.Unmarshal(r.Answers, &answers)
	return answers, err
}

// SetFlags encodes the review-later indices.
func (r *TestResult) SetFlags(indices []int) error {
	raw, err := json.Marshal(indices)
	if err != nil {
		return err
	}
	r.Flags = raw
	return nil
}

// FlagSnapshot decodes the stored flag indices.
func (r *TestResult) FlagSnapshot() ([]int, error) {
	if len(r.Flags) == 0 {
		return nil, nil
	}
	var indices []int
	err := json.Unmarshal(r.Flags, &indices)
	return indices, err
}
