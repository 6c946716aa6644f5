package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestStatusDraft    TestStatus = "Draft"
	TestStatusActive   TestStatus = "Active"
	TestStatusArchived TestStatus = "Archived"
)

// Test is one published assessment: a practice pool plus three tier pools,
// addressed by a six character code students type in.
type Test struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	Code     string     `json:"code" gorm:"uniqueIndex;not null;size:6" validate:"required,test_code"`
	Title    string     `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Subject  string     `json:"subject" gorm:"size:100;index" validate:"omitempty,max=100"`
	Duration int        `json:"duration" gorm:"not null" validate:"required,min=5,max=300"` // minutes
	Status   TestStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Archived"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestCode;references:Code"`

	// Computed fields (not stored)
	QuestionCounts map[DifficultyTier]int `json:"question_counts,omitempty" gorm:"-"`
	AttemptCount   int                    `json:"attempt_count" gorm:"-"`
	AvgScore       float64                `json:"avg_score" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

// DurationSeconds is the countdown budget handed to a new session.
func (t *Test) DurationSeconds() int {
	return t.Duration * 60
}
