package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DifficultyTier is the question pool a question belongs to. Practice questions
// are always presented first; tier questions only after a tier has been assigned.
type DifficultyTier string

const (
	TierPractice DifficultyTier = "practice"
	TierEasy     DifficultyTier = "easy"
	TierMedium   DifficultyTier = "medium"
	TierHard     DifficultyTier = "hard"
)

// ValidTiers are the tiers a practice score can resolve to, ordered hardest first.
// The order doubles as the fallback chain when a tier has no authored questions.
var ValidTiers = []DifficultyTier{TierHard, TierMedium, TierEasy}

func (t DifficultyTier) Valid() bool {
	switch t {
	case TierPractice, TierEasy, TierMedium, TierHard:
		return true
	}
	return false
}

type Question struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	TestCode string         `json:"test_code" gorm:"not null;size:6;index:idx_questions_test_tier" validate:"required,len=6"`
	Stage    DifficultyTier `json:"stage" gorm:"not null;size:16;index:idx_questions_test_tier" validate:"required,difficulty_tier"`
	Position int            `json:"position" gorm:"not null;default:0"`

	Prompt       string  `json:"prompt" gorm:"type:text;not null" validate:"required"`
	PassageTitle *string `json:"passage_title" gorm:"size:200"`
	PassageText  *string `json:"passage_text" gorm:"type:text"`

	// Options is a jsonb-encoded []string; empty for unscored free-form items.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb"`

	// CorrectAnswer is the option value (or letter) that scores as correct.
	// Nil means the item is unscored; practice questions must have one.
	CorrectAnswer *string `json:"correct_answer" gorm:"size:500"`

	CreatedBy string         `json:"created_by" gorm:"size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionValues decodes the jsonb options column. A missing or malformed
// column yields an empty slice rather than an error; options are display
// data and never affect scoring.
func (q *Question) OptionValues() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// SetOptionValues encodes options into the jsonb column.
func (q *Question) SetOptionValues(opts []string) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	q.Options = raw
	return nil
}
