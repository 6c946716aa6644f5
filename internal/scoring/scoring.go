// Package scoring holds the pure functions behind the adaptive flow: scoring a
// finished answer set against a question sequence, and mapping a practice score
// to a difficulty tier. No I/O, no state; both functions are deterministic.
package scoring

import (
	"errors"

	"github.com/edadapt/assessment-service/internal/models"
)

// ErrNoQuestions is returned when Score is invoked on an empty question
// sequence. Callers must guard against zero-length sets before scoring; this
// is a precondition violation, not a recoverable runtime condition.
var ErrNoQuestions = errors.New("scoring: empty question sequence")

// Score computes the integer percentage of correct answers.
//
// Index i matches when answers[i] is present and equals questions[i]'s correct
// answer exactly. A missing answer or a question without a correct answer never
// matches and never errors; unscorable tier items simply count as incorrect.
func Score(questions []models.Question, answers map[int]string) (int, error) {
	if len(questions) == 0 {
		return 0, ErrNoQuestions
	}

	matches := 0
	for i, q := range questions {
		selected, answered := answers[i]
		if !answered || q.CorrectAnswer == nil {
			continue
		}
		if selected == *q.CorrectAnswer {
			matches++
		}
	}

	return roundPercent(matches, len(questions)), nil
}

// AssignTier maps a practice score to the tier whose question set the student
// continues with. Thresholds are closed-open, evaluated top down:
//
//	score >= 75        -> hard
//	50 <= score < 75   -> medium
//	score < 50         -> easy
//
// Inputs outside [0, 100] are clamped so the function stays total.
func AssignTier(percent int) models.DifficultyTier {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	switch {
	case percent >= 75:
		return models.TierHard
	case percent >= 50:
		return models.TierMedium
	default:
		return models.TierEasy
	}
}

// roundPercent is round-half-up of 100*matches/total in integer arithmetic,
// avoiding float drift on exact halves.
func roundPercent(matches, total int) int {
	return (200*matches + total) / (2 * total)
}
