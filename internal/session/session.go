// Package session drives one assessment attempt from practice entry to a
// submitted result: practice round, tier assignment, tiered question set,
// countdown and auto-submit. All mutation goes through one mutex so the timer
// and user actions are strictly ordered; exactly one submit ever wins.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/scoring"
)

// Stage is the phase of an attempt.
type Stage string

const (
	StagePracticing Stage = "practicing"
	StageAssigned   Stage = "assigned"
	StageSubmitted  Stage = "submitted"
)

// QuestionSource resolves a test code (and later a tier) to an ordered
// question sequence. Implementations may fail with a not-found error for an
// unknown code; the session propagates it and never invents a fallback test.
type QuestionSource interface {
	ResolvePractice(ctx context.Context, testCode string) ([]models.Question, error)
	ResolveTier(ctx context.Context, testCode string, tier models.DifficultyTier) ([]models.Question, error)
}

// ResultSink durably stores a completed attempt. The session calls Store
// exactly once per attempt and treats failure as non-fatal: the result is
// logged and kept available, retry is the caller layer's business.
type ResultSink interface {
	Store(ctx context.Context, result *models.TestResult) error
}

// Snapshot is the read-only view handed to any rendering layer. No direct
// field access into the session is possible from outside.
type Snapshot struct {
	AttemptID        string                 `json:"attempt_id"`
	Stage            Stage                  `json:"stage"`
	AssignedTier     *models.DifficultyTier `json:"assigned_tier,omitempty"`
	CurrentIndex     int                    `json:"current_index"`
	QuestionCount    int                    `json:"question_count"`
	CurrentQuestion  *models.Question       `json:"current_question,omitempty"`
	Answers          map[int]string         `json:"answers"`
	Flags            []int                  `json:"flags"`
	RemainingSeconds int                    `json:"remaining_seconds"`
}

// Session is the live state of one attempt. Create with Start; drive with
// SelectAnswer, Navigate, ToggleFlag, Tick and Submit; read with Snapshot.
type Session struct {
	attemptID string
	studentID string
	testCode  string

	source QuestionSource
	sink   ResultSink
	logger *slog.Logger

	mu        sync.Mutex
	stage     Stage
	tier      *models.DifficultyTier
	questions []models.Question
	current   int
	answers   map[int]string
	flags     map[int]struct{}
	remaining int
	elapsed   int
	resolving bool
	result    *models.TestResult
}

// Start resolves the test's practice set and returns a session in the
// practicing stage. A question source failure (unknown code included) is
// returned unchanged and no session exists afterwards.
func Start(ctx context.Context, attemptID, studentID, testCode string, durationSeconds int, source QuestionSource, sink ResultSink, logger *slog.Logger) (*Session, error) {
	practice, err := source.ResolvePractice(ctx, testCode)
	if err != nil {
		return nil, fmt.Errorf("resolve practice set: %w", err)
	}

	logger.Info("Assessment session started",
		"attempt_id", attemptID,
		"test_code", testCode,
		"student_id", studentID,
		"practice_questions", len(practice),
		"duration_seconds", durationSeconds)

	return &Session{
		attemptID: attemptID,
		studentID: studentID,
		testCode:  testCode,
		source:    source,
		sink:      sink,
		logger:    logger,
		stage:     StagePracticing,
		questions: practice,
		answers:   make(map[int]string),
		flags:     make(map[int]struct{}),
		remaining: durationSeconds,
	}, nil
}

func (s *Session) AttemptID() string { return s.attemptID }

// SelectAnswer records the selected option for a question index. Answering
// the last practice question scores the round and swaps in the assigned
// tier's set as one logical step; the intermediate state is never observable.
func (s *Session) SelectAnswer(ctx context.Context, index int, value string) error {
	s.mu.Lock()
	if s.stage == StageSubmitted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if index < 0 || index >= len(s.questions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.questions))
	}

	s.answers[index] = value

	// Completing the practice round means answering its last question, not
	// navigating past it. Only one tier resolution may be in flight.
	if s.stage != StagePracticing || s.resolving || index != len(s.questions)-1 {
		s.mu.Unlock()
		return nil
	}

	percent, err := scoring.Score(s.questions, s.answers)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	tier := scoring.AssignTier(percent)
	s.resolving = true
	s.mu.Unlock()

	s.logger.Info("Practice round scored",
		"attempt_id", s.attemptID,
		"practice_score", percent,
		"assigned_tier", tier)

	return s.installTier(ctx, tier)
}

// installTier resolves the assigned tier's question set, walking the fallback
// chain when a tier has no authored questions. The countdown keeps running
// while the lookup is outstanding; a resolution that lands after submit is
// discarded.
func (s *Session) installTier(ctx context.Context, assigned models.DifficultyTier) error {
	var (
		chosen models.DifficultyTier
		set    []models.Question
	)
	for _, t := range fallbackChain(assigned) {
		qs, err := s.source.ResolveTier(ctx, s.testCode, t)
		if err != nil {
			s.mu.Lock()
			s.resolving = false
			s.mu.Unlock()
			return fmt.Errorf("resolve %s tier: %w", t, err)
		}
		if len(qs) > 0 {
			chosen, set = t, qs
			break
		}
	}

	s.mu.Lock()
	s.resolving = false

	if s.stage == StageSubmitted {
		s.mu.Unlock()
		s.logger.Warn("Discarding tier resolution for submitted session",
			"attempt_id", s.attemptID, "tier", assigned)
		return nil
	}

	if len(set) == 0 {
		// Every tier is empty: authoring gap. Close out with a zero-question
		// result rather than stalling on an empty panel.
		s.logger.Warn("All tiers empty, submitting zero-question result",
			"attempt_id", s.attemptID, "test_code", s.testCode, "assigned_tier", assigned)
		s.tier = &assigned
		s.questions = nil
		s.answers = make(map[int]string)
		s.flags = make(map[int]struct{})
		res := s.finishLocked()
		s.mu.Unlock()
		if res != nil {
			return s.store(ctx, res)
		}
		return nil
	}

	s.stage = StageAssigned
	s.tier = &chosen
	s.questions = set
	s.current = 0
	s.answers = make(map[int]string)
	s.flags = make(map[int]struct{})
	s.mu.Unlock()

	if chosen != assigned {
		s.logger.Warn("Assigned tier empty, fell back",
			"attempt_id", s.attemptID, "assigned_tier", assigned, "effective_tier", chosen)
	}
	s.logger.Info("Tier question set installed",
		"attempt_id", s.attemptID, "tier", chosen, "questions", len(set))
	return nil
}

// Navigate moves the current index by delta, clamped to the active sequence.
// It never wraps and never touches answers or flags.
func (s *Session) Navigate(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == StageSubmitted {
		return ErrSessionClosed
	}

	next := s.current + delta
	if next < 0 {
		next = 0
	}
	if max := len(s.questions) - 1; next > max {
		next = max
	}
	if next >= 0 {
		s.current = next
	}
	return nil
}

// ToggleFlag flips the review-later mark on a question index, answered or not.
func (s *Session) ToggleFlag(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == StageSubmitted {
		return ErrSessionClosed
	}
	if index < 0 || index >= len(s.questions) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.questions))
	}

	if _, ok := s.flags[index]; ok {
		delete(s.flags, index)
	} else {
		s.flags[index] = struct{}{}
	}
	return nil
}

// Tick advances the countdown by one second and auto-submits when it reaches
// zero. Ticks after submission are no-ops so the scheduler can race shutdown
// safely. Returns true once the session is submitted.
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.stage == StageSubmitted {
		s.mu.Unlock()
		return true
	}

	if s.remaining > 0 {
		s.remaining--
		s.elapsed++
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return false
	}

	s.logger.Info("Countdown expired, auto-submitting", "attempt_id", s.attemptID)
	res := s.finishLocked()
	s.mu.Unlock()

	if res != nil {
		if err := s.store(ctx, res); err != nil {
			s.logger.Error("Failed to store auto-submitted result",
				"attempt_id", s.attemptID, "error", err)
		}
	}
	return true
}

// Submit ends the attempt with whatever stage and answers are live, builds the
// immutable result and hands it to the sink. Early submission during practice
// is permitted; such results carry no tier.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.stage == StageSubmitted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	res := s.finishLocked()
	s.mu.Unlock()

	if res == nil {
		return nil
	}
	return s.store(ctx, res)
}

// finishLocked transitions to submitted and builds the result record. It
// returns nil when the session is already submitted, which is what guarantees
// a single sink call no matter how timeout and manual submit interleave.
// Callers hold the mutex and must hand a non-nil result to store after
// unlocking.
func (s *Session) finishLocked() *models.TestResult {
	if s.stage == StageSubmitted {
		return nil
	}
	s.stage = StageSubmitted

	percent := 0
	if len(s.questions) > 0 {
		p, err := scoring.Score(s.questions, s.answers)
		if err != nil {
			// Unreachable with a non-empty set; degrade to zero instead of
			// surfacing a scoring precondition to the student.
			s.logger.Error("Scoring failed at submit", "attempt_id", s.attemptID, "error", err)
		} else {
			percent = p
		}
	}

	result := &models.TestResult{
		AttemptID:    s.attemptID,
		StudentID:    s.studentID,
		TestCode:     s.testCode,
		AssignedTier: s.tier,
		Score:        percent,
		TimeSpent:    s.elapsed,
		CompletedAt:  time.Now(),
	}
	if err := result.SetAnswers(s.answers); err != nil {
		s.logger.Error("Failed to encode answer snapshot", "attempt_id", s.attemptID, "error", err)
	}
	if err := result.SetFlags(s.flagIndicesLocked()); err != nil {
		s.logger.Error("Failed to encode flag snapshot", "attempt_id", s.attemptID, "error", err)
	}

	s.result = result
	return result
}

// store hands the finished result to the sink. Failure does not discard the
// result; it stays readable via Result for the caller layer to queue or retry.
func (s *Session) store(ctx context.Context, result *models.TestResult) error {
	if err := s.sink.Store(ctx, result); err != nil {
		s.logger.Error("Result sink rejected result",
			"attempt_id", s.attemptID, "test_code", s.testCode, "error", err)
		return fmt.Errorf("store result: %w", err)
	}
	s.logger.Info("Result stored",
		"attempt_id", s.attemptID,
		"test_code", s.testCode,
		"score", result.Score,
		"time_spent", result.TimeSpent)
	return nil
}

// Snapshot returns a copy of the observable state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	snap := Snapshot{
		AttemptID:        s.attemptID,
		Stage:            s.stage,
		AssignedTier:     s.tier,
		CurrentIndex:     s.current,
		QuestionCount:    len(s.questions),
		Answers:          answers,
		Flags:            s.flagIndicesLocked(),
		RemainingSeconds: s.remaining,
	}
	if s.current >= 0 && s.current < len(s.questions) {
		q := s.questions[s.current]
		snap.CurrentQuestion = &q
	}
	return snap
}

// Result returns the finished result record, or nil before submission.
func (s *Session) Result() *models.TestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) flagIndicesLocked() []int {
	indices := make([]int, 0, len(s.flags))
	for i := range s.flags {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// fallbackChain returns the tiers to try, starting at the assigned one and
// falling through hard -> medium -> easy.
func fallbackChain(assigned models.DifficultyTier) []models.DifficultyTier {
	for i, t := range models.ValidTiers {
		if t == assigned {
			return models.ValidTiers[i:]
		}
	}
	return models.ValidTiers
}
