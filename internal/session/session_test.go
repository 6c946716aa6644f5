package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/edadapt/assessment-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeQuestions(stage models.DifficultyTier, keys ...string) []models.Question {
	qs := make([]models.Question, len(keys))
	for i, k := range keys {
		qs[i] = models.Question{Prompt: "q", Stage: stage}
		if k != "" {
			qs[i].CorrectAnswer = strPtr(k)
		}
	}
	return qs
}

// stubSource resolves question sets from in-memory maps. resolveGate, when
// non-nil, blocks ResolveTier until the channel is closed.
type stubSource struct {
	practice    []models.Question
	tiers       map[models.DifficultyTier][]models.Question
	practiceErr error
	tierErr     error
	resolveGate chan struct{}
	gateEntered chan struct{}
	enterOnce   sync.Once

	mu        sync.Mutex
	tierCalls []models.DifficultyTier
}

func (s *stubSource) ResolvePractice(ctx context.Context, testCode string) ([]models.Question, error) {
	if s.practiceErr != nil {
		return nil, s.practiceErr
	}
	return s.practice, nil
}

func (s *stubSource) ResolveTier(ctx context.Context, testCode string, tier models.DifficultyTier) ([]models.Question, error) {
	if s.gateEntered != nil {
		s.enterOnce.Do(func() { close(s.gateEntered) })
	}
	if s.resolveGate != nil {
		<-s.resolveGate
	}
	s.mu.Lock()
	s.tierCalls = append(s.tierCalls, tier)
	s.mu.Unlock()
	if s.tierErr != nil {
		return nil, s.tierErr
	}
	return s.tiers[tier], nil
}

// recordingSink counts Store calls and captures the last result.
type recordingSink struct {
	mu      sync.Mutex
	calls   int
	results []*models.TestResult
	err     error
}

func (r *recordingSink) Store(ctx context.Context, result *models.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.results = append(r.results, result)
	return r.err
}

func (r *recordingSink) storeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func startSession(t *testing.T, source *stubSource, sink ResultSink, duration int) *Session {
	t.Helper()
	sess, err := Start(context.Background(), "attempt-1", "student-1", "ABC123", duration, source, sink, testLogger())
	require.NoError(t, err)
	return sess
}

func TestStart_SourceErrorPropagates(t *testing.T) {
	notFound := errors.New("test not found")
	source := &stubSource{practiceErr: notFound}

	_, err := Start(context.Background(), "a", "s", "ZZZZZZ", 60, source, &recordingSink{}, testLogger())
	assert.ErrorIs(t, err, notFound)
}

func TestSelectAnswer_LastPracticeQuestionAssignsTier(t *testing.T) {
	// Scenario: practice keys B,B,B answered B,B,A -> 67% -> medium.
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "B", "B", "B"),
		tiers: map[models.DifficultyTier][]models.Question{
			models.TierMedium: makeQuestions(models.TierMedium, "A", "B", "C", "D"),
		},
	}
	sess := startSession(t, source, &recordingSink{}, 600)
	ctx := context.Background()

	require.NoError(t, sess.SelectAnswer(ctx, 0, "B"))
	require.NoError(t, sess.SelectAnswer(ctx, 1, "B"))

	snap := sess.Snapshot()
	assert.Equal(t, StagePracticing, snap.Stage)
	assert.Len(t, snap.Answers, 2)

	require.NoError(t, sess.SelectAnswer(ctx, 2, "A"))

	snap = sess.Snapshot()
	assert.Equal(t, StageAssigned, snap.Stage)
	require.NotNil(t, snap.AssignedTier)
	assert.Equal(t, models.TierMedium, *snap.AssignedTier)
	assert.Equal(t, 4, snap.QuestionCount)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Empty(t, snap.Answers, "practice answers are not carried into the tier stage")
	assert.Empty(t, snap.Flags)
}

func TestTierFallback_EmptyAssignedTier(t *testing.T) {
	// Practice score 100 -> hard; hard is unauthored, medium is not.
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tiers: map[models.DifficultyTier][]models.Question{
			models.TierMedium: makeQuestions(models.TierMedium, "A", "B"),
		},
	}
	sess := startSession(t, source, &recordingSink{}, 600)

	require.NoError(t, sess.SelectAnswer(context.Background(), 0, "A"))

	snap := sess.Snapshot()
	assert.Equal(t, StageAssigned, snap.Stage)
	require.NotNil(t, snap.AssignedTier)
	assert.Equal(t, models.TierMedium, *snap.AssignedTier)
	assert.Equal(t, []models.DifficultyTier{models.TierHard, models.TierMedium}, source.tierCalls)
}

func TestTierFallback_AllTiersEmpty(t *testing.T) {
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tiers:    map[models.DifficultyTier][]models.Question{},
	}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 600)

	require.NoError(t, sess.SelectAnswer(context.Background(), 0, "A"))

	snap := sess.Snapshot()
	assert.Equal(t, StageSubmitted, snap.Stage)
	assert.Equal(t, 1, sink.storeCalls())

	res := sess.Result()
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Score)
	require.NotNil(t, res.AssignedTier)
	assert.Equal(t, models.TierHard, *res.AssignedTier)
}

func TestNavigate_Clamps(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B", "C")}
	sess := startSession(t, source, &recordingSink{}, 600)

	require.NoError(t, sess.Navigate(-1))
	assert.Equal(t, 0, sess.Snapshot().CurrentIndex, "no wrap below zero")

	require.NoError(t, sess.Navigate(+1))
	require.NoError(t, sess.Navigate(+1))
	assert.Equal(t, 2, sess.Snapshot().CurrentIndex)

	require.NoError(t, sess.Navigate(+1))
	assert.Equal(t, 2, sess.Snapshot().CurrentIndex, "no wrap past the last index")
}

func TestNavigate_DoesNotTouchAnswersOrFlags(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B", "C")}
	sess := startSession(t, source, &recordingSink{}, 600)
	ctx := context.Background()

	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))
	require.NoError(t, sess.ToggleFlag(1))
	require.NoError(t, sess.Navigate(+1))
	require.NoError(t, sess.Navigate(-1))

	snap := sess.Snapshot()
	assert.Equal(t, map[int]string{0: "A"}, snap.Answers)
	assert.Equal(t, []int{1}, snap.Flags)
}

func TestToggleFlag(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B")}
	sess := startSession(t, source, &recordingSink{}, 600)

	require.NoError(t, sess.ToggleFlag(1))
	assert.Equal(t, []int{1}, sess.Snapshot().Flags)

	require.NoError(t, sess.ToggleFlag(0))
	assert.Equal(t, []int{0, 1}, sess.Snapshot().Flags)

	require.NoError(t, sess.ToggleFlag(1))
	assert.Equal(t, []int{0}, sess.Snapshot().Flags)

	assert.ErrorIs(t, sess.ToggleFlag(5), ErrIndexOutOfRange)
}

func TestTick_CountsDownAndAutoSubmitsOnce(t *testing.T) {
	// Scenario: countdown expires with 2 of 5 tier questions answered.
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tiers: map[models.DifficultyTier][]models.Question{
			models.TierHard: makeQuestions(models.TierHard, "A", "B", "C", "D", "A"),
		},
	}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 3)
	ctx := context.Background()

	require.NoError(t, sess.SelectAnswer(ctx, 0, "A")) // -> hard tier
	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))
	require.NoError(t, sess.SelectAnswer(ctx, 1, "B"))

	assert.False(t, sess.Tick(ctx))
	assert.Equal(t, 2, sess.Snapshot().RemainingSeconds)
	assert.False(t, sess.Tick(ctx))
	assert.True(t, sess.Tick(ctx), "third tick reaches zero and submits")

	// Late ticks stay no-ops.
	assert.True(t, sess.Tick(ctx))
	assert.True(t, sess.Tick(ctx))

	assert.Equal(t, 1, sink.storeCalls())
	res := sess.Result()
	require.NotNil(t, res)
	assert.Equal(t, 40, res.Score, "2 correct of 5, the rest incorrect")
	assert.Equal(t, 3, res.TimeSpent)
}

func TestSubmit_NoDoubleStore(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B")}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 600)
	ctx := context.Background()

	require.NoError(t, sess.Submit(ctx))
	assert.ErrorIs(t, sess.Submit(ctx), ErrSessionClosed)
	assert.True(t, sess.Tick(ctx))

	assert.Equal(t, 1, sink.storeCalls())
}

func TestSubmit_DuringPracticeProducesUntieredResult(t *testing.T) {
	// Scenario: manual submit with 1 of 3 practice questions answered.
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B", "C")}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 600)
	ctx := context.Background()

	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))
	require.NoError(t, sess.Submit(ctx))

	res := sess.Result()
	require.NotNil(t, res)
	assert.Nil(t, res.AssignedTier)
	assert.Equal(t, 33, res.Score)

	answers, err := res.AnswerSnapshot()
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "A"}, answers)
}

func TestStageNeverReturnsToPracticing(t *testing.T) {
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tiers: map[models.DifficultyTier][]models.Question{
			models.TierHard: makeQuestions(models.TierHard, "A", "B"),
		},
	}
	sess := startSession(t, source, &recordingSink{}, 600)
	ctx := context.Background()

	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))
	require.Equal(t, StageAssigned, sess.Snapshot().Stage)

	// Answering the tier set's last question must not re-run assignment.
	require.NoError(t, sess.SelectAnswer(ctx, 1, "B"))
	require.NoError(t, sess.Navigate(-1))
	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))

	snap := sess.Snapshot()
	assert.Equal(t, StageAssigned, snap.Stage)
	assert.Equal(t, 2, snap.QuestionCount)
	assert.Equal(t, []models.DifficultyTier{models.TierHard}, source.tierCalls)
}

func TestMutationsAfterSubmitAreRejected(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A")}
	sess := startSession(t, source, &recordingSink{}, 600)
	ctx := context.Background()

	require.NoError(t, sess.Submit(ctx))

	assert.ErrorIs(t, sess.SelectAnswer(ctx, 0, "A"), ErrSessionClosed)
	assert.ErrorIs(t, sess.Navigate(+1), ErrSessionClosed)
	assert.ErrorIs(t, sess.ToggleFlag(0), ErrSessionClosed)
	assert.ErrorIs(t, sess.Submit(ctx), ErrSessionClosed)
}

func TestTierResolutionError_Surfaced(t *testing.T) {
	boom := errors.New("source unavailable")
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tierErr:  boom,
	}
	sess := startSession(t, source, &recordingSink{}, 600)
	ctx := context.Background()

	err := sess.SelectAnswer(ctx, 0, "A")
	assert.ErrorIs(t, err, boom)

	// The session is still practicing; re-answering the last question
	// retries the assignment.
	snap := sess.Snapshot()
	assert.Equal(t, StagePracticing, snap.Stage)

	source.tierErr = nil
	source.tiers = map[models.DifficultyTier][]models.Question{
		models.TierHard: makeQuestions(models.TierHard, "A"),
	}
	require.NoError(t, sess.SelectAnswer(ctx, 0, "A"))
	assert.Equal(t, StageAssigned, sess.Snapshot().Stage)
}

func TestLateTierResolutionDiscardedAfterSubmit(t *testing.T) {
	gate := make(chan struct{})
	source := &stubSource{
		practice: makeQuestions(models.TierPractice, "A"),
		tiers: map[models.DifficultyTier][]models.Question{
			models.TierHard: makeQuestions(models.TierHard, "A", "B", "C"),
		},
		resolveGate: gate,
		gateEntered: make(chan struct{}),
	}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 600)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- sess.SelectAnswer(ctx, 0, "A")
	}()
	<-source.gateEntered

	// Submit while the tier lookup is still outstanding, then release it.
	require.NoError(t, sess.Submit(ctx))
	close(gate)
	require.NoError(t, <-done)

	snap := sess.Snapshot()
	assert.Equal(t, StageSubmitted, snap.Stage)
	assert.Equal(t, 1, snap.QuestionCount, "late resolution must not install the tier set")
	assert.Equal(t, 1, sink.storeCalls())
	assert.Nil(t, sess.Result().AssignedTier)
}

func TestSinkFailure_ResultKept(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A")}
	sink := &recordingSink{err: errors.New("connection refused")}
	sess := startSession(t, source, sink, 600)
	ctx := context.Background()

	err := sess.Submit(ctx)
	assert.Error(t, err)

	assert.Equal(t, StageSubmitted, sess.Snapshot().Stage)
	assert.NotNil(t, sess.Result(), "the result survives a sink failure for the caller to retry")
	assert.Equal(t, 1, sink.storeCalls(), "no retry inside the session")
}

func TestConcurrentTicksAndAnswers_SingleWinner(t *testing.T) {
	source := &stubSource{practice: makeQuestions(models.TierPractice, "A", "B", "C", "D")}
	sink := &recordingSink{}
	sess := startSession(t, source, sink, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			sess.Tick(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = sess.Navigate(+1)
			_ = sess.SelectAnswer(ctx, 0, "A")
			_ = sess.Submit(ctx)
		}
	}()
	wg.Wait()

	assert.Equal(t, StageSubmitted, sess.Snapshot().Stage)
	assert.Equal(t, 1, sink.storeCalls(), "exactly one submit wins")
}
