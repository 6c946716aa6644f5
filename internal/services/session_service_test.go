package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/edadapt/assessment-service/internal/events"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func questionSet(testCode string, stage models.DifficultyTier, keys ...string) []models.Question {
	qs := make([]models.Question, len(keys))
	for i, k := range keys {
		key := k
		qs[i] = models.Question{
			TestCode:      testCode,
			Stage:         stage,
			Position:      i,
			Prompt:        "q",
			CorrectAnswer: &key,
		}
	}
	return qs
}

func activeTest(code string) *models.Test {
	return &models.Test{
		Code:      code,
		Title:     "Reading Comprehension",
		Subject:   "English",
		Duration:  30,
		Status:    models.TestStatusActive,
		CreatedBy: "teacher-1",
	}
}

// newSessionFixture wires a session service against mock repositories and a
// mock event publisher, the same composition main uses minus Redis and Kafka.
func newSessionFixture(t *testing.T) (*MockRepository, *events.MockEventPublisher, SessionService) {
	t.Helper()
	repo := newMockRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)

	source := NewQuestionSource(repo.questionRepo, nil, logger)
	sink := NewResultSink(repo.resultRepo, publisher, logger)
	svc := NewSessionService(repo, source, sink, publisher, logger)
	return repo, publisher, svc
}

func TestSessionService_Enter(t *testing.T) {
	repo, publisher, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A", "B", "C"), nil)
	// Close drains the live session through the sink.
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)

	assert.Equal(t, session.StagePracticing, snap.Stage)
	assert.Equal(t, 3, snap.QuestionCount)
	assert.Equal(t, 30*60, snap.RemainingSeconds)
	assert.NotEmpty(t, snap.AttemptID)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptStarted, published[0].Type)
}

func TestSessionService_Enter_UnknownCode(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "NOPE42").Return(nil, repositories.ErrNotFound)

	_, err := svc.Enter(context.Background(), "NOPE42", "student-1")
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestSessionService_Enter_InactiveTest(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	draft := activeTest("DRF001")
	draft.Status = models.TestStatusDraft
	repo.testRepo.On("GetByCode", mock.Anything, "DRF001").Return(draft, nil)

	_, err := svc.Enter(context.Background(), "DRF001", "student-1")
	assert.ErrorIs(t, err, ErrTestNotActive)
}

func TestSessionService_Enter_AlreadyCompleted(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(true, nil)

	_, err := svc.Enter(context.Background(), "ABC123", "student-1")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestSessionService_OwnershipEnforced(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)

	_, err = svc.Snapshot(context.Background(), snap.AttemptID, "student-2")
	assert.ErrorIs(t, err, ErrAttemptAccessDenied)

	_, err = svc.Submit(context.Background(), snap.AttemptID, "student-2")
	assert.ErrorIs(t, err, ErrAttemptAccessDenied)
}

func TestSessionService_FullAttemptFlow(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A", "B"), nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierHard).
		Return(questionSet("ABC123", models.TierHard, "C", "D", "A"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.TestResult) bool {
		return r.StudentID == "student-1" && r.TestCode == "ABC123"
	})).Return(nil)

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)
	attemptID := snap.AttemptID

	// Perfect practice round assigns the hard tier.
	_, err = svc.SelectAnswer(context.Background(), attemptID, "student-1", 0, "A")
	require.NoError(t, err)
	snap, err = svc.SelectAnswer(context.Background(), attemptID, "student-1", 1, "B")
	require.NoError(t, err)

	assert.Equal(t, session.StageAssigned, snap.Stage)
	require.NotNil(t, snap.AssignedTier)
	assert.Equal(t, models.TierHard, *snap.AssignedTier)
	assert.Equal(t, 3, snap.QuestionCount)
	assert.Empty(t, snap.Answers)

	// Two of three correct in the assigned set.
	_, err = svc.SelectAnswer(context.Background(), attemptID, "student-1", 0, "C")
	require.NoError(t, err)
	_, err = svc.SelectAnswer(context.Background(), attemptID, "student-1", 1, "D")
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), attemptID, "student-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 67, result.Score)
	require.NotNil(t, result.AssignedTier)
	assert.Equal(t, models.TierHard, *result.AssignedTier)

	// The session is gone once submitted.
	_, err = svc.Snapshot(context.Background(), attemptID, "student-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	repo.resultRepo.AssertExpectations(t)
}

func TestSessionService_NavigateAndFlag(t *testing.T) {
	repo, _, svc := newSessionFixture(t)
	defer svc.Close(context.Background())

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A", "B", "C"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)
	attemptID := snap.AttemptID

	snap, err = svc.Navigate(context.Background(), attemptID, "student-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentIndex)

	// Clamped at the end, never wraps.
	snap, err = svc.Navigate(context.Background(), attemptID, "student-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentIndex)

	snap, err = svc.ToggleFlag(context.Background(), attemptID, "student-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, snap.Flags)

	snap, err = svc.ToggleFlag(context.Background(), attemptID, "student-1", 1)
	require.NoError(t, err)
	assert.Empty(t, snap.Flags)
}

func TestSessionService_ConcurrentSubmits(t *testing.T) {
	repo, _, svc := newSessionFixture(t)

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)

	// Every racer either gets the stored result or finds the session gone;
	// the sink sees exactly one Create.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Submit(context.Background(), snap.AttemptID, "student-1")
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionNotFound)
				return
			}
			assert.NotNil(t, result)
		}()
	}
	wg.Wait()

	repo.resultRepo.AssertExpectations(t)
	require.NoError(t, svc.Close(context.Background()))
}

func TestSessionService_SubmitAfterCountdownWins(t *testing.T) {
	repo, _, svc := newSessionFixture(t)

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)

	// Submit the underlying session directly, as the expiring countdown
	// would, while the registry entry is still live. The scheduler is
	// stopped first so it cannot evict the entry mid-test.
	impl := svc.(*sessionService)
	impl.mu.Lock()
	live := impl.sessions[snap.AttemptID]
	impl.mu.Unlock()
	require.NotNil(t, live)
	live.stopOnce.Do(func() { close(live.stop) })
	require.NoError(t, live.sess.Submit(context.Background()))

	// The losing manual submit still hands the stored result back without a
	// second store.
	result, err := svc.Submit(context.Background(), snap.AttemptID, "student-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	repo.resultRepo.AssertExpectations(t)

	_, err = svc.Snapshot(context.Background(), snap.AttemptID, "student-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, svc.Close(context.Background()))
}

func TestSessionService_CloseSubmitsLiveSessions(t *testing.T) {
	repo, _, svc := newSessionFixture(t)

	repo.testRepo.On("GetByCode", mock.Anything, "ABC123").Return(activeTest("ABC123"), nil)
	repo.resultRepo.On("HasCompleted", mock.Anything, "student-1", "ABC123").Return(false, nil)
	repo.questionRepo.On("GetByTestAndStage", mock.Anything, "ABC123", models.TierPractice).
		Return(questionSet("ABC123", models.TierPractice, "A"), nil)
	repo.resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	snap, err := svc.Enter(context.Background(), "ABC123", "student-1")
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background()))

	_, err = svc.Snapshot(context.Background(), snap.AttemptID, "student-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	repo.resultRepo.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}
