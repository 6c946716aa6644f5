package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edadapt/assessment-service/internal/events"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/session"
	"github.com/google/uuid"
)

// liveSession pairs a session with its scheduler handle.
type liveSession struct {
	sess      *session.Session
	studentID string
	stop      chan struct{}
	stopOnce  sync.Once
}

type sessionService struct {
	repo      repositories.Repository
	source    session.QuestionSource
	sink      session.ResultSink
	publisher events.EventPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*liveSession
	wg       sync.WaitGroup
	closed   bool
}

func NewSessionService(repo repositories.Repository, source session.QuestionSource, sink session.ResultSink, publisher events.EventPublisher, logger *slog.Logger) SessionService {
	return &sessionService{
		repo:      repo,
		source:    source,
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]*liveSession),
	}
}

// Enter starts a new attempt on an active test. One completed attempt per
// student and test; a second entry is rejected before any session exists.
func (s *sessionService) Enter(ctx context.Context, testCode, studentID string) (*session.Snapshot, error) {
	test, err := s.repo.Test().GetByCode(ctx, testCode)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}
	if test.Status != models.TestStatusActive {
		return nil, ErrTestNotActive
	}

	completed, err := s.repo.Result().HasCompleted(ctx, studentID, testCode)
	if err != nil {
		return nil, fmt.Errorf("check prior completion: %w", err)
	}
	if completed {
		return nil, ErrAlreadyCompleted
	}

	attemptID := uuid.NewString()
	sess, err := session.Start(ctx, attemptID, studentID, testCode, test.DurationSeconds(), s.source, s.sink, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrInternalError
	}
	live := &liveSession{sess: sess, studentID: studentID, stop: make(chan struct{})}
	s.sessions[attemptID] = live
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runScheduler(live)

	if s.publisher != nil {
		event := events.NewAttemptStartedEvent(attemptID, testCode, test.Title, studentID, time.Now(), test.Duration)
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish attempt started event",
				"attempt_id", attemptID, "error", err)
		}
	}

	snap := sess.Snapshot()
	return &snap, nil
}

// runScheduler drives the countdown at one tick per second until the session
// submits or the service shuts down.
func (s *sessionService) runScheduler(live *liveSession) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if live.sess.Tick(context.Background()) {
				s.evict(live.sess.AttemptID())
				return
			}
		case <-live.stop:
			return
		}
	}
}

func (s *sessionService) evict(attemptID string) {
	s.mu.Lock()
	delete(s.sessions, attemptID)
	s.mu.Unlock()
}

// lookup returns the live session after verifying ownership.
func (s *sessionService) lookup(attemptID, studentID string) (*liveSession, error) {
	s.mu.Lock()
	live, ok := s.sessions[attemptID]
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.studentID != studentID {
		return nil, ErrAttemptAccessDenied
	}
	return live, nil
}

func (s *sessionService) Snapshot(ctx context.Context, attemptID, studentID string) (*session.Snapshot, error) {
	live, err := s.lookup(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	snap := live.sess.Snapshot()
	return &snap, nil
}

func (s *sessionService) SelectAnswer(ctx context.Context, attemptID, studentID string, index int, value string) (*session.Snapshot, error) {
	live, err := s.lookup(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.sess.SelectAnswer(ctx, index, value); err != nil {
		return nil, s.mapSessionError(err)
	}

	// Answering the last practice question can close the session outright
	// when no tier has questions.
	snap := live.sess.Snapshot()
	if snap.Stage == session.StageSubmitted {
		s.finish(live)
	}
	return &snap, nil
}

func (s *sessionService) Navigate(ctx context.Context, attemptID, studentID string, delta int) (*session.Snapshot, error) {
	live, err := s.lookup(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.sess.Navigate(delta); err != nil {
		return nil, s.mapSessionError(err)
	}
	snap := live.sess.Snapshot()
	return &snap, nil
}

func (s *sessionService) ToggleFlag(ctx context.Context, attemptID, studentID string, index int) (*session.Snapshot, error) {
	live, err := s.lookup(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.sess.ToggleFlag(index); err != nil {
		return nil, s.mapSessionError(err)
	}
	snap := live.sess.Snapshot()
	return &snap, nil
}

func (s *sessionService) Submit(ctx context.Context, attemptID, studentID string) (*models.TestResult, error) {
	live, err := s.lookup(attemptID, studentID)
	if err != nil {
		return nil, err
	}

	err = live.sess.Submit(ctx)
	result := live.sess.Result()
	s.finish(live)

	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) && result != nil {
			// The countdown won the race and already stored this result.
			return result, nil
		}
		if result != nil {
			// Submission won but the sink failed; the result exists and the
			// caller should still see it.
			s.logger.Error("Result produced but not stored",
				"attempt_id", attemptID, "error", err)
			return result, nil
		}
		return nil, s.mapSessionError(err)
	}
	return result, nil
}

// finish stops the scheduler and drops the session from the registry. Safe to
// call from concurrent submits; the channel closes exactly once.
func (s *sessionService) finish(live *liveSession) {
	live.stopOnce.Do(func() { close(live.stop) })
	s.evict(live.sess.AttemptID())
}

// Close auto-submits every live session and waits for schedulers to exit.
func (s *sessionService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	remaining := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		remaining = append(remaining, live)
	}
	s.mu.Unlock()

	for _, live := range remaining {
		if err := live.sess.Submit(ctx); err != nil && !errors.Is(err, session.ErrSessionClosed) {
			s.logger.Error("Failed to submit session on shutdown",
				"attempt_id", live.sess.AttemptID(), "error", err)
		}
		s.finish(live)
	}

	s.wg.Wait()
	return nil
}

func (s *sessionService) mapSessionError(err error) error {
	if errors.Is(err, session.ErrSessionClosed) {
		return ErrSessionClosed
	}
	return err
}
