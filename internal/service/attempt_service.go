package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/repository"
)

// AttemptService runs the attempt state machine:
//
//	ready ──start──▶ in_progress ──submit──▶ submitted
//	                      │
//	                      └──deadline passes──▶ expired
//
// Expiry is lazy. Whoever touches an in-progress attempt after its
// deadline observes it as expired; the sweep only persists that view
// for readers that never touch the row.
type AttemptService struct {
	attempts AttemptStore
	now      Clock
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attempts AttemptStore, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		now:      time.Now,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// Get returns one of the caller's attempts with lazy expiry applied.
func (s *AttemptService) Get(ctx context.Context, userID, attemptID uuid.UUID) (*model.ExamAttempt, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	s.observeExpiry(ctx, a, s.now())
	return a, nil
}

// ListMine returns the caller's attempts with lazy expiry applied.
func (s *AttemptService) ListMine(ctx context.Context, userID uuid.UUID) ([]model.ExamAttempt, error) {
	list, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	now := s.now()
	for i := range list {
		s.observeExpiry(ctx, &list[i], now)
	}
	return list, nil
}

// Start begins the timer. Starting an attempt that is already running
// returns it unchanged, so a reloaded exam page keeps its deadline.
func (s *AttemptService) Start(ctx context.Context, userID, attemptID uuid.UUID) (*model.ExamAttempt, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	// One retry covers losing the ready→in_progress race to a parallel start.
	for try := 0; ; try++ {
		now := s.now()
		switch a.Status {
		case model.AttemptStatusInProgress:
			if a.TimeExpired(now) {
				s.observeExpiry(ctx, a, now)
				return nil, ErrAttemptExpired
			}
			return a, nil
		case model.AttemptStatusSubmitted:
			return nil, ErrAttemptSubmitted
		case model.AttemptStatusExpired:
			return nil, ErrAttemptLapsed
		}

		startedAt := now.UTC().Truncate(time.Microsecond)
		started, err := s.attempts.Start(ctx, attemptID, startedAt, startedAt.Add(model.AttemptDuration))
		if err == nil {
			metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusInProgress)).Inc()
			s.log.Info().
				Str("attempt_id", attemptID.String()).
				Time("expires_at", *started.ExpiresAt).
				Msg("Attempt started")
			return started, nil
		}
		if !errors.Is(err, repository.ErrStateChanged) || try > 0 {
			return nil, fmt.Errorf("start attempt: %w", err)
		}
		if a, err = s.owned(ctx, userID, attemptID); err != nil {
			return nil, err
		}
	}
}

// Submit records the final answers and closes the attempt. Past the
// deadline it fails with ErrAttemptExpired whether or not a sweep ran.
func (s *AttemptService) Submit(ctx context.Context, userID, attemptID uuid.UUID, p model.SubmitAttemptPayload) (*model.ExamAttempt, *model.Submission, error) {
	fullName := strings.TrimSpace(p.FullName)
	if fullName == "" {
		return nil, nil, validationf("full_name is required")
	}
	if p.Answers == nil {
		return nil, nil, validationf("answers are required")
	}

	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := submittable(a, now); err != nil {
		if errors.Is(err, ErrExpired) {
			s.observeExpiry(ctx, a, now)
		}
		return nil, nil, err
	}

	sub := &model.Submission{
		UserID:      a.UserID,
		CenterID:    a.CenterID,
		ExamType:    a.ExamType,
		TestID:      a.TestID,
		FullName:    fullName,
		PhoneNumber: p.PhoneNumber,
		Answers:     p.Answers,
		SubmittedAt: now.UTC().Truncate(time.Microsecond),
	}
	done, err := s.attempts.Submit(ctx, attemptID, sub)
	if err != nil {
		if !errors.Is(err, repository.ErrStateChanged) {
			return nil, nil, fmt.Errorf("submit attempt: %w", err)
		}
		// Someone else moved the attempt; report what it is now.
		cur, gerr := s.attempts.GetByID(ctx, attemptID)
		if gerr != nil {
			return nil, nil, fmt.Errorf("reload attempt: %w", gerr)
		}
		if serr := submittable(cur, now); serr != nil {
			return nil, nil, serr
		}
		return nil, nil, ErrAttemptSubmitted
	}

	metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusSubmitted)).Inc()
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("submission_id", sub.ID.String()).
		Msg("Attempt submitted")
	return done, sub, nil
}

// Sweep persists expiry for every overdue attempt. Safe to run at any
// cadence; already expired rows are left alone.
func (s *AttemptService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.attempts.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire stale attempts: %w", err)
	}
	if n > 0 {
		metrics.SweepExpired.Add(float64(n))
		metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusExpired)).Add(float64(n))
	}
	return n, nil
}

func submittable(a *model.ExamAttempt, now time.Time) error {
	switch a.Status {
	case model.AttemptStatusReady:
		return ErrAttemptNotStarted
	case model.AttemptStatusSubmitted:
		return ErrAttemptSubmitted
	case model.AttemptStatusExpired:
		return ErrAttemptExpired
	}
	if a.TimeExpired(now) {
		return ErrAttemptExpired
	}
	return nil
}

func (s *AttemptService) owned(ctx context.Context, userID, attemptID uuid.UUID) (*model.ExamAttempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("attempt")
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.UserID != userID {
		return nil, ErrForbidden
	}
	return a, nil
}

// observeExpiry flips an overdue attempt to expired in memory and
// best-effort in the store.
func (s *AttemptService) observeExpiry(ctx context.Context, a *model.ExamAttempt, now time.Time) {
	if !a.TimeExpired(now) {
		return
	}
	a.Status = model.AttemptStatusExpired
	if err := s.attempts.MarkExpired(ctx, a.ID, now.UTC()); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to persist lazy expiry")
	}
}
