package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/repository"
)

// ResultService assembles a student's exam history. Unpublished scores
// never leave this service.
type ResultService struct {
	attempts    AttemptStore
	submissions SubmissionStore
	scores      ScoreStore
	tests       TestCatalog
	now         Clock
}

// NewResultService creates a new ResultService.
func NewResultService(attempts AttemptStore, submissions SubmissionStore, scores ScoreStore, tests TestCatalog) *ResultService {
	return &ResultService{
		attempts:    attempts,
		submissions: submissions,
		scores:      scores,
		tests:       tests,
		now:         time.Now,
	}
}

// History lists every attempt of the user, newest first, with submission
// state and the published score if there is one.
func (s *ResultService) History(ctx context.Context, userID uuid.UUID) ([]model.ResultEntry, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	now := s.now()
	names := make(map[uuid.UUID]string)
	out := make([]model.ResultEntry, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		e := model.ResultEntry{
			AttemptID: a.ID,
			CenterID:  a.CenterID,
			ExamType:  a.ExamType,
			Status:    a.EffectiveStatus(now),
			StartedAt: a.StartedAt,
		}
		if a.TestID != nil {
			e.TestName = s.testName(ctx, names, *a.TestID)
		}

		if a.SubmissionID != nil {
			if err := s.fillSubmission(ctx, &e, *a.SubmissionID); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *ResultService) fillSubmission(ctx context.Context, e *model.ResultEntry, submissionID uuid.UUID) error {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get submission: %w", err)
	}
	e.SubmittedAt = &sub.SubmittedAt
	e.IsGraded = sub.IsGraded

	score, err := s.scores.Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get score: %w", err)
	}
	if score.IsPublished {
		e.Score = score
	}
	return nil
}

func (s *ResultService) testName(ctx context.Context, cache map[uuid.UUID]string, id uuid.UUID) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name, err := s.tests.TestName(ctx, id)
	if err != nil {
		name = ""
	}
	cache[id] = name
	return name
}
