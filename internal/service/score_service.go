package service

import (
	"context"
	"encoding/json"
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

// notifyTimeout bounds the detached publish side effect of SaveScore.
const notifyTimeout = 10 * time.Second

// ScoreService grades submissions and emits publish events.
type ScoreService struct {
	submissions SubmissionStore
	scores      ScoreStore
	users       UserStore
	identities  IdentityStore
	tests       TestCatalog
	publisher   EventPublisher
	now         Clock
	log         zerolog.Logger

	// notifyDone, when set, is called after every publish side effect.
	notifyDone func(error)
}

// NewScoreService creates a new ScoreService.
func NewScoreService(
	submissions SubmissionStore,
	scores ScoreStore,
	users UserStore,
	identities IdentityStore,
	tests TestCatalog,
	publisher EventPublisher,
	log zerolog.Logger,
) *ScoreService {
	return &ScoreService{
		submissions: submissions,
		scores:      scores,
		users:       users,
		identities:  identities,
		tests:       tests,
		publisher:   publisher,
		now:         time.Now,
		log:         log.With().Str("component", "score_service").Logger(),
	}
}

// ListSubmissions returns a center's submissions for grading.
func (s *ScoreService) ListSubmissions(ctx context.Context, actor model.Actor, centerID string, graded *bool) ([]model.Submission, error) {
	if !actor.CanReview(centerID) {
		return nil, ErrForbidden
	}
	subs, err := s.submissions.ListByCenter(ctx, centerID, graded)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// SaveScore creates or replaces the score of a submission and marks the
// submission graded. When the score is published a notification is sent
// in the background; its failure never fails the save.
func (s *ScoreService) SaveScore(ctx context.Context, actor model.Actor, submissionID uuid.UUID, p model.SaveScorePayload) (*model.Score, error) {
	if err := validateFinalScore(p.FinalScore); err != nil {
		return nil, err
	}

	sub, err := s.reviewableSubmission(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}

	prev, err := s.scores.Get(ctx, submissionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get score: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	score := &model.Score{
		SubmissionID: sub.ID,
		CenterID:     sub.CenterID,
		ExamType:     sub.ExamType,
		ManualScore:  p.ManualScore,
		FinalScore:   p.FinalScore,
		IsPublished:  p.IsPublished,
	}
	switch {
	case !p.IsPublished:
		score.PublishedAt = nil
	case prev != nil && prev.IsPublished && prev.PublishedAt != nil:
		score.PublishedAt = prev.PublishedAt
	default:
		score.PublishedAt = &now
	}

	if err := s.scores.Upsert(ctx, score, actor.UserID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrReferenceMissing) {
			return nil, notFound("submission")
		}
		return nil, fmt.Errorf("save score: %w", err)
	}

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Bool("published", score.IsPublished).
		Msg("Score saved")

	if score.IsPublished {
		ev := *score
		go s.notify(sub, &ev)
	}
	return score, nil
}

// GetScore returns the score of a submission.
func (s *ScoreService) GetScore(ctx context.Context, actor model.Actor, submissionID uuid.UUID) (*model.Score, error) {
	if _, err := s.reviewableSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	score, err := s.scores.Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("score")
		}
		return nil, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

// GetScoreByLogin resolves login → user → most recent submission → score.
func (s *ScoreService) GetScoreByLogin(ctx context.Context, actor model.Actor, login string) (*model.Score, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, validationf("login is required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	sub, err := s.submissions.LatestByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("submission")
		}
		return nil, fmt.Errorf("latest submission: %w", err)
	}
	if !actor.CanReview(sub.CenterID) {
		return nil, ErrForbidden
	}

	score, err := s.scores.Get(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("score")
		}
		return nil, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

// DeleteScore reverses grading: the score and submission are removed and
// the attempt and request are rewound so the student can retake the exam.
func (s *ScoreService) DeleteScore(ctx context.Context, actor model.Actor, submissionID uuid.UUID) error {
	if _, err := s.reviewableSubmission(ctx, actor, submissionID); err != nil {
		return err
	}
	if err := s.scores.DeleteCascade(ctx, submissionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("submission")
		}
		return fmt.Errorf("delete score: %w", err)
	}

	metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusReady)).Inc()
	s.log.Info().
		Str("submission_id", submissionID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("Score deleted, attempt reopened")
	return nil
}

func (s *ScoreService) reviewableSubmission(ctx context.Context, actor model.Actor, submissionID uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("submission")
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if !actor.CanReview(sub.CenterID) {
		return nil, ErrForbidden
	}
	return sub, nil
}

// notify builds the publish event and hands it to the publisher. It runs
// detached from the request, so it uses its own context.
func (s *ScoreService) notify(sub *model.Submission, score *model.Score) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	err := s.publish(ctx, sub, score)
	metrics.NotificationsEnqueued.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.log.Error().Err(err).
			Str("submission_id", sub.ID.String()).
			Msg("Failed to enqueue score notification")
	}
	if s.notifyDone != nil {
		s.notifyDone(err)
	}
}

func (s *ScoreService) publish(ctx context.Context, sub *model.Submission, score *model.Score) error {
	link, err := s.identities.GetByUserID(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info().Str("submission_id", sub.ID.String()).Msg("No linked chat, skipping notification")
			return nil
		}
		return fmt.Errorf("get link: %w", err)
	}

	ev := model.PublishEvent{
		TelegramID:   link.ChatID,
		Score:        score.FinalScore,
		TestName:     sub.ExamType,
		StudentName:  sub.FullName,
		SubmissionID: sub.ID,
	}
	if sub.TestID != nil {
		if name, err := s.tests.TestName(ctx, *sub.TestID); err == nil && name != "" {
			ev.TestName = name
		}
	}
	if user, err := s.users.GetByID(ctx, sub.UserID); err == nil {
		ev.Login = user.Login
	}

	return s.publisher.Publish(ctx, ev)
}

// validateFinalScore requires at least one entry; every value must be a
// number or a non-empty string. Ranges are not checked.
func validateFinalScore(fs map[string]any) error {
	if len(fs) == 0 {
		return ErrEmptyScore
	}
	for k, v := range fs {
		if strings.TrimSpace(k) == "" {
			return validationf("final_score keys must not be empty")
		}
		switch val := v.(type) {
		case float64, float32, int, int64, json.Number:
		case string:
			if strings.TrimSpace(val) == "" {
				return validationf("final_score %q is empty", k)
			}
		case nil:
			return validationf("final_score %q is missing a value", k)
		default:
			return validationf("final_score %q must be a number or a string", k)
		}
	}
	return nil
}
