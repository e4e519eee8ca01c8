package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhub/internal/model"
)

// ScoreRepository handles score data access.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Get retrieves the score of a submission.
func (r *ScoreRepository) Get(ctx context.Context, submissionID uuid.UUID) (*model.Score, error) {
	s := &model.Score{}
	err := r.pool.QueryRow(ctx,
		`SELECT submission_id, center_id, exam_type, manual_score, final_score,
		        is_published, published_at, updated_at
		 FROM scores WHERE submission_id = $1`, submissionID,
	).Scan(&s.SubmissionID, &s.CenterID, &s.ExamType, &s.ManualScore, &s.FinalScore,
		&s.IsPublished, &s.PublishedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// Upsert writes the score and flags the submission as graded in one
// transaction. PublishedAt is stored as given.
func (r *ScoreRepository) Upsert(ctx context.Context, s *model.Score, gradedBy uuid.UUID, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO scores (submission_id, center_id, exam_type, manual_score, final_score,
			                     is_published, published_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (submission_id) DO UPDATE SET
			     manual_score = EXCLUDED.manual_score,
			     final_score  = EXCLUDED.final_score,
			     is_published = EXCLUDED.is_published,
			     published_at = EXCLUDED.published_at,
			     updated_at   = EXCLUDED.updated_at`,
			s.SubmissionID, s.CenterID, s.ExamType, s.ManualScore, s.FinalScore,
			s.IsPublished, s.PublishedAt, at)
		if err != nil {
			return fmt.Errorf("upsert score: %w", translate(err))
		}
		s.UpdatedAt = at

		tag, err := tx.Exec(ctx,
			`UPDATE submissions SET is_graded = TRUE, graded_at = $2, graded_by = $3
			 WHERE id = $1`, s.SubmissionID, at, gradedBy)
		if err != nil {
			return fmt.Errorf("mark graded: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteCascade removes a submission together with its score and rewinds
// the owning attempt to ready and its request to approved, so the student
// can sit the exam again. Rows go in foreign-key order.
func (r *ScoreRepository) DeleteCascade(ctx context.Context, submissionID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM scores WHERE submission_id = $1`, submissionID); err != nil {
			return fmt.Errorf("delete score: %w", err)
		}

		var requestID uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE exam_attempts
			 SET status = 'ready', started_at = NULL, expires_at = NULL, submission_id = NULL
			 WHERE submission_id = $1
			 RETURNING exam_request_id`, submissionID,
		).Scan(&requestID)
		hasAttempt := err == nil
		if err != nil && !errors.Is(translate(err), ErrNotFound) {
			return fmt.Errorf("reset attempt: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, submissionID)
		if err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if hasAttempt {
			_, err = tx.Exec(ctx,
				`UPDATE exam_requests SET status = 'approved' WHERE id = $1`, requestID)
			if err != nil {
				return fmt.Errorf("reopen request: %w", err)
			}
		}
		return nil
	})
}
