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

const attemptColumns = `id, user_id, exam_request_id, center_id, exam_type, test_id, status,
	started_at, expires_at, submission_id, created_at`

// AttemptRepository handles exam attempt data access. Every state change
// is a guarded UPDATE so that concurrent transitions cannot both win.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row scanner) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := row.Scan(&a.ID, &a.UserID, &a.ExamRequestID, &a.CenterID, &a.ExamType, &a.TestID,
		&a.Status, &a.StartedAt, &a.ExpiresAt, &a.SubmissionID, &a.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// ListByUser lists a student's attempts, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Start stamps the timer on a ready attempt. ErrStateChanged means the
// attempt was not ready anymore (someone else started it first).
func (r *AttemptRepository) Start(ctx context.Context, id uuid.UUID, startedAt, expiresAt time.Time) (*model.ExamAttempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`UPDATE exam_attempts
		 SET status = 'in_progress', started_at = $2, expires_at = $3
		 WHERE id = $1 AND status = 'ready'
		 RETURNING `+attemptColumns,
		id, startedAt, expiresAt))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return a, err
}

// Submit stores the submission and closes the attempt atomically. The
// attempt must still be in progress and not past its deadline at the
// given submission time; otherwise ErrStateChanged and nothing is written.
func (r *AttemptRepository) Submit(ctx context.Context, attemptID uuid.UUID, sub *model.Submission) (*model.ExamAttempt, error) {
	var attempt *model.ExamAttempt
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO submissions (user_id, center_id, exam_type, test_id, full_name, phone_number, answers, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			sub.UserID, sub.CenterID, sub.ExamType, sub.TestID, sub.FullName,
			sub.PhoneNumber, sub.Answers, sub.SubmittedAt,
		).Scan(&sub.ID)
		if err != nil {
			return fmt.Errorf("insert submission: %w", translate(err))
		}

		attempt, err = scanAttempt(tx.QueryRow(ctx,
			`UPDATE exam_attempts
			 SET status = 'submitted', submission_id = $2
			 WHERE id = $1 AND status = 'in_progress' AND expires_at >= $3
			 RETURNING `+attemptColumns,
			attemptID, sub.ID, sub.SubmittedAt))
		if errors.Is(err, ErrNotFound) {
			return ErrStateChanged
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// MarkExpired persists the lazy expiry of a single attempt. It is a no-op
// when the attempt is not overdue at now.
func (r *AttemptRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = 'expired'
		 WHERE id = $1 AND status = 'in_progress' AND expires_at < $2`,
		id, now)
	return err
}

// ExpireStale expires every running attempt whose deadline passed before
// now and returns how many rows changed.
func (r *AttemptRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = 'expired'
		 WHERE status IN ('ready', 'in_progress') AND expires_at < $1`,
		now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
