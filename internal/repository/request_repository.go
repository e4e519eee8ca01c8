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

const requestColumns = `id, user_id, center_id, exam_type, test_id, status, requested_at, reviewed_at, reviewed_by`

// RequestRepository handles exam request data access.
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func scanRequest(row scanner) (*model.ExamRequest, error) {
	r := &model.ExamRequest{}
	err := row.Scan(&r.ID, &r.UserID, &r.CenterID, &r.ExamType, &r.TestID,
		&r.Status, &r.RequestedAt, &r.ReviewedAt, &r.ReviewedBy)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

func collectRequests(rows pgx.Rows) ([]model.ExamRequest, error) {
	defer rows.Close()

	var out []model.ExamRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Create inserts a pending request. The partial unique index on
// (user_id, center_id, exam_type) turns a second active request into ErrDuplicate.
func (r *RequestRepository) Create(ctx context.Context, req *model.ExamRequest) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_requests (user_id, center_id, exam_type, test_id, status, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		req.UserID, req.CenterID, req.ExamType, req.TestID, model.RequestStatusPending, req.RequestedAt,
	).Scan(&req.ID)
	if err != nil {
		return translate(err)
	}
	req.Status = model.RequestStatusPending
	return nil
}

// GetByID retrieves a request by ID.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM exam_requests WHERE id = $1`, id))
}

// ListByCenter lists requests for a center, newest first, optionally filtered by status.
func (r *RequestRepository) ListByCenter(ctx context.Context, centerID string, status *model.RequestStatus) ([]model.ExamRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM exam_requests
		 WHERE center_id = $1 AND ($2::text IS NULL OR status = $2::text)
		 ORDER BY requested_at DESC`, centerID, status)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListByUser lists a student's own requests, newest first.
func (r *RequestRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.ExamRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM exam_requests
		 WHERE user_id = $1
		 ORDER BY requested_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// Approve moves a pending request to approved and creates its ready
// attempt in the same transaction. A request that is no longer pending
// yields ErrStateChanged and nothing is written.
func (r *RequestRepository) Approve(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, *model.ExamAttempt, error) {
	var (
		req     *model.ExamRequest
		attempt *model.ExamAttempt
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		req, err = reviewPending(ctx, tx, id, model.RequestStatusApproved, reviewerID, at)
		if err != nil {
			return err
		}

		attempt = &model.ExamAttempt{
			UserID:        req.UserID,
			ExamRequestID: req.ID,
			CenterID:      req.CenterID,
			ExamType:      req.ExamType,
			TestID:        req.TestID,
			Status:        model.AttemptStatusReady,
			CreatedAt:     at,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO exam_attempts (user_id, exam_request_id, center_id, exam_type, test_id, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			attempt.UserID, attempt.ExamRequestID, attempt.CenterID, attempt.ExamType,
			attempt.TestID, attempt.Status, attempt.CreatedAt,
		).Scan(&attempt.ID)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", translate(err))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, attempt, nil
}

// Reject moves a pending request to rejected. No attempt is created.
func (r *RequestRepository) Reject(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, error) {
	return reviewPending(ctx, r.pool, id, model.RequestStatusRejected, reviewerID, at)
}

func reviewPending(ctx context.Context, q querier, id uuid.UUID, to model.RequestStatus, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx,
		`UPDATE exam_requests
		 SET status = $2, reviewed_at = $3, reviewed_by = $4
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+requestColumns,
		id, to, at, reviewerID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return req, err
}
