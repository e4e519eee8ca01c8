package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhub/internal/model"
)

const submissionColumns = `id, user_id, center_id, exam_type, test_id, full_name, phone_number,
	answers, submitted_at, is_graded, graded_at, graded_by`

// SubmissionRepository handles submission reads. Writes happen inside the
// attempt and score transactions.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func scanSubmission(row scanner) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.UserID, &s.CenterID, &s.ExamType, &s.TestID, &s.FullName,
		&s.PhoneNumber, &s.Answers, &s.SubmittedAt, &s.IsGraded, &s.GradedAt, &s.GradedBy)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// GetByID retrieves a submission by ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// LatestByUser returns the most recent submission of a user.
func (r *SubmissionRepository) LatestByUser(ctx context.Context, userID uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT 1`, userID))
}

// ListByCenter lists a center's submissions, newest first, optionally
// filtered by grading state.
func (r *SubmissionRepository) ListByCenter(ctx context.Context, centerID string, graded *bool) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE center_id = $1 AND ($2::boolean IS NULL OR is_graded = $2::boolean)
		 ORDER BY submitted_at DESC`, centerID, graded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
