package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhub/internal/model"
)

// The stores below are implemented by internal/repository on Postgres.
// They report repository.ErrNotFound, ErrDuplicate, ErrDuplicateLogin,
// ErrReferenceMissing and ErrStateChanged; services map those onto the
// error categories in errors.go.

// UserStore reads and creates directory users.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	FindByIdentity(ctx context.Context, surname, name, phone string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// IdentityStore holds the chat ↔ user links. Link must fail with
// repository.ErrDuplicate when either side is already linked.
type IdentityStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.ExternalIdentityLink, error)
	GetByChatID(ctx context.Context, chatID int64) (*model.ExternalIdentityLink, error)
	Link(ctx context.Context, l *model.ExternalIdentityLink) error
}

// RequestStore persists exam requests. Approve and Reject only succeed on
// pending requests and return repository.ErrStateChanged otherwise.
type RequestStore interface {
	Create(ctx context.Context, req *model.ExamRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error)
	ListByCenter(ctx context.Context, centerID string, status *model.RequestStatus) ([]model.ExamRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.ExamRequest, error)
	Approve(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, *model.ExamAttempt, error)
	Reject(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, error)
}

// AttemptStore persists attempts. Start and Submit are guarded on the
// expected source state and return repository.ErrStateChanged otherwise.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.ExamAttempt, error)
	Start(ctx context.Context, id uuid.UUID, startedAt, expiresAt time.Time) (*model.ExamAttempt, error)
	Submit(ctx context.Context, attemptID uuid.UUID, sub *model.Submission) (*model.ExamAttempt, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// SubmissionStore reads submissions.
type SubmissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	LatestByUser(ctx context.Context, userID uuid.UUID) (*model.Submission, error)
	ListByCenter(ctx context.Context, centerID string, graded *bool) ([]model.Submission, error)
}

// ScoreStore persists scores. DeleteCascade also removes the submission
// and rewinds the attempt and request.
type ScoreStore interface {
	Get(ctx context.Context, submissionID uuid.UUID) (*model.Score, error)
	Upsert(ctx context.Context, s *model.Score, gradedBy uuid.UUID, at time.Time) error
	DeleteCascade(ctx context.Context, submissionID uuid.UUID) error
}

// TestCatalog resolves test display names.
type TestCatalog interface {
	TestName(ctx context.Context, id uuid.UUID) (string, error)
}

// EventPublisher hands publish events to the notification relay.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.PublishEvent) error
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time
