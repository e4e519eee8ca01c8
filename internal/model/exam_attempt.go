package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptDuration is the fixed time a student has once an attempt is started.
const AttemptDuration = 6 * time.Hour

// AttemptStatus enumerates the states of an exam attempt.
type AttemptStatus string

const (
	AttemptStatusReady      AttemptStatus = "ready"
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusExpired    AttemptStatus = "expired"
)

// IsTerminal reports whether no state machine transition leaves s.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired
}

// ExamAttempt is one timed exam-taking session derived from an approved request.
type ExamAttempt struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	ExamRequestID uuid.UUID     `json:"exam_request_id"`
	CenterID      string        `json:"center_id"`
	ExamType      string        `json:"exam_type"`
	TestID        *uuid.UUID    `json:"test_id,omitempty"`
	Status        AttemptStatus `json:"status"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	SubmissionID  *uuid.UUID    `json:"submission_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TimeExpired is the lazy expiry check: an in-progress attempt whose
// deadline lies strictly before now.
func (a *ExamAttempt) TimeExpired(now time.Time) bool {
	return a.Status == AttemptStatusInProgress && a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// EffectiveStatus is the status a reader should see at now.
func (a *ExamAttempt) EffectiveStatus(now time.Time) AttemptStatus {
	if a.TimeExpired(now) {
		return AttemptStatusExpired
	}
	return a.Status
}

// Remaining returns the time left before expiry, zero when not running.
func (a *ExamAttempt) Remaining(now time.Time) time.Duration {
	if a.Status != AttemptStatusInProgress || a.ExpiresAt == nil {
		return 0
	}
	if d := a.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// SubmitAttemptPayload is the student's final answer sheet.
type SubmitAttemptPayload struct {
	FullName    string            `json:"full_name" binding:"required,notblank,min=2,max=200"`
	PhoneNumber *string           `json:"phone_number" binding:"omitempty,max=32"`
	Answers     map[string]string `json:"answers" binding:"required"`
}
