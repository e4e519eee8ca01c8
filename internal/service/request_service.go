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

// RequestService is the request ledger: students ask to sit an exam at a
// center and center staff approve or reject.
type RequestService struct {
	requests RequestStore
	now      Clock
	log      zerolog.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(requests RequestStore, log zerolog.Logger) *RequestService {
	return &RequestService{
		requests: requests,
		now:      time.Now,
		log:      log.With().Str("component", "request_service").Logger(),
	}
}

// Create records a pending request. A second pending or approved request
// for the same (user, center, exam type) is a conflict.
func (s *RequestService) Create(ctx context.Context, userID uuid.UUID, p model.CreateExamRequestPayload) (*model.ExamRequest, error) {
	centerID := strings.TrimSpace(p.CenterID)
	examType := strings.TrimSpace(p.ExamType)
	if centerID == "" || examType == "" {
		return nil, validationf("center_id and exam_type are required")
	}

	req := &model.ExamRequest{
		UserID:      userID,
		CenterID:    centerID,
		ExamType:    examType,
		TestID:      p.TestID,
		RequestedAt: s.now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateRequest
		case errors.Is(err, repository.ErrReferenceMissing):
			return nil, notFound("center or test")
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("center_id", req.CenterID).
		Str("exam_type", req.ExamType).
		Msg("Exam request created")
	return req, nil
}

// ListForCenter returns the center's requests, newest first. A nil status
// lists everything.
func (s *RequestService) ListForCenter(ctx context.Context, actor model.Actor, centerID string, status *model.RequestStatus) ([]model.ExamRequest, error) {
	if !actor.CanReview(centerID) {
		return nil, ErrForbidden
	}
	reqs, err := s.requests.ListByCenter(ctx, centerID, status)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// ListPending is ListForCenter restricted to pending requests.
func (s *RequestService) ListPending(ctx context.Context, actor model.Actor, centerID string) ([]model.ExamRequest, error) {
	pending := model.RequestStatusPending
	return s.ListForCenter(ctx, actor, centerID, &pending)
}

// ListMine returns the student's own requests.
func (s *RequestService) ListMine(ctx context.Context, userID uuid.UUID) ([]model.ExamRequest, error) {
	reqs, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// Approve approves a pending request and creates its ready attempt.
func (s *RequestService) Approve(ctx context.Context, actor model.Actor, requestID uuid.UUID) (*model.ExamRequest, *model.ExamAttempt, error) {
	if _, err := s.reviewable(ctx, actor, requestID); err != nil {
		return nil, nil, err
	}

	req, attempt, err := s.requests.Approve(ctx, requestID, actor.UserID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, nil, ErrAlreadyReviewed
		}
		return nil, nil, fmt.Errorf("approve request: %w", err)
	}

	metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusReady)).Inc()
	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("attempt_id", attempt.ID.String()).
		Str("reviewer_id", actor.UserID.String()).
		Msg("Exam request approved")
	return req, attempt, nil
}

// Reject rejects a pending request. No attempt is created.
func (s *RequestService) Reject(ctx context.Context, actor model.Actor, requestID uuid.UUID) (*model.ExamRequest, error) {
	if _, err := s.reviewable(ctx, actor, requestID); err != nil {
		return nil, err
	}

	req, err := s.requests.Reject(ctx, requestID, actor.UserID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("reject request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("reviewer_id", actor.UserID.String()).
		Msg("Exam request rejected")
	return req, nil
}

// reviewable loads a request and checks that actor may review it now.
func (s *RequestService) reviewable(ctx context.Context, actor model.Actor, requestID uuid.UUID) (*model.ExamRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("request")
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.CanReview(req.CenterID) {
		return nil, ErrForbidden
	}
	if req.Status != model.RequestStatusPending {
		return nil, ErrAlreadyReviewed
	}
	return req, nil
}
