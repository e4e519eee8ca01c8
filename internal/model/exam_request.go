package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus enumerates the review states of an exam request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// ExamRequest records a student's intent to take an exam at a center.
type ExamRequest struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	CenterID    string        `json:"center_id"`
	ExamType    string        `json:"exam_type"`
	TestID      *uuid.UUID    `json:"test_id,omitempty"`
	Status      RequestStatus `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy  *uuid.UUID    `json:"reviewed_by,omitempty"`
}

// CreateExamRequestPayload is the student payload for requesting an exam.
type CreateExamRequestPayload struct {
	CenterID string     `json:"center_id" binding:"required,notblank,max=64"`
	ExamType string     `json:"exam_type" binding:"required,notblank,max=64"`
	TestID   *uuid.UUID `json:"test_id" binding:"omitempty"`
}
