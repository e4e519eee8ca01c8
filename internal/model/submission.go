package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission holds the final answers of one attempt. Answers never change
// after creation; only the grading fields are updated.
type Submission struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	CenterID    string            `json:"center_id"`
	ExamType    string            `json:"exam_type"`
	TestID      *uuid.UUID        `json:"test_id,omitempty"`
	FullName    string            `json:"full_name"`
	PhoneNumber *string           `json:"phone_number,omitempty"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
	IsGraded    bool              `json:"is_graded"`
	GradedAt    *time.Time        `json:"graded_at,omitempty"`
	GradedBy    *uuid.UUID        `json:"graded_by,omitempty"`
}
