package model

import (
	"time"

	"github.com/google/uuid"
)

// Score is the grade of one submission, keyed 1:1 by SubmissionID.
// FinalScore values are numbers or strings (band labels, section scores).
type Score struct {
	SubmissionID uuid.UUID      `json:"submission_id"`
	CenterID     string         `json:"center_id"`
	ExamType     string         `json:"exam_type"`
	ManualScore  *float64       `json:"manual_score,omitempty"`
	FinalScore   map[string]any `json:"final_score"`
	IsPublished  bool           `json:"is_published"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SaveScorePayload is the admin payload for grading a submission.
type SaveScorePayload struct {
	FinalScore  map[string]any `json:"final_score" binding:"required"`
	ManualScore *float64       `json:"manual_score" binding:"omitempty"`
	IsPublished bool           `json:"is_published"`
}

// ResultEntry is one line of a student's exam history.
// Score is nil unless the grade has been published.
type ResultEntry struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	CenterID    string        `json:"center_id"`
	ExamType    string        `json:"exam_type"`
	TestName    string        `json:"test_name,omitempty"`
	Status      AttemptStatus `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	IsGraded    bool          `json:"is_graded"`
	Score       *Score        `json:"score,omitempty"`
}
