package model

import "github.com/google/uuid"

// PublishEvent is pushed from the score store to the notification relay
// when a grade is published. Field names follow the relay's /notify contract.
type PublishEvent struct {
	TelegramID   int64     `json:"telegram_id"`
	Score        any       `json:"score"`
	TestName     string    `json:"testName,omitempty"`
	StudentName  string    `json:"student_name,omitempty"`
	Login        string    `json:"login,omitempty"`
	SubmissionID uuid.UUID `json:"submission_id"`
}
