package service

import (
	"errors"
	"fmt"
)

// Error categories. Every error a service returns to a caller either is
// one of these or wraps one, so handlers and the bot switch on errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrExpired    = errors.New("expired")
	ErrValidation = errors.New("validation failed")
)

// Specific errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDuplicateRequest = fmt.Errorf("%w: an active request for this exam already exists", ErrConflict)
	ErrAlreadyReviewed  = fmt.Errorf("%w: request has already been reviewed", ErrConflict)

	ErrAttemptNotStarted = fmt.Errorf("%w: attempt has not been started", ErrConflict)
	ErrAttemptSubmitted  = fmt.Errorf("%w: attempt has already been submitted", ErrConflict)
	ErrAttemptLapsed     = fmt.Errorf("%w: attempt has expired and cannot be restarted", ErrConflict)
	ErrAttemptExpired    = fmt.Errorf("%w: time for this attempt is up", ErrExpired)

	ErrEmptyScore = fmt.Errorf("%w: final score must have at least one value", ErrValidation)

	ErrAlreadyLinked       = fmt.Errorf("%w: already linked to another account", ErrConflict)
	ErrChatLinkedElsewhere = fmt.Errorf("%w: this chat is linked to another account", ErrConflict)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}
