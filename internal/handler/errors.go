package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/response"
	"github.com/stemsi/examhub/internal/service"
)

// failService writes the HTTP error for a service error. Unknown errors are
// logged and reported as 500 without leaking their text.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrValidation):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, detail(err, service.ErrValidation))
	case errors.Is(err, service.ErrNotFound):
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, detail(err, service.ErrNotFound))
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrExpired):
		response.FailWithMessage(c, http.StatusGone, response.ErrExpired, detail(err, service.ErrExpired))
	case errors.Is(err, service.ErrConflict):
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, detail(err, service.ErrConflict))
	default:
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// detail strips the "category: " prefix so the client sees only the
// specific reason, e.g. "attempt has already been submitted".
func detail(err, category error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, category.Error()+": "); ok {
		return rest
	}
	return msg
}

// paramUUID parses a UUID path parameter, writing a 400 on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
