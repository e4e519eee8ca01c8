package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/middleware"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/response"
	"github.com/stemsi/examhub/internal/service"
	"github.com/stemsi/examhub/internal/validator"
)

// AttemptHandler serves the student side of the attempt state machine.
type AttemptHandler struct {
	attemptService *service.AttemptService
	resultService  *service.ResultService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, resultService *service.ResultService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		resultService:  resultService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListMine godoc
// GET /api/v1/student/attempts
func (h *AttemptHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	list, err := h.attemptService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.SuccessList(c, list)
}

// Get godoc
// GET /api/v1/student/attempts/:id
func (h *AttemptHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, attempt)
}

// Start godoc
// POST /api/v1/student/attempts/:id/start
// Starts the six hour timer. Calling it again while running returns the
// same attempt.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, attempt)
}

// Submit godoc
// POST /api/v1/student/attempts/:id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitAttemptPayload
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, sub, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt":    attempt,
		"submission": sub,
	})
}

// Results godoc
// GET /api/v1/student/results
// Exam history; scores appear only once published.
func (h *AttemptHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)

	history, err := h.resultService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.SuccessList(c, history)
}

// Sweep godoc
// POST /api/v1/admin/attempts/sweep
// Runs the expiry sweep immediately.
func (h *AttemptHandler) Sweep(c *gin.Context) {
	n, err := h.attemptService.Sweep(c.Request.Context())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"expired": n})
}
