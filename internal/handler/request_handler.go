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

// RequestHandler serves the exam request ledger.
type RequestHandler struct {
	requestService *service.RequestService
	log            zerolog.Logger
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService *service.RequestService, log zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		log:            log.With().Str("component", "request_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/student/requests
func (h *RequestHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequestPayload
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, created)
}

// ListMine godoc
// GET /api/v1/student/requests
func (h *RequestHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	list, err := h.requestService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.SuccessList(c, list)
}

// ListForCenter godoc
// GET /api/v1/admin/centers/:center_id/requests?status=pending
// Without a status filter every request of the center is returned.
func (h *RequestHandler) ListForCenter(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var status *model.RequestStatus
	if raw := c.Query("status"); raw != "" {
		s := model.RequestStatus(raw)
		switch s {
		case model.RequestStatusPending, model.RequestStatusApproved, model.RequestStatusRejected:
			status = &s
		default:
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"status": "status must be one of pending, approved, rejected",
			})
			return
		}
	}

	list, err := h.requestService.ListForCenter(c.Request.Context(), claims.Actor(), c.Param("center_id"), status)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.SuccessList(c, list)
}

// Approve godoc
// POST /api/v1/admin/requests/:id/approve
// Approves a pending request and returns it together with the new attempt.
func (h *RequestHandler) Approve(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	req, attempt, err := h.requestService.Approve(c.Request.Context(), claims.Actor(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"request": req,
		"attempt": attempt,
	})
}

// Reject godoc
// POST /api/v1/admin/requests/:id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	req, err := h.requestService.Reject(c.Request.Context(), claims.Actor(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"request": req})
}
