package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/middleware"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/response"
	"github.com/stemsi/examhub/internal/service"
	"github.com/stemsi/examhub/internal/validator"
)

// ScoreHandler serves grading endpoints for admins.
type ScoreHandler struct {
	scoreService *service.ScoreService
	log          zerolog.Logger
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(scoreService *service.ScoreService, log zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		scoreService: scoreService,
		log:          log.With().Str("component", "score_handler").Logger(),
	}
}

// ListSubmissions godoc
// GET /api/v1/admin/centers/:center_id/submissions?graded=false
func (h *ScoreHandler) ListSubmissions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var graded *bool
	if raw := c.Query("graded"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"graded": "graded must be true or false",
			})
			return
		}
		graded = &b
	}

	list, err := h.scoreService.ListSubmissions(c.Request.Context(), claims.Actor(), c.Param("center_id"), graded)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.SuccessList(c, list)
}

// GetScore godoc
// GET /api/v1/admin/submissions/:id/score
func (h *ScoreHandler) GetScore(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	score, err := h.scoreService.GetScore(c.Request.Context(), claims.Actor(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, score)
}

// SaveScore godoc
// PUT /api/v1/admin/submissions/:id/score
// Creates or replaces the grade. Publishing notifies the student's linked
// chat in the background.
func (h *ScoreHandler) SaveScore(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.SaveScorePayload
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	score, err := h.scoreService.SaveScore(c.Request.Context(), claims.Actor(), id, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, score)
}

// DeleteScore godoc
// DELETE /api/v1/admin/submissions/:id/score
// Removes the grade and submission and reopens the attempt.
func (h *ScoreHandler) DeleteScore(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.scoreService.DeleteScore(c.Request.Context(), claims.Actor(), id); err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetScoreByLogin godoc
// GET /api/v1/admin/scores?login=karimov_4567
// Returns the score of the student's most recent submission.
func (h *ScoreHandler) GetScoreByLogin(c *gin.Context) {
	claims := middleware.GetClaims(c)

	login := c.Query("login")
	if login == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"login": "login is required",
		})
		return
	}

	score, err := h.scoreService.GetScoreByLogin(c.Request.Context(), claims.Actor(), login)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, score)
}
