package relay

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/notify"
	"github.com/stemsi/examhub/internal/response"
)

// NotifyPayload is the body of POST /notify.
type NotifyPayload struct {
	TelegramID  *int64 `json:"telegram_id"`
	Score       any    `json:"score"`
	TestName    string `json:"testName"`
	StudentName string `json:"student_name"`
	Login       string `json:"login"`
}

// Server is the relay's HTTP surface. It shares nothing mutable with the
// bot loop; both only talk to the messenger and the directory store.
type Server struct {
	messenger Messenger
	secret    string
	log       zerolog.Logger
}

// NewServer creates a new Server. A non-empty secret is required on /notify.
func NewServer(messenger Messenger, secret string, log zerolog.Logger) *Server {
	return &Server{
		messenger: messenger,
		secret:    secret,
		log:       log.With().Str("component", "relay_http").Logger(),
	}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())
	r.Use(metrics.Middleware("relay"))

	r.GET("/health", s.Health)
	r.GET("/metrics", metrics.Handler())
	r.POST("/notify", s.Notify)
	return r
}

// Health godoc
// Health reports that the relay process is up.
// GET /health
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Notify godoc
// POST /notify
// Pushes a published result to the student's chat.
func (s *Server) Notify(c *gin.Context) {
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(notify.SecretHeader)), []byte(s.secret)) != 1 {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var p NotifyPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if p.TelegramID == nil || p.Score == nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, missingFields(p))
		return
	}

	err := s.messenger.Send(c.Request.Context(), *p.TelegramID, scoreText(p))
	metrics.RelayDeliveries.WithLabelValues("notify", metrics.Result(err)).Inc()
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", *p.TelegramID).Msg("Failed to deliver score notification")
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrInternal, "message could not be delivered")
		return
	}

	s.log.Info().Int64("chat_id", *p.TelegramID).Str("test", p.TestName).Msg("Score notification sent")
	response.Success(c, http.StatusOK, gin.H{"delivered": true})
}

func missingFields(p NotifyPayload) map[string]string {
	fields := make(map[string]string, 2)
	if p.TelegramID == nil {
		fields["telegram_id"] = "telegram_id is required"
	}
	if p.Score == nil {
		fields["score"] = "score is required"
	}
	return fields
}
