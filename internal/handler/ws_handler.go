package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/middleware"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/response"
	"github.com/stemsi/examhub/internal/service"
	ws "github.com/stemsi/examhub/internal/websocket"
)

const (
	timerTick = time.Second
	// timerRefresh is how often the stream rereads the attempt to notice a
	// submit made through the REST endpoint.
	timerRefresh = 15 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the countdown of a running attempt.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptTimer godoc
// WS /ws/v1/student/attempts/:id/timer?token=...
// Pushes {status, remaining_seconds, expires_at} every second until the
// attempt is submitted or expired, then closes.
func (h *WSHandler) AttemptTimer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	// Ownership and existence are checked before the upgrade so the client
	// gets a proper HTTP status.
	attempt, err := h.attemptService.Get(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Debug().Msg("Timer stream opened")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pings := make(chan struct{}, 1)
	go h.readPump(ctx, cancel, conn, pings, wsLog)

	h.stream(ctx, conn, claims.UserID, attempt, pings, wsLog)
}

func (h *WSHandler) stream(ctx context.Context, conn *websocket.Conn, userID uuid.UUID, attempt *model.ExamAttempt, pings <-chan struct{}, wsLog zerolog.Logger) {
	ticker := time.NewTicker(timerTick)
	defer ticker.Stop()
	lastRefresh := time.Now()

	for {
		now := time.Now()
		frame := timerFrame(attempt, now)
		if err := ws.WriteTyped(conn, frame); err != nil {
			wsLog.Debug().Err(err).Msg("Timer write failed")
			return
		}
		if attempt.EffectiveStatus(now) != model.AttemptStatusInProgress {
			ws.CloseNormal(conn, frame.Status)
			wsLog.Debug().Str("status", frame.Status).Msg("Timer stream finished")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
		}

		if time.Since(lastRefresh) >= timerRefresh || attempt.TimeExpired(time.Now()) {
			fresh, err := h.attemptService.Get(ctx, userID, attempt.ID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				wsLog.Warn().Err(err).Msg("Timer refresh failed")
				ws.WriteError(conn, "failed to refresh attempt")
				return
			}
			attempt = fresh
			lastRefresh = time.Now()
		}
	}
}

// readPump consumes client frames so close and ping messages are seen.
func (h *WSHandler) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pings chan<- struct{}, wsLog zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		if msg.Action != ws.ActionPing {
			continue
		}
		select {
		case pings <- struct{}{}:
		case <-ctx.Done():
			return
		default:
		}
	}
}

func timerFrame(a *model.ExamAttempt, now time.Time) ws.TimerResponse {
	return ws.TimerResponse{
		Event:            ws.EventTimer,
		Status:           string(a.EffectiveStatus(now)),
		RemainingSeconds: int64(a.Remaining(now).Seconds()),
		ExpiresAt:        a.ExpiresAt,
	}
}
