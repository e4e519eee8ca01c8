package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/response"
)

const pingTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime state of the API server.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 503 when PostgreSQL or Redis does not answer.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL health check failed")
		checks["postgres"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	}

	if status != http.StatusOK {
		c.JSON(status, response.Response{
			Data: gin.H{"status": "degraded", "checks": checks},
			Error: &response.ErrorBody{
				Code:    response.ErrInternal,
				Message: "a dependency is unavailable",
			},
		})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

type systemStatus struct {
	Uptime            string `json:"uptime"`
	GoVersion         string `json:"go_version"`
	Goroutines        int    `json:"goroutines"`
	HeapAlloc         uint64 `json:"heap_alloc"`
	NumGC             uint32 `json:"num_gc"`
	DBTotalConns      int32  `json:"db_total_conns"`
	DBIdleConns       int32  `json:"db_idle_conns"`
	QueueNotification int64  `json:"queue_notifications"`
}

// Status godoc
// GET /api/v1/admin/system/status
// Runtime numbers plus the depth of the notification queue.
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := systemStatus{
		Uptime:     formatDuration(time.Since(h.startTime)),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
	}

	stat := h.pool.Stat()
	st.DBTotalConns = stat.TotalConns()
	st.DBIdleConns = stat.IdleConns()

	depth, err := h.rdb.LLen(c.Request.Context(), config.WorkerKey.PublishNotificationsQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read notification queue depth")
		depth = -1
	}
	st.QueueNotification = depth

	response.Success(c, http.StatusOK, st)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
