package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/handler"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/middleware"
	"github.com/stemsi/examhub/internal/response"
	"github.com/stemsi/examhub/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Request *handler.RequestHandler
	Attempt *handler.AttemptHandler
	Score   *handler.ScoreHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.Middleware("api"))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	authLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMin)

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireStudent(),
	)
	{
		studentAPI.POST("/requests", handlers.Request.Create)
		studentAPI.GET("/requests", handlers.Request.ListMine)

		studentAPI.GET("/attempts", handlers.Attempt.ListMine)
		studentAPI.GET("/attempts/:id", handlers.Attempt.Get)
		studentAPI.POST("/attempts/:id/start", handlers.Attempt.Start)
		studentAPI.POST("/attempts/:id/submit", handlers.Attempt.Submit)

		studentAPI.GET("/results", handlers.Attempt.Results)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.RequireStudent(),
	)
	{
		ws.GET("/student/attempts/:id/timer", handlers.WS.AttemptTimer)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	// Center scoping is enforced per operation by the services.
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireAdmin(),
	)
	{
		adminAPI.GET("/centers/:center_id/requests", handlers.Request.ListForCenter)
		adminAPI.POST("/requests/:id/approve", handlers.Request.Approve)
		adminAPI.POST("/requests/:id/reject", handlers.Request.Reject)

		adminAPI.GET("/centers/:center_id/submissions", handlers.Score.ListSubmissions)
		adminAPI.GET("/submissions/:id/score", handlers.Score.GetScore)
		adminAPI.PUT("/submissions/:id/score", handlers.Score.SaveScore)
		adminAPI.DELETE("/submissions/:id/score", handlers.Score.DeleteScore)
		adminAPI.GET("/scores", handlers.Score.GetScoreByLogin)

		adminAPI.POST("/attempts/sweep", middleware.RequireSuperAdmin(), handlers.Attempt.Sweep)
		adminAPI.GET("/system/status", middleware.RequireSuperAdmin(), handlers.System.Status)
	}

	return router
}
