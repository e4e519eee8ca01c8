package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/database"
	"github.com/stemsi/examhub/internal/handler"
	"github.com/stemsi/examhub/internal/logger"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/notify"
	"github.com/stemsi/examhub/internal/repository"
	"github.com/stemsi/examhub/internal/router"
	"github.com/stemsi/examhub/internal/service"
	"github.com/stemsi/examhub/internal/validator"
	"github.com/stemsi/examhub/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "api")
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamHub API")

	// ─── Initialize Validator and Metrics ──────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	identityRepo := repository.NewIdentityRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)
	testRepo := repository.NewTestRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	publisher := notify.NewRedisPublisher(rdb, config.WorkerKey.PublishNotificationsQueue)

	authService := service.NewAuthService(cfg, userRepo)
	requestService := service.NewRequestService(requestRepo, log)
	attemptService := service.NewAttemptService(attemptRepo, log)
	scoreService := service.NewScoreService(submissionRepo, scoreRepo, userRepo, identityRepo, testRepo, publisher, log)
	resultService := service.NewResultService(attemptRepo, submissionRepo, scoreRepo, testRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Request: handler.NewRequestHandler(requestService, log),
		Attempt: handler.NewAttemptHandler(attemptService, resultService, log),
		Score:   handler.NewScoreHandler(scoreService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	notifyWorker := worker.NewNotifyWorker(rdb, notify.NewRelayClient(cfg.RelayBaseURL, cfg.RelaySecret), log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		notifyWorker.Start(workerCtx)
	}()

	if cfg.SweepSchedule != "off" {
		sweeper, err := worker.NewSweeper(cfg.SweepSchedule, attemptService, log)
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Invalid sweep schedule")
		}
		// Catch up on attempts that lapsed while the server was down.
		sweeper.RunOnce()
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Start(workerCtx)
		}()
	} else {
		log.Warn().Msg("Scheduled attempt sweep disabled")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the queue drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
