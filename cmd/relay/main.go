package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/database"
	"github.com/stemsi/examhub/internal/logger"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/relay"
	"github.com/stemsi/examhub/internal/repository"
	"github.com/stemsi/examhub/internal/service"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "relay")
	log.Info().
		Str("port", cfg.RelayPort).
		Str("region", cfg.PhoneDefaultRegion).
		Msg("Starting ExamHub notification relay")

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.RelaySecret == "" {
		log.Warn().Msg("RELAY_SECRET is empty, /notify accepts unauthenticated callers")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	identityRepo := repository.NewIdentityRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)
	testRepo := repository.NewTestRepository(pool)

	registrationService := service.NewRegistrationService(userRepo, identityRepo, cfg.BotDefaultPassword, cfg.BcryptCost, log)
	resultService := service.NewResultService(attemptRepo, submissionRepo, scoreRepo, testRepo)

	// ─── Telegram ──────────────────────────────────────────────────────
	messenger, err := relay.NewTelegramMessenger(cfg.TelegramBotToken, cfg.TelegramSendRate, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	bot := relay.NewBot(registrationService, resultService, messenger, cfg.PhoneDefaultRegion, cfg.BotWorkers, log)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		bot.Run(ctx, messenger.Updates(ctx))
	}()

	// ─── Notify endpoint ───────────────────────────────────────────────
	engine := relay.NewServer(messenger, cfg.RelaySecret, log).Routes()
	srv := &http.Server{
		Addr:    ":" + cfg.RelayPort,
		Handler: engine,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.RelayPort).Msg("Relay listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Relay server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Relay server shutdown error")
	}
	<-botDone

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
