package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/database"
	"github.com/stemsi/listening-survey/internal/handler"
	"github.com/stemsi/listening-survey/internal/logger"
	"github.com/stemsi/listening-survey/internal/middleware"
	"github.com/stemsi/listening-survey/internal/repository"
	"github.com/stemsi/listening-survey/internal/router"
	"github.com/stemsi/listening-survey/internal/service"
	"github.com/stemsi/listening-survey/internal/validator"
	"github.com/stemsi/listening-survey/internal/workbook"
	"github.com/stemsi/listening-survey/internal/workbook/backend"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Listening Survey")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Storage ──────────────────────────────────────────────────
	// Missing credentials are fatal here rather than surfacing as 404s later.
	provider, closeStorage, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure storage")
	}
	defer closeStorage()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	var counter middleware.WindowCounter
	if rdb != nil {
		defer rdb.Close()
		counter = rdb
	}

	// ─── Initialize Store and Services ────────────────────────────────
	provisioner := workbook.NewProvisioner(provider, log)
	store := repository.NewRecordStore(provisioner, log)
	surveyService := service.NewSurveyService(store, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Questionnaire: handler.NewQuestionnaireHandler(surveyService),
		Response:      handler.NewResponseHandler(surveyService),
		System:        handler.NewSystemHandler(cfg.StorageBackend),
	}

	// Submit rate limiter (SUBMIT_RATE_LIMIT requests per minute per IP),
	// off unless configured.
	var submitLimiter *middleware.RateLimiter
	if cfg.SubmitRateLimit > 0 {
		submitLimiter = middleware.NewRateLimiter(cfg.SubmitRateLimit, time.Minute, counter, log)
		log.Info().Int("per_minute", cfg.SubmitRateLimit).Msg("Submit rate limiting enabled")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, submitLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// In-flight appends get 10s to reach the backend.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
