package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/config"
	"github.com/stemsi/studyplan-backend/internal/database"
	"github.com/stemsi/studyplan-backend/internal/handler"
	"github.com/stemsi/studyplan-backend/internal/logger"
	"github.com/stemsi/studyplan-backend/internal/mailer"
	"github.com/stemsi/studyplan-backend/internal/middleware"
	"github.com/stemsi/studyplan-backend/internal/repository"
	"github.com/stemsi/studyplan-backend/internal/router"
	"github.com/stemsi/studyplan-backend/internal/service"
	"github.com/stemsi/studyplan-backend/internal/signedlink"
	"github.com/stemsi/studyplan-backend/internal/validator"
	"github.com/stemsi/studyplan-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting StudyPlan Backend")

	for _, problem := range cfg.Validate() {
		if cfg.IsRelease() {
			log.Fatal().Err(problem).Msg("Refusing to start with insecure configuration")
		}
		log.Warn().Err(problem).Msg("Insecure configuration (allowed outside release mode)")
	}

	if cfg.ResultViewMinWindow == 0 {
		log.Warn().Msg("RESULT_VIEW_MIN_WINDOW_MINUTES=0: timed exams without a late window expire their results at the official end")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

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
	examRepo := repository.NewExamRepository(pool)
	examStore := repository.NewCachedExamStore(examRepo, rdb, cfg.ExamCacheTTL, log)
	resultRepo := repository.NewExamResultRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	nonceStore := repository.NewRedisNonceStore(rdb)
	resultQueue := mailer.NewResultQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	links := signedlink.New(cfg.ResultLinkSecret, cfg.ResultLinkMaxAge, cfg.ResultLinkFutureSkew)

	authService := service.NewAuthService(cfg, userRepo, log)
	examService := service.NewExamService(examRepo, examStore, resultRepo, log)
	sessionService := service.NewExamSessionService(examStore, resultRepo, nonceStore, resultQueue, links, service.SessionOptions{
		ResultPageURL:    cfg.BaseURL + "/results/view",
		MinViewWindow:    cfg.ResultViewMinWindow,
		SingleUseLinks:   cfg.ResultLinkSingleUse,
		ExamCodeHashCost: cfg.BcryptCost,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health:      handler.NewHealthHandler(database.Health{Pool: pool, Redis: rdb}),
		Auth:        handler.NewAuthHandler(authService, log),
		Participant: handler.NewParticipantHandler(sessionService, log),
		OwnerExam:   handler.NewOwnerExamHandler(examService, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	emailWorker := worker.NewResultEmailWorker(rdb, newMailer(cfg, log), log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		emailWorker.Start(workerCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.RunCleanup(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Stop background workers; an in-flight send finishes first.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Server stopped")
}

// newMailer picks the delivery backend for result emails.
func newMailer(cfg *config.Config, log zerolog.Logger) mailer.Mailer {
	switch cfg.MailDriver {
	case "sendgrid":
		log.Info().Str("from", cfg.MailFromAddress).Msg("Result emails go through SendGrid")
		return mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromAddress)
	default:
		log.Warn().Str("driver", cfg.MailDriver).Msg("Result emails are logged, not delivered")
		return mailer.NewConsoleMailer(log)
	}
}
