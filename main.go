package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/aulaplan/aulaplan/app/db"
	appLogger "github.com/aulaplan/aulaplan/app/logger"
	"github.com/aulaplan/aulaplan/app/observability/metrics"
	"github.com/aulaplan/aulaplan/app/tracer"
	"github.com/aulaplan/aulaplan/config"
	"github.com/aulaplan/aulaplan/internal/api/activity"
	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/api/badge"
	"github.com/aulaplan/aulaplan/internal/api/event"
	"github.com/aulaplan/aulaplan/internal/api/feedback"
	"github.com/aulaplan/aulaplan/internal/api/guide"
	"github.com/aulaplan/aulaplan/internal/api/report"
	"github.com/aulaplan/aulaplan/internal/api/template"
	"github.com/aulaplan/aulaplan/internal/api/user"
	"github.com/aulaplan/aulaplan/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := tracer.InitTracingAndMetrics("aulaplan"); err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		os.Exit(1)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Migrations run before the pool is opened.
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.Auth)

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, tokens, logger)
	authHandler := auth.NewAuthHandler(authService, logger)

	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, tokens, logger)
	userHandler := user.NewUserHandler(userService, logger)

	activityRepo := activity.NewPostgresActivityRepo(pool, logger)
	activityService := activity.NewActivityService(activityRepo, logger)
	activityHandler := activity.NewActivityHandler(activityService, logger)

	guideRepo := guide.NewPostgresGuideRepo(pool, logger)
	guideService := guide.NewGuideService(guideRepo, logger)
	guideHandler := guide.NewGuideHandler(guideService, logger)

	eventRepo := event.NewPostgresEventRepo(pool, logger)
	eventService := event.NewEventService(eventRepo, logger)
	eventHandler := event.NewEventHandler(eventService, logger)

	badgeRepo := badge.NewPostgresBadgeRepo(pool, logger)
	badgeService := badge.NewBadgeService(badgeRepo, logger)
	badgeHandler := badge.NewBadgeHandler(badgeService, logger)

	reportRepo := report.NewPostgresReportRepo(pool, logger)
	reportService := report.NewReportService(reportRepo, logger)
	reportHandler := report.NewReportHandler(reportService, logger)

	feedbackRepo := feedback.NewPostgresFeedbackRepo(pool, logger)
	feedbackService := feedback.NewFeedbackService(feedbackRepo, logger)
	feedbackHandler := feedback.NewFeedbackHandler(feedbackService, logger)

	templateRepo := template.NewPostgresTemplateRepo(pool, logger)
	templateService := template.NewTemplateService(templateRepo, logger)
	templateHandler := template.NewTemplateHandler(templateService, logger)

	apiRouter := router.SetupRouter(&router.Config{
		Tokens:          tokens,
		AuthHandler:     authHandler,
		UserHandler:     userHandler,
		ActivityHandler: activityHandler,
		GuideHandler:    guideHandler,
		EventHandler:    eventHandler,
		BadgeHandler:    badgeHandler,
		ReportHandler:   reportHandler,
		FeedbackHandler: feedbackHandler,
		TemplateHandler: templateHandler,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(metrics.Observe())
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.MetricsPort),
		Handler: tracer.MetricsHandler(),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting metrics server", slog.String("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server graceful shutdown failed", slog.Any("error", err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	if mode == "" {
		mode = os.Getenv("APP_ENV")
	}
	if mode == "production" {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		return slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
	}
	// Colored logs for development.
	tintOpts := &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}
	return slog.New(tint.NewHandler(os.Stdout, tintOpts))
}
