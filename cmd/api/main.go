package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nexushealth/clinic-concierge/internal/api/router"
	"github.com/nexushealth/clinic-concierge/internal/bookings"
	"github.com/nexushealth/clinic-concierge/internal/calendar"
	"github.com/nexushealth/clinic-concierge/internal/clinic"
	appconfig "github.com/nexushealth/clinic-concierge/internal/config"
	"github.com/nexushealth/clinic-concierge/internal/conversation"
	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/internal/llm"
	"github.com/nexushealth/clinic-concierge/internal/messages"
	"github.com/nexushealth/clinic-concierge/internal/observability/metrics"
	"github.com/nexushealth/clinic-concierge/internal/patients"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic timezone", "error", err, "timezone", cfg.ClinicTimezone)
		os.Exit(1)
	}

	contextStore := clinic.NewStore(pool)
	contextResolver := clinic.NewCache(redisClient, contextStore, cfg.ContextCacheTTL, logger)
	messageStore := messages.NewPostgresStore(pool)
	patientRepo := patients.NewPostgresRepository(pool)
	bookingRepo := bookings.NewPostgresRepository(pool)

	llmClient := llm.NewClient(llm.Config{
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenAIAPIKey:      cfg.OpenAIAPIKey,
		ChatModel:         cfg.ChatModel,
		VisionModel:       cfg.VisionModel,
		SummaryModel:      cfg.SummaryModel,
	}, logger)
	if !llmClient.HasTranscription() {
		logger.Warn("OPENAI_API_KEY not set, voice notes will not be transcribed")
	}

	var calendarService *calendar.Service
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		calendarService = calendar.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, logger)
	} else {
		logger.Warn("google oauth not configured, scheduling tools disabled")
	}

	zapiClient := gateway.NewClient(cfg.ZAPIBaseURL, logger)
	dispatcher := gateway.NewDispatcher(zapiClient, logger)
	webhookMetrics := metrics.NewWebhookMetrics(nil)

	deps := conversation.Deps{
		Contexts:     contextResolver,
		Messages:     messageStore,
		Patients:     patientRepo,
		Bookings:     bookingRepo,
		LLM:          llmClient,
		Gateway:      zapiClient,
		Dispatcher:   dispatcher,
		Metrics:      webhookMetrics,
		Logger:       logger,
		Location:     loc,
		ReadingPause: cfg.ReadingPause,
		DedupWindow:  cfg.DedupWindow,
	}
	if calendarService != nil {
		deps.Calendar = calendarService
	}
	pipeline := conversation.NewService(deps)

	webhookHandler := gateway.NewHandler(pipeline, webhookMetrics, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		WebhookHandler: webhookHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
