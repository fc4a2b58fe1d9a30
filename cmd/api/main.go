package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lmvieira/secretaria-virtual/internal/api/router"
	"github.com/lmvieira/secretaria-virtual/internal/clinic"
	appconfig "github.com/lmvieira/secretaria-virtual/internal/config"
	"github.com/lmvieira/secretaria-virtual/internal/conversation"
	"github.com/lmvieira/secretaria-virtual/internal/gcal"
	"github.com/lmvieira/secretaria-virtual/internal/observability/metrics"
	"github.com/lmvieira/secretaria-virtual/internal/schedule"
	"github.com/lmvieira/secretaria-virtual/internal/webchat"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting secretaria-virtual API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"calendar_provider", cfg.CalendarProvider,
	)

	if err := cfg.Validate(); err != nil {
		var missing *appconfig.MissingError
		if errors.As(err, &missing) {
			logger.Error("missing required configuration", "settings", missing.Names)
		} else {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	ctx := context.Background()

	scheduler, err := buildScheduler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	llm, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	history := buildHistoryStore(cfg, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	convMetrics := metrics.NewConversationMetrics(registry)

	doctors := clinic.DefaultDoctors()
	convService := conversation.NewService(
		llm,
		scheduler,
		history,
		conversation.SecretaryPrompt(doctors),
		convMetrics,
		logger,
	)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(convService, logger),
		ScheduleHandler:     schedule.NewHandler(scheduler, logger),
		DoctorsHandler:      clinic.NewHandler(doctors, logger),
		WebChatHandler:      webchat.NewHandler(convService, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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

// buildScheduler selects the calendar backend. The in-memory scheduler is the
// default; Google Calendar is opted into via CALENDAR_PROVIDER=google.
func buildScheduler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (schedule.Scheduler, error) {
	if cfg.CalendarProvider == appconfig.CalendarProviderGoogle {
		svc, err := gcal.NewService(ctx, gcal.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Token:        cfg.GoogleToken,
			RefreshToken: cfg.GoogleRefreshToken,
			CalendarID:   cfg.GoogleCalendarID,
			Timezone:     cfg.ClinicTimezone,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := svc.Ping(ctx); err != nil {
			logger.Warn("calendar ping failed, booking calls may error", "error", err)
		}
		return svc, nil
	}
	return schedule.NewService(logger), nil
}

// buildHistoryStore uses Redis when an address is configured and falls back
// to process-local memory otherwise.
func buildHistoryStore(cfg *appconfig.Config, logger *logging.Logger) conversation.HistoryStore {
	if cfg.RedisAddr == "" {
		logger.Info("no REDIS_ADDR configured, using in-memory conversation history")
		return conversation.NewMemoryHistoryStore()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	logger.Info("using Redis conversation history", "addr", cfg.RedisAddr)
	return conversation.NewRedisHistoryStore(redis.NewClient(opts))
}
