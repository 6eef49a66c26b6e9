package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/edgareichner01-sys/bot-rdv/cmd/mainconfig"
	"github.com/edgareichner01-sys/bot-rdv/internal/api/router"
	"github.com/edgareichner01-sys/bot-rdv/internal/app/bootstrap"
	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	httpmiddleware "github.com/edgareichner01-sys/bot-rdv/internal/http/middleware"
	"github.com/edgareichner01-sys/bot-rdv/internal/observability/metrics"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
	"github.com/edgareichner01-sys/bot-rdv/internal/transcript"
	"github.com/edgareichner01-sys/bot-rdv/internal/webchat"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

func main() {
	// A missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.NewWithWriter(cfg.LogLevel, os.Stdout, cfg.LogFormat)
	logger.Info("starting bot-rdv API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"default_tenant", cfg.DefaultTenantID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	sqlDB := bootstrap.BuildSQLDB(pool)
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	registry, metricsHandler := setupMetrics()
	conversationMetrics := metrics.NewConversationMetrics(registry)

	tenants := bootstrap.BuildTenantStore(redisClient, logger)
	appointmentService := bootstrap.BuildAppointmentService(pool, logger)
	calendarService, calendarOAuth := bootstrap.BuildCalendar(cfg, pool, redisClient, logger)

	engine, err := bootstrap.BuildEngine(cfg, bootstrap.EngineParts{
		Tenants:      tenants,
		Sessions:     bootstrap.BuildSessionStore(redisClient, cfg, logger),
		Appointments: appointmentService,
		Calendar:     calendarService,
		LLM:          llm,
		Notifier:     bootstrap.BuildBookingNotifier(cfg, awsCfg, logger),
		Metrics:      conversationMetrics,
	}, logger)
	if err != nil {
		return err
	}

	var transcripts webchat.TranscriptStore
	if store := transcript.NewStore(sqlDB); store != nil {
		transcripts = store
	}
	chat := webchat.NewHandler(engine, transcripts, webchat.Config{
		DefaultTenantID:  cfg.DefaultTenantID,
		PinTenant:        cfg.PinTenant,
		MaxMessageLength: cfg.MaxMessageLength,
		HistoryTurns:     cfg.HistoryTurns,
	}, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
	go limiter.RunEviction(ctx, 5*time.Minute)

	routerCfg := &router.Config{
		Logger:             logger,
		Chat:               chat,
		TenantHandler:      tenant.NewHandler(tenants, logger),
		AppointmentHandler: appointments.NewHandler(appointmentService, logger),
		CalendarOAuth:      calendarOAuth,
		MetricsHandler:     metricsHandler,
		HealthChecks:       healthChecks(pool, redisClient),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatLimiter:        limiter,
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket connections are long-lived; the chat handler bounds each turn itself.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// setupMetrics returns a dedicated registry with the Go runtime collectors
// and the handler that exposes it.
func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := make(map[string]router.HealthCheck)
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
