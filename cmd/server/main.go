// Command server starts the resume analyzer HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/objectstore"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/webhook"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/app"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	if err := postgres.Migrate(ctx, cfg.MetadataStoreURL); err != nil {
		slog.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := postgres.NewPool(ctx, cfg.MetadataStoreURL)
	if err != nil {
		slog.Error("metadata store connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	candRepo := postgres.NewCandidateRepo(pool)
	tenantRepo := postgres.NewTenantRepo(pool)
	creditRepo := postgres.NewCreditRepo(pool)
	webhookRepo := postgres.NewWebhookFailureRepo(pool)

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(postgres.NewPoolBeginner(pool), cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started",
			slog.Int("retention_days", cfg.DataRetentionDays),
			slog.Duration("interval", cfg.CleanupInterval))
	}

	producer, err := redpanda.NewProducer(cfg.QueueBrokers)
	if err != nil {
		slog.Error("queue producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	store, err := objectstore.New(ctx, cfg)
	if err != nil {
		slog.Error("object store connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
	}
	limiter := app.BuildLimiter(cfg, rdb)

	submitSvc := usecase.NewSubmitService(jobRepo, creditRepo, store, producer, cfg.MaxFileSize, cfg.PresignExpiry)
	statusSvc := usecase.NewStatusService(jobRepo, candRepo, producer)
	creditSvc := usecase.NewCreditService(tenantRepo, creditRepo)

	srv := httpserver.NewServer(cfg, submitSvc, statusSvc, creditSvc, tenantRepo, candRepo,
		httpserver.NewSessionManager(cfg.SessionSecret))
	srv.DBCheck, srv.RedisCheck, srv.StoreCheck, srv.TikaCheck = app.BuildReadinessChecks(cfg, pool, rdb, store)

	admin := &httpserver.AdminServer{
		Failures: webhookRepo,
		Jobs:     jobRepo,
		Ledger:   creditRepo,
		Credits:  creditSvc,
		Replayer: webhook.NewReplayer(cfg, webhookRepo, jobRepo, tenantRepo),
	}

	handler := app.BuildRouter(cfg, srv, admin, limiter)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
