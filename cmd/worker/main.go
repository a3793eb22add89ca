// Command worker consumes the processing topic and runs the analysis
// pipeline for each job.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	ai "github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/anthropic"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/openaicompat"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/objectstore"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/webhook"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/app"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/pipeline"
	"github.com/fairyhunter13/ai-resume-analyzer/pkg/pii"
)

const embedCacheEntries = 2048

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	emailRepo := postgres.NewEmailNotificationRepo(pool)
	synonymRepo := postgres.NewSynonymRepo(pool)
	webhookRepo := postgres.NewWebhookFailureRepo(pool)

	store, err := objectstore.New(ctx, cfg)
	if err != nil {
		slog.Error("object store connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Provider clients in failover order. The stub keeps dev and test
	// environments runnable without credentials.
	var clients []ai.Generator
	var embedder ai.Embedder
	if cfg.PrimaryLLMKey != "" {
		primary := openaicompat.New(cfg)
		clients = append(clients, primary)
		embedder = ai.NewEmbedCache(primary, embedCacheEntries)
	}
	if cfg.SecondaryLLMKey != "" {
		clients = append(clients, anthropic.New(cfg))
	}
	if cfg.TertiaryLLMKey != "" {
		gem, err := gemini.New(ctx, cfg)
		if err != nil {
			slog.Error("gemini client init failed", slog.Any("error", err))
			os.Exit(1)
		}
		clients = append(clients, gem)
	}
	if len(clients) == 0 {
		if cfg.IsProd() {
			slog.Error("no LLM provider configured")
			os.Exit(1)
		}
		st := stub.New()
		clients = append(clients, st)
		embedder = st
		slog.Warn("no LLM keys configured, using stub provider")
	}
	manager := ai.NewManager(cfg, embedder, clients...)
	analyst := ai.NewAnalyst(manager)

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		slog.Error("encryption key invalid", slog.Any("error", err))
		os.Exit(1)
	}
	codec, err := pii.NewCodec(key, cfg.HashSalt)
	if err != nil {
		slog.Error("pii codec init failed", slog.Any("error", err))
		os.Exit(1)
	}

	emitter := webhook.NewEmitter(cfg, tenantRepo, webhookRepo)
	synonyms := pipeline.NewCachedSynonyms(synonymRepo, cfg.SynonymRefreshInterval)

	pl := pipeline.New(pipeline.Deps{
		Cfg:        cfg,
		Jobs:       jobRepo,
		Candidates: candRepo,
		Tenants:    tenantRepo,
		Credits:    creditRepo,
		Emails:     emailRepo,
		Store:      store,
		Extractor:  tikaext.New(cfg.TikaURL, cfg.ParseTimeout),
		Analyst:    analyst,
		Synonyms:   synonyms,
		Webhooks:   emitter,
		Codec:      codec,
	})

	producer, err := redpanda.NewProducerWithTransactionalID(cfg.QueueBrokers, "resume-worker")
	if err != nil {
		slog.Error("queue producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = producer.Close() }()

	retry := redpanda.NewRetryManager(producer, jobRepo, cfg)
	consumer, err := redpanda.NewConsumer(cfg.QueueBrokers, "resume-workers", pl, retry, cfg)
	if err != nil {
		slog.Error("queue consumer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	dlqConsumer, err := redpanda.NewDLQConsumer(cfg.QueueBrokers, "resume-dlq", jobRepo, candRepo, emitter)
	if err != nil {
		slog.Error("dlq consumer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer dlqConsumer.Stop()
	go func() {
		if err := dlqConsumer.Start(ctx); err != nil {
			slog.Error("dlq consumer stopped", slog.Any("error", err))
		}
	}()

	replayer := webhook.NewReplayer(cfg, webhookRepo, jobRepo, tenantRepo)
	go replayer.Run(ctx)

	sweeper := app.NewStuckJobSweeper(jobRepo, emitter, cfg.StuckJobStaleAfter, cfg.StuckJobSweepInterval)
	go sweeper.Run(ctx)

	creditReset := app.NewCreditResetScheduler(creditRepo, cfg.CreditResetCron)
	if err := creditReset.Start(ctx); err != nil {
		slog.Error("credit reset scheduler failed to start", slog.Any("error", err))
	}
	defer creditReset.Stop()

	slog.Info("worker consuming", slog.Any("brokers", cfg.QueueBrokers))
	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker shut down")
}
