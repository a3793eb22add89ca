// Command synonymseed loads the skill synonym table from a YAML seed
// file (or the built-in defaults) into the metadata store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/synonymseed"
)

func main() {
	path := flag.String("file", "", "path to a YAML synonym seed file (empty uses the built-in set)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.MetadataStoreURL)
	if err != nil {
		slog.Error("metadata store connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	n, err := synonymseed.SeedFromPath(ctx, postgres.NewSynonymRepo(pool), *path)
	if err != nil {
		slog.Error("synonym seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("synonym seed finished", slog.Int("pairs", n))
}
