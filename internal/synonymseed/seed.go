// Package synonymseed loads skill synonym seed files into the metadata
// store. The pipeline's normalization stage reads the resulting table
// through its refresh cache, so seeding takes effect without restarts.
package synonymseed

import (
	"errors"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Seed upserts every variant->canonical pair from the parsed seed file
// and returns how many rows were written.
func Seed(ctx domain.Context, repo domain.SynonymRepository, file *config.SynonymSeedFile) (int, error) {
	if repo == nil || file == nil || len(file.Skills) == 0 {
		return 0, nil
	}
	canonicals := make([]string, 0, len(file.Skills))
	for c := range file.Skills {
		canonicals = append(canonicals, c)
	}
	// Deterministic order keeps reruns and their logs comparable.
	sort.Strings(canonicals)

	pairs := make([]domain.SkillSynonym, 0, len(file.Skills)*2)
	for _, canonical := range canonicals {
		for _, variant := range file.Skills[canonical] {
			pairs = append(pairs, domain.SkillSynonym{Canonical: canonical, Variant: variant})
		}
	}
	if len(pairs) == 0 {
		return 0, nil
	}
	n, err := repo.UpsertBatch(ctx, pairs)
	if err != nil {
		return 0, err
	}
	slog.Info("synonym seed applied",
		slog.Int("canonicals", len(canonicals)),
		slog.Int("pairs", n))
	return n, nil
}

// SeedFromPath seeds from the YAML file at path. An empty path, or a
// missing file, falls back to the built-in default set.
func SeedFromPath(ctx domain.Context, repo domain.SynonymRepository, path string) (int, error) {
	if path == "" {
		return Seed(ctx, repo, config.DefaultSynonymSeed())
	}
	file, err := config.LoadSynonymSeed(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("synonym seed file missing, using defaults", slog.String("path", path))
			return Seed(ctx, repo, config.DefaultSynonymSeed())
		}
		return 0, err
	}
	return Seed(ctx, repo, file)
}
