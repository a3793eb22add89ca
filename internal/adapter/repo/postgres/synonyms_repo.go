package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// SynonymRepo stores the skill synonym dictionary used by the validation
// stage to fold variant spellings onto canonical skills.
type SynonymRepo struct{ Pool PgxPool }

// NewSynonymRepo constructs a SynonymRepo with the given pool.
func NewSynonymRepo(p PgxPool) *SynonymRepo { return &SynonymRepo{Pool: p} }

// UpsertBatch inserts synonym pairs, skipping ones already present, and
// returns how many rows were actually added.
func (r *SynonymRepo) UpsertBatch(ctx domain.Context, pairs []domain.SkillSynonym) (int, error) {
	tracer := otel.Tracer("repo.synonyms")
	ctx, span := tracer.Start(ctx, "synonyms.UpsertBatch")
	defer span.End()
	inserted := 0
	for _, p := range pairs {
		if p.Canonical == "" || p.Variant == "" {
			continue
		}
		tag, err := r.Pool.Exec(ctx, `INSERT INTO skill_synonyms (canonical, variant) VALUES ($1,$2)
		ON CONFLICT (canonical, variant) DO NOTHING`, p.Canonical, p.Variant)
		if err != nil {
			return inserted, fmt.Errorf("op=synonyms.upsert: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// All returns the full variant-to-canonical mapping.
func (r *SynonymRepo) All(ctx domain.Context) (map[string]string, error) {
	tracer := otel.Tracer("repo.synonyms")
	ctx, span := tracer.Start(ctx, "synonyms.All")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT canonical, variant FROM skill_synonyms`)
	if err != nil {
		return nil, fmt.Errorf("op=synonyms.all: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var canonical, variant string
		if err := rows.Scan(&canonical, &variant); err != nil {
			return nil, fmt.Errorf("op=synonyms.all_scan: %w", err)
		}
		out[variant] = canonical
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=synonyms.all_rows: %w", err)
	}
	return out, nil
}
