package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// CandidateRepo persists and loads candidate records. Plaintext PII never
// touches this layer: phone, email, and address arrive pre-encrypted,
// pre-hashed, and pre-masked from the privacy stage.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

const candidateColumns = `id, tenant_id, root_id, parent_id, version, is_latest, status, name, last_position, last_company, exp_years, skills, careers, education, projects, summary, confidence_score, field_confidence, risk_level, requires_review, warnings, phone_encrypted, email_encrypted, address_encrypted, phone_hash, email_hash, phone_masked, email_masked, address_masked, embedding, created_at, updated_at`

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var (
		c          domain.Candidate
		skills     []byte
		careers    []byte
		education  []byte
		projects   []byte
		fieldConf  []byte
		warnings   []byte
		phoneHash  *string
		emailHash  *string
		embedding  *pgvector.Vector
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.RootID, &c.ParentID, &c.Version, &c.IsLatest,
		&c.Status, &c.Name, &c.LastPosition, &c.LastCompany, &c.ExpYears,
		&skills, &careers, &education, &projects, &c.Summary,
		&c.ConfidenceScore, &fieldConf, &c.RiskLevel, &c.RequiresReview, &warnings,
		&c.PhoneEncrypted, &c.EmailEncrypted, &c.AddressEncrypted,
		&phoneHash, &emailHash, &c.PhoneMasked, &c.EmailMasked, &c.AddressMasked,
		&embedding, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Candidate{}, err
	}
	if phoneHash != nil {
		c.PhoneHash = *phoneHash
	}
	if emailHash != nil {
		c.EmailHash = *emailHash
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	for _, pair := range []struct {
		raw  []byte
		dest any
	}{
		{skills, &c.Skills},
		{careers, &c.Careers},
		{education, &c.Education},
		{projects, &c.Projects},
		{fieldConf, &c.FieldConfidence},
		{warnings, &c.Warnings},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return domain.Candidate{}, err
		}
	}
	return c, nil
}

// Get loads a candidate by id within the tenant boundary.
func (r *CandidateRepo) Get(ctx domain.Context, tenantID, id string) (domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.Get")
	defer span.End()
	q := `SELECT ` + candidateColumns + ` FROM candidates WHERE tenant_id=$1 AND id=$2`
	c, err := scanCandidate(r.Pool.QueryRow(ctx, q, tenantID, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", domain.ErrNotFound)
		}
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", err)
	}
	return c, nil
}

// UpdateQuick writes the quick-extracted basics onto the placeholder row
// after parsing. Quick phone and email deliberately do not persist here;
// they ride the parsed webhook only, so no plaintext PII column ever
// exists.
func (r *CandidateRepo) UpdateQuick(ctx domain.Context, tenantID, id string, q domain.QuickProfile) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.UpdateQuick")
	defer span.End()
	// Quick extraction is best-effort; a field it missed must not blank
	// what the placeholder already shows.
	sql := `UPDATE candidates SET
	name=COALESCE(NULLIF($3,''), name),
	last_company=COALESCE(NULLIF($4,''), last_company),
	last_position=COALESCE(NULLIF($5,''), last_position),
	updated_at=$6
	WHERE tenant_id=$1 AND id=$2`
	tag, err := r.Pool.Exec(ctx, sql, tenantID, id, q.Name, q.LastCompany, q.LastPosition, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=candidate.update_quick: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=candidate.update_quick: %w", domain.ErrNotFound)
	}
	return nil
}

// Finalize writes the fully analyzed record and promotes it to the latest
// version of its chain in one transaction. Replays rewrite the same
// content, so the operation is idempotent.
func (r *CandidateRepo) Finalize(ctx domain.Context, c domain.Candidate) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.Finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "candidates"),
	)

	skills, err := json.Marshal(orEmptySlice(c.Skills))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	careers, err := json.Marshal(orEmptySlice(c.Careers))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	education, err := json.Marshal(orEmptySlice(c.Education))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	projects, err := json.Marshal(orEmptySlice(c.Projects))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	fieldConf, err := json.Marshal(orEmptyMap(c.FieldConfidence))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	warnings, err := json.Marshal(orEmptySlice(c.Warnings))
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Demote any previous latest version of this chain first so the
	// partial unique index admits the promotion below.
	_, err = tx.Exec(ctx, `UPDATE candidates SET is_latest=false, updated_at=$3
	WHERE tenant_id=$1 AND root_id=$2 AND is_latest AND id <> $4`,
		c.TenantID, c.RootID, time.Now().UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: demote: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE candidates SET
		is_latest=true, status=$3, name=$4, last_position=$5, last_company=$6, exp_years=$7,
		skills=$8, careers=$9, education=$10, projects=$11, summary=$12,
		confidence_score=$13, field_confidence=$14, risk_level=$15, requires_review=$16, warnings=$17,
		phone_encrypted=$18, email_encrypted=$19, address_encrypted=$20,
		phone_hash=$21, email_hash=$22, phone_masked=$23, email_masked=$24, address_masked=$25,
		embedding=$26, updated_at=$27
	WHERE tenant_id=$1 AND id=$2`,
		c.TenantID, c.ID, domain.CandidateCompleted, c.Name, c.LastPosition, c.LastCompany, c.ExpYears,
		skills, careers, education, projects, c.Summary,
		c.ConfidenceScore, fieldConf, c.RiskLevel, c.RequiresReview, warnings,
		c.PhoneEncrypted, c.EmailEncrypted, c.AddressEncrypted,
		nullIfEmpty(c.PhoneHash), nullIfEmpty(c.EmailHash), c.PhoneMasked, c.EmailMasked, c.AddressMasked,
		vectorParam(c.Embedding), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=candidate.finalize: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=candidate.finalize: %w", domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=candidate.finalize: commit: %w", err)
	}
	return nil
}

// MarkFailed flags the candidate row after a terminal pipeline failure.
func (r *CandidateRepo) MarkFailed(ctx domain.Context, tenantID, id string) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.MarkFailed")
	defer span.End()
	q := `UPDATE candidates SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`
	_, err := r.Pool.Exec(ctx, q, tenantID, id, domain.CandidateFailed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=candidate.mark_failed: %w", err)
	}
	return nil
}

// MarkProcessing returns a failed candidate to the in-flight state when
// its job is retried.
func (r *CandidateRepo) MarkProcessing(ctx domain.Context, tenantID, id string) error {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.MarkProcessing")
	defer span.End()
	q := `UPDATE candidates SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`
	_, err := r.Pool.Exec(ctx, q, tenantID, id, domain.CandidateProcessing, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=candidate.mark_processing: %w", err)
	}
	return nil
}

// SearchSimilar returns completed latest candidates nearest to the given
// candidate's embedding by cosine distance. The source candidate itself
// is excluded; candidates without an embedding never match.
func (r *CandidateRepo) SearchSimilar(ctx domain.Context, tenantID, candidateID string, limit int) ([]domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.SearchSimilar")
	defer span.End()
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT ` + candidateColumns + ` FROM candidates
	WHERE tenant_id=$1 AND id <> $2 AND is_latest AND status='completed' AND embedding IS NOT NULL
	ORDER BY embedding <=> (SELECT embedding FROM candidates WHERE tenant_id=$1 AND id=$2)
	LIMIT $3`
	rows, err := r.Pool.Query(ctx, q, tenantID, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=candidate.search_similar: %w", err)
	}
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("op=candidate.search_similar_scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=candidate.search_similar_rows: %w", err)
	}
	return out, nil
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orEmptyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func vectorParam(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return vec
}
