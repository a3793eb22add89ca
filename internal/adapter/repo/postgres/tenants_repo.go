package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// TenantRepo persists and loads tenants using a minimal pgx pool.
type TenantRepo struct{ Pool PgxPool }

// NewTenantRepo constructs a TenantRepo with the given pool.
func NewTenantRepo(p PgxPool) *TenantRepo { return &TenantRepo{Pool: p} }

// Create inserts a new tenant and returns its id (generates one if empty).
// The monthly allowance starts full; the billing cycle starts now.
func (r *TenantRepo) Create(ctx domain.Context, t domain.Tenant) (string, error) {
	tracer := otel.Tracer("repo.tenants")
	ctx, span := tracer.Start(ctx, "tenants.Create")
	defer span.End()
	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = domain.TenantActive
	}
	if t.BaseCredits == 0 {
		t.BaseCredits = t.Plan.BaseCredits()
	}
	cycle := t.BillingCycleStart
	if cycle.IsZero() {
		cycle = time.Now().UTC()
	}
	q := `INSERT INTO tenants (id, name, email, plan, status, secret_hash, base_credits, bonus_credits, credits_used_this_month, billing_cycle_start, overage_enabled, overage_limit, overage_used_this_month, webhook_url, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	now := time.Now().UTC()
	_, err := r.Pool.Exec(ctx, q, id, t.Name, t.Email, t.Plan, t.Status, t.SecretHash,
		t.BaseCredits, t.BonusCredits, t.CreditsUsedThisMonth, cycle,
		t.OverageEnabled, t.OverageLimit, t.OverageUsedThisMonth, t.WebhookURL, now, now)
	if err != nil {
		return "", fmt.Errorf("op=tenant.create: %w", err)
	}
	return id, nil
}

const tenantColumns = `id, name, email, plan, status, secret_hash, base_credits, bonus_credits, credits_used_this_month, billing_cycle_start, overage_enabled, overage_limit, overage_used_this_month, webhook_url, created_at, updated_at`

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Plan, &t.Status, &t.SecretHash,
		&t.BaseCredits, &t.BonusCredits, &t.CreditsUsedThisMonth, &t.BillingCycleStart,
		&t.OverageEnabled, &t.OverageLimit, &t.OverageUsedThisMonth, &t.WebhookURL,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Get loads a tenant by id.
func (r *TenantRepo) Get(ctx domain.Context, id string) (domain.Tenant, error) {
	tracer := otel.Tracer("repo.tenants")
	ctx, span := tracer.Start(ctx, "tenants.Get")
	defer span.End()
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id=$1`
	t, err := scanTenant(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Tenant{}, fmt.Errorf("op=tenant.get: %w", domain.ErrNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("op=tenant.get: %w", err)
	}
	return t, nil
}

// GetByEmail loads a tenant by its unique email.
func (r *TenantRepo) GetByEmail(ctx domain.Context, email string) (domain.Tenant, error) {
	tracer := otel.Tracer("repo.tenants")
	ctx, span := tracer.Start(ctx, "tenants.GetByEmail")
	defer span.End()
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE email=$1`
	t, err := scanTenant(r.Pool.QueryRow(ctx, q, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Tenant{}, fmt.Errorf("op=tenant.get_by_email: %w", domain.ErrNotFound)
		}
		return domain.Tenant{}, fmt.Errorf("op=tenant.get_by_email: %w", err)
	}
	return t, nil
}
