package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// CreditRepo implements the reserve-free credit ledger. Usage is debited
// only after a candidate persists successfully, at most once per
// candidate; the partial unique index on (candidate_id) WHERE
// type='usage' makes replays free.
type CreditRepo struct{ Pool PgxPool }

// NewCreditRepo constructs a CreditRepo with the given pool.
func NewCreditRepo(p PgxPool) *CreditRepo { return &CreditRepo{Pool: p} }

// Remaining returns the spendable credits for the current cycle: the
// allowance balance floored at zero, plus unused overage headroom when
// the tenant opted in and the plan allows it.
func (r *CreditRepo) Remaining(ctx domain.Context, tenantID string) (int, error) {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.Remaining")
	defer span.End()
	q := `SELECT GREATEST(base_credits + bonus_credits - credits_used_this_month, 0)
	+ CASE WHEN overage_enabled AND plan IN ('pro','enterprise')
	       THEN GREATEST(overage_limit - overage_used_this_month, 0)
	       ELSE 0 END
	FROM tenants WHERE id=$1`
	var n int
	if err := r.Pool.QueryRow(ctx, q, tenantID).Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("op=credits.remaining: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("op=credits.remaining: %w", err)
	}
	return n, nil
}

// spendable applies the Remaining formula to an already-locked tenant
// row so CommitUsage can gate inside its own transaction.
func spendable(plan domain.Plan, base, bonus, used int, overageEnabled bool, overageLimit, overageUsed int) int {
	n := base + bonus - used
	if n < 0 {
		n = 0
	}
	if overageEnabled && plan.OverageEligible() {
		if head := overageLimit - overageUsed; head > 0 {
			n += head
		}
	}
	return n
}

// CommitUsage debits one credit for a successfully persisted candidate.
// Returns nil without writing when a usage row for the candidate already
// exists, so replayed queue deliveries never double-charge. A tenant
// whose locked balance has nothing spendable gets
// ErrInsufficientCredits; the submit gate is advisory, this check is
// the authority.
func (r *CreditRepo) CommitUsage(ctx domain.Context, tenantID, jobID, candidateID string) error {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.CommitUsage")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "credit_transactions"),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=credits.commit_usage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		plan                                         domain.Plan
		base, bonus, used, overageLimit, overageUsed int
		overageEnabled                               bool
	)
	err = tx.QueryRow(ctx, `SELECT plan, base_credits, bonus_credits, credits_used_this_month, overage_enabled, overage_limit, overage_used_this_month
	FROM tenants WHERE id=$1 FOR UPDATE`, tenantID).Scan(&plan, &base, &bonus, &used, &overageEnabled, &overageLimit, &overageUsed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("op=credits.commit_usage: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=credits.commit_usage: %w", err)
	}

	balanceAfter := base + bonus - (used + 1)
	tag, err := tx.Exec(ctx, `INSERT INTO credit_transactions (id, tenant_id, type, amount, balance_after, candidate_id, job_id, description, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (candidate_id) WHERE type = 'usage' DO NOTHING`,
		uuid.New().String(), tenantID, domain.CreditTxUsage, -1, balanceAfter,
		candidateID, jobID, "resume analysis", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=credits.commit_usage: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already charged for this candidate.
		return nil
	}
	// Re-check under the row lock: two submissions that both passed the
	// gate must not charge a one-credit tenant twice.
	if spendable(plan, base, bonus, used, overageEnabled, overageLimit, overageUsed) < 1 {
		return fmt.Errorf("op=credits.commit_usage: %w", domain.ErrInsufficientCredits)
	}

	newOverage := overageUsed
	if used+1 > base+bonus {
		newOverage++
	}
	_, err = tx.Exec(ctx, `UPDATE tenants SET credits_used_this_month=$2, overage_used_this_month=$3, updated_at=$4 WHERE id=$1`,
		tenantID, used+1, newOverage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=credits.commit_usage: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=credits.commit_usage: commit: %w", err)
	}
	return nil
}

// ResetIfDue rolls the tenant's billing cycle forward when a month has
// elapsed: usage counters zero, unused bonus carries over, and a
// subscription ledger row records the refreshed allowance.
func (r *CreditRepo) ResetIfDue(ctx domain.Context, tenantID string) (bool, error) {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.ResetIfDue")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("op=credits.reset_if_due: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		base, bonus, used int
		cycle             time.Time
	)
	err = tx.QueryRow(ctx, `SELECT base_credits, bonus_credits, credits_used_this_month, billing_cycle_start
	FROM tenants WHERE id=$1 FOR UPDATE`, tenantID).Scan(&base, &bonus, &used, &cycle)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, fmt.Errorf("op=credits.reset_if_due: %w", domain.ErrNotFound)
		}
		return false, fmt.Errorf("op=credits.reset_if_due: %w", err)
	}

	now := time.Now().UTC()
	if now.Before(cycle.AddDate(0, 1, 0)) {
		return false, nil
	}
	// Dormant tenants may be several cycles behind.
	next := cycle
	for !now.Before(next.AddDate(0, 1, 0)) {
		next = next.AddDate(0, 1, 0)
	}

	// Usage consumes the plan allowance before touching bonus credits,
	// so only the excess reduces the carried-over bonus.
	carry := bonus - max(0, used-base)
	if carry < 0 {
		carry = 0
	}

	_, err = tx.Exec(ctx, `UPDATE tenants SET credits_used_this_month=0, overage_used_this_month=0, bonus_credits=$2, billing_cycle_start=$3, updated_at=$4 WHERE id=$1`,
		tenantID, carry, next, now)
	if err != nil {
		return false, fmt.Errorf("op=credits.reset_if_due: update: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO credit_transactions (id, tenant_id, type, amount, balance_after, description, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New().String(), tenantID, domain.CreditTxSubscription, base, base+carry, "monthly reset", now)
	if err != nil {
		return false, fmt.Errorf("op=credits.reset_if_due: ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("op=credits.reset_if_due: commit: %w", err)
	}
	return true, nil
}

// ResetAllDue resets every tenant whose cycle has elapsed and returns how
// many were rolled forward. Each tenant resets in its own transaction so
// one failure does not hold up the rest.
func (r *CreditRepo) ResetAllDue(ctx domain.Context) (int, error) {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.ResetAllDue")
	defer span.End()

	rows, err := r.Pool.Query(ctx, `SELECT id FROM tenants WHERE billing_cycle_start <= $1`, time.Now().UTC().AddDate(0, -1, 0))
	if err != nil {
		return 0, fmt.Errorf("op=credits.reset_all_due: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("op=credits.reset_all_due_scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("op=credits.reset_all_due_rows: %w", err)
	}

	reset := 0
	for _, id := range ids {
		did, err := r.ResetIfDue(ctx, id)
		if err != nil {
			return reset, err
		}
		if did {
			reset++
		}
	}
	return reset, nil
}

// Adjust applies an operator credit adjustment (positive or negative) to
// the tenant's bonus pool and records it in the ledger.
func (r *CreditRepo) Adjust(ctx domain.Context, tenantID string, amount int, description string) error {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.Adjust")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=credits.adjust: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var base, bonus, used int
	err = tx.QueryRow(ctx, `SELECT base_credits, bonus_credits, credits_used_this_month
	FROM tenants WHERE id=$1 FOR UPDATE`, tenantID).Scan(&base, &bonus, &used)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("op=credits.adjust: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=credits.adjust: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `UPDATE tenants SET bonus_credits=$2, updated_at=$3 WHERE id=$1`,
		tenantID, bonus+amount, now)
	if err != nil {
		return fmt.Errorf("op=credits.adjust: update: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO credit_transactions (id, tenant_id, type, amount, balance_after, description, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New().String(), tenantID, domain.CreditTxAdjustment, amount, base+bonus+amount-used, description, now)
	if err != nil {
		return fmt.Errorf("op=credits.adjust: ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=credits.adjust: commit: %w", err)
	}
	return nil
}

// ListTransactions returns the tenant's ledger, newest first.
func (r *CreditRepo) ListTransactions(ctx domain.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	tracer := otel.Tracer("repo.credits")
	ctx, span := tracer.Start(ctx, "credits.ListTransactions")
	defer span.End()
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, tenant_id, type, amount, balance_after, candidate_id, job_id, description, created_at
	FROM credit_transactions WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=credits.list: %w", err)
	}
	defer rows.Close()
	var out []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Type, &t.Amount, &t.BalanceAfter, &t.CandidateID, &t.JobID, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=credits.list_scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=credits.list_rows: %w", err)
	}
	return out, nil
}
