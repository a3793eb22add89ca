// Package postgres implements the metadata-store repositories: tenants,
// processing jobs, candidates, the credit ledger, webhook failure
// bookkeeping, skill synonyms, and email notifications.
//
// Every tenant-owned row is read and written through a tenant_id guard;
// cross-tenant reads are compile-time impossible at this layer because
// the query methods take the tenant id explicitly.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}
