package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations against the DSN. It opens
// a short-lived database/sql connection; callers keep using the pgx pool.
func Migrate(ctx context.Context, dsn string) error {
	const op = "postgres.Migrate"
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("op=%s: open: %w", op, err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("op=%s: dialect: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("op=%s: up: %w", op, err)
	}
	return nil
}
