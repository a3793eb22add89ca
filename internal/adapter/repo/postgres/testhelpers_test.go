package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows with one scan closure per row.
type rowsStub struct {
	scans  []func(dest ...any) error
	idx    int
	rowErr error
}

func (r *rowsStub) Next() bool { r.idx++; return r.idx <= len(r.scans) }

func (r *rowsStub) Scan(dest ...any) error { return r.scans[r.idx-1](dest...) }

func (r *rowsStub) Close() {}

func (r *rowsStub) Err() error { return r.rowErr }

func (r *rowsStub) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *rowsStub) Values() ([]any, error) { return nil, errors.New("not implemented") }

func (r *rowsStub) RawValues() [][]byte { return nil }

func (r *rowsStub) Conn() *pgx.Conn { return nil }

// txStub implements pgx.Tx with closure hooks for the statements under
// test; commits and rollbacks are counted.
type txStub struct {
	exec      func(sql string, args []any) (pgconn.CommandTag, error)
	queryRow  func(sql string, args []any) pgx.Row
	commitErr error
	commits   int
	rollbacks int
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *txStub) Commit(context.Context) error { t.commits++; return t.commitErr }

func (t *txStub) Rollback(context.Context) error { t.rollbacks++; return nil }

func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *txStub) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.exec == nil {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return t.exec(sql, args)
}

func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *txStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if t.queryRow == nil {
		return rowStub{scan: func(...any) error { return errors.New("no row configured") }}
	}
	return t.queryRow(sql, args)
}

func (t *txStub) Conn() *pgx.Conn { return nil }

// poolStub implements postgres.PgxPool with closure hooks so multiple
// *_test.go files can reuse it without redefs.
type poolStub struct {
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
	queryRow func(sql string, args []any) pgx.Row
	query    func(sql string, args []any) (pgx.Rows, error)
	tx       *txStub
	beginErr error
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if p.exec == nil {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return p.exec(sql, args)
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if p.queryRow == nil {
		return rowStub{scan: func(...any) error { return errors.New("no row configured") }}
	}
	return p.queryRow(sql, args)
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.query == nil {
		return nil, errors.New("no rows configured")
	}
	return p.query(sql, args)
}

func (p *poolStub) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		p.tx = &txStub{}
	}
	return p.tx, nil
}
