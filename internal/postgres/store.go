// Package postgres implements the lifecycle storage ports on PostgreSQL.
// Every unit of work runs in one READ COMMITTED transaction with a local
// lock_timeout, and asset rows are locked with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
)

const defaultMaxWait = 2 * time.Second

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// Begin waits at most opts.MaxWait for a pooled connection. The same bound
// becomes the transaction's lock_timeout so a blocked FOR UPDATE fails with a
// conflict instead of waiting forever.
func (s *Store) Begin(ctx context.Context, opts lifecycle.TxOptions) (lifecycle.Tx, error) {
	wait := opts.MaxWait
	if wait <= 0 {
		wait = defaultMaxWait
	}
	bctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ptx, err := s.DB.BeginTx(bctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		if bctx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no connection within %s", assets.ErrConflict, wait)
		}
		return nil, mapErr(err, "begin")
	}

	if _, err := ptx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", wait.Milliseconds())); err != nil {
		_ = ptx.Rollback(ctx)
		return nil, mapErr(err, "lock_timeout")
	}
	if opts.Timeout > 0 {
		if _, err := ptx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.Timeout.Milliseconds())); err != nil {
			_ = ptx.Rollback(ctx)
			return nil, mapErr(err, "statement_timeout")
		}
	}
	return &tx{tx: ptx}, nil
}

// UpsertUser registers a user that workflows may reference.
func (s *Store) UpsertUser(ctx context.Context, id, name string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name)
	return mapErr(err, "user "+id)
}

// mapErr translates driver errors into the domain sentinels. Anything it does
// not recognize is returned unchanged and ends up as an internal error.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", assets.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01", // deadlock_detected
			"57014", // query_canceled (statement_timeout)
			"23505": // unique_violation
			return fmt.Errorf("%w: %s: %s", assets.ErrConflict, what, pgErr.Message)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s: %s", assets.ErrNotFound, what, pgErr.Detail)
		}
	}
	return err
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) Commit(ctx context.Context) error {
	return mapErr(t.tx.Commit(ctx), "commit")
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *tx) UserExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, mapErr(err, "user "+id)
}

// numeric columns travel as text so decimal values keep their exact scale.
func numeric(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseNumeric(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func statusArgs[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func affected(ct pgconn.CommandTag, what string) error {
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", assets.ErrNotFound, what)
	}
	return nil
}
