package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sbu-europe/fintalk/internal/domain"
)

// pgxIface is the subset of *pgxpool.Pool the Postgres repositories use.
type pgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// storeError wraps err with the operation name and marks connection
// failures as domain.ErrServiceUnavailable.
func storeError(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("repository: %s: %w: %w", op, domain.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("repository: %s: %w", op, err)
}
