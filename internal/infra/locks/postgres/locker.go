package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	pgdb "rentdesk/internal/infra/db/postgres"
)

// ErrNoTransaction is returned when LockInTx runs outside a Postgres unit of work.
var ErrNoTransaction = errors.New("postgres locker: no transaction in context")

const lockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Locker takes a transaction-scoped advisory lock per key on the connection
// already serving the unit of work. Commit or rollback releases it.
type Locker struct {
	Logger *slog.Logger
	// TxFrom defaults to the transaction bound by the Postgres unit of work.
	TxFrom func(ctx context.Context) (execer, bool)
}

func (l *Locker) LockInTx(ctx context.Context, key string) error {
	tx, ok := l.txFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	// pg_advisory_xact_lock blocks server side; a cancelled ctx interrupts the query.
	if _, err := tx.Exec(ctx, lockSQL, key); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.Logger != nil {
			l.Logger.Warn("postgres advisory lock failed", "key", key, "error", err)
		}
		return err
	}
	return nil
}

func (l *Locker) txFrom(ctx context.Context) (execer, bool) {
	if l.TxFrom != nil {
		return l.TxFrom(ctx)
	}
	tx, ok := pgdb.TxFromContext(ctx)
	if !ok {
		return nil, false
	}
	return tx, true
}
