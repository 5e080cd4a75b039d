package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// schema is applied on start; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS units (
		id text PRIMARY KEY,
		property_id text NOT NULL DEFAULT '',
		name text NOT NULL,
		capacity int NOT NULL CHECK (capacity >= 1),
		base_nightly_cents bigint NOT NULL CHECK (base_nightly_cents >= 0),
		currency char(3) NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		version bigint NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id text PRIMARY KEY,
		unit_id text NOT NULL REFERENCES units(id),
		check_in date NOT NULL,
		check_out date NOT NULL,
		status text NOT NULL,
		guest_name text NOT NULL DEFAULT '',
		guest_email text NOT NULL DEFAULT '',
		guest_phone text NOT NULL DEFAULT '',
		adults int NOT NULL,
		children int NOT NULL DEFAULT 0,
		total_cents bigint NOT NULL,
		currency char(3) NOT NULL,
		created_by text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		cancelled_at timestamptz,
		version bigint NOT NULL DEFAULT 1,
		CHECK (check_out > check_in),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			unit_id WITH =, daterange(check_in, check_out) WITH &&
		) WHERE (status <> 'CANCELLED')
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_unit_check_in ON bookings (unit_id, check_in)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		id text PRIMARY KEY,
		unit_id text NOT NULL REFERENCES units(id),
		check_in date NOT NULL,
		check_out date NOT NULL,
		reason text NOT NULL DEFAULT '',
		created_by text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		version bigint NOT NULL DEFAULT 1,
		CHECK (check_out > check_in),
		CONSTRAINT blocks_no_overlap EXCLUDE USING gist (
			unit_id WITH =, daterange(check_in, check_out) WITH &&
		)
	)`,
	`CREATE INDEX IF NOT EXISTS blocks_unit_check_in ON blocks (unit_id, check_in)`,
	`CREATE TABLE IF NOT EXISTS rate_bands (
		id text PRIMARY KEY,
		unit_id text NOT NULL REFERENCES units(id),
		start_date date NOT NULL,
		end_date date NOT NULL,
		weekday_price bigint,
		weekend_price bigint,
		min_stay int NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rate_bands_unit_start ON rate_bands (unit_id, start_date)`,
	`CREATE TABLE IF NOT EXISTS rate_rules (
		id text PRIMARY KEY,
		priority int NOT NULL,
		active boolean NOT NULL,
		body jsonb NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_outbox (
		id text PRIMARY KEY,
		name text NOT NULL,
		payload bytea NOT NULL,
		occurred_at timestamptz NOT NULL,
		aggregate text NOT NULL,
		headers jsonb NOT NULL DEFAULT '{}',
		state text NOT NULL,
		attempts int NOT NULL DEFAULT 0,
		next_attempt_at timestamptz NOT NULL,
		claimed_by text NOT NULL DEFAULT '',
		claimed_at timestamptz,
		sent_at timestamptz,
		last_error text NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS app_outbox_due ON app_outbox (state, next_attempt_at)`,
}

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// querier is the subset shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction a unit of work bound to ctx.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
