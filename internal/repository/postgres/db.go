package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/reisinl/veg-shop/internal/entity"
)

// Config selects the database/sql driver and sizes the pool.
type Config struct {
	Driver          string // "postgres" (lib/pq) or "pgx"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// InitDB opens the pool, checks connectivity and applies the schema.
func InitDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated", "driver", driver)
	return db, nil
}

func migrateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS persons (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			username TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			staff_code TEXT UNIQUE,
			department TEXT,
			date_joined DATE,
			address TEXT,
			customer_code TEXT UNIQUE,
			balance NUMERIC NOT NULL DEFAULT 0,
			owing NUMERIC NOT NULL DEFAULT 0,
			distance_from_store DOUBLE PRECISION NOT NULL DEFAULT 0,
			credit_ceiling NUMERIC,
			discount_rate NUMERIC,
			max_credit NUMERIC
		);

		CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC NOT NULL DEFAULT 0,
			stock_quantity NUMERIC NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
			rate NUMERIC,
			per_order_unit NUMERIC,
			box_size TEXT
		);

		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			order_number TEXT NOT NULL UNIQUE,
			customer_id BIGINT NOT NULL REFERENCES persons(id),
			staff_id BIGINT REFERENCES persons(id),
			status TEXT NOT NULL,
			total_amount NUMERIC NOT NULL,
			delivery BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_lines (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			item_id BIGINT NOT NULL REFERENCES items(id),
			quantity INT NOT NULL,
			mode TEXT NOT NULL DEFAULT '',
			stock_consumed NUMERIC NOT NULL DEFAULT 0,
			line_total NUMERIC NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id),
			customer_id BIGINT NOT NULL REFERENCES persons(id),
			amount NUMERIC NOT NULL,
			method TEXT NOT NULL,
			paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			card_last4 TEXT,
			card_expiry TEXT,
			card_type TEXT,
			bank_name TEXT
		);

		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			stream_id TEXT NOT NULL,
			stream_type TEXT NOT NULL,
			version INT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (stream_id, version)
		);

		CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
		CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);
		CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);
		CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at);
	`)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// translate maps driver errors onto the entity errors callers match on.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	switch sqlState(err) {
	case "23505":
		return fmt.Errorf("%w: %v", entity.ErrDuplicate, err)
	case "23503":
		return fmt.Errorf("%w: %v", entity.ErrNotFound, err)
	}
	return err
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	out := make([]byte, 0, n*4)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, fmt.Sprintf("$%d", start+i)...)
	}
	return string(out)
}
