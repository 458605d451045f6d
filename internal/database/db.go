package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the pgx connection pool shared by all repositories.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect creates the pool and verifies connectivity.
func Connect(ctx context.Context, dsn string, log zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	log.Info().Msg("database connection established")
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the pool is still serving queries.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.Pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ohlcv (
		time TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		open NUMERIC(18,4) NOT NULL,
		high NUMERIC(18,4) NOT NULL,
		low NUMERIC(18,4) NOT NULL,
		close NUMERIC(18,4) NOT NULL,
		volume BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (time, symbol, timeframe)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ohlcv_symbol_timeframe_time
		ON ohlcv (symbol, timeframe, time DESC)`,
	`CREATE TABLE IF NOT EXISTS fundamentals (
		symbol TEXT PRIMARY KEY,
		name TEXT,
		sector TEXT,
		industry TEXT,
		trailing_pe DOUBLE PRECISION,
		forward_pe DOUBLE PRECISION,
		price_to_book DOUBLE PRECISION,
		return_on_equity DOUBLE PRECISION,
		debt_to_equity DOUBLE PRECISION,
		market_cap DOUBLE PRECISION,
		dividend_yield DOUBLE PRECISION,
		beta DOUBLE PRECISION,
		book_value DOUBLE PRECISION,
		profit_margins DOUBLE PRECISION,
		revenue_growth DOUBLE PRECISION,
		current_price DOUBLE PRECISION,
		raw_data JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS instruments (
		symbol TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sector TEXT,
		industry TEXT,
		is_index_50 BOOLEAN NOT NULL DEFAULT FALSE,
		is_index_100 BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		chat_id BIGINT PRIMARY KEY,
		username TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// RunMigrations applies the schema statements in order. All statements are
// idempotent so reruns are safe.
func (db *DB) RunMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error running migration %d: %w", i+1, err)
		}
	}
	db.log.Info().Int("count", len(migrations)).Msg("migrations applied")
	return nil
}
