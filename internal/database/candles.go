package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"nse-signal-bot/internal/market"
)

// CandleRepository is the durable OHLCV store. Inserts are idempotent on
// (time, symbol, timeframe); writes for the same key are serialized with a
// transaction-scoped advisory lock so concurrent batches for disjoint
// symbols never block each other.
type CandleRepository struct {
	db *DB
}

func NewCandleRepository(db *DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// InsertBatch stores a candle batch and returns the number of rows actually
// written. Re-inserting existing keys is a no-op, never an error.
func (r *CandleRepository) InsertBatch(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error starting candle insert: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize writers per (symbol, timeframe); released at commit.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", symbol+"|"+string(tf)); err != nil {
		return 0, fmt.Errorf("error acquiring candle lock: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(
			`INSERT INTO ohlcv (time, symbol, timeframe, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (time, symbol, timeframe) DO NOTHING`,
			c.Time, symbol, string(tf), c.Open, c.High, c.Low, c.Close, c.Volume,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range candles {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("error inserting candles for %s/%s: %w", symbol, tf, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("error closing candle batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing candle batch: %w", err)
	}
	return inserted, nil
}

// LatestTime returns the newest stored candle time, or nil when the key has
// no rows yet.
func (r *CandleRepository) LatestTime(ctx context.Context, symbol string, tf market.Timeframe) (*time.Time, error) {
	var latest *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT MAX(time) FROM ohlcv WHERE symbol = $1 AND timeframe = $2`,
		symbol, string(tf),
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("error querying latest candle time for %s/%s: %w", symbol, tf, err)
	}
	return latest, nil
}

// Range returns candles in [from, to] ascending by time.
func (r *CandleRepository) Range(ctx context.Context, symbol string, tf market.Timeframe, from, to time.Time) ([]market.Candle, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT time, open, high, low, close, volume
		 FROM ohlcv
		 WHERE symbol = $1 AND timeframe = $2 AND time >= $3 AND time <= $4
		 ORDER BY time ASC`,
		symbol, string(tf), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying candle range for %s/%s: %w", symbol, tf, err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// Tail returns the n most recent candles in ascending time order.
func (r *CandleRepository) Tail(ctx context.Context, symbol string, tf market.Timeframe, n int) ([]market.Candle, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT time, open, high, low, close, volume
		 FROM ohlcv
		 WHERE symbol = $1 AND timeframe = $2
		 ORDER BY time DESC
		 LIMIT $3`,
		symbol, string(tf), n,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying candle tail for %s/%s: %w", symbol, tf, err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	// Rows arrive newest-first; flip to ascending.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func scanCandles(rows pgx.Rows) ([]market.Candle, error) {
	var candles []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("error scanning candle row: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading candle rows: %w", err)
	}
	return candles, nil
}
