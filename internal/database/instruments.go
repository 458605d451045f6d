package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Instrument is a tradable NSE symbol in the registry. Instruments are
// never deleted, only deactivated.
type Instrument struct {
	Symbol     string
	Name       string
	Sector     string
	Industry   string
	IsIndex50  bool
	IsIndex100 bool
	IsActive   bool
}

type InstrumentRepository struct {
	db *DB
}

func NewInstrumentRepository(db *DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// UpsertBatch seeds or refreshes the registry. Existing rows keep their
// active flag.
func (r *InstrumentRepository) UpsertBatch(ctx context.Context, instruments []Instrument) error {
	batch := &pgx.Batch{}
	for _, ins := range instruments {
		batch.Queue(
			`INSERT INTO instruments (symbol, name, sector, industry, is_index_50, is_index_100, is_active)
			 VALUES ($1,$2,$3,$4,$5,$6,TRUE)
			 ON CONFLICT (symbol) DO UPDATE SET
				name = EXCLUDED.name,
				sector = EXCLUDED.sector,
				industry = EXCLUDED.industry,
				is_index_50 = EXCLUDED.is_index_50,
				is_index_100 = EXCLUDED.is_index_100`,
			ins.Symbol, ins.Name, ins.Sector, ins.Industry, ins.IsIndex50, ins.IsIndex100,
		)
	}
	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("error upserting instruments: %w", err)
		}
	}
	return nil
}

func (r *InstrumentRepository) ListActive(ctx context.Context) ([]Instrument, error) {
	return r.list(ctx, `SELECT symbol, name, COALESCE(sector,''), COALESCE(industry,''), is_index_50, is_index_100, is_active
		FROM instruments WHERE is_active ORDER BY symbol`)
}

func (r *InstrumentRepository) ListIndex50(ctx context.Context) ([]Instrument, error) {
	return r.list(ctx, `SELECT symbol, name, COALESCE(sector,''), COALESCE(industry,''), is_index_50, is_index_100, is_active
		FROM instruments WHERE is_active AND is_index_50 ORDER BY symbol`)
}

// Deactivate soft-deletes an instrument.
func (r *InstrumentRepository) Deactivate(ctx context.Context, symbol string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE instruments SET is_active = FALSE WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("error deactivating instrument %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instrument %s not found", symbol)
	}
	return nil
}

func (r *InstrumentRepository) list(ctx context.Context, query string) ([]Instrument, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying instruments: %w", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var ins Instrument
		if err := rows.Scan(&ins.Symbol, &ins.Name, &ins.Sector, &ins.Industry,
			&ins.IsIndex50, &ins.IsIndex100, &ins.IsActive); err != nil {
			return nil, fmt.Errorf("error scanning instrument row: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}
