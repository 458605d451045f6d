package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"nse-signal-bot/internal/market"
)

// FundamentalsRepository stores per-symbol fundamentals snapshots. Upserts
// replace the full row so stale fields never linger.
type FundamentalsRepository struct {
	db *DB
}

func NewFundamentalsRepository(db *DB) *FundamentalsRepository {
	return &FundamentalsRepository{db: db}
}

func (r *FundamentalsRepository) Upsert(ctx context.Context, f *market.Fundamentals) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO fundamentals (
			symbol, name, sector, industry,
			trailing_pe, forward_pe, price_to_book, return_on_equity,
			debt_to_equity, market_cap, dividend_yield, beta,
			book_value, profit_margins, revenue_growth, current_price,
			raw_data, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			trailing_pe = EXCLUDED.trailing_pe,
			forward_pe = EXCLUDED.forward_pe,
			price_to_book = EXCLUDED.price_to_book,
			return_on_equity = EXCLUDED.return_on_equity,
			debt_to_equity = EXCLUDED.debt_to_equity,
			market_cap = EXCLUDED.market_cap,
			dividend_yield = EXCLUDED.dividend_yield,
			beta = EXCLUDED.beta,
			book_value = EXCLUDED.book_value,
			profit_margins = EXCLUDED.profit_margins,
			revenue_growth = EXCLUDED.revenue_growth,
			current_price = EXCLUDED.current_price,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()`,
		f.Symbol, f.Name, f.Sector, f.Industry,
		f.TrailingPE, f.ForwardPE, f.PriceToBook, f.ReturnOnEquity,
		f.DebtToEquity, f.MarketCap, f.DividendYield, f.Beta,
		f.BookValue, f.ProfitMargins, f.RevenueGrowth, f.CurrentPrice,
		f.Raw,
	)
	if err != nil {
		return fmt.Errorf("error upserting fundamentals for %s: %w", f.Symbol, err)
	}
	return nil
}

// Get returns the stored snapshot, or nil when the symbol has none.
func (r *FundamentalsRepository) Get(ctx context.Context, symbol string) (*market.Fundamentals, error) {
	f := &market.Fundamentals{Symbol: symbol}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, sector, industry,
			trailing_pe, forward_pe, price_to_book, return_on_equity,
			debt_to_equity, market_cap, dividend_yield, beta,
			book_value, profit_margins, revenue_growth, current_price,
			raw_data, updated_at
		 FROM fundamentals WHERE symbol = $1`,
		symbol,
	).Scan(
		&f.Name, &f.Sector, &f.Industry,
		&f.TrailingPE, &f.ForwardPE, &f.PriceToBook, &f.ReturnOnEquity,
		&f.DebtToEquity, &f.MarketCap, &f.DividendYield, &f.Beta,
		&f.BookValue, &f.ProfitMargins, &f.RevenueGrowth, &f.CurrentPrice,
		&f.Raw, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying fundamentals for %s: %w", symbol, err)
	}
	return f, nil
}
