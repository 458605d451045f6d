package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/metrics"
	"nse-signal-bot/internal/resample"
)

// RangeStore extends CandleStore with range reads, which derivation needs
// to pull the intraday source series back out.
type RangeStore interface {
	CandleStore
	Range(ctx context.Context, symbol string, tf market.Timeframe, from, to time.Time) ([]market.Candle, error)
}

// Deriver builds the session-aligned 75m series from stored intraday
// candles. It never talks to the vendor.
type Deriver struct {
	store RangeStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewDeriver(store RangeStore, log zerolog.Logger) *Deriver {
	return &Deriver{store: store, now: time.Now, log: log}
}

// Derive75m resamples the stored source series of each symbol over the
// trailing window into 75m buckets and upserts the result. Per-symbol
// failures are logged and skipped; the returned count is rows inserted.
func (d *Deriver) Derive75m(ctx context.Context, symbols []string, source market.Timeframe, days int) (int, error) {
	if source != market.Timeframe5m && source != market.Timeframe15m {
		return 0, fmt.Errorf("cannot derive 75m from %s candles", source)
	}
	if days <= 0 {
		days = 60
	}

	now := d.now()
	from := now.AddDate(0, 0, -days)

	inserted := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return inserted, ctx.Err()
		}

		candles, err := d.store.Range(ctx, symbol, source, from, now)
		if err != nil {
			d.log.Warn().Str("symbol", symbol).Err(err).Msg("derive: source read failed")
			continue
		}
		if len(candles) == 0 {
			continue
		}

		derived := resample.Resample(candles, 75)
		if len(derived) == 0 {
			continue
		}

		rows, err := d.store.InsertBatch(ctx, symbol, market.Timeframe75m, derived)
		if err != nil {
			d.log.Warn().Str("symbol", symbol).Err(err).Msg("derive: insert failed")
			continue
		}
		inserted += rows
		if rows > 0 {
			metrics.CandlesInserted.WithLabelValues(string(market.Timeframe75m)).Add(float64(rows))
		}
		d.log.Debug().Str("symbol", symbol).Int("rows", rows).Msg("derived 75m candles")
	}
	return inserted, nil
}
