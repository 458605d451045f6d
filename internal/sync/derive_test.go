package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-signal-bot/internal/market"
)

// sessionDay15m produces one full trading session of 15m candles,
// 09:15 through 15:15 IST.
func sessionDay15m(day time.Time) []market.Candle {
	open := time.Date(day.Year(), day.Month(), day.Day(), 9, 15, 0, 0, marketTZ)
	candles := make([]market.Candle, 25)
	for i := range candles {
		price := 100 + float64(i)*0.1
		candles[i] = market.Candle{
			Time: open.Add(time.Duration(i) * 15 * time.Minute),
			Open: price, High: price + 0.5, Low: price - 0.5, Close: price + 0.2,
			Volume: 1000,
		}
	}
	return candles
}

func newTestDeriver(store *memStore, now time.Time) *Deriver {
	d := NewDeriver(store, zerolog.Nop())
	d.now = func() time.Time { return now }
	return d
}

func TestDerive75mFromSession(t *testing.T) {
	day := time.Date(2025, 11, 7, 0, 0, 0, 0, marketTZ)
	store := newMemStore()
	_, err := store.InsertBatch(context.Background(), "RELIANCE.NS", market.Timeframe15m, sessionDay15m(day))
	require.NoError(t, err)

	d := newTestDeriver(store, day.Add(18*time.Hour))
	inserted, err := d.Derive75m(context.Background(), []string{"RELIANCE.NS"}, market.Timeframe15m, 30)
	require.NoError(t, err)

	// One session is five 75-minute buckets.
	assert.Equal(t, 5, inserted)

	derived, err := store.Range(context.Background(), "RELIANCE.NS", market.Timeframe75m,
		day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, derived, 5)
	first := derived[0]
	assert.Equal(t, time.Date(2025, 11, 7, 9, 15, 0, 0, marketTZ).Unix(), first.Time.Unix())
	assert.InDelta(t, 100.0, first.Open, 0.001)
	assert.EqualValues(t, 5000, first.Volume)
}

func TestDerive75mIsIdempotent(t *testing.T) {
	day := time.Date(2025, 11, 7, 0, 0, 0, 0, marketTZ)
	store := newMemStore()
	_, err := store.InsertBatch(context.Background(), "TCS.NS", market.Timeframe15m, sessionDay15m(day))
	require.NoError(t, err)

	d := newTestDeriver(store, day.Add(18*time.Hour))
	_, err = d.Derive75m(context.Background(), []string{"TCS.NS"}, market.Timeframe15m, 30)
	require.NoError(t, err)

	inserted, err := d.Derive75m(context.Background(), []string{"TCS.NS"}, market.Timeframe15m, 30)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestDerive75mRejectsNonIntradaySource(t *testing.T) {
	d := newTestDeriver(newMemStore(), time.Now())
	_, err := d.Derive75m(context.Background(), []string{"TCS.NS"}, market.Timeframe1d, 30)
	assert.Error(t, err)
}

func TestDerive75mSkipsSymbolsWithoutSource(t *testing.T) {
	day := time.Date(2025, 11, 7, 0, 0, 0, 0, marketTZ)
	store := newMemStore()
	_, err := store.InsertBatch(context.Background(), "INFY.NS", market.Timeframe15m, sessionDay15m(day))
	require.NoError(t, err)

	d := newTestDeriver(store, day.Add(18*time.Hour))
	inserted, err := d.Derive75m(context.Background(), []string{"EMPTY.NS", "INFY.NS"}, market.Timeframe15m, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, inserted)
}
