package resample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-signal-bot/internal/market"
)

// minuteSeries builds n one-minute candles starting at the session open.
func minuteSeries(n int) []market.Candle {
	start := time.Date(2025, 11, 3, 9, 15, 0, 0, marketTZ)
	candles := make([]market.Candle, n)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = market.Candle{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price + 0.25,
			Volume: 10,
		}
	}
	return candles
}

func TestResampleFullBuckets(t *testing.T) {
	// 150 minutes of data = exactly two 75m buckets.
	candles := Resample(minuteSeries(150), 75)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, time.Date(2025, 11, 3, 9, 15, 0, 0, marketTZ).Unix(), first.Time.Unix())
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 174.5, first.High)   // high of candle 74
	assert.Equal(t, 99.5, first.Low)     // low of candle 0
	assert.Equal(t, 174.25, first.Close) // close of candle 74
	assert.Equal(t, int64(750), first.Volume)

	second := candles[1]
	assert.Equal(t, time.Date(2025, 11, 3, 10, 30, 0, 0, marketTZ).Unix(), second.Time.Unix())
	assert.Equal(t, 175.0, second.Open)
	assert.Equal(t, int64(750), second.Volume)
}

func TestResampleDropsIncompleteTrailingBucket(t *testing.T) {
	// 100 minutes = one full 75m bucket plus a 25-minute stub.
	candles := Resample(minuteSeries(100), 75)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(750), candles[0].Volume)
}

func TestResampleCountMatchesFloor(t *testing.T) {
	for _, minutes := range []int{75, 150, 225, 300} {
		candles := Resample(minuteSeries(minutes), 75)
		assert.Len(t, candles, minutes/75, "minutes=%d", minutes)
	}
}

func TestResampleUnsortedInput(t *testing.T) {
	series := minuteSeries(150)
	series[0], series[149] = series[149], series[0]
	candles := Resample(series, 75)
	require.Len(t, candles, 2)
	assert.Equal(t, 100.0, candles[0].Open)
}

func TestResampleEmpty(t *testing.T) {
	assert.Nil(t, Resample(nil, 75))
	assert.Nil(t, Resample(minuteSeries(10), 0))
}
