package market

import (
	"fmt"
	"time"
)

// Timeframe is a candle bucket width. The set is closed; 75m is derived
// locally by resampling and is never requested from the vendor.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe75m Timeframe = "75m"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

var allTimeframes = []Timeframe{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m,
	Timeframe1h, Timeframe75m, Timeframe1d, Timeframe1w,
}

// ParseTimeframe validates a config string against the closed timeframe set.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range allTimeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Minutes returns the bucket width in minutes.
func (tf Timeframe) Minutes() int {
	switch tf {
	case Timeframe1m:
		return 1
	case Timeframe5m:
		return 5
	case Timeframe15m:
		return 15
	case Timeframe30m:
		return 30
	case Timeframe1h:
		return 60
	case Timeframe75m:
		return 75
	case Timeframe1d:
		return 1440
	case Timeframe1w:
		return 10080
	}
	return 0
}

// Intraday reports whether the bucket is narrower than a session.
func (tf Timeframe) Intraday() bool {
	return tf.Minutes() < 1440
}

// Period is a named vendor fetch window.
type Period string

const (
	Period7d  Period = "7d"
	Period60d Period = "60d"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	PeriodMax Period = "max"
)

// MaxPeriod returns the widest window the vendor serves for a timeframe.
// Sub-hour data is capped at 60 days (one minute at 7), hourly at two
// years, daily and weekly are unbounded.
func (tf Timeframe) MaxPeriod() Period {
	switch tf {
	case Timeframe1m:
		return Period7d
	case Timeframe5m, Timeframe15m, Timeframe30m:
		return Period60d
	case Timeframe1h:
		return Period2y
	default:
		return PeriodMax
	}
}

// Candle is a single OHLCV bar. Candles are immutable once stored; the
// composite identity is (symbol, timeframe, time).
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Valid checks the OHLC ordering invariants.
func (c Candle) Valid() bool {
	if c.Low > c.High || c.Volume < 0 {
		return false
	}
	if c.Open < c.Low || c.Open > c.High {
		return false
	}
	if c.Close < c.Low || c.Close > c.High {
		return false
	}
	return c.Low >= 0
}

// Fundamentals is a per-symbol snapshot of company metrics. Pointer fields
// distinguish unset from zero; Raw carries the untyped vendor payload.
type Fundamentals struct {
	Symbol        string
	Name          *string
	Sector        *string
	Industry      *string
	TrailingPE    *float64
	ForwardPE     *float64
	PriceToBook   *float64
	ReturnOnEquity *float64
	DebtToEquity  *float64
	MarketCap     *float64
	DividendYield *float64
	Beta          *float64
	BookValue     *float64
	ProfitMargins *float64
	RevenueGrowth *float64
	CurrentPrice  *float64
	Raw           []byte
	UpdatedAt     time.Time
}
