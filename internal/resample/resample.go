// Package resample derives coarser timeframes from finer OHLCV series by
// bucketed aggregation. The 75m timeframe used for swing scoring is built
// this way from intraday candles.
package resample

import (
	"sort"
	"time"

	"nse-signal-bot/internal/market"
)

// marketTZ is the exchange timezone; intraday buckets align to the session
// open in this zone.
var marketTZ = mustLoadTZ()

func mustLoadTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return loc
}

const sessionOpenMinutes = 9*60 + 15 // 09:15 IST

// Resample aggregates source candles into left-aligned buckets of the given
// width. Per bucket: open=first, high=max, low=min, close=last, volume=sum.
// The trailing bucket is dropped when the source series does not cover it
// fully.
func Resample(candles []market.Candle, bucketMinutes int) []market.Candle {
	if len(candles) == 0 || bucketMinutes <= 0 {
		return nil
	}

	sorted := make([]market.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	bucket := time.Duration(bucketMinutes) * time.Minute

	var out []market.Candle
	var cur *market.Candle
	var curStart time.Time
	for _, c := range sorted {
		start := bucketStart(c.Time, bucket)
		if cur == nil || !start.Equal(curStart) {
			if cur != nil {
				out = append(out, *cur)
			}
			curStart = start
			cur = &market.Candle{
				Time:   start,
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			}
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if cur != nil {
		out = append(out, *cur)
	}

	// Drop the trailing bucket when the source stops short of its end.
	if len(out) > 0 {
		last := sorted[len(sorted)-1].Time.Add(sourceInterval(sorted))
		end := out[len(out)-1].Time.Add(bucket)
		if last.Before(end) {
			out = out[:len(out)-1]
		}
	}
	return out
}

// bucketStart left-aligns a timestamp: intraday buckets anchor to the
// session open of the trading day, wider buckets to midnight.
func bucketStart(t time.Time, bucket time.Duration) time.Time {
	local := t.In(marketTZ)
	if bucket >= 24*time.Hour {
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, marketTZ)
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), 0, sessionOpenMinutes, 0, 0, marketTZ)
	if local.Before(open) {
		// Pre-open prints land in the first session bucket.
		return open.Add(-bucket)
	}
	offset := local.Sub(open)
	return open.Add(offset / bucket * bucket)
}

// sourceInterval infers the source bucket width from the smallest positive
// gap between consecutive candles.
func sourceInterval(sorted []market.Candle) time.Duration {
	interval := time.Duration(0)
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].Time.Sub(sorted[i-1].Time)
		if d > 0 && (interval == 0 || d < interval) {
			interval = d
		}
	}
	if interval == 0 {
		interval = time.Minute
	}
	return interval
}
