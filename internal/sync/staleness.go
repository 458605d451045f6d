package sync

import (
	"time"

	"nse-signal-bot/internal/market"
)

// marketTZ is the exchange timezone used for staleness arithmetic.
var marketTZ = mustLoadTZ()

func mustLoadTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return loc
}

const (
	sessionOpenHour    = 9
	sessionOpenMinute  = 15
	sessionCloseHour   = 15
	sessionCloseMinute = 30
)

// stalenessThresholds maps a timeframe to the maximum age before a resync
// is due.
var stalenessThresholds = map[market.Timeframe]time.Duration{
	market.Timeframe1m:  time.Hour,
	market.Timeframe5m:  2 * time.Hour,
	market.Timeframe15m: 4 * time.Hour,
	market.Timeframe30m: 6 * time.Hour,
	market.Timeframe1h:  24 * time.Hour,
	market.Timeframe75m: 4 * time.Hour,
	market.Timeframe1d:  24 * time.Hour,
	market.Timeframe1w:  7 * 24 * time.Hour,
}

// marketReference returns the effective "now" for staleness checks. Over
// the weekend, and on Monday before the open, the market has produced no
// new candles since Friday's close, so the reference rolls back to Friday
// 15:30 IST.
func marketReference(now time.Time) time.Time {
	local := now.In(marketTZ)

	fridayClose := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), sessionCloseHour, sessionCloseMinute, 0, 0, marketTZ)
	}

	switch local.Weekday() {
	case time.Saturday:
		return fridayClose(local.AddDate(0, 0, -1))
	case time.Sunday:
		return fridayClose(local.AddDate(0, 0, -2))
	case time.Monday:
		open := time.Date(local.Year(), local.Month(), local.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, marketTZ)
		if local.Before(open) {
			return fridayClose(local.AddDate(0, 0, -3))
		}
	}
	return local
}

// isStale reports whether the stored series needs refreshing. The age is
// measured against the market reference, not the wall clock.
func isStale(tf market.Timeframe, latest time.Time, now time.Time) bool {
	threshold, ok := stalenessThresholds[tf]
	if !ok {
		return true
	}
	ref := marketReference(now)
	return ref.Sub(latest) > threshold
}
