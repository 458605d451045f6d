package indicators

import (
	"math"

	"nse-signal-bot/internal/market"
)

// Candlestick pattern detectors. Each returns a series aligned with the
// input where +100 marks a bullish occurrence, -100 a bearish one, and 0 no
// pattern, following the TA-lib output convention.

func body(c market.Candle) float64       { return math.Abs(c.Close - c.Open) }
func upperShadow(c market.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }
func lowerShadow(c market.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }
func bullish(c market.Candle) bool        { return c.Close > c.Open }
func bearish(c market.Candle) bool        { return c.Close < c.Open }

// priorTrend reports the drift of the preceding few closes: -1 down, +1 up.
func priorTrend(candles []market.Candle, i int) int {
	const span = 3
	if i < span {
		return 0
	}
	if candles[i-1].Close < candles[i-span].Close {
		return -1
	}
	if candles[i-1].Close > candles[i-span].Close {
		return 1
	}
	return 0
}

// Doji marks candles whose body is a small fraction of the range.
func Doji(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i, c := range candles {
		rng := c.High - c.Low
		if rng > 0 && body(c) <= rng*0.1 {
			out[i] = 100
		}
	}
	return out
}

// Hammer marks a small body at the top of a long lower shadow after a
// decline.
func Hammer(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i, c := range candles {
		if priorTrend(candles, i) >= 0 {
			continue
		}
		b := body(c)
		if b > 0 && lowerShadow(c) >= 2*b && upperShadow(c) <= b {
			out[i] = 100
		}
	}
	return out
}

// InvertedHammer marks a small body at the bottom of a long upper shadow
// after a decline.
func InvertedHammer(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i, c := range candles {
		if priorTrend(candles, i) >= 0 {
			continue
		}
		b := body(c)
		if b > 0 && upperShadow(c) >= 2*b && lowerShadow(c) <= b {
			out[i] = 100
		}
	}
	return out
}

// HangingMan is the hammer shape after an advance; bearish.
func HangingMan(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i, c := range candles {
		if priorTrend(candles, i) <= 0 {
			continue
		}
		b := body(c)
		if b > 0 && lowerShadow(c) >= 2*b && upperShadow(c) <= b {
			out[i] = -100
		}
	}
	return out
}

// ShootingStar is the inverted-hammer shape after an advance; bearish.
func ShootingStar(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i, c := range candles {
		if priorTrend(candles, i) <= 0 {
			continue
		}
		b := body(c)
		if b > 0 && upperShadow(c) >= 2*b && lowerShadow(c) <= b {
			out[i] = -100
		}
	}
	return out
}

// Engulfing marks a body that fully engulfs the prior candle's body, signed
// by direction.
func Engulfing(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1], candles[i]
		if bullish(cur) && bearish(prev) && cur.Open <= prev.Close && cur.Close >= prev.Open && body(cur) > body(prev) {
			out[i] = 100
		}
		if bearish(cur) && bullish(prev) && cur.Open >= prev.Close && cur.Close <= prev.Open && body(cur) > body(prev) {
			out[i] = -100
		}
	}
	return out
}

// Harami marks a small body contained within the prior candle's body.
func Harami(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1], candles[i]
		hi := math.Max(prev.Open, prev.Close)
		lo := math.Min(prev.Open, prev.Close)
		if body(cur) >= body(prev) || body(prev) == 0 {
			continue
		}
		if cur.Open > lo && cur.Open < hi && cur.Close > lo && cur.Close < hi {
			if bearish(prev) {
				out[i] = 100
			} else {
				out[i] = -100
			}
		}
	}
	return out
}

// MorningStar marks the three-candle bullish reversal: long bearish, small
// body gapping below, long bullish closing into the first body.
func MorningStar(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 2; i < len(candles); i++ {
		first, mid, last := candles[i-2], candles[i-1], candles[i]
		if !bearish(first) || !bullish(last) {
			continue
		}
		if body(mid) >= body(first)*0.5 {
			continue
		}
		firstMid := (first.Open + first.Close) / 2
		if math.Max(mid.Open, mid.Close) < first.Close && last.Close > firstMid {
			out[i] = 100
		}
	}
	return out
}

// EveningStar is the bearish mirror of the morning star.
func EveningStar(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 2; i < len(candles); i++ {
		first, mid, last := candles[i-2], candles[i-1], candles[i]
		if !bullish(first) || !bearish(last) {
			continue
		}
		if body(mid) >= body(first)*0.5 {
			continue
		}
		firstMid := (first.Open + first.Close) / 2
		if math.Min(mid.Open, mid.Close) > first.Close && last.Close < firstMid {
			out[i] = -100
		}
	}
	return out
}

// ThreeWhiteSoldiers marks three consecutive long bullish candles with
// rising closes, each opening within the prior body.
func ThreeWhiteSoldiers(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 2; i < len(candles); i++ {
		a, b, c := candles[i-2], candles[i-1], candles[i]
		if !bullish(a) || !bullish(b) || !bullish(c) {
			continue
		}
		if b.Close <= a.Close || c.Close <= b.Close {
			continue
		}
		if b.Open < a.Open || b.Open > a.Close || c.Open < b.Open || c.Open > b.Close {
			continue
		}
		out[i] = 100
	}
	return out
}

// ThreeBlackCrows marks three consecutive long bearish candles with falling
// closes, each opening within the prior body.
func ThreeBlackCrows(candles []market.Candle) []int {
	out := make([]int, len(candles))
	for i := 2; i < len(candles); i++ {
		a, b, c := candles[i-2], candles[i-1], candles[i]
		if !bearish(a) || !bearish(b) || !bearish(c) {
			continue
		}
		if b.Close >= a.Close || c.Close >= b.Close {
			continue
		}
		if b.Open > a.Open || b.Open < a.Close || c.Open > b.Open || c.Open < b.Close {
			continue
		}
		out[i] = -100
	}
	return out
}
