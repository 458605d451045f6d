// Package levels detects support and resistance from candle windows by
// combining classic pivot points with rolling-window swing highs and lows.
package levels

import (
	"math"
	"sort"

	"nse-signal-bot/internal/market"
)

// Kind classifies a detected level.
type Kind string

const (
	KindSupport    Kind = "support"
	KindResistance Kind = "resistance"
	KindPivot      Kind = "pivot"
)

// Level is a detected price level. Strength is monotone in touches; pivot
// levels carry a floor of 2.
type Level struct {
	Price    float64
	Kind     Kind
	Touches  int
	Strength int
}

// Detector finds S/R levels over the trailing lookback window.
type Detector struct {
	Lookback       int
	SwingWindow    int
	TouchTolerance float64
}

// NewDetector returns a detector with the standard parameters.
func NewDetector() *Detector {
	return &Detector{
		Lookback:       50,
		SwingWindow:    10,
		TouchTolerance: 0.01,
	}
}

// PivotPoints holds the classic floor-trader pivots for one session.
type PivotPoints struct {
	PP, R1, R2, R3, S1, S2, S3 float64
}

// CalculatePivotPoints derives pivots from a single candle's H/L/C.
func CalculatePivotPoints(c market.Candle) PivotPoints {
	pp := (c.High + c.Low + c.Close) / 3
	return PivotPoints{
		PP: pp,
		R1: 2*pp - c.Low,
		R2: pp + (c.High - c.Low),
		R3: c.High + 2*(pp-c.Low),
		S1: 2*pp - c.High,
		S2: pp - (c.High - c.Low),
		S3: c.Low - 2*(c.High-pp),
	}
}

// Detect produces the combined level list for the window, sorted ascending
// by price. Swing levels are deduplicated by rounding to 2 decimals and
// scored by touch count; pivot levels get a minimum strength of 2.
func (d *Detector) Detect(candles []market.Candle) []Level {
	if len(candles) == 0 {
		return nil
	}
	window := candles
	if len(window) > d.Lookback {
		window = window[len(window)-d.Lookback:]
	}

	last := window[len(window)-1]
	ref := last.Close
	pivots := CalculatePivotPoints(last)

	seen := map[float64]*Level{}
	addSwing := func(price float64, kind Kind) {
		key := round2(price)
		if _, ok := seen[key]; ok {
			return
		}
		touches := d.countTouches(window, key)
		seen[key] = &Level{Price: key, Kind: kind, Touches: touches, Strength: touches}
	}

	// Swing highs and lows from a centered rolling window.
	half := d.SwingWindow / 2
	for i := half; i < len(window)-half; i++ {
		isHigh, isLow := true, true
		for j := i - half; j <= i+half; j++ {
			if j == i {
				continue
			}
			if window[j].High >= window[i].High {
				isHigh = false
			}
			if window[j].Low <= window[i].Low {
				isLow = false
			}
		}
		if isHigh {
			addSwing(window[i].High, sideOf(window[i].High, ref))
		}
		if isLow {
			addSwing(window[i].Low, sideOf(window[i].Low, ref))
		}
	}

	levels := make([]Level, 0, len(seen)+7)
	for _, lvl := range seen {
		levels = append(levels, *lvl)
	}
	for _, p := range []float64{pivots.PP, pivots.R1, pivots.R2, pivots.R3, pivots.S1, pivots.S2, pivots.S3} {
		key := round2(p)
		touches := d.countTouches(window, key)
		strength := touches
		if strength < 2 {
			strength = 2
		}
		if touches < 1 {
			touches = 1
		}
		levels = append(levels, Level{Price: key, Kind: sideOf(key, ref), Touches: touches, Strength: strength})
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

func sideOf(price, ref float64) Kind {
	if price < ref {
		return KindSupport
	}
	return KindResistance
}

// countTouches counts candles whose high or low falls within the tolerance
// band around the level.
func (d *Detector) countTouches(window []market.Candle, price float64) int {
	if price <= 0 {
		return 0
	}
	tol := price * d.TouchTolerance
	touches := 0
	for _, c := range window {
		if math.Abs(c.High-price) <= tol || math.Abs(c.Low-price) <= tol {
			touches++
		}
	}
	return touches
}

// NearestSupport returns the strongest support strictly below price by at
// least minDist (a fraction of price), or nil.
func NearestSupport(levels []Level, price, minDist float64) *Level {
	return nearest(levels, price, minDist, true)
}

// NearestResistance returns the nearest resistance strictly above price by
// at least minDist, or nil. Ties on touches prefer the closer level.
func NearestResistance(levels []Level, price, minDist float64) *Level {
	return nearest(levels, price, minDist, false)
}

func nearest(levels []Level, price, minDist float64, below bool) *Level {
	var best *Level
	for i := range levels {
		lvl := levels[i]
		var dist float64
		if below {
			dist = price - lvl.Price
		} else {
			dist = lvl.Price - price
		}
		if dist < price*minDist {
			continue
		}
		if best == nil {
			best = &levels[i]
			continue
		}
		var bestDist float64
		if below {
			bestDist = price - best.Price
		} else {
			bestDist = best.Price - price
		}
		if dist < bestDist || (dist == bestDist && lvl.Touches > best.Touches) {
			best = &levels[i]
		}
	}
	return best
}

// ResistanceTargets returns up to count resistance levels above entry whose
// reward over the given risk meets minRR, ascending in price.
func ResistanceTargets(levels []Level, entry, stop, minRR float64, count int) []Level {
	risk := entry - stop
	if risk <= 0 || count <= 0 {
		return nil
	}
	var out []Level
	for _, lvl := range levels {
		if lvl.Price <= entry {
			continue
		}
		if (lvl.Price-entry)/risk < minRR {
			continue
		}
		out = append(out, lvl)
		if len(out) == count {
			break
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
