package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"nse-signal-bot/internal/indicators"
	"nse-signal-bot/internal/market"
)

// ErrInsufficientData is returned when the candle window is too short to
// score.
var ErrInsufficientData = errors.New("insufficient candle history")

// MinCandles is the minimum window the scored strategy accepts.
const MinCandles = 50

const strongCategoryScore = 60

// ScoredStrategy is the composite BUY scorer: weighted trend, momentum and
// volatility categories with a bounded fundamental adjustment on top.
type ScoredStrategy struct {
	MinConfidence float64
}

func NewScoredStrategy(minConfidence float64) *ScoredStrategy {
	return &ScoredStrategy{MinConfidence: minConfidence}
}

func (s *ScoredStrategy) Name() string { return "multi_indicator_scored" }

// Evaluate scores the window and returns a BUY signal when the emission
// rule passes, or nil with the analysis when it does not. Stop and targets
// are filled in by the planner afterwards.
func (s *ScoredStrategy) Evaluate(symbol string, candles []market.Candle, fund *market.Fundamentals) (*Signal, *Analysis, error) {
	if len(candles) < MinCandles {
		return nil, nil, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), MinCandles)
	}

	trend := scoreTrend(candles)
	momentum := scoreMomentum(candles)
	volatility := scoreVolatility(candles)

	technical := 0.40*trend.Score + 0.35*momentum.Score + 0.25*volatility.Score

	adjustment, notes := fundamentalAdjustment(fund)
	confidence := clamp(technical+adjustment, 0, 100)

	strong := 0
	for _, score := range []float64{trend.Score, momentum.Score, volatility.Score} {
		if score >= strongCategoryScore {
			strong++
		}
	}

	analysis := &Analysis{
		Trend:            trend,
		Momentum:         momentum,
		Volatility:       volatility,
		TechnicalScore:   technical,
		FundamentalAdj:   adjustment,
		FundamentalNotes: notes,
		StrongCategories: strong,
	}

	requiredStrong := 2
	if s.MinConfidence < 60 {
		requiredStrong = 1
	}
	if confidence < s.MinConfidence || strong < requiredStrong {
		return nil, analysis, nil
	}

	entry := candles[len(candles)-1].Close
	sig := &Signal{
		Symbol:      symbol,
		Type:        SignalBuy,
		GeneratedAt: time.Now().UTC(),
		Confidence:  Round2(confidence),
		EntryPrice:  Round2(entry),
		Analysis:    analysis,
	}
	return sig, analysis, nil
}

func scoreTrend(candles []market.Candle) CategoryScore {
	ema8 := indicators.Last(indicators.CalculateEMA(candles, 8))
	ema20 := indicators.Last(indicators.CalculateEMA(candles, 20))
	ema50 := indicators.Last(indicators.CalculateEMA(candles, 50))
	macd := indicators.CalculateMACD(candles, 12, 26, 9)
	close := candles[len(candles)-1].Close

	conds := []condition{
		{"EMA alignment 8>20>50", ema8 > ema20 && ema20 > ema50},
		{"close above EMA8", close > ema8},
		{"MACD above signal", indicators.Last(macd.MACD) > indicators.Last(macd.Signal)},
		{"MACD positive", indicators.Last(macd.MACD) > 0},
		{"histogram rising", indicators.Last(macd.Histogram) > indicators.Prev(macd.Histogram)},
	}
	return score(conds)
}

func scoreMomentum(candles []market.Candle) CategoryScore {
	rsi := indicators.Last(indicators.CalculateRSI(candles, 14))
	stoch := indicators.CalculateStochastic(candles, 14, 3, 3)
	k := indicators.Last(stoch.K)
	d := indicators.Last(stoch.D)

	conds := []condition{
		{"RSI in buy zone", rsi >= 40 && rsi <= 75},
		{"stochastic not overbought", k < 80},
		{"stochastic %K above %D", k > d},
	}
	return score(conds)
}

func scoreVolatility(candles []market.Candle) CategoryScore {
	bb := indicators.CalculateBollingerBands(candles, 20, 2)
	atr := indicators.CalculateATR(candles, 14)
	close := candles[len(candles)-1].Close

	lower := indicators.Last(bb.Lower)
	width := indicators.Last(bb.Width)
	nearLower := !math.IsNaN(width) && width > 0 && (close-lower) < width*0.30

	conds := []condition{
		{"close near lower band", nearLower},
		{"ATR rising", indicators.Last(atr) > indicators.Prev(atr)},
		{"band width expanding", width > indicators.Prev(bb.Width)},
	}
	return score(conds)
}

type condition struct {
	name string
	met  bool
}

func score(conds []condition) CategoryScore {
	cs := CategoryScore{TotalConditions: len(conds)}
	for _, c := range conds {
		if c.met {
			cs.ConditionsMet++
			cs.Details = append(cs.Details, c.name)
		}
	}
	cs.Score = float64(cs.ConditionsMet) / float64(cs.TotalConditions) * 100
	return cs
}

// fundamentalAdjustment maps the fundamentals snapshot to a bounded
// confidence perturbation. The raw score spans [-40,+40] and is halved.
// Absent fundamentals contribute nothing.
func fundamentalAdjustment(f *market.Fundamentals) (float64, []string) {
	if f == nil {
		return 0, nil
	}
	raw := 0.0
	var notes []string
	add := func(points float64, note string) {
		raw += points
		notes = append(notes, note)
	}

	if f.TrailingPE != nil && *f.TrailingPE > 0 {
		pe := *f.TrailingPE
		switch {
		case pe >= 10 && pe <= 25:
			add(10, "P/E +10 (fair value)")
		case pe >= 5 && pe < 10, pe > 25 && pe <= 35:
			add(5, "P/E +5 (acceptable)")
		case pe > 50:
			add(-10, "P/E -10 (expensive)")
		case pe < 5:
			add(-5, "P/E -5 (distress pricing)")
		}
	}

	if f.ReturnOnEquity != nil {
		roe := *f.ReturnOnEquity
		switch {
		case roe >= 0.20:
			add(10, "ROE +10 (excellent)")
		case roe >= 0.15:
			add(5, "ROE +5 (good)")
		case roe < 0.10:
			add(-10, "ROE -10 (poor profitability)")
		}
	}

	if f.DebtToEquity != nil {
		de := *f.DebtToEquity
		// The vendor reports debt/equity as a percentage.
		if de > 10 {
			de /= 100
		}
		switch {
		case de < 0.5:
			add(10, "D/E +10 (low debt)")
		case de < 1.0:
			add(5, "D/E +5 (moderate debt)")
		case de >= 2.0:
			add(-10, "D/E -10 (high debt)")
		}
	}

	if f.PriceToBook != nil && *f.PriceToBook > 0 {
		pb := *f.PriceToBook
		switch {
		case pb >= 1 && pb <= 3:
			add(5, "P/B +5 (fair value)")
		case pb > 10:
			add(-5, "P/B -5 (overvalued)")
		}
	}

	if f.MarketCap != nil {
		crores := *f.MarketCap / 1e7
		switch {
		case crores > 100000:
			add(5, "market cap +5 (large cap)")
		case crores > 10000:
			add(2, "market cap +2 (mid cap)")
		case crores < 1000:
			add(-5, "market cap -5 (small cap risk)")
		}
	}

	return raw / 2, notes
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
