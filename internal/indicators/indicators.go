// Package indicators provides stateless technical indicator functions over
// candle windows. All functions return series aligned with the input;
// positions where the window is too short hold NaN rather than an
// extrapolated value.
package indicators

import (
	"math"

	"nse-signal-bot/internal/market"
)

// MACDResult holds the MACD line, signal line, and histogram series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// StochasticResult holds the slow %K and %D series.
type StochasticResult struct {
	K []float64
	D []float64
}

// BollingerBandsResult holds the band series plus derived width and %B.
type BollingerBandsResult struct {
	Upper    []float64
	Middle   []float64
	Lower    []float64
	Width    []float64
	PercentB []float64
}

// SupertrendResult holds the supertrend line and per-bar direction
// (+1 uptrend, -1 downtrend).
type SupertrendResult struct {
	Line      []float64
	Direction []int
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the final value of a series, or NaN when empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Prev returns the second-to-last value of a series, or NaN.
func Prev(series []float64) float64 {
	if len(series) < 2 {
		return math.NaN()
	}
	return series[len(series)-2]
}

// CalculateSMA computes a simple moving average series over closes.
func CalculateSMA(candles []market.Candle, period int) []float64 {
	return smaSeries(closes(candles), period)
}

func smaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA computes an exponential moving average series over closes,
// seeded with the SMA of the first period values.
func CalculateEMA(candles []market.Candle, period int) []float64 {
	return emaSeries(closes(candles), period)
}

func emaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// emaOver runs an EMA over a series that itself has leading NaNs, seeding
// with the SMA of the first period valid values.
func emaOver(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	first := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 || len(values)-first < period {
		return out
	}
	sum := 0.0
	for i := first; i < first+period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[first+period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := first + period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// CalculateRSI computes the Wilder relative strength index series.
func CalculateRSI(candles []market.Candle, period int) []float64 {
	values := closes(candles)
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// CalculateMACD computes MACD(fast, slow, signal) over closes.
func CalculateMACD(candles []market.Candle, fast, slow, signal int) *MACDResult {
	values := closes(candles)
	n := len(values)
	result := &MACDResult{
		MACD:      nanSeries(n),
		Signal:    nanSeries(n),
		Histogram: nanSeries(n),
	}
	if n < slow {
		return result
	}

	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	for i := slow - 1; i < n; i++ {
		result.MACD[i] = fastEMA[i] - slowEMA[i]
	}

	result.Signal = emaOver(result.MACD, signal)
	for i := range result.Histogram {
		if !math.IsNaN(result.MACD[i]) && !math.IsNaN(result.Signal[i]) {
			result.Histogram[i] = result.MACD[i] - result.Signal[i]
		}
	}
	return result
}

// CalculateStochastic computes the slow stochastic oscillator
// (kPeriod lookback, slowing and dPeriod SMA smoothing).
func CalculateStochastic(candles []market.Candle, kPeriod, slowing, dPeriod int) *StochasticResult {
	n := len(candles)
	result := &StochasticResult{K: nanSeries(n), D: nanSeries(n)}
	if n < kPeriod {
		return result
	}

	fastK := nanSeries(n)
	for i := kPeriod - 1; i < n; i++ {
		highest := candles[i].High
		lowest := candles[i].Low
		for j := i - kPeriod + 1; j <= i; j++ {
			if candles[j].High > highest {
				highest = candles[j].High
			}
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
		}
		if highest == lowest {
			fastK[i] = 50
		} else {
			fastK[i] = (candles[i].Close - lowest) / (highest - lowest) * 100
		}
	}

	result.K = smaOver(fastK, slowing)
	result.D = smaOver(result.K, dPeriod)
	return result
}

// smaOver runs an SMA over a series with leading NaNs.
func smaOver(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		sum := 0.0
		count := 0
		for j := i; j > i-period && j >= 0; j-- {
			if math.IsNaN(values[j]) {
				break
			}
			sum += values[j]
			count++
		}
		if count == period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// trueRange returns the TR series (index 0 is the plain high-low range).
func trueRange(candles []market.Candle) []float64 {
	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return tr
}

// CalculateATR computes the Wilder average true range series.
func CalculateATR(candles []market.Candle, period int) []float64 {
	n := len(candles)
	out := nanSeries(n)
	if period <= 0 || n < period+1 {
		return out
	}

	tr := trueRange(candles)
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// CalculateBollingerBands computes Bollinger bands over closes, including
// the derived band width and %B (position within the band, 0..100 inside).
func CalculateBollingerBands(candles []market.Candle, period int, stdDevs float64) *BollingerBandsResult {
	values := closes(candles)
	n := len(values)
	result := &BollingerBandsResult{
		Upper:    nanSeries(n),
		Middle:   smaSeries(values, period),
		Lower:    nanSeries(n),
		Width:    nanSeries(n),
		PercentB: nanSeries(n),
	}
	if period <= 0 || n < period {
		return result
	}

	for i := period - 1; i < n; i++ {
		mean := result.Middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))

		result.Upper[i] = mean + stdDevs*sd
		result.Lower[i] = mean - stdDevs*sd
		result.Width[i] = result.Upper[i] - result.Lower[i]
		if result.Width[i] > 0 {
			result.PercentB[i] = (values[i] - result.Lower[i]) / result.Width[i] * 100
		} else {
			result.PercentB[i] = 50
		}
	}
	return result
}

// CalculateADX computes the Wilder average directional index series.
func CalculateADX(candles []market.Candle, period int) []float64 {
	n := len(candles)
	out := nanSeries(n)
	if period <= 0 || n < 2*period+1 {
		return out
	}

	tr := trueRange(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder smoothing of TR and the directional movements.
	smTR, smPlus, smMinus := 0.0, 0.0, 0.0
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSeries(n)
	dx[period] = dxValue(smPlus, smMinus, smTR)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	adx := sum / float64(period)
	out[2*period-1] = adx
	for i := 2 * period; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out[i] = adx
	}
	return out
}

func dxValue(plus, minus, tr float64) float64 {
	if tr == 0 {
		return 0
	}
	plusDI := 100 * plus / tr
	minusDI := 100 * minus / tr
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}

// CalculateSupertrend computes the supertrend line with an ATR band.
func CalculateSupertrend(candles []market.Candle, period int, multiplier float64) *SupertrendResult {
	n := len(candles)
	result := &SupertrendResult{Line: nanSeries(n), Direction: make([]int, n)}
	if n < period+1 {
		return result
	}

	atr := CalculateATR(candles, period)
	upper := nanSeries(n)
	lower := nanSeries(n)
	for i := period; i < n; i++ {
		mid := (candles[i].High + candles[i].Low) / 2
		basicUpper := mid + multiplier*atr[i]
		basicLower := mid - multiplier*atr[i]

		if i == period || math.IsNaN(upper[i-1]) {
			upper[i] = basicUpper
			lower[i] = basicLower
			result.Direction[i] = 1
			result.Line[i] = basicLower
			continue
		}

		if basicUpper < upper[i-1] || candles[i-1].Close > upper[i-1] {
			upper[i] = basicUpper
		} else {
			upper[i] = upper[i-1]
		}
		if basicLower > lower[i-1] || candles[i-1].Close < lower[i-1] {
			lower[i] = basicLower
		} else {
			lower[i] = lower[i-1]
		}

		prevDir := result.Direction[i-1]
		dir := prevDir
		if prevDir == 1 && candles[i].Close < lower[i] {
			dir = -1
		} else if prevDir == -1 && candles[i].Close > upper[i] {
			dir = 1
		}
		result.Direction[i] = dir
		if dir == 1 {
			result.Line[i] = lower[i]
		} else {
			result.Line[i] = upper[i]
		}
	}
	return result
}
