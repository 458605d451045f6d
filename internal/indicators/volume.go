package indicators

import (
	"math"

	"nse-signal-bot/internal/market"
)

// CalculateOBV computes on-balance volume: cumulative volume signed by the
// close-over-close direction.
func CalculateOBV(candles []market.Candle) []float64 {
	n := len(candles)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	obv := 0.0
	for i := 1; i < n; i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv += float64(candles[i].Volume)
		case candles[i].Close < candles[i-1].Close:
			obv -= float64(candles[i].Volume)
		}
		out[i] = obv
	}
	return out
}

// CalculateMFI computes the money flow index, a volume-weighted RSI.
func CalculateMFI(candles []market.Candle, period int) []float64 {
	n := len(candles)
	out := nanSeries(n)
	if period <= 0 || n < period+1 {
		return out
	}

	typical := make([]float64, n)
	flow := make([]float64, n)
	for i, c := range candles {
		typical[i] = (c.High + c.Low + c.Close) / 3
		flow[i] = typical[i] * float64(c.Volume)
	}

	for i := period; i < n; i++ {
		pos, neg := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			switch {
			case typical[j] > typical[j-1]:
				pos += flow[j]
			case typical[j] < typical[j-1]:
				neg += flow[j]
			}
		}
		if neg == 0 {
			out[i] = 100
		} else {
			out[i] = 100 - 100/(1+pos/neg)
		}
	}
	return out
}

// CalculateVWAP computes the cumulative volume weighted average price over
// the window.
func CalculateVWAP(candles []market.Candle) []float64 {
	n := len(candles)
	out := nanSeries(n)
	cumPV, cumV := 0.0, 0.0
	for i, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * float64(c.Volume)
		cumV += float64(c.Volume)
		if cumV > 0 {
			out[i] = cumPV / cumV
		}
	}
	return out
}

// CalculateAverageVolume returns the mean volume of the trailing period.
func CalculateAverageVolume(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return math.NaN()
	}
	sum := int64(0)
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	return float64(sum) / float64(period)
}
