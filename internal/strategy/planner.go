package strategy

import (
	"fmt"
	"math"
	"sort"

	"nse-signal-bot/internal/indicators"
	"nse-signal-bot/internal/levels"
	"nse-signal-bot/internal/market"
)

// Planner derives stop-loss and take-profit levels for a scored signal from
// detected support and resistance.
type Planner struct {
	Detector *levels.Detector
	MinRR    float64
}

func NewPlanner(minRR float64) *Planner {
	if minRR <= 0 {
		minRR = 1.5
	}
	return &Planner{Detector: levels.NewDetector(), MinRR: minRR}
}

var riskMultipliers = []float64{1.5, 2.0, 2.5}

// Plan fills stop, targets, risk and reward on the signal. The planned
// levels are validated before returning; a violated ordering invariant is a
// planner bug and aborts the signal.
func (p *Planner) Plan(sig *Signal, candles []market.Candle) error {
	entry := sig.EntryPrice
	srLevels := p.Detector.Detect(candles)

	stop := p.stopLoss(entry, candles, srLevels)
	if stop >= entry {
		return fmt.Errorf("invariant violation for %s: stop %.2f >= entry %.2f", sig.Symbol, stop, entry)
	}
	risk := entry - stop

	targets := p.targets(entry, stop, srLevels)
	if len(targets) < 1 {
		return fmt.Errorf("invariant violation for %s: no targets planned", sig.Symbol)
	}

	sig.StopLoss = Round2(stop)
	sig.Target1 = Round2(targets[0])
	if len(targets) > 1 {
		t2 := Round2(targets[1])
		sig.Target2 = &t2
	}
	if len(targets) > 2 {
		t3 := Round2(targets[2])
		sig.Target3 = &t3
	}
	sig.Risk = Round2(risk)
	sig.Reward = Round2(targets[0] - entry)
	if sig.Risk > 0 {
		sig.RiskRewardRatio = Round2(sig.Reward / sig.Risk)
	}

	return validatePlan(sig)
}

// stopLoss tries a support-anchored stop first and falls back to the
// tightest of the protective technical stops.
func (p *Planner) stopLoss(entry float64, candles []market.Candle, srLevels []levels.Level) float64 {
	if support := levels.NearestSupport(srLevels, entry, 0.005); support != nil {
		candidate := support.Price * 0.99
		riskPct := (entry - candidate) / entry
		if riskPct >= 0.005 && riskPct <= 0.05 {
			return candidate
		}
	}

	ema8 := indicators.Last(indicators.CalculateEMA(candles, 8))
	atr := indicators.Last(indicators.CalculateATR(candles, 14))

	stop := entry * 0.98
	if !math.IsNaN(ema8) && ema8*0.997 > stop && ema8*0.997 < entry {
		stop = ema8 * 0.997
	}
	if !math.IsNaN(atr) && entry-atr > stop && atr > 0 {
		stop = entry - atr
	}
	return stop
}

// targets returns up to three ascending take-profit levels: resistance
// anchored where possible, padded with risk multiples otherwise.
func (p *Planner) targets(entry, stop float64, srLevels []levels.Level) []float64 {
	risk := entry - stop

	anchored := levels.ResistanceTargets(srLevels, entry, stop, p.MinRR, 3)
	out := make([]float64, 0, 3)
	for _, lvl := range anchored {
		out = append(out, lvl.Price)
	}

	// Pad with the unused tail of the risk multipliers.
	for i := len(out); len(out) < 3 && i < len(riskMultipliers); i++ {
		out = append(out, entry+risk*riskMultipliers[i])
	}
	sort.Float64s(out)
	return out
}

// validatePlan enforces the emitted-signal ordering invariants.
func validatePlan(sig *Signal) error {
	if !(sig.StopLoss < sig.EntryPrice) {
		return fmt.Errorf("invariant violation for %s: stop %.2f not below entry %.2f", sig.Symbol, sig.StopLoss, sig.EntryPrice)
	}
	if !(sig.Target1 > sig.EntryPrice) {
		return fmt.Errorf("invariant violation for %s: target1 %.2f not above entry %.2f", sig.Symbol, sig.Target1, sig.EntryPrice)
	}
	prev := sig.Target1
	for _, t := range []*float64{sig.Target2, sig.Target3} {
		if t == nil {
			continue
		}
		if *t < prev {
			return fmt.Errorf("invariant violation for %s: targets out of order", sig.Symbol)
		}
		prev = *t
	}
	return nil
}
