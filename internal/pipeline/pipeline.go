// Package pipeline streams symbols through load, score, plan, enrich and
// broadcast stages with at-most-one concurrent build per symbol.
package pipeline

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/metrics"
	"nse-signal-bot/internal/strategy"
)

// Stage names the per-symbol state machine states. Terminal stages double
// as outcome statuses.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageLoading      Stage = "loading"
	StageScoring      Stage = "scoring"
	StagePlanning     Stage = "planning"
	StageEnriching    Stage = "enriching"
	StageBroadcasting Stage = "broadcasting"

	StatusDone             Stage = "done"
	StatusInsufficientData Stage = "insufficient_data"
	StatusNoSignal         Stage = "no_signal"
	StatusFailed           Stage = "failed"
)

// ErrBusy rejects an interactive request for a symbol whose build is
// already in flight.
var ErrBusy = errors.New("analysis already in progress for symbol")

const errKindCancelled = "cancelled"

// Outcome is the terminal record for one symbol in a batch.
type Outcome struct {
	Symbol    string
	Status    Stage
	Signal    *strategy.Signal
	Delivered int
	Failures  int
	ErrKind   string
	Err       error
}

// CandleSource supplies the most recent candles for a symbol.
type CandleSource interface {
	Tail(ctx context.Context, symbol string, tf market.Timeframe, n int) ([]market.Candle, error)
}

// FundamentalsSource supplies the latest fundamentals snapshot, or nil.
type FundamentalsSource interface {
	Get(ctx context.Context, symbol string) (*market.Fundamentals, error)
}

// Enricher attaches sentiment and AI commentary to a signal. It must not
// mutate its input.
type Enricher interface {
	EnrichSignal(ctx context.Context, sig *strategy.Signal, tf market.Timeframe) (*strategy.Signal, error)
}

// Sink delivers signals and batch summaries to subscribers.
type Sink interface {
	SendSignal(ctx context.Context, sig *strategy.Signal) (delivered, failed int, err error)
	SendSummary(ctx context.Context, summary *BatchSummary) error
}

// Pipeline wires the stages together. The zero value is not usable; use
// New.
type Pipeline struct {
	candles      CandleSource
	fundamentals FundamentalsSource
	strategy     *strategy.ScoredStrategy
	planner      *strategy.Planner
	enricher     Enricher
	sink         Sink
	workers      int
	log          zerolog.Logger

	group    singleflight.Group
	mu       gosync.Mutex
	inflight map[string]struct{}
}

func New(candles CandleSource, fundamentals FundamentalsSource, strat *strategy.ScoredStrategy, planner *strategy.Planner, enricher Enricher, sink Sink, workers int, log zerolog.Logger) *Pipeline {
	if workers < 1 {
		workers = 5
	}
	return &Pipeline{
		candles:      candles,
		fundamentals: fundamentals,
		strategy:     strat,
		planner:      planner,
		enricher:     enricher,
		sink:         sink,
		workers:      workers,
		log:          log,
		inflight:     map[string]struct{}{},
	}
}

// Analyze runs a single symbol on the interactive path: if a build for the
// same (symbol, timeframe) is in flight the request is rejected with
// ErrBusy instead of queueing behind it.
func (p *Pipeline) Analyze(ctx context.Context, symbol string, opts Options) (*Outcome, error) {
	opts = opts.withDefaults()
	out, err := p.do(ctx, symbol, opts, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do funnels every build through the single-flight group. Batch callers
// await a duplicate in-flight build; interactive callers reject it.
func (p *Pipeline) do(ctx context.Context, symbol string, opts Options, await bool) (Outcome, error) {
	key := symbol + "|" + string(opts.Timeframe)
	if !await && p.isInflight(key) {
		return Outcome{}, ErrBusy
	}
	v, _, _ := p.group.Do(key, func() (interface{}, error) {
		p.setInflight(key)
		defer p.clearInflight(key)
		return p.build(ctx, symbol, opts), nil
	})
	return v.(Outcome), nil
}

func (p *Pipeline) isInflight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

func (p *Pipeline) setInflight(key string) {
	p.mu.Lock()
	p.inflight[key] = struct{}{}
	p.mu.Unlock()
}

func (p *Pipeline) clearInflight(key string) {
	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
}

// build walks one symbol through the stage machine and returns its
// terminal outcome.
func (p *Pipeline) build(ctx context.Context, symbol string, opts Options) Outcome {
	start := time.Now()
	out := Outcome{Symbol: symbol}
	log := p.log.With().Str("symbol", symbol).Str("timeframe", string(opts.Timeframe)).Logger()

	defer func() {
		metrics.PipelineStageDuration.WithLabelValues(string(out.Status)).Observe(time.Since(start).Seconds())
	}()

	fail := func(stage Stage, err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		if ctx.Err() != nil {
			out.ErrKind = errKindCancelled
		} else {
			out.ErrKind = string(market.KindOf(err))
		}
		log.Warn().Str("stage", string(stage)).Str("kind", out.ErrKind).Err(err).Msg("pipeline build failed")
		return out
	}

	log.Debug().Str("stage", string(StageLoading)).Msg("pipeline stage")
	candles, err := p.candles.Tail(ctx, symbol, opts.Timeframe, opts.Lookback)
	if err != nil {
		return fail(StageLoading, err)
	}
	if len(candles) < minCandlesFor(opts.Timeframe) {
		out.Status = StatusInsufficientData
		log.Debug().Int("candles", len(candles)).Msg("insufficient history")
		return out
	}

	var fund *market.Fundamentals
	if p.fundamentals != nil {
		fund, err = p.fundamentals.Get(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Msg("fundamentals lookup failed, scoring without")
			fund = nil
		}
	}

	log.Debug().Str("stage", string(StageScoring)).Msg("pipeline stage")
	sig, analysis, err := p.strategy.Evaluate(symbol, candles, fund)
	if err != nil {
		if errors.Is(err, strategy.ErrInsufficientData) {
			out.Status = StatusInsufficientData
			return out
		}
		return fail(StageScoring, err)
	}
	if sig == nil {
		out.Status = StatusNoSignal
		if analysis != nil {
			log.Debug().Float64("technical", analysis.TechnicalScore).Int("strong", analysis.StrongCategories).Msg("no signal")
		}
		return out
	}

	log.Debug().Str("stage", string(StagePlanning)).Msg("pipeline stage")
	if err := p.planner.Plan(sig, candles); err != nil {
		return fail(StagePlanning, err)
	}
	metrics.SignalsGenerated.WithLabelValues(string(opts.Timeframe)).Inc()

	if opts.Sentiment && p.enricher != nil {
		log.Debug().Str("stage", string(StageEnriching)).Msg("pipeline stage")
		enriched, err := p.enricher.EnrichSignal(ctx, sig, opts.Timeframe)
		if err != nil {
			log.Warn().Err(err).Msg("enrichment failed, emitting base signal")
		} else if enriched != nil {
			sig = enriched
		}
	}
	out.Signal = sig

	if opts.Broadcast && p.sink != nil {
		log.Debug().Str("stage", string(StageBroadcasting)).Msg("pipeline stage")
		delivered, failures, err := p.sink.SendSignal(ctx, sig)
		out.Delivered = delivered
		out.Failures = failures
		metrics.DeliveryFailures.Add(float64(failures))
		if err != nil {
			return fail(StageBroadcasting, err)
		}
		if delivered > 0 {
			metrics.SignalsSent.Inc()
		}
	}

	out.Status = StatusDone
	log.Info().Float64("confidence", sig.Confidence).Float64("entry", sig.EntryPrice).Msg("signal built")
	return out
}

// minCandlesFor is the strategy history floor per timeframe. The session
// aligned 75m series needs a deeper window to stabilize the slower
// indicators.
func minCandlesFor(tf market.Timeframe) int {
	if tf == market.Timeframe75m {
		return 100
	}
	return strategy.MinCandles
}
