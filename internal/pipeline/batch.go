package pipeline

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"nse-signal-bot/internal/market"
)

// Options configures one batch or interactive run.
type Options struct {
	Timeframe market.Timeframe
	Lookback  int // candle tail depth; 0 selects the per-timeframe default
	Sentiment bool
	Broadcast bool
}

func (o Options) withDefaults() Options {
	if o.Timeframe == "" {
		o.Timeframe = market.Timeframe1d
	}
	if o.Lookback <= 0 {
		o.Lookback = lookbackFor(o.Timeframe)
	}
	return o
}

func lookbackFor(tf market.Timeframe) int {
	if tf == market.Timeframe75m {
		return 150
	}
	return 365
}

// BatchSummary aggregates one pipeline run.
type BatchSummary struct {
	BatchID          string
	Timeframe        market.Timeframe
	StartedAt        time.Time
	FinishedAt       time.Time
	SymbolsAnalyzed  int
	SignalsGenerated int
	SignalsSent      int
	DeliveryFailures int
	ErrorCounts      map[string]int
	Outcomes         []Outcome
}

// Run walks every symbol through the stage machine over a bounded worker
// pool. Signals broadcast as each symbol completes; the summary is
// submitted to the sink after the batch drains. Cancellation stops
// dispatch at the next symbol boundary.
func (p *Pipeline) Run(ctx context.Context, symbols []string, opts Options) (*BatchSummary, error) {
	opts = opts.withDefaults()
	summary := &BatchSummary{
		BatchID:     uuid.New().String(),
		Timeframe:   opts.Timeframe,
		StartedAt:   time.Now(),
		ErrorCounts: map[string]int{},
	}
	log := p.log.With().Str("batch_id", summary.BatchID).Str("timeframe", string(opts.Timeframe)).Logger()
	log.Info().Int("symbols", len(symbols)).Bool("sentiment", opts.Sentiment).Bool("broadcast", opts.Broadcast).Msg("pipeline batch started")

	symbolChan := make(chan string)
	outChan := make(chan Outcome)

	var wg gosync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				out, err := p.do(ctx, symbol, opts, true)
				if err != nil {
					out = Outcome{Symbol: symbol, Status: StatusFailed, ErrKind: errKindCancelled, Err: err}
				}
				outChan <- out
			}
		}()
	}

	go func() {
		defer close(symbolChan)
		for _, symbol := range symbols {
			select {
			case symbolChan <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outChan)
	}()

	for out := range outChan {
		p.record(summary, out)
	}

	// Symbols the dispatcher never handed out.
	for i := summary.SymbolsAnalyzed; i < len(symbols); i++ {
		p.record(summary, Outcome{
			Symbol:  symbols[i],
			Status:  StatusFailed,
			ErrKind: errKindCancelled,
			Err:     ctx.Err(),
		})
	}

	summary.FinishedAt = time.Now()
	log.Info().Int("analyzed", summary.SymbolsAnalyzed).Int("signals", summary.SignalsGenerated).
		Int("sent", summary.SignalsSent).Msg("pipeline batch finished")

	if opts.Broadcast && p.sink != nil {
		if err := p.sink.SendSummary(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("summary delivery failed")
		}
	}
	return summary, nil
}

func (p *Pipeline) record(summary *BatchSummary, out Outcome) {
	summary.Outcomes = append(summary.Outcomes, out)
	summary.SymbolsAnalyzed++
	if out.Signal != nil {
		summary.SignalsGenerated++
	}
	if out.Delivered > 0 {
		summary.SignalsSent++
	}
	summary.DeliveryFailures += out.Failures
	if out.Status == StatusFailed {
		summary.ErrorCounts[out.ErrKind]++
	}
}
