// Package sync reconciles the local candle store with the market-data
// vendor across a worker pool, with per-timeframe staleness checks.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/metrics"
)

// Mode selects the reconciliation behavior.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeForce       Mode = "force"
)

// ParseMode validates a config string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental, ModeForce:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sync mode %q", s)
}

// ErrKindCancelled marks tasks abandoned by batch cancellation.
const ErrKindCancelled = "cancelled"

const maxIncrementalDays = 30

// Task is one (symbol, timeframe) sync unit.
type Task struct {
	Symbol    string
	Timeframe market.Timeframe
}

// Outcome describes what a successful task actually did.
type Outcome string

const (
	OutcomeSynced   Outcome = "synced"
	OutcomeUpToDate Outcome = "up_to_date"
)

// TaskResult is the per-task accounting record.
type TaskResult struct {
	Symbol    string
	Timeframe market.Timeframe
	Status    string // success or error
	Outcome   Outcome
	Rows      int
	Duration  time.Duration
	ErrKind   string
	Err       error
}

// Summary aggregates a batch run.
type Summary struct {
	Total        int
	Succeeded    int
	Failed       int
	UpToDate     int
	RowsInserted int
	ErrorCounts  map[string]int
	Results      []TaskResult
}

// MarketData is the vendor capability the scheduler needs.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, period market.Period) ([]market.Candle, error)
	FetchFundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error)
}

// CandleStore is the persistence capability the scheduler needs.
type CandleStore interface {
	InsertBatch(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) (int, error)
	LatestTime(ctx context.Context, symbol string, tf market.Timeframe) (*time.Time, error)
}

// FundamentalsStore persists fundamentals snapshots.
type FundamentalsStore interface {
	Upsert(ctx context.Context, f *market.Fundamentals) error
}

// ProgressFunc receives per-task results in completion order. completed is
// monotone up to total.
type ProgressFunc func(result TaskResult, completed, total int)

// Scheduler fans sync tasks over a bounded worker pool.
type Scheduler struct {
	client       MarketData
	candles      CandleStore
	fundamentals FundamentalsStore
	workers      int
	now          func() time.Time
	log          zerolog.Logger
}

func NewScheduler(client MarketData, candles CandleStore, fundamentals FundamentalsStore, workers int, log zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 5
	}
	return &Scheduler{
		client:       client,
		candles:      candles,
		fundamentals: fundamentals,
		workers:      workers,
		now:          time.Now,
		log:          log,
	}
}

// Run executes the batch. Cancellation stops dispatch at the next task
// boundary; tasks never started are recorded as cancelled errors.
func (s *Scheduler) Run(ctx context.Context, tasks []Task, mode Mode, progress ProgressFunc) *Summary {
	summary := &Summary{Total: len(tasks), ErrorCounts: map[string]int{}}
	if len(tasks) == 0 {
		return summary
	}

	taskChan := make(chan Task)
	resultChan := make(chan TaskResult)

	var wg gosync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				resultChan <- s.syncTask(ctx, task, mode)
			}
		}()
	}

	go func() {
		defer close(taskChan)
		for _, task := range tasks {
			select {
			case taskChan <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for result := range resultChan {
		completed++
		s.record(summary, result)
		if progress != nil {
			progress(result, completed, summary.Total)
		}
	}

	// Tasks the dispatcher never handed out.
	for i := completed; i < len(tasks); i++ {
		result := TaskResult{
			Symbol:    tasks[i].Symbol,
			Timeframe: tasks[i].Timeframe,
			Status:    "error",
			ErrKind:   ErrKindCancelled,
			Err:       ctx.Err(),
		}
		s.record(summary, result)
	}
	return summary
}

func (s *Scheduler) record(summary *Summary, result TaskResult) {
	summary.Results = append(summary.Results, result)
	switch result.Status {
	case "success":
		summary.Succeeded++
		summary.RowsInserted += result.Rows
		if result.Rows > 0 {
			metrics.CandlesInserted.WithLabelValues(string(result.Timeframe)).Add(float64(result.Rows))
		}
		if result.Outcome == OutcomeUpToDate {
			summary.UpToDate++
		}
	default:
		summary.Failed++
		summary.ErrorCounts[result.ErrKind]++
		metrics.SyncErrors.WithLabelValues(result.ErrKind).Inc()
	}
}

// syncTask reconciles one (symbol, timeframe) pair.
func (s *Scheduler) syncTask(ctx context.Context, task Task, mode Mode) TaskResult {
	start := s.now()
	result := TaskResult{Symbol: task.Symbol, Timeframe: task.Timeframe}

	rows, outcome, err := s.reconcile(ctx, task, mode)
	result.Duration = s.now().Sub(start)
	if err != nil {
		result.Status = "error"
		result.Err = err
		if ctx.Err() != nil {
			result.ErrKind = ErrKindCancelled
		} else {
			result.ErrKind = string(market.KindOf(err))
		}
		s.log.Warn().Str("symbol", task.Symbol).Str("timeframe", string(task.Timeframe)).
			Str("kind", result.ErrKind).Err(err).Msg("sync task failed")
		return result
	}

	result.Status = "success"
	result.Outcome = outcome
	result.Rows = rows
	s.log.Debug().Str("symbol", task.Symbol).Str("timeframe", string(task.Timeframe)).
		Int("rows", rows).Str("outcome", string(outcome)).Msg("sync task done")
	return result
}

func (s *Scheduler) reconcile(ctx context.Context, task Task, mode Mode) (int, Outcome, error) {
	if mode == ModeFull {
		return s.fullSync(ctx, task)
	}

	latest, err := s.candles.LatestTime(ctx, task.Symbol, task.Timeframe)
	if err != nil {
		return 0, "", err
	}
	if latest == nil {
		return s.fullSync(ctx, task)
	}

	now := s.now()
	if mode != ModeForce && !isStale(task.Timeframe, *latest, now) {
		return 0, OutcomeUpToDate, nil
	}

	ref := marketReference(now)
	daysSince := int(ref.Sub(*latest).Hours() / 24)
	fetchDays := daysSince + 1
	if fetchDays > maxIncrementalDays {
		fetchDays = maxIncrementalDays
	}

	period := market.Period(fmt.Sprintf("%dd", fetchDays))
	candles, err := s.client.FetchCandles(ctx, task.Symbol, task.Timeframe, period)
	if err != nil {
		return 0, "", err
	}

	// Only candles strictly after the stored frontier.
	fresh := candles[:0:0]
	for _, c := range candles {
		if c.Time.After(*latest) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, OutcomeUpToDate, nil
	}

	rows, err := s.candles.InsertBatch(ctx, task.Symbol, task.Timeframe, fresh)
	if err != nil {
		return 0, "", err
	}
	return rows, OutcomeSynced, nil
}

func (s *Scheduler) fullSync(ctx context.Context, task Task) (int, Outcome, error) {
	candles, err := s.client.FetchCandles(ctx, task.Symbol, task.Timeframe, task.Timeframe.MaxPeriod())
	if err != nil {
		return 0, "", err
	}
	rows, err := s.candles.InsertBatch(ctx, task.Symbol, task.Timeframe, candles)
	if err != nil {
		return 0, "", err
	}
	return rows, OutcomeSynced, nil
}

// SyncFundamentals refreshes fundamentals for the given symbols. Failures
// are per-symbol and do not abort the batch.
func (s *Scheduler) SyncFundamentals(ctx context.Context, symbols []string) (int, error) {
	if s.fundamentals == nil {
		return 0, fmt.Errorf("fundamentals store not configured")
	}
	updated := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		fund, err := s.client.FetchFundamentals(ctx, symbol)
		if err != nil {
			s.log.Warn().Str("symbol", symbol).Err(err).Msg("fundamentals fetch failed")
			continue
		}
		if err := s.fundamentals.Upsert(ctx, fund); err != nil {
			s.log.Warn().Str("symbol", symbol).Err(err).Msg("fundamentals upsert failed")
			continue
		}
		updated++
	}
	return updated, nil
}
