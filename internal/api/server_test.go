package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-signal-bot/internal/database"
	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
	candlesync "nse-signal-bot/internal/sync"
)

type fakeDB struct{ err error }

func (f *fakeDB) HealthCheck(ctx context.Context) error { return f.err }

type fakeInstruments struct {
	symbols []string
	err     error
}

func (f *fakeInstruments) ListActive(ctx context.Context) ([]database.Instrument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]database.Instrument, 0, len(f.symbols))
	for _, s := range f.symbols {
		out = append(out, database.Instrument{Symbol: s, IsActive: true})
	}
	return out, nil
}

type fakeSyncer struct {
	tasks []candlesync.Task
	mode  candlesync.Mode
}

func (f *fakeSyncer) Run(ctx context.Context, tasks []candlesync.Task, mode candlesync.Mode, progress candlesync.ProgressFunc) *candlesync.Summary {
	f.tasks = tasks
	f.mode = mode
	summary := &candlesync.Summary{Total: len(tasks), ErrorCounts: map[string]int{}}
	for _, task := range tasks {
		summary.Succeeded++
		summary.RowsInserted += 10
		summary.Results = append(summary.Results, candlesync.TaskResult{
			Symbol: task.Symbol, Timeframe: task.Timeframe,
			Status: "success", Outcome: candlesync.OutcomeSynced, Rows: 10,
		})
	}
	return summary
}

type fakeAnalyzer struct {
	symbols  []string
	opts     pipeline.Options
	outcome  *pipeline.Outcome
	analyzed string
	err      error
}

func (f *fakeAnalyzer) Run(ctx context.Context, symbols []string, opts pipeline.Options) (*pipeline.BatchSummary, error) {
	f.symbols = symbols
	f.opts = opts
	summary := &pipeline.BatchSummary{
		BatchID:         "batch-1",
		Timeframe:       opts.Timeframe,
		SymbolsAnalyzed: len(symbols),
		ErrorCounts:     map[string]int{},
	}
	for _, symbol := range symbols {
		summary.Outcomes = append(summary.Outcomes, pipeline.Outcome{
			Symbol: symbol,
			Status: pipeline.StatusDone,
			Signal: &strategy.Signal{Symbol: symbol, Type: strategy.SignalBuy, Confidence: 75, EntryPrice: 100, StopLoss: 98, Target1: 103},
		})
		summary.SignalsGenerated++
	}
	return summary, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, symbol string, opts pipeline.Options) (*pipeline.Outcome, error) {
	f.analyzed = symbol
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func newTestServer(t *testing.T, analyzer *fakeAnalyzer) (*Server, *fakeSyncer) {
	t.Helper()
	syncer := &fakeSyncer{}
	instruments := &fakeInstruments{symbols: []string{"RELIANCE.NS", "TCS.NS"}}
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	srv := NewServer(ServerConfig{ProductionMode: true}, &fakeDB{}, instruments, syncer, analyzer, zerolog.Nop())
	return srv, syncer
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHealthDatabaseDown(t *testing.T) {
	syncer := &fakeSyncer{}
	srv := NewServer(ServerConfig{ProductionMode: true}, &fakeDB{err: errors.New("pool closed")},
		&fakeInstruments{}, syncer, &fakeAnalyzer{}, zerolog.Nop())
	w := doRequest(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncDefaultsToActiveUniverse(t *testing.T) {
	srv, syncer := newTestServer(t, nil)
	w := doRequest(srv, http.MethodPost, "/api/sync", `{"timeframes":["1d","75m"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Len(t, syncer.tasks, 4)
	assert.Equal(t, candlesync.ModeIncremental, syncer.mode)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 4, resp["total"])
	assert.EqualValues(t, 40, resp["rows_inserted"])
}

func TestSyncExplicitSymbolsAndMode(t *testing.T) {
	srv, syncer := newTestServer(t, nil)
	w := doRequest(srv, http.MethodPost, "/api/sync", `{"symbols":["INFY.NS"],"mode":"full"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, syncer.tasks, 1)
	assert.Equal(t, "INFY.NS", syncer.tasks[0].Symbol)
	assert.Equal(t, market.Timeframe1d, syncer.tasks[0].Timeframe)
	assert.Equal(t, candlesync.ModeFull, syncer.mode)
}

func TestSyncRejectsUnknownMode(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodPost, "/api/sync", `{"mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncRejectsUnknownTimeframe(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodPost, "/api/sync", `{"timeframes":["3d"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalsRun(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodPost, "/api/signals", `{"timeframe":"75m","sentiment":true,"broadcast":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"RELIANCE.NS", "TCS.NS"}, analyzer.symbols)
	assert.Equal(t, market.Timeframe75m, analyzer.opts.Timeframe)
	assert.True(t, analyzer.opts.Sentiment)
	assert.True(t, analyzer.opts.Broadcast)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp["signals_generated"])
	assert.Len(t, resp["signals"], 2)
}

func TestAnalyzeReturnsSignal(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: &pipeline.Outcome{
		Symbol: "RELIANCE.NS",
		Status: pipeline.StatusDone,
		Signal: &strategy.Signal{Symbol: "RELIANCE.NS", Type: strategy.SignalBuy, Confidence: 82.2, EntryPrice: 100, StopLoss: 98, Target1: 103},
	}}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodGet, "/api/analyze/RELIANCE.NS?sentiment=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "RELIANCE.NS", analyzer.analyzed)
	assert.True(t, analyzer.opts.Sentiment)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "done", resp["status"])
	sig := resp["signal"].(map[string]interface{})
	assert.Equal(t, "BUY", sig["type"])
	assert.EqualValues(t, 82.2, sig["confidence"])
}

func TestAnalyzeNoSignal(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: &pipeline.Outcome{Symbol: "TCS.NS", Status: pipeline.StatusNoSignal}}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodGet, "/api/analyze/TCS.NS", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no_signal")
	assert.NotContains(t, w.Body.String(), "signal\":{")
}

func TestAnalyzeBusyConflict(t *testing.T) {
	analyzer := &fakeAnalyzer{err: pipeline.ErrBusy}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodGet, "/api/analyze/RELIANCE.NS", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnalyzeUnknownSymbolIs404(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: &pipeline.Outcome{
		Symbol:  "NOPE.NS",
		Status:  pipeline.StatusFailed,
		ErrKind: string(market.KindNotFound),
		Err:     errors.New("no chart result"),
	}}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodGet, "/api/analyze/NOPE.NS", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeRateLimited(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: &pipeline.Outcome{
		Symbol:  "RELIANCE.NS",
		Status:  pipeline.StatusFailed,
		ErrKind: string(market.KindRateLimited),
		Err:     errors.New("empty candle payload"),
	}}
	srv, _ := newTestServer(t, analyzer)
	w := doRequest(srv, http.MethodGet, "/api/analyze/RELIANCE.NS", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAnalyzeRejectsUnknownTimeframe(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{})
	w := doRequest(srv, http.MethodGet, "/api/analyze/RELIANCE.NS?timeframe=3d", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
