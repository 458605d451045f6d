package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
)

func ptr(v float64) *float64 { return &v }

func enrichedSignal() *strategy.Signal {
	return &strategy.Signal{
		Symbol:             "RELIANCE.NS",
		Type:               strategy.SignalBuy,
		GeneratedAt:        time.Date(2025, 11, 7, 16, 0, 0, 0, time.UTC),
		Confidence:         82.2,
		OriginalConfidence: ptr(70.0),
		EntryPrice:         100,
		StopLoss:           98,
		Target1:            103,
		Target2:            ptr(107.0),
		Target3:            ptr(112.0),
		Risk:               2,
		Reward:             3,
		RiskRewardRatio:    1.5,
		Sentiment: &strategy.Sentiment{
			Label: "bullish", Confidence: 80, Impact: 12, Summary: "upbeat coverage",
		},
		TechnicalAnalysis: &strategy.TechnicalAnalysis{
			Strength: "strong", Prediction: "bullish", Confidence: 78,
			Timeframe: "1 week", KeyFactors: []string{"EMA alignment", "volume surge"},
			Recommendation: "buy",
			AIEntry:        ptr(99.5), AIStop: ptr(97.0), AITarget1: ptr(104.0),
			Reasoning: "Breakout above *resistance* on 2025-11-05",
		},
		Consensus: "STRONG_CONSENSUS",
	}
}

func TestFormatSignalBlocks(t *testing.T) {
	msg := FormatSignal(enrichedSignal())

	assert.Contains(t, msg, "*RELIANCE.NS - BUY SIGNAL*")
	assert.Contains(t, msg, "*News Sentiment:* BULLISH (80%)")
	assert.Contains(t, msg, "*Strategy Confidence:* 70.0%")
	assert.Contains(t, msg, "*Final Confidence:* 82.2% (+12 from news)")
	assert.Contains(t, msg, "Entry: ₹100.00")
	assert.Contains(t, msg, "Stop Loss: ₹98.00 (Risk: ₹2.00)")
	assert.Contains(t, msg, "Target 1: ₹103.00 (Reward: ₹3.00)")
	assert.Contains(t, msg, "Target 3: ₹112.00")
	assert.Contains(t, msg, "Risk:Reward: 1:1.5")
	assert.Contains(t, msg, "Prediction: BULLISH (78%)")
	assert.Contains(t, msg, "Key Factors: EMA alignment, volume surge")
	assert.Contains(t, msg, "Stop: ₹97.00")
	assert.Contains(t, msg, "R:R: 1:1.8")
	assert.Contains(t, msg, "STRONG CONSENSUS")
	// Model text is escaped for Telegram Markdown.
	assert.Contains(t, msg, "\\*resistance\\*")
	assert.NotContains(t, msg, "#priority")
}

func TestFormatSignalPriorityTag(t *testing.T) {
	sig := enrichedSignal()
	sig.Confidence = 93
	assert.Contains(t, FormatSignal(sig), "#priority")
}

func TestFormatSignalBareSignal(t *testing.T) {
	sig := &strategy.Signal{
		Symbol: "ACME.NS", Type: strategy.SignalBuy, Confidence: 68,
		EntryPrice: 50, StopLoss: 49, Target1: 52, Risk: 1, Reward: 2, RiskRewardRatio: 2,
		GeneratedAt: time.Now(),
	}
	msg := FormatSignal(sig)
	assert.Contains(t, msg, "*Confidence:* 68.0%")
	assert.NotContains(t, msg, "News Sentiment")
	assert.NotContains(t, msg, "AI ANALYSIS")
	assert.NotContains(t, msg, "CONSENSUS")
}

func TestFormatSummary(t *testing.T) {
	batch := &pipeline.BatchSummary{
		Timeframe:       "1d",
		SymbolsAnalyzed: 10,
		ErrorCounts:     map[string]int{"rate_limited": 1},
		Outcomes: []pipeline.Outcome{
			{Symbol: "A.NS", Signal: &strategy.Signal{Symbol: "A.NS", Confidence: 95}},
			{Symbol: "B.NS", Signal: &strategy.Signal{Symbol: "B.NS", Confidence: 80}},
			{Symbol: "C.NS", Signal: &strategy.Signal{Symbol: "C.NS", Confidence: 70}},
			{Symbol: "D.NS"},
		},
	}
	msg := FormatSummary(batch)
	assert.Contains(t, msg, "Symbols Analyzed: 10")
	assert.Contains(t, msg, "Total Signals: *3*")
	assert.Contains(t, msg, "High Confidence (>90%): 1")
	assert.Contains(t, msg, "Medium Confidence (75-90%): 1")
	assert.Contains(t, msg, "Low Confidence (<75%): 1")
	assert.Contains(t, msg, "Symbols: A.NS, B.NS, C.NS")
	assert.Contains(t, msg, "Errors (rate_limited): 1")
}

func TestFormatSummaryEmpty(t *testing.T) {
	msg := FormatSummary(&pipeline.BatchSummary{Timeframe: "1d"})
	assert.Contains(t, msg, "No signals generated.")
}

// fakeNotifier records deliveries and fails selected recipients.
type fakeNotifier struct {
	name    string
	enabled bool
	failFor map[string]bool
	sent    []string
}

func (f *fakeNotifier) Send(ctx context.Context, recipient, message string) error {
	if f.failFor[recipient] {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

type fakeDirectory struct {
	recipients []string
	err        error
}

func (f *fakeDirectory) ActiveRecipients(ctx context.Context) ([]string, error) {
	return f.recipients, f.err
}

func TestManagerSingleMode(t *testing.T) {
	n := &fakeNotifier{name: "telegram", enabled: true}
	m := NewManager(ModeSingle, "42", nil, zerolog.Nop())
	m.AddNotifier(n)

	delivered, failed, err := m.SendSignal(context.Background(), enrichedSignal())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"42"}, n.sent)
}

func TestManagerBroadcastIsolatesFailures(t *testing.T) {
	n := &fakeNotifier{name: "telegram", enabled: true, failFor: map[string]bool{"2": true}}
	dir := &fakeDirectory{recipients: []string{"1", "2", "3"}}
	m := NewManager(ModeAllActive, "", dir, zerolog.Nop())
	m.AddNotifier(n)

	delivered, failed, err := m.SendSignal(context.Background(), enrichedSignal())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"1", "3"}, n.sent)
}

func TestManagerAllFailed(t *testing.T) {
	n := &fakeNotifier{name: "telegram", enabled: true, failFor: map[string]bool{"1": true}}
	m := NewManager(ModeAllActive, "", &fakeDirectory{recipients: []string{"1"}}, zerolog.Nop())
	m.AddNotifier(n)

	delivered, failed, err := m.SendSignal(context.Background(), enrichedSignal())
	assert.Error(t, err)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, failed)
}

func TestManagerDirectoryError(t *testing.T) {
	m := NewManager(ModeAllActive, "", &fakeDirectory{err: errors.New("db down")}, zerolog.Nop())
	m.AddNotifier(&fakeNotifier{name: "telegram", enabled: true})

	_, _, err := m.SendSignal(context.Background(), enrichedSignal())
	assert.Error(t, err)
}

func TestManagerSkipsDisabledNotifiers(t *testing.T) {
	enabled := &fakeNotifier{name: "telegram", enabled: true}
	disabled := &fakeNotifier{name: "noop", enabled: false}
	m := NewManager(ModeSingle, "7", nil, zerolog.Nop())
	m.AddNotifier(disabled)
	m.AddNotifier(enabled)

	delivered, _, err := m.SendSignal(context.Background(), enrichedSignal())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Empty(t, disabled.sent)
}

func TestManagerSendSummary(t *testing.T) {
	n := &fakeNotifier{name: "telegram", enabled: true}
	m := NewManager(ModeSingle, "42", nil, zerolog.Nop())
	m.AddNotifier(n)

	err := m.SendSummary(context.Background(), &pipeline.BatchSummary{Timeframe: "1d"})
	require.NoError(t, err)
	assert.Len(t, n.sent, 1)
}

func TestTelegramNotifierSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/bottoken123/sendMessage")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "token123", Enabled: true})
	n.baseURL = srv.URL

	require.NoError(t, n.Send(context.Background(), "42", "*hello*"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*hello*", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegramNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "t", Enabled: true})
	n.baseURL = srv.URL
	assert.Error(t, n.Send(context.Background(), "42", "x"))
}

func TestTelegramNotifierDisabledWithoutToken(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{Enabled: true})
	assert.False(t, n.IsEnabled())
	assert.NoError(t, n.Send(context.Background(), "42", "x"))
}
