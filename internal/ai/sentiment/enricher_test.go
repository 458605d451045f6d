package sentiment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/strategy"
)

type fakeFeed struct {
	headlines []Headline
	err       error
	lastLook  time.Duration
}

func (f *fakeFeed) RecentHeadlines(ctx context.Context, company string, lookback time.Duration, limit int) ([]Headline, error) {
	f.lastLook = lookback
	return f.headlines, f.err
}

type fakeCompleter struct {
	sentimentReply string
	technicalReply string
	err            error
	calls          int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if strings.Contains(userPrompt, "technical analyst") {
		return f.technicalReply, nil
	}
	return f.sentimentReply, nil
}

type fakeCache struct {
	data map[string]string
	hits int
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := f.data[key]
	if ok {
		f.hits++
	}
	return v, ok
}

func (f *fakeCache) Set(ctx context.Context, key, value string) {
	if f.data == nil {
		f.data = map[string]string{}
	}
	f.data[key] = value
}

func someHeadlines() []Headline {
	return []Headline{
		{Title: "Reliance wins new contract", Publisher: "ET", PublishedAt: time.Now()},
		{Title: "Refining margins improve", Publisher: "Mint", PublishedAt: time.Now()},
	}
}

func baseSignal() *strategy.Signal {
	return &strategy.Signal{
		Symbol:     "RELIANCE.NS",
		Type:       strategy.SignalBuy,
		Confidence: 70,
		EntryPrice: 100,
		StopLoss:   98,
		Target1:    103,
	}
}

func newTestEnricher(feed NewsFeed, completer Completer, cache ResponseCache) *Enricher {
	return NewEnricher(feed, completer, cache, nil, time.Millisecond, zerolog.Nop())
}

func TestEnrichSignalAdjustsConfidence(t *testing.T) {
	completer := &fakeCompleter{
		sentimentReply: "SENTIMENT: bullish\nCONFIDENCE: 80\nIMPACT: 12\nSUMMARY: upbeat coverage",
		technicalReply: "PREDICTION: bullish\nRECOMMENDATION: buy\nREASONING: clean uptrend",
	}
	e := newTestEnricher(&fakeFeed{headlines: someHeadlines()}, completer, nil)

	sig := baseSignal()
	out, err := e.EnrichSignal(context.Background(), sig, market.Timeframe1d)
	require.NoError(t, err)

	assert.Equal(t, 82.0, out.Confidence)
	require.NotNil(t, out.OriginalConfidence)
	assert.Equal(t, 70.0, *out.OriginalConfidence)
	require.NotNil(t, out.Sentiment)
	assert.Equal(t, "bullish", out.Sentiment.Label)
	assert.Equal(t, 12.0, out.Sentiment.Impact)

	// The input signal is never mutated.
	assert.Equal(t, 70.0, sig.Confidence)
	assert.Nil(t, sig.Sentiment)
	assert.Nil(t, sig.OriginalConfidence)
}

func TestEnrichSignalAdjustmentIsBounded(t *testing.T) {
	completer := &fakeCompleter{
		sentimentReply: "SENTIMENT: bullish\nCONFIDENCE: 99\nIMPACT: 9999\nSUMMARY: euphoric",
		technicalReply: "PREDICTION: bullish\nRECOMMENDATION: buy",
	}
	e := newTestEnricher(&fakeFeed{headlines: someHeadlines()}, completer, nil)

	sig := baseSignal()
	sig.Confidence = 95
	out, err := e.EnrichSignal(context.Background(), sig, market.Timeframe1d)
	require.NoError(t, err)

	assert.LessOrEqual(t, out.Confidence-*out.OriginalConfidence, 20.0)
	assert.LessOrEqual(t, out.Confidence, 100.0)
}

func TestEnrichSignalNoNewsIsNeutral(t *testing.T) {
	completer := &fakeCompleter{technicalReply: "PREDICTION: neutral"}
	e := newTestEnricher(&fakeFeed{}, completer, nil)

	out, err := e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	require.NoError(t, err)

	require.NotNil(t, out.Sentiment)
	assert.Equal(t, "neutral", out.Sentiment.Label)
	assert.Zero(t, out.Sentiment.Impact)
	assert.Equal(t, "No recent news", out.Sentiment.Summary)
	assert.Equal(t, 70.0, out.Confidence)
	// Only the technical call reached the model.
	assert.Equal(t, 1, completer.calls)
}

func TestEnrichSignalTimeframeLookback(t *testing.T) {
	feed := &fakeFeed{}
	e := newTestEnricher(feed, &fakeCompleter{technicalReply: "x"}, nil)

	_, err := e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	require.NoError(t, err)
	assert.Equal(t, 3*24*time.Hour, feed.lastLook)

	_, err = e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe75m)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, feed.lastLook)
}

func TestEnrichSignalTechnicalFailureKeepsSentiment(t *testing.T) {
	calls := 0
	completer := completerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		if strings.Contains(user, "technical analyst") {
			return "", errors.New("model overloaded")
		}
		return "SENTIMENT: bearish\nCONFIDENCE: 60\nIMPACT: -5\nSUMMARY: weak demand", nil
	})
	e := newTestEnricher(&fakeFeed{headlines: someHeadlines()}, completer, nil)

	out, err := e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	require.NoError(t, err)
	assert.Equal(t, 65.0, out.Confidence)
	assert.Nil(t, out.TechnicalAnalysis)
	assert.Empty(t, out.Consensus)
}

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestEnrichSignalSentimentFailureReturnsError(t *testing.T) {
	e := newTestEnricher(&fakeFeed{headlines: someHeadlines()},
		&fakeCompleter{err: errors.New("rate limited")}, nil)

	_, err := e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	assert.Error(t, err)
}

func TestEnrichSignalUsesCache(t *testing.T) {
	completer := &fakeCompleter{
		sentimentReply: "SENTIMENT: bullish\nCONFIDENCE: 80\nIMPACT: 10\nSUMMARY: ok",
		technicalReply: "PREDICTION: bullish\nRECOMMENDATION: buy",
	}
	cache := &fakeCache{}
	e := newTestEnricher(&fakeFeed{headlines: someHeadlines()}, completer, cache)

	_, err := e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	require.NoError(t, err)
	firstCalls := completer.calls

	_, err = e.EnrichSignal(context.Background(), baseSignal(), market.Timeframe1d)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, completer.calls)
	assert.GreaterOrEqual(t, cache.hits, 2)
}

func TestDeriveConsensus(t *testing.T) {
	buy := strategy.SignalBuy
	assert.Equal(t, ConsensusStrong, deriveConsensus(buy, &strategy.TechnicalAnalysis{Prediction: "bullish", Recommendation: "buy"}))
	assert.Equal(t, ConsensusModerate, deriveConsensus(buy, &strategy.TechnicalAnalysis{Prediction: "bullish", Recommendation: "hold"}))
	assert.Equal(t, ConsensusConflict, deriveConsensus(buy, &strategy.TechnicalAnalysis{Prediction: "bearish", Recommendation: "avoid"}))
	assert.Empty(t, deriveConsensus(strategy.SignalNone, &strategy.TechnicalAnalysis{Prediction: "bullish", Recommendation: "buy"}))
}

func TestWaitTurnSpacesCalls(t *testing.T) {
	e := NewEnricher(&fakeFeed{}, &fakeCompleter{}, nil, nil, 30*time.Millisecond, zerolog.Nop())

	start := time.Now()
	require.NoError(t, e.waitTurn(context.Background()))
	require.NoError(t, e.waitTurn(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitTurnHonorsCancellation(t *testing.T) {
	e := NewEnricher(&fakeFeed{}, &fakeCompleter{}, nil, nil, time.Hour, zerolog.Nop())
	require.NoError(t, e.waitTurn(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.waitTurn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
