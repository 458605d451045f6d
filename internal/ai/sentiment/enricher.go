// Package sentiment enriches planned signals with news sentiment and LLM
// technical commentary.
package sentiment

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"nse-signal-bot/internal/ai/llm"
	"nse-signal-bot/internal/cache"
	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/strategy"
)

// Consensus buckets derived from the strategy verdict and the model's
// prediction and recommendation.
const (
	ConsensusStrong   = "STRONG_CONSENSUS"
	ConsensusModerate = "MODERATE"
	ConsensusConflict = "CONFLICT"
)

// DefaultMinInterval spaces LLM calls within a batch to stay under the
// free-tier rate limits.
const DefaultMinInterval = 7 * time.Second

const maxHeadlines = 10

// Completer is the LLM capability the enricher needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ResponseCache stores raw LLM replies keyed by prompt digest.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// CandleSource supplies the tail window embedded in the technical prompt.
type CandleSource interface {
	Tail(ctx context.Context, symbol string, tf market.Timeframe, n int) ([]market.Candle, error)
}

// Enricher attaches sentiment and technical commentary to signals. It
// never mutates its input; every enrichment works on a deep copy.
type Enricher struct {
	news        NewsFeed
	llm         Completer
	cache       ResponseCache
	candles     CandleSource
	minInterval time.Duration
	log         zerolog.Logger

	mu       gosync.Mutex
	lastCall time.Time
	now      func() time.Time
}

func NewEnricher(news NewsFeed, completer Completer, cache ResponseCache, candles CandleSource, minInterval time.Duration, log zerolog.Logger) *Enricher {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Enricher{
		news:        news,
		llm:         completer,
		cache:       cache,
		candles:     candles,
		minInterval: minInterval,
		log:         log,
		now:         time.Now,
	}
}

// EnrichSignal returns an enriched copy of sig. The sentiment impact
// adjusts confidence within [0,100]; the pre-adjustment value is kept as
// OriginalConfidence. A failed technical sub-enrichment degrades to a
// sentiment-only copy.
func (e *Enricher) EnrichSignal(ctx context.Context, sig *strategy.Signal, tf market.Timeframe) (*strategy.Signal, error) {
	out := sig.Clone()
	log := e.log.With().Str("symbol", sig.Symbol).Logger()

	sent, err := e.newsSentiment(ctx, sig.Symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("error analyzing sentiment for %s: %w", sig.Symbol, err)
	}

	original := out.Confidence
	out.OriginalConfidence = &original
	out.Sentiment = sent
	out.Confidence = clampFloat(original+sent.Impact, 0, 100)
	log.Info().Float64("from", original).Float64("to", out.Confidence).Float64("impact", sent.Impact).Msg("confidence adjusted by sentiment")

	ta, err := e.technicalAnalysis(ctx, out, tf)
	if err != nil {
		log.Warn().Err(err).Msg("technical commentary failed, keeping sentiment-only enrichment")
		return out, nil
	}
	out.TechnicalAnalysis = ta
	out.Consensus = deriveConsensus(out.Type, ta)
	return out, nil
}

// newsSentiment fetches headlines and asks the model for a verdict. No
// recent news short-circuits to a zero-impact neutral.
func (e *Enricher) newsSentiment(ctx context.Context, symbol string, tf market.Timeframe) (*strategy.Sentiment, error) {
	lookback := 3 * 24 * time.Hour
	if tf == market.Timeframe75m {
		lookback = 24 * time.Hour
	}

	headlines, err := e.news.RecentHeadlines(ctx, CompanyName(symbol), lookback, maxHeadlines)
	if err != nil {
		e.log.Warn().Str("symbol", symbol).Err(err).Msg("headline fetch failed")
		headlines = nil
	}
	if len(headlines) == 0 {
		return &strategy.Sentiment{Label: "neutral", Summary: "No recent news"}, nil
	}

	prompt := sentimentPrompt(symbol, headlines)
	text, err := e.complete(ctx, symbol, "sentiment", prompt)
	if err != nil {
		return nil, err
	}
	return parseSentiment(llm.StripCodeFence(text)), nil
}

// technicalAnalysis builds the commentary prompt around the candle tail.
func (e *Enricher) technicalAnalysis(ctx context.Context, sig *strategy.Signal, tf market.Timeframe) (*strategy.TechnicalAnalysis, error) {
	var candles []market.Candle
	if e.candles != nil {
		var err error
		candles, err = e.candles.Tail(ctx, sig.Symbol, tf, 30)
		if err != nil {
			e.log.Warn().Str("symbol", sig.Symbol).Err(err).Msg("candle tail unavailable for prompt")
			candles = nil
		}
	}

	prompt := technicalPrompt(sig, candles)
	text, err := e.complete(ctx, sig.Symbol, "technical", prompt)
	if err != nil {
		return nil, err
	}
	return parseTechnicalAnalysis(llm.StripCodeFence(text)), nil
}

// complete consults the cache, then the model under the batch rate limit.
func (e *Enricher) complete(ctx context.Context, symbol, tag, prompt string) (string, error) {
	key := cache.Key(symbol, tag, prompt)
	if e.cache != nil {
		if text, ok := e.cache.Get(ctx, key); ok {
			e.log.Debug().Str("symbol", symbol).Str("tag", tag).Msg("LLM cache hit")
			return text, nil
		}
	}

	if err := e.waitTurn(ctx); err != nil {
		return "", err
	}
	text, err := e.llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	if e.cache != nil {
		e.cache.Set(ctx, key, text)
	}
	return text, nil
}

// waitTurn blocks until minInterval has elapsed since the previous call.
func (e *Enricher) waitTurn(ctx context.Context) error {
	e.mu.Lock()
	now := e.now()
	wait := e.minInterval - now.Sub(e.lastCall)
	if wait < 0 {
		wait = 0
	}
	e.lastCall = now.Add(wait)
	e.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deriveConsensus compares the strategy verdict with the model's view.
func deriveConsensus(sigType strategy.SignalType, ta *strategy.TechnicalAnalysis) string {
	strategyBuy := sigType == strategy.SignalBuy
	aiBullish := strings.EqualFold(ta.Prediction, "bullish")
	aiBuy := strings.EqualFold(ta.Recommendation, "buy")

	switch {
	case strategyBuy && aiBullish && aiBuy:
		return ConsensusStrong
	case strategyBuy && aiBullish:
		return ConsensusModerate
	case strategyBuy:
		return ConsensusConflict
	}
	return ""
}
