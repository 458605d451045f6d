package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nse-signal-bot/config"
	"nse-signal-bot/internal/ai/llm"
	"nse-signal-bot/internal/ai/sentiment"
	"nse-signal-bot/internal/cache"
	"nse-signal-bot/internal/database"
	"nse-signal-bot/internal/logging"
	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/notification"
	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
	candlesync "nse-signal-bot/internal/sync"
)

// app wires the full stack from config. Every command builds one.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	db            *database.DB
	candles       *database.CandleRepository
	fundamentals  *database.FundamentalsRepository
	instruments   *database.InstrumentRepository
	subscribers   *database.SubscriberRepository
	market        *market.Client
	scheduler     *candlesync.Scheduler
	deriver       *candlesync.Deriver
	pipeline      *pipeline.Pipeline
	responseCache *cache.ResponseCache
}

// newApp loads configuration, connects the backing stores and assembles
// the pipeline. The overrides hook lets commands apply flag values on top
// of the loaded config before anything is constructed.
func newApp(ctx context.Context, overrides func(*config.Config)) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}

	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	log := logging.Component("signalbot")

	db, err := database.Connect(ctx, cfg.Database.DSN(), logging.Component("database"))
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		candles:      database.NewCandleRepository(db),
		fundamentals: database.NewFundamentalsRepository(db),
		instruments:  database.NewInstrumentRepository(db),
		subscribers:  database.NewSubscriberRepository(db),
	}

	a.market = market.NewClient(market.ClientConfig{
		BaseURL:        cfg.Market.BaseURL,
		RequestTimeout: cfg.Market.RequestTimeout,
		PoliteDelay:    cfg.Market.PoliteDelay,
	}, logging.Component("market"))

	a.scheduler = candlesync.NewScheduler(a.market, a.candles, a.fundamentals,
		cfg.Sync.Workers, logging.Component("sync"))
	a.deriver = candlesync.NewDeriver(a.candles, logging.Component("sync"))

	strat := strategy.NewScoredStrategy(cfg.Strategy.MinConfidence)
	planner := strategy.NewPlanner(cfg.Strategy.MinRiskReward)

	var enricher pipeline.Enricher
	if cfg.Sentiment.Enabled {
		if e := a.buildEnricher(); e != nil {
			enricher = e
		}
	}

	var sink pipeline.Sink
	if cfg.Telegram.Enabled {
		manager := notification.NewManager(cfg.Telegram.BroadcastMode, cfg.Telegram.ChatID,
			a.subscribers, logging.Component("notification"))
		manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			Enabled:  cfg.Telegram.Enabled,
		}))
		sink = manager
	}

	a.pipeline = pipeline.New(a.candles, a.fundamentals, strat, planner,
		enricher, sink, cfg.Strategy.Workers, logging.Component("pipeline"))

	return a, nil
}

// buildEnricher assembles the sentiment stack. Missing LLM credentials
// disable enrichment instead of failing startup.
func (a *app) buildEnricher() *sentiment.Enricher {
	llmClient, err := llm.NewClient(llm.Config{
		Provider:      llm.Provider(a.cfg.LLM.Provider),
		OpenRouterKey: a.cfg.LLM.OpenRouterKey,
		GeminiKey:     a.cfg.LLM.GeminiKey,
		Model:         a.cfg.LLM.Model,
		Timeout:       a.cfg.LLM.Timeout,
	}, logging.Component("llm"))
	if err != nil {
		a.log.Warn().Err(err).Msg("sentiment enrichment disabled")
		return nil
	}

	a.responseCache = cache.NewResponseCache(a.cfg.Redis, cache.DefaultResponseTTL,
		logging.Component("cache"))
	news := sentiment.NewGoogleNewsFeed(a.cfg.Sentiment.NewsTimeout)

	return sentiment.NewEnricher(news, llmClient, a.responseCache, a.candles,
		a.cfg.Sentiment.MinInterval, logging.Component("sentiment"))
}

func (a *app) close() {
	if a.responseCache != nil {
		a.responseCache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// universe resolves the symbols to operate on: explicit flags win, then
// the active instrument list.
func (a *app) universe(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	instruments, err := a.instruments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active instruments: %w", err)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("no active instruments; run 'signalbot bootstrap' first")
	}
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		symbols = append(symbols, inst.Symbol)
	}
	return symbols, nil
}
