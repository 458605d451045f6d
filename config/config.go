package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration, loaded from config.json
// with environment variable overrides applied on top.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`

	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Market    MarketConfig    `json:"market"`
	Sync      SyncConfig      `json:"sync"`
	Strategy  StrategyConfig  `json:"strategy"`
	Sentiment SentimentConfig `json:"sentiment"`
	LLM       LLMConfig       `json:"llm"`
	Telegram  TelegramConfig  `json:"telegram"`
	Server    ServerConfig    `json:"server"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

type MarketConfig struct {
	BaseURL        string        `json:"base_url"`
	RequestTimeout time.Duration `json:"request_timeout"`
	PoliteDelay    time.Duration `json:"polite_delay"`
}

type SyncConfig struct {
	Workers    int      `json:"workers"`
	Mode       string   `json:"mode"`
	Timeframes []string `json:"timeframes"`
}

type StrategyConfig struct {
	Timeframe     string  `json:"timeframe"`
	MinConfidence float64 `json:"min_confidence"`
	MinRiskReward float64 `json:"min_risk_reward"`
	Lookback1d    int     `json:"lookback_1d"`
	Lookback75m   int     `json:"lookback_75m"`
	Workers       int     `json:"workers"`
}

type SentimentConfig struct {
	Enabled     bool          `json:"enabled"`
	MinInterval time.Duration `json:"min_interval"`
	NewsTimeout time.Duration `json:"news_timeout"`
}

type LLMConfig struct {
	Provider      string        `json:"provider"`
	OpenRouterKey string        `json:"openrouter_key"`
	GeminiKey     string        `json:"gemini_key"`
	Model         string        `json:"model"`
	Timeout       time.Duration `json:"timeout"`
}

type TelegramConfig struct {
	Enabled       bool   `json:"enabled"`
	BotToken      string `json:"bot_token"`
	ChatID        string `json:"chat_id"`
	BroadcastMode string `json:"broadcast_mode"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

// Load reads config.json when present, then applies environment overrides.
// A missing config file is not an error; defaults plus env vars suffice.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config.json: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogPretty: false,
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "nse_signals",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Market: MarketConfig{
			BaseURL:        "https://query1.finance.yahoo.com",
			RequestTimeout: 15 * time.Second,
			PoliteDelay:    1500 * time.Millisecond,
		},
		Sync: SyncConfig{
			Workers:    5,
			Mode:       "incremental",
			Timeframes: []string{"1d"},
		},
		Strategy: StrategyConfig{
			Timeframe:     "1d",
			MinConfidence: 65,
			MinRiskReward: 1.5,
			Lookback1d:    365,
			Lookback75m:   150,
			Workers:       5,
		},
		Sentiment: SentimentConfig{
			MinInterval: 7 * time.Second,
			NewsTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "auto",
			Timeout:  60 * time.Second,
		},
		Telegram: TelegramConfig{
			BroadcastMode: "single",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnvOrDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", cfg.Database.SSLMode)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)

	cfg.Market.BaseURL = getEnvOrDefault("MARKET_BASE_URL", cfg.Market.BaseURL)
	cfg.Market.PoliteDelay = getEnvDurationOrDefault("MARKET_POLITE_DELAY", cfg.Market.PoliteDelay)

	cfg.Sync.Workers = getEnvIntOrDefault("SYNC_WORKERS", cfg.Sync.Workers)
	cfg.Sync.Mode = getEnvOrDefault("SYNC_MODE", cfg.Sync.Mode)

	cfg.Strategy.Timeframe = getEnvOrDefault("STRATEGY_TIMEFRAME", cfg.Strategy.Timeframe)
	cfg.Strategy.MinConfidence = getEnvFloatOrDefault("MIN_CONFIDENCE", cfg.Strategy.MinConfidence)
	cfg.Strategy.Workers = getEnvIntOrDefault("STRATEGY_WORKERS", cfg.Strategy.Workers)

	cfg.LLM.Provider = getEnvOrDefault("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OpenRouterKey = getEnvOrDefault("OPENROUTER_API_KEY", cfg.LLM.OpenRouterKey)
	cfg.LLM.GeminiKey = getEnvOrDefault("GEMINI_API_KEY", cfg.LLM.GeminiKey)
	cfg.LLM.Model = getEnvOrDefault("LLM_MODEL", cfg.LLM.Model)

	cfg.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)
	cfg.Telegram.BroadcastMode = getEnvOrDefault("TELEGRAM_BROADCAST_MODE", cfg.Telegram.BroadcastMode)
	if cfg.Telegram.BotToken != "" {
		cfg.Telegram.Enabled = true
	}

	cfg.Sentiment.Enabled = getEnvBoolOrDefault("SENTIMENT_ENABLED", cfg.Sentiment.Enabled)

	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", cfg.Server.Port)
}

func (c *Config) validate() error {
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be in [0,100], got %v", c.Strategy.MinConfidence)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync workers must be positive, got %d", c.Sync.Workers)
	}
	switch c.Sync.Mode {
	case "full", "incremental", "force":
	default:
		return fmt.Errorf("unknown sync mode %q", c.Sync.Mode)
	}
	switch c.Telegram.BroadcastMode {
	case "single", "all_active":
	default:
		return fmt.Errorf("unknown broadcast mode %q", c.Telegram.BroadcastMode)
	}
	return nil
}

// DSN builds a pgx connection string from the database section.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
