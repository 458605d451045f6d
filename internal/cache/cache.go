// Package cache provides Redis-backed caching for LLM responses with
// graceful degradation. When Redis is unavailable every lookup is a miss
// and writes are dropped; callers never see an error.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nse-signal-bot/config"
)

// DefaultResponseTTL bounds how long a cached LLM reply stays usable.
// Headlines move fast; half an hour keeps re-runs cheap without serving
// stale sentiment.
const DefaultResponseTTL = 30 * time.Minute

// ResponseCache stores LLM response text keyed by prompt digest.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewResponseCache connects to Redis. A disabled config or a failed ping
// yields a degraded cache that misses on every lookup.
func NewResponseCache(cfg config.RedisConfig, ttl time.Duration, log zerolog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	rc := &ResponseCache{ttl: ttl, log: log}
	if !cfg.Enabled {
		return rc
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, LLM cache degraded to pass-through")
		return rc
	}

	rc.client = client
	log.Info().Str("addr", cfg.Addr).Msg("LLM response cache connected")
	return rc
}

// Key builds a stable cache key from the symbol, a tag and the prompt
// text. The prompt is digested so candle data in it never bloats the key.
func Key(symbol, tag, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("llm:%s:%s:%s", strings.ToUpper(symbol), tag, hex.EncodeToString(sum[:8]))
}

// Get returns the cached response and whether it was present.
func (rc *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	if rc.client == nil {
		return "", false
	}
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		rc.log.Debug().Err(err).Str("key", key).Msg("cache read failed")
		return "", false
	}
	return val, true
}

// Set stores a response. Failures are logged and swallowed.
func (rc *ResponseCache) Set(ctx context.Context, key, value string) {
	if rc.client == nil {
		return
	}
	if err := rc.client.Set(ctx, key, value, rc.ttl).Err(); err != nil {
		rc.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Close releases the Redis connection.
func (rc *ResponseCache) Close() error {
	if rc.client == nil {
		return nil
	}
	return rc.client.Close()
}
