package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"nse-signal-bot/config"
)

func TestKeyIsStableAndDigested(t *testing.T) {
	k1 := Key("reliance.ns", "sentiment", "prompt body")
	k2 := Key("RELIANCE.NS", "sentiment", "prompt body")
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "llm:RELIANCE.NS:sentiment:")

	k3 := Key("RELIANCE.NS", "sentiment", "different prompt")
	assert.NotEqual(t, k1, k3)

	// Keys stay short regardless of prompt size.
	long := Key("A.NS", "technical", string(make([]byte, 64<<10)))
	assert.Less(t, len(long), 64)
}

func TestDisabledCacheDegradesGracefully(t *testing.T) {
	rc := NewResponseCache(config.RedisConfig{Enabled: false}, time.Minute, zerolog.Nop())

	ctx := context.Background()
	rc.Set(ctx, "llm:A.NS:sentiment:abc", "value")
	_, ok := rc.Get(ctx, "llm:A.NS:sentiment:abc")
	assert.False(t, ok)
	assert.NoError(t, rc.Close())
}

func TestUnreachableRedisDegradesGracefully(t *testing.T) {
	rc := NewResponseCache(config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}, time.Minute, zerolog.Nop())

	_, ok := rc.Get(context.Background(), "k")
	assert.False(t, ok)
}
