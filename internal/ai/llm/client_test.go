package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientAutoDetectPrefersOpenRouter(t *testing.T) {
	c, err := NewClient(Config{Provider: ProviderAuto, OpenRouterKey: "or-key", GeminiKey: "g-key"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, c.Provider())
	assert.Equal(t, defaultOpenRouterModel, c.model)
}

func TestNewClientAutoDetectFallsBackToGemini(t *testing.T) {
	c, err := NewClient(Config{Provider: ProviderAuto, GeminiKey: "g-key"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, c.Provider())
	assert.Equal(t, defaultGeminiModel, c.model)
}

func TestNewClientNoCredentials(t *testing.T) {
	_, err := NewClient(Config{Provider: ProviderAuto}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: ProviderOpenRouter}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: Provider("llamacpp"), OpenRouterKey: "k"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestCompleteOpenRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))

		var req openRouterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "SENTIMENT: bullish"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderOpenRouter, OpenRouterKey: "or-key"}, zerolog.Nop())
	require.NoError(t, err)
	c.openRouterURL = srv.URL

	text, err := c.Complete(context.Background(), "be terse", "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "SENTIMENT: bullish", text)
}

func TestCompleteGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": "neutral"}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderGemini, GeminiKey: "g-key"}, zerolog.Nop())
	require.NoError(t, err)
	c.geminiURL = srv.URL + "/%s"

	text, err := c.Complete(context.Background(), "", "analyze")
	require.NoError(t, err)
	assert.Equal(t, "neutral", text)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderOpenRouter, OpenRouterKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	c.openRouterURL = srv.URL

	_, err = c.Complete(context.Background(), "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: ProviderOpenRouter, OpenRouterKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	c.openRouterURL = srv.URL

	_, err = c.Complete(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "plain text", StripCodeFence("plain text"))
	assert.Equal(t, "SENTIMENT: bullish", StripCodeFence("```\nSENTIMENT: bullish\n```"))
	assert.Equal(t, "{\"a\":1}", StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "x", StripCodeFence("  ```\nx\n```  "))
}
