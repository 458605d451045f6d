// Package llm wraps the completion providers behind a single client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nse-signal-bot/internal/metrics"
)

// Provider identifies the completion backend.
type Provider string

const (
	ProviderAuto       Provider = "auto"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGemini     Provider = "gemini"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	geminiURLFmt  = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

	defaultOpenRouterModel = "google/gemma-3-27b-it:free"
	defaultGeminiModel     = "gemini-2.0-flash-exp"
)

// Config holds provider selection and credentials.
type Config struct {
	Provider      Provider
	OpenRouterKey string
	GeminiKey     string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// Client is a single-provider completion client. Provider auto-detection
// prefers OpenRouter when its key is configured.
type Client struct {
	provider    Provider
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	log         zerolog.Logger

	openRouterURL string
	geminiURL     string
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	c := &Client{
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		log:           log,
		openRouterURL: openRouterURL,
		geminiURL:     geminiURLFmt,
	}

	switch cfg.Provider {
	case ProviderOpenRouter:
		if cfg.OpenRouterKey == "" {
			return nil, fmt.Errorf("openrouter provider selected but no API key configured")
		}
		c.provider, c.apiKey = ProviderOpenRouter, cfg.OpenRouterKey
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini provider selected but no API key configured")
		}
		c.provider, c.apiKey = ProviderGemini, cfg.GeminiKey
	case ProviderAuto, "":
		switch {
		case cfg.OpenRouterKey != "":
			c.provider, c.apiKey = ProviderOpenRouter, cfg.OpenRouterKey
		case cfg.GeminiKey != "":
			c.provider, c.apiKey = ProviderGemini, cfg.GeminiKey
		default:
			return nil, fmt.Errorf("no LLM provider configured")
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	c.model = cfg.Model
	if c.model == "" {
		if c.provider == ProviderOpenRouter {
			c.model = defaultOpenRouterModel
		} else {
			c.model = defaultGeminiModel
		}
	}
	log.Info().Str("provider", string(c.provider)).Str("model", c.model).Msg("LLM client initialized")
	return c, nil
}

// Provider returns the resolved backend.
func (c *Client) Provider() Provider { return c.provider }

// Complete sends a completion request and returns the raw response text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var (
		text string
		err  error
	)
	switch c.provider {
	case ProviderOpenRouter:
		text, err = c.completeOpenRouter(ctx, systemPrompt, userPrompt)
	case ProviderGemini:
		text, err = c.completeGemini(ctx, systemPrompt, userPrompt)
	default:
		return "", fmt.Errorf("unsupported provider: %s", c.provider)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.LLMRequests.WithLabelValues(string(c.provider), result).Inc()
	return text, err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) completeOpenRouter(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(openRouterRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openRouterURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	respBody, err := c.send(httpReq)
	if err != nil {
		return "", err
	}

	var resp openRouterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenRouter")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) completeGemini(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt := userPrompt
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + userPrompt
	}

	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(c.geminiURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	respBody, err := c.send(httpReq)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("provider rate limited (status 429)")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// StripCodeFence removes a surrounding markdown code block, which some
// models wrap structured replies in despite instructions.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
