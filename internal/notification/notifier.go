// Package notification fans formatted signals out to subscriber channels.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier delivers a message to one recipient on one channel.
type Notifier interface {
	Send(ctx context.Context, recipient, message string) error
	Name() string
	IsEnabled() bool
}

const telegramAPIURL = "https://api.telegram.org"

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken string
	Enabled  bool
}

// TelegramNotifier sends Markdown messages through the Bot API.
type TelegramNotifier struct {
	botToken string
	enabled  bool
	baseURL  string
	client   *http.Client
}

func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		enabled:  cfg.Enabled && cfg.BotToken != "",
		baseURL:  telegramAPIURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) IsEnabled() bool { return t.enabled }

func (t *TelegramNotifier) Send(ctx context.Context, chatID, message string) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
