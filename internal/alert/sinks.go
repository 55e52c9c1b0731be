package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleSink writes alerts through the process logger.
type ConsoleSink struct {
	logger zerolog.Logger
}

// NewConsoleSink creates a sink that logs alerts.
func NewConsoleSink(logger zerolog.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger.With().Str("component", "alert_console").Logger()}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(a Alert) error {
	ev := c.logger.Info()
	if a.Level == LevelError {
		ev = c.logger.Error()
	} else if a.Level == LevelWarning {
		ev = c.logger.Warn()
	}
	ev.Str("level", string(a.Level)).
		Str("title", a.Title).
		Str("symbol", a.Symbol).
		Float64("price", a.Price).
		Msg(a.Message)
	return nil
}

// FileSink appends alerts as JSON lines.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink appending to the given file.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Send(a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open alert file: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

// WebhookSink posts alerts to a Discord-compatible webhook as embeds.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to the given webhook URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(a Alert) error {
	color := 0x3498DB
	switch a.Level {
	case LevelEntry, LevelSignal:
		color = 0x2ECC71
	case LevelExit:
		color = 0xF1C40F
	case LevelWarning:
		color = 0xE67E22
	case LevelError:
		color = 0xE74C3C
	}

	embed := map[string]any{
		"title":       a.Title,
		"description": a.Message,
		"color":       color,
		"timestamp":   a.Timestamp.Format(time.RFC3339),
	}
	if a.Symbol != "" {
		fields := []map[string]any{
			{"name": "Symbol", "value": a.Symbol, "inline": true},
		}
		if a.Price > 0 {
			fields = append(fields, map[string]any{
				"name": "Price", "value": fmt.Sprintf("%.2f", a.Price), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TelegramSink sends alerts as Telegram bot messages.
type TelegramSink struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramSink creates a sink for the given bot and chat.
func NewTelegramSink(botToken, chatID string) *TelegramSink {
	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Send(a Alert) error {
	text := fmt.Sprintf("*%s*\n\n%s", a.Title, a.Message)
	payload, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
