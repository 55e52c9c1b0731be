package alert

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
)

// Manager fans alerts out to every configured sink. A sink failure is
// logged and does not stop delivery to the others.
type Manager struct {
	sinks   []Sink
	enabled bool
	logger  zerolog.Logger
}

// NewManager builds a manager with the sinks the config enables.
func NewManager(cfg config.AlertConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		enabled: cfg.Enabled,
		logger:  logger.With().Str("component", "alerts").Logger(),
	}
	if cfg.Console {
		m.AddSink(NewConsoleSink(logger))
	}
	if cfg.FilePath != "" {
		m.AddSink(NewFileSink(cfg.FilePath))
	}
	if cfg.WebhookURL != "" {
		m.AddSink(withBreaker(NewWebhookSink(cfg.WebhookURL)))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		m.AddSink(withBreaker(NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)))
	}
	return m
}

// AddSink registers another delivery target.
func (m *Manager) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Send delivers the alert to every sink.
func (m *Manager) Send(a Alert) {
	if !m.enabled {
		return
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	for _, sink := range m.sinks {
		if err := sink.Send(a); err != nil {
			m.logger.Error().Err(err).Str("sink", sink.Name()).Msg("Alert delivery failed")
		}
	}
}

// Signal announces a new trade signal.
func (m *Manager) Signal(symbol, direction string, entry, stop, tp1 float64) {
	m.Send(Alert{
		Level:   LevelSignal,
		Title:   fmt.Sprintf("Signal: %s %s", direction, symbol),
		Message: fmt.Sprintf("%s %s @ %.2f, SL %.2f, TP1 %.2f", direction, symbol, entry, stop, tp1),
		Symbol:  symbol,
		Price:   entry,
		Metadata: map[string]any{
			"direction": direction,
			"stop":      stop,
			"tp1":       tp1,
		},
	})
}

// Entry announces a filled entry.
func (m *Manager) Entry(symbol, direction string, price float64, contracts int) {
	m.Send(Alert{
		Level:   LevelEntry,
		Title:   fmt.Sprintf("Entry: %s %s", direction, symbol),
		Message: fmt.Sprintf("%d contracts @ %.2f", contracts, price),
		Symbol:  symbol,
		Price:   price,
		Metadata: map[string]any{
			"direction": direction,
			"contracts": contracts,
		},
	})
}

// Exit announces a full or partial exit.
func (m *Manager) Exit(symbol, reason string, price, pnl float64) {
	m.Send(Alert{
		Level:   LevelExit,
		Title:   fmt.Sprintf("Exit: %s (%s)", symbol, reason),
		Message: fmt.Sprintf("@ %.2f, P&L %.2f", price, pnl),
		Symbol:  symbol,
		Price:   price,
		Metadata: map[string]any{
			"reason": reason,
			"pnl":    pnl,
		},
	})
}

// Error announces an operational failure.
func (m *Manager) Error(title, message string) {
	m.Send(Alert{
		Level:   LevelError,
		Title:   title,
		Message: message,
	})
}
