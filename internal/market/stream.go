package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// streamBar is the wire format pushed by the bar websocket. Only closed
// candles are forwarded downstream.
type streamBar struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Closed    bool    `json:"closed"`
}

// Stream maintains a websocket subscription to a live bar source and
// delivers closed candles on a channel. It reconnects with a fixed delay
// until the context is cancelled.
type Stream struct {
	url          string
	reconnectSec int
	logger       zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	barsCh chan Bar
}

// NewStream creates a stream for the given websocket URL. Call Run to start
// it and consume Bars().
func NewStream(url string, reconnectSec int, logger zerolog.Logger) *Stream {
	if reconnectSec <= 0 {
		reconnectSec = 5
	}
	return &Stream{
		url:          url,
		reconnectSec: reconnectSec,
		logger:       logger.With().Str("component", "market_stream").Logger(),
		barsCh:       make(chan Bar, 256),
	}
}

// Bars returns the channel of closed candles. Closed when Run exits.
func (s *Stream) Bars() <-chan Bar {
	return s.barsCh
}

// Run connects and pumps bars until ctx is cancelled. Connection errors are
// logged and followed by a reconnect attempt.
func (s *Stream) Run(ctx context.Context) {
	defer close(s.barsCh)
	for {
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).
				Int("retry_secs", s.reconnectSec).
				Msg("Stream disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(s.reconnectSec) * time.Second):
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	s.logger.Info().Str("url", s.url).Msg("Stream connected")

	// Close the socket when the context goes so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// One socket can carry several symbols on the same interval, so the
	// monotonic-timestamp check runs per symbol.
	prev := make(map[string]*Bar)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var sb streamBar
		if err := json.Unmarshal(msg, &sb); err != nil {
			s.logger.Warn().Err(err).Msg("Dropping malformed stream message")
			continue
		}
		if !sb.Closed {
			continue
		}
		b := Bar{
			Timestamp: time.UnixMilli(sb.Timestamp).UTC(),
			Open:      sb.Open,
			High:      sb.High,
			Low:       sb.Low,
			Close:     sb.Close,
			Volume:    sb.Volume,
			Symbol:    sb.Symbol,
			Timeframe: sb.Timeframe,
		}
		if err := Validate(b, prev[b.Symbol]); err != nil {
			s.logger.Warn().Err(err).Str("symbol", b.Symbol).Msg("Skipping invalid bar")
			continue
		}
		prevCopy := b
		prev[b.Symbol] = &prevCopy
		select {
		case s.barsCh <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
