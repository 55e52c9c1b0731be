package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// streamServer serves one websocket connection, pushes the given messages,
// then holds the connection open until the client drops it.
func streamServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		conn.ReadMessage()
	}))
}

func closedCandle(symbol string, ts int64, o, h, l, c float64) string {
	return fmt.Sprintf(`{"symbol":%q,"timeframe":"15m","timestamp":%d,"open":%g,"high":%g,"low":%g,"close":%g,"volume":10,"closed":true}`,
		symbol, ts, o, h, l, c)
}

func collectBars(t *testing.T, s *Stream, want int) []Bar {
	t.Helper()
	deadline := time.After(3 * time.Second)
	var got []Bar
	for len(got) < want {
		select {
		case b, ok := <-s.Bars():
			if !ok {
				t.Fatalf("stream closed after %d bars, want %d", len(got), want)
			}
			got = append(got, b)
		case <-deadline:
			t.Fatalf("timed out with %d bars, want %d", len(got), want)
		}
	}
	return got
}

func TestStreamDeliversInterleavedSymbols(t *testing.T) {
	// Two symbols share the socket and close their candles on the same
	// timestamps; every bar must reach the channel.
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).UnixMilli()
	srv := streamServer(t, []string{
		closedCandle("ES", ts, 100, 101, 99, 100.5),
		closedCandle("NQ", ts, 18000, 18060, 17950, 18020),
		closedCandle("ES", ts+900_000, 100.5, 102, 100, 101.5),
		closedCandle("NQ", ts+900_000, 18020, 18100, 18000, 18080),
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), 1, zerolog.Nop())
	go s.Run(ctx)

	got := collectBars(t, s, 4)
	perSymbol := map[string]int{}
	for _, b := range got {
		perSymbol[b.Symbol]++
	}
	if perSymbol["ES"] != 2 || perSymbol["NQ"] != 2 {
		t.Errorf("bars per symbol = %v, want 2 each", perSymbol)
	}
}

func TestStreamDropsStaleAndOpenCandles(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).UnixMilli()
	srv := streamServer(t, []string{
		closedCandle("ES", ts, 100, 101, 99, 100.5),
		closedCandle("ES", ts, 100, 101, 99, 100.6), // duplicate timestamp
		fmt.Sprintf(`{"symbol":"ES","timeframe":"15m","timestamp":%d,"open":100.5,"high":101,"low":100,"close":100.8,"volume":5,"closed":false}`, ts+900_000),
		closedCandle("NQ", ts, 18000, 18060, 17950, 18020),
		closedCandle("ES", ts+900_000, 100.5, 102, 100, 101.5),
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), 1, zerolog.Nop())
	go s.Run(ctx)

	got := collectBars(t, s, 3)
	if got[0].Symbol != "ES" || got[1].Symbol != "NQ" || got[2].Symbol != "ES" {
		t.Fatalf("unexpected bar order: %s %s %s", got[0].Symbol, got[1].Symbol, got[2].Symbol)
	}
	if !got[2].Timestamp.After(got[0].Timestamp) {
		t.Errorf("second ES bar timestamp %v not after %v", got[2].Timestamp, got[0].Timestamp)
	}
}
