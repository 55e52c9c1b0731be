package alert

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
)

// capture records what reaches a sink.
type capture struct {
	alerts []Alert
	fail   error
}

func (c *capture) Name() string { return "capture" }

func (c *capture) Send(a Alert) error {
	c.alerts = append(c.alerts, a)
	return c.fail
}

func TestManagerFansOutToAllSinks(t *testing.T) {
	m := NewManager(config.AlertConfig{Enabled: true}, zerolog.Nop())
	first, second := &capture{}, &capture{}
	m.AddSink(first)
	m.AddSink(second)

	m.Signal("ES", "LONG", 5000, 4990, 5010)

	if len(first.alerts) != 1 || len(second.alerts) != 1 {
		t.Fatalf("deliveries = %d/%d, want 1/1", len(first.alerts), len(second.alerts))
	}
	got := first.alerts[0]
	if got.Level != LevelSignal || got.Symbol != "ES" || got.Price != 5000 {
		t.Errorf("alert = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestDisabledManagerSendsNothing(t *testing.T) {
	m := NewManager(config.AlertConfig{Enabled: false}, zerolog.Nop())
	sink := &capture{}
	m.AddSink(sink)

	m.Error("oops", "details")

	if len(sink.alerts) != 0 {
		t.Errorf("deliveries = %d, want 0", len(sink.alerts))
	}
}

func TestSinkFailureDoesNotStopOthers(t *testing.T) {
	m := NewManager(config.AlertConfig{Enabled: true}, zerolog.Nop())
	broken := &capture{fail: os.ErrClosed}
	healthy := &capture{}
	m.AddSink(broken)
	m.AddSink(healthy)

	m.Exit("ES", "stop_loss", 4990, -500)

	if len(healthy.alerts) != 1 {
		t.Fatalf("healthy sink deliveries = %d, want 1", len(healthy.alerts))
	}
}

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink := NewFileSink(path)

	for _, title := range []string{"first", "second"} {
		if err := sink.Send(Alert{Level: LevelInfo, Title: title, Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var lines int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var a Alert
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestWebhookSinkPostsEmbed(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Send(Alert{Level: LevelEntry, Title: "Entry: ES", Message: "2 @ 5000", Symbol: "ES", Price: 5000}); err != nil {
		t.Fatal(err)
	}

	embeds, ok := body["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("embeds = %v", body["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "Entry: ES" {
		t.Errorf("title = %v", embed["title"])
	}
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Send(Alert{Title: "x"}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
