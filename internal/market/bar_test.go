package market

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkBar(ts time.Time, o, h, l, c float64) Bar {
	return Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: 100, Symbol: "ES", Timeframe: "5m"}
}

func TestValidateRejectsBadBars(t *testing.T) {
	base := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	good := mkBar(base, 5000, 5010, 4995, 5005)

	if err := Validate(good, nil); err != nil {
		t.Errorf("valid bar rejected: %v", err)
	}

	nan := good
	nan.Close = math.NaN()
	if err := Validate(nan, nil); err == nil {
		t.Error("NaN close accepted")
	}

	inverted := good
	inverted.High, inverted.Low = inverted.Low, inverted.High
	if err := Validate(inverted, nil); err == nil {
		t.Error("high below low accepted")
	}

	negative := good
	negative.Open = -1
	if err := Validate(negative, nil); err == nil {
		t.Error("negative open accepted")
	}

	stale := mkBar(base, 5005, 5012, 5000, 5008)
	if err := Validate(stale, &good); err == nil {
		t.Error("non-advancing timestamp accepted")
	}

	next := mkBar(base.Add(5*time.Minute), 5005, 5012, 5000, 5008)
	if err := Validate(next, &good); err != nil {
		t.Errorf("advancing bar rejected: %v", err)
	}
}

func TestReplayFeedCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "es.csv")
	data := "timestamp,open,high,low,close,volume\n" +
		"2024-03-01T14:30:00Z,5000,5010,4995,5005,1200\n" +
		"2024-03-01T14:35:00Z,5005,5015,5002,5012,900\n" +
		"2024-03-01T14:40:00Z,5012,5013,5001,5003,1100\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	feed, err := NewReplayFeed(path, "ES", "5m")
	if err != nil {
		t.Fatalf("NewReplayFeed: %v", err)
	}
	bars, err := feed.GetBars("ES", "5m", 0)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("want 3 bars, got %d", len(bars))
	}
	if bars[1].Close != 5012 {
		t.Errorf("bar 1 close = %v, want 5012", bars[1].Close)
	}

	limited, _ := feed.GetBars("ES", "5m", 2)
	if len(limited) != 2 || limited[0].Close != 5012 {
		t.Errorf("limit=2 returned wrong window: %+v", limited)
	}
}

func TestReplayFeedRejectsUnorderedTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	data := "timestamp,open,high,low,close,volume\n" +
		"2024-03-01T14:35:00Z,5005,5015,5002,5012,900\n" +
		"2024-03-01T14:30:00Z,5000,5010,4995,5005,1200\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReplayFeed(path, "ES", "5m"); err == nil {
		t.Error("unordered CSV accepted")
	}
}
