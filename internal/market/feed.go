package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Feed supplies historical candles for warmup and backtesting.
type Feed interface {
	GetBars(symbol, interval string, limit int) ([]Bar, error)
}

// ReplayFeed serves bars loaded from a CSV file. It is used by the backtest
// engine and by the paper trader's replay mode.
type ReplayFeed struct {
	bars []Bar
}

// NewReplayFeed loads a CSV file with header
// timestamp,open,high,low,close,volume. Timestamps are RFC3339 or unix
// seconds. Invalid rows are rejected rather than skipped so a bad data file
// fails loudly.
func NewReplayFeed(path, symbol, timeframe string) (*ReplayFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []Bar
	var prev *Bar
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read replay file %s: %w", path, err)
		}
		line++
		if line == 1 && rec[0] == "timestamp" {
			continue
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("%s line %d: want 6 fields, got %d", path, line, len(rec))
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d field %d: %w", path, line, i+1, err)
			}
		}
		b := Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
			Symbol:    symbol,
			Timeframe: timeframe,
		}
		if err := Validate(b, prev); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bars = append(bars, b)
		prev = &bars[len(bars)-1]
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no bars", path)
	}
	return &ReplayFeed{bars: bars}, nil
}

// GetBars returns up to limit most recent bars. Symbol and interval are
// checked against the loaded data only when the data carries them.
func (f *ReplayFeed) GetBars(symbol, interval string, limit int) ([]Bar, error) {
	bars := f.bars
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// All returns every loaded bar in order.
func (f *ReplayFeed) All() []Bar {
	out := make([]Bar, len(f.bars))
	copy(out, f.bars)
	return out
}

func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Millisecond epochs show up in exported data too.
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}
