package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is a single OHLCV candle. Bars are owned by the feed; everything
// downstream references them by index into an append-only slice and never
// copies or mutates them.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Symbol    string
	Timeframe string
}

// Body returns the absolute candle body size.
func (b Bar) Body() float64 {
	return math.Abs(b.Close - b.Open)
}

// IsBullish reports whether the bar closed above its open.
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// Validate checks a bar for data errors before it is handed to the engine:
// NaN or non-positive prices, inverted high/low, or a timestamp that does not
// advance past prev. A failed check means "skip this bar", not a crash.
func Validate(b Bar, prev *Bar) error {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("bar %s: non-finite price", b.Timestamp.Format(time.RFC3339))
		}
		if p <= 0 {
			return fmt.Errorf("bar %s: non-positive price %.4f", b.Timestamp.Format(time.RFC3339), p)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s: high %.4f below low %.4f", b.Timestamp.Format(time.RFC3339), b.High, b.Low)
	}
	if prev != nil && !b.Timestamp.After(prev.Timestamp) {
		return fmt.Errorf("bar %s: timestamp not increasing (prev %s)",
			b.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
	}
	return nil
}
