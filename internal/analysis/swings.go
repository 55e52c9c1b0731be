package analysis

import (
	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/market"
)

// SwingDetector finds fractal pivots incrementally. Each call to Update
// scans only bars that have not been examined yet, so per-bar cost stays
// bounded as the series grows.
type SwingDetector struct {
	cfg          config.SwingConfig
	swings       []SwingPoint
	lastSwingIdx int
	nextScanIdx  int
}

// NewSwingDetector creates a detector with the given pivot parameters.
func NewSwingDetector(cfg config.SwingConfig) *SwingDetector {
	return &SwingDetector{cfg: cfg, lastSwingIdx: -cfg.MinSwingDistance}
}

// Update scans newly completed pivot windows and appends any pivots found.
// A pivot at index i requires left_bars bars on each side, so it is only
// detectable once bar i+right_bars exists; that index is recorded as the
// pivot's ConfirmableAt.
//
// A bar is a swing low when its low is the minimum of the full window and
// strictly below every bar on at least one side. Swing highs mirror that. A
// bar yields at most one pivot, lows take precedence.
func (d *SwingDetector) Update(bars []market.Bar) []SwingPoint {
	L, R := d.cfg.LeftBars, d.cfg.RightBars
	if len(bars) < L+R+1 {
		return d.swings
	}

	start := d.nextScanIdx
	if start < L {
		start = L
	}
	for i := start; i <= len(bars)-1-R; i++ {
		if i-d.lastSwingIdx < d.cfg.MinSwingDistance {
			continue
		}
		if p, ok := d.pivotAt(bars, i); ok {
			d.swings = append(d.swings, p)
			d.lastSwingIdx = i
		}
	}
	d.nextScanIdx = len(bars) - R
	return d.swings
}

func (d *SwingDetector) pivotAt(bars []market.Bar, i int) (SwingPoint, bool) {
	L, R := d.cfg.LeftBars, d.cfg.RightBars
	bar := bars[i]

	isWindowMin := true
	for j := i - L; j <= i+R; j++ {
		if bars[j].Low < bar.Low {
			isWindowMin = false
			break
		}
	}
	if isWindowMin && (strictSide(bars, i, i-L, i, bar.Low, true) || strictSide(bars, i, i+1, i+R+1, bar.Low, true)) {
		return SwingPoint{
			BarIndex:      i,
			Timestamp:     bar.Timestamp,
			Price:         bar.Low,
			Type:          SwingLow,
			ConfirmableAt: i + R,
		}, true
	}

	isWindowMax := true
	for j := i - L; j <= i+R; j++ {
		if bars[j].High > bar.High {
			isWindowMax = false
			break
		}
	}
	if isWindowMax && (strictSide(bars, i, i-L, i, bar.High, false) || strictSide(bars, i, i+1, i+R+1, bar.High, false)) {
		return SwingPoint{
			BarIndex:      i,
			Timestamp:     bar.Timestamp,
			Price:         bar.High,
			Type:          SwingHigh,
			ConfirmableAt: i + R,
		}, true
	}

	return SwingPoint{}, false
}

// strictSide reports whether price is strictly beyond every bar in [from,
// to). For lows "beyond" means below each bar's low, for highs above each
// bar's high. It rejects flat shelves that tie the pivot price.
func strictSide(bars []market.Bar, pivot, from, to int, price float64, low bool) bool {
	for j := from; j < to; j++ {
		if j == pivot {
			continue
		}
		if low && price >= bars[j].Low {
			return false
		}
		if !low && price <= bars[j].High {
			return false
		}
	}
	return true
}

// Swings returns all pivots detected so far, oldest first.
func (d *SwingDetector) Swings() []SwingPoint {
	return d.swings
}

// RecentSwings returns up to max pivots of the given type usable at barIndex,
// most recent first. Pivots whose right-hand window has not closed yet are
// excluded.
func (d *SwingDetector) RecentSwings(t SwingType, barIndex, max int) []SwingPoint {
	var out []SwingPoint
	for i := len(d.swings) - 1; i >= 0 && len(out) < max; i-- {
		s := d.swings[i]
		if s.Type == t && s.ConfirmableAt <= barIndex {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops all state so the detector can be reused on a fresh series.
func (d *SwingDetector) Reset() {
	d.swings = nil
	d.lastSwingIdx = -d.cfg.MinSwingDistance
	d.nextScanIdx = 0
}
