package analysis

import (
	"sort"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/market"
)

// MSSDetector finds the structure shift that follows a confirmed sweep: the
// break of the lower-high pivot for longs, or the higher-low pivot for
// shorts.
type MSSDetector struct {
	cfg config.MSSConfig
}

// NewMSSDetector creates a detector with the given parameters.
func NewMSSDetector(cfg config.MSSConfig) *MSSDetector {
	return &MSSDetector{cfg: cfg}
}

// FindBreakPivot locates the pivot whose break defines the structure shift.
// For Long it scans swing highs formed before the sweep bar within the
// lookback window and returns the first one lower than its predecessor; for
// Short, the first swing low higher than its predecessor. When no such step
// exists the most recent opposing pivot is used. Pivots not yet confirmable
// at barIndex are invisible.
func (d *MSSDetector) FindBreakPivot(dir Direction, swings *SwingDetector, sweepBarIndex, barIndex int) (SwingPoint, bool) {
	want := SwingHigh
	if dir == Short {
		want = SwingLow
	}

	var candidates []SwingPoint
	for _, s := range swings.Swings() {
		if s.Type != want || s.ConfirmableAt > barIndex {
			continue
		}
		if s.BarIndex >= sweepBarIndex || s.BarIndex < sweepBarIndex-d.cfg.PivotLookbackBars {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) < 2 {
		return SwingPoint{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].BarIndex < candidates[j].BarIndex })

	sign := dir.Sign()
	for i := 1; i < len(candidates); i++ {
		// Long: a high lower than the prior high. Short: a low higher
		// than the prior low.
		if sign*(candidates[i-1].Price-candidates[i].Price) > 0 {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}

// Detect checks whether the bar at barIndex breaks the structure pivot.
// With RequireCloseBreak the close must cross the pivot; otherwise a wick
// suffices. Returns nil outside the post-sweep window.
func (d *MSSDetector) Detect(dir Direction, bars []market.Bar, sweep *Sweep, swings *SwingDetector, barIndex int) *MSS {
	if sweep == nil || !sweep.Confirmed {
		return nil
	}
	if barIndex-sweep.BarIndex > d.cfg.MaxBarsAfterSweep {
		return nil
	}
	if barIndex >= len(bars) {
		return nil
	}

	pivot, ok := d.FindBreakPivot(dir, swings, sweep.BarIndex, barIndex)
	if !ok {
		return nil
	}

	bar := bars[barIndex]
	sign := dir.Sign()

	if d.cfg.RequireCloseBreak {
		if sign*(bar.Close-pivot.Price) > 0 {
			return &MSS{
				Direction:        dir,
				Pivot:            pivot,
				BreakBarIndex:    barIndex,
				Timestamp:        bar.Timestamp,
				BreakPrice:       bar.Close,
				ConfirmedByClose: true,
			}
		}
		return nil
	}

	wick := bar.High
	if dir == Short {
		wick = bar.Low
	}
	if sign*(wick-pivot.Price) > 0 {
		return &MSS{
			Direction:     dir,
			Pivot:         pivot,
			BreakBarIndex: barIndex,
			Timestamp:     bar.Timestamp,
			BreakPrice:    wick,
		}
	}
	return nil
}
