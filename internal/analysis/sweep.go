package analysis

import (
	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/market"
)

// minBarsSinceSwing keeps a still-forming structure from sweeping itself.
const minBarsSinceSwing = 3

// maxSweepCandidates bounds how many recent pivots are checked per bar.
const maxSweepCandidates = 10

// SweepDetector finds liquidity sweeps against recent pivots. One instance
// serves both directions: Long looks for a dip below a swing low, Short for
// a spike above a swing high.
type SweepDetector struct {
	cfg config.SweepConfig
}

// NewSweepDetector creates a detector with the given sweep parameters.
func NewSweepDetector(cfg config.SweepConfig) *SweepDetector {
	return &SweepDetector{cfg: cfg}
}

// Detect checks whether the bar at barIndex sweeps a recent pivot. The
// sweep level must be exceeded by at least the configured buffer. When
// RequireCloseBack is set the sweep starts unconfirmed unless this same bar
// already closed back through the swept level; Confirm settles it on later
// bars.
func (d *SweepDetector) Detect(dir Direction, bars []market.Bar, swings *SwingDetector, barIndex int, atr float64) *Sweep {
	if barIndex >= len(bars) {
		return nil
	}
	bar := bars[barIndex]
	sign := dir.Sign()

	buffer := bar.Close * d.cfg.SweepBufferPct
	if d.cfg.UseATRBuffer {
		buffer = atr * d.cfg.SweepBufferATRMult
	}

	swingType := SwingLow
	if dir == Short {
		swingType = SwingHigh
	}

	for _, swing := range swings.RecentSwings(swingType, barIndex, maxSweepCandidates) {
		if barIndex-swing.BarIndex < minBarsSinceSwing {
			continue
		}

		extreme := bar.Low
		if dir == Short {
			extreme = bar.High
		}

		// Long: low < swing - buffer. Short: high > swing + buffer.
		if sign*(swing.Price-extreme) <= buffer {
			continue
		}

		s := &Sweep{
			Direction:       dir,
			SweptSwing:      swing,
			BarIndex:        barIndex,
			Timestamp:       bar.Timestamp,
			Extreme:         extreme,
			Penetration:     sign * (swing.Price - extreme),
			ConfirmBarIndex: -1,
		}
		if !d.cfg.RequireCloseBack || sign*(bar.Close-swing.Price) > 0 {
			s.Confirmed = true
			s.ConfirmBarIndex = barIndex
		}
		return s
	}
	return nil
}

// Confirm settles a pending sweep against the bar at barIndex. It returns
// true once the bar closes back through the swept level. Past the
// confirmation window the sweep can no longer confirm; the caller abandons
// it.
func (d *SweepDetector) Confirm(sweep *Sweep, bars []market.Bar, barIndex int) bool {
	if sweep.Confirmed {
		return true
	}
	if barIndex-sweep.BarIndex > d.cfg.MaxBarsForConfirm {
		return false
	}
	bar := bars[barIndex]
	if sweep.Direction.Sign()*(bar.Close-sweep.SweptSwing.Price) > 0 {
		sweep.Confirmed = true
		sweep.ConfirmBarIndex = barIndex
		return true
	}
	return false
}

// Expired reports whether the confirmation window for a pending sweep has
// closed without a confirming bar.
func (d *SweepDetector) Expired(sweep *Sweep, barIndex int) bool {
	return !sweep.Confirmed && barIndex-sweep.BarIndex > d.cfg.MaxBarsForConfirm
}
