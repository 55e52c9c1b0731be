package analysis

import (
	"math"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/market"
)

// FVGDetector finds displacement candles and the fair value gaps they leave
// behind, and tracks gap mitigation and entry touches.
type FVGDetector struct {
	dispCfg config.DisplacementConfig
	fvgCfg  config.FVGConfig
}

// NewFVGDetector creates a detector with the given parameters.
func NewFVGDetector(dispCfg config.DisplacementConfig, fvgCfg config.FVGConfig) *FVGDetector {
	return &FVGDetector{dispCfg: dispCfg, fvgCfg: fvgCfg}
}

// DetectDisplacement checks whether the bar at barIndex is an impulsive
// candle. The threshold is either an ATR multiple or a multiple of the
// median body over recent bars, per configuration.
func (d *FVGDetector) DetectDisplacement(bars []market.Bar, barIndex int, atr float64) *Displacement {
	if barIndex < 0 || barIndex >= len(bars) {
		return nil
	}
	bar := bars[barIndex]
	body := bar.Body()

	var threshold float64
	if d.dispCfg.UseATRMethod {
		threshold = atr * d.dispCfg.MinBodyATRMult
	} else {
		threshold = MedianBody(bars[:barIndex], d.dispCfg.MedianBodyPeriod) * d.dispCfg.MinBodyMedianMult
	}
	if threshold <= 0 || body < threshold {
		return nil
	}

	dir := Long
	if !bar.IsBullish() {
		dir = Short
	}
	atrMult := 0.0
	if atr > 0 {
		atrMult = body / atr
	}
	return &Displacement{
		BarIndex:    barIndex,
		Timestamp:   bar.Timestamp,
		Body:        body,
		ATRMultiple: atrMult,
		Direction:   dir,
	}
}

// DetectFVG checks the three-bar pattern ending at barIndex for a gap. A
// bullish gap needs bar[i].Low above bar[i-2].High, a bearish gap the
// mirror. Gaps smaller than max(MinFVGPrice, atr*MinFVGATRMult) are
// ignored. The returned FVG is attributed to the middle bar.
func (d *FVGDetector) DetectFVG(bars []market.Bar, barIndex int, atr float64) *FVG {
	if barIndex < 2 || barIndex >= len(bars) {
		return nil
	}
	first := bars[barIndex-2]
	middle := bars[barIndex-1]
	third := bars[barIndex]

	minSize := math.Max(d.fvgCfg.MinFVGPrice, atr*d.fvgCfg.MinFVGATRMult)

	if third.Low > first.High {
		size := third.Low - first.High
		if size >= minSize {
			return &FVG{
				Direction:          Long,
				BarIndex:           barIndex - 1,
				Timestamp:          middle.Timestamp,
				Top:                third.Low,
				Bottom:             first.High,
				Size:               size,
				MitigationBarIndex: -1,
			}
		}
	}
	if first.Low > third.High {
		size := first.Low - third.High
		if size >= minSize {
			return &FVG{
				Direction:          Short,
				BarIndex:           barIndex - 1,
				Timestamp:          middle.Timestamp,
				Top:                first.Low,
				Bottom:             third.High,
				Size:               size,
				MitigationBarIndex: -1,
			}
		}
	}
	return nil
}

// DetectDisplacementFVG looks for a displacement candle in the middle of
// the three-bar pattern ending at barIndex that left a gap in the same
// direction. Both must be present and agree for a setup to progress.
func (d *FVGDetector) DetectDisplacementFVG(dir Direction, bars []market.Bar, barIndex int, atr float64) (*Displacement, *FVG) {
	if barIndex < 2 {
		return nil, nil
	}
	disp := d.DetectDisplacement(bars, barIndex-1, atr)
	if disp == nil || disp.Direction != dir {
		return nil, nil
	}
	fvg := d.DetectFVG(bars, barIndex, atr)
	if fvg == nil || fvg.Direction != dir {
		return nil, nil
	}
	return disp, fvg
}

// CheckMitigation scans bars [startIndex, endIndex] and marks the gap
// mitigated once price consumes it. Under WICK_TOUCH a wick reaching the
// far edge kills the gap; under CLOSE_THROUGH the bar must close beyond it.
func (d *FVGDetector) CheckMitigation(fvg *FVG, bars []market.Bar, startIndex, endIndex int) bool {
	if fvg.Mitigated {
		return true
	}
	if endIndex >= len(bars) {
		endIndex = len(bars) - 1
	}
	sign := fvg.Direction.Sign()
	for i := startIndex; i <= endIndex; i++ {
		bar := bars[i]
		var through bool
		switch d.fvgCfg.MitigationRule {
		case config.MitigationCloseThrough:
			// Long: close below the bottom. Short: close above the top.
			through = sign*(fvg.FarEdge()-bar.Close) > 0
		default:
			wick := bar.Low
			if fvg.Direction == Short {
				wick = bar.High
			}
			through = sign*(fvg.FarEdge()-wick) >= 0
		}
		if through {
			fvg.Mitigated = true
			fvg.MitigationBarIndex = i
			return true
		}
	}
	return false
}

// EntryTouch reports the entry price when the bar retraces into an unmitigated
// gap. The level depends on the configured entry mode: the near edge on
// first touch, the midpoint, or the far edge.
func (d *FVGDetector) EntryTouch(fvg *FVG, bar market.Bar) (float64, bool) {
	if fvg.Mitigated {
		return 0, false
	}
	touched := bar.Low <= fvg.Top
	if fvg.Direction == Short {
		touched = bar.High >= fvg.Bottom
	}
	if !touched {
		return 0, false
	}
	switch d.fvgCfg.EntryMode {
	case config.EntryFirstTouch:
		return fvg.NearEdge(), true
	case config.EntryLowerEdge:
		return fvg.FarEdge(), true
	default:
		return fvg.Midpoint(), true
	}
}
