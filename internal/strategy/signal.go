package strategy

import (
	"fmt"
	"math"
	"time"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/market"
)

// PositionSizer sizes positions and reports dollar risk. Satisfied by
// risk.Manager.
type PositionSizer interface {
	CalculatePositionSize(entry, stop float64, symbol string) (int, float64)
}

// TradeSignal is a fully specified trade. Immutable once built; the pattern
// objects it references are read-only handles into the detector output.
type TradeSignal struct {
	ID         string
	Timestamp  time.Time
	Symbol     string
	Direction  analysis.Direction
	EntryPrice float64
	StopPrice  float64
	Targets    [3]float64
	Contracts  int
	RiskAmount float64

	Sweep *analysis.Sweep
	MSS   *analysis.MSS
	FVG   *analysis.FVG
	OTE   *analysis.OTEZone
}

// SignalBuilder turns a completed pattern into a TradeSignal.
type SignalBuilder struct {
	cfg   *config.Config
	fvgs  *analysis.FVGDetector
	sizer PositionSizer
}

// NewSignalBuilder creates a builder using the given sizer for position
// sizing and dollar risk.
func NewSignalBuilder(cfg *config.Config, fvgs *analysis.FVGDetector, sizer PositionSizer) *SignalBuilder {
	return &SignalBuilder{cfg: cfg, fvgs: fvgs, sizer: sizer}
}

// Build assembles a signal from the setup context and the current bar. A
// nil result is the normal outcome for an unresolvable entry, an oversized
// stop, or a position that cannot be sized; it is never an error.
func (b *SignalBuilder) Build(symbol string, bar market.Bar, ctx *SetupContext, swings *analysis.SwingDetector, barIndex int, atr float64) *TradeSignal {
	if atr <= 0 {
		return nil
	}

	entry, ok := b.entryPrice(ctx.FVG, ctx.OTE, bar)
	if !ok {
		return nil
	}

	stop, ok := b.stopPrice(ctx.Sweep, entry, atr)
	if !ok {
		return nil
	}

	targets := b.targets(entry, stop, ctx.Direction, swings, barIndex)

	contracts, riskAmount := b.sizer.CalculatePositionSize(entry, stop, symbol)
	if contracts <= 0 {
		return nil
	}

	return &TradeSignal{
		ID:         fmt.Sprintf("%s_%s_%s", symbol, bar.Timestamp.Format("20060102_150405"), ctx.Direction),
		Timestamp:  bar.Timestamp,
		Symbol:     symbol,
		Direction:  ctx.Direction,
		EntryPrice: entry,
		StopPrice:  stop,
		Targets:    targets,
		Contracts:  contracts,
		RiskAmount: riskAmount,
		Sweep:      ctx.Sweep,
		MSS:        ctx.MSS,
		FVG:        ctx.FVG,
		OTE:        ctx.OTE,
	}
}

// entryPrice resolves the entry from the gap per the configured entry mode,
// then applies the OTE constraint when required: an entry shallower than
// the band is clamped to its shallow boundary, an entry beyond the deep
// boundary rejects the setup.
func (b *SignalBuilder) entryPrice(fvg *analysis.FVG, ote *analysis.OTEZone, bar market.Bar) (float64, bool) {
	entry, ok := b.fvgs.EntryTouch(fvg, bar)
	if !ok {
		return 0, false
	}

	if ote != nil && b.cfg.OTE.RequireOTEEntry && !ote.PriceInOTE(entry) {
		sign := fvg.Direction.Sign()
		switch {
		case sign*(entry-ote.Shallow) > 0:
			entry = ote.Shallow
		case sign*(ote.Deep-entry) > 0:
			return 0, false
		}
	}
	return entry, true
}

// stopPrice places the stop beyond the sweep extreme by a fixed or
// ATR-sized buffer. The setup is rejected when the resulting risk exceeds
// max_sl_atr_mult ATRs or the stop lands on the wrong side of the entry.
func (b *SignalBuilder) stopPrice(sweep *analysis.Sweep, entry, atr float64) (float64, bool) {
	buffer := atr * b.cfg.StopLoss.BufferATRMult
	if b.cfg.StopLoss.BufferFixed > 0 {
		buffer = b.cfg.StopLoss.BufferFixed
	}

	sign := sweep.Direction.Sign()
	stop := sweep.Extreme - sign*buffer
	dist := sign * (entry - stop)

	if dist <= 0 || dist > atr*b.cfg.StopLoss.MaxSLATRMult {
		return 0, false
	}
	return stop, true
}

// targets computes TP1/TP2/TP3. TP1 and TP2 come from opposing swings
// beyond the entry with R-multiple floors; TP3 is the Fibonacci extension
// of the risk. Each target is forced at least one full risk beyond the
// previous one, so the triple is strictly ordered in the trade direction.
func (b *SignalBuilder) targets(entry, stop float64, dir analysis.Direction, swings *analysis.SwingDetector, barIndex int) [3]float64 {
	cfg := b.cfg.TakeProfit
	sign := dir.Sign()
	risk := math.Abs(entry - stop)

	minTP1 := entry + sign*risk*cfg.MinTP1RMult
	minTP2 := entry + sign*risk*cfg.MinTP2RMult
	minTP3 := entry + sign*risk*cfg.MinTP3RMult

	targetType := analysis.SwingHigh
	if dir == analysis.Short {
		targetType = analysis.SwingLow
	}
	candidates := swingTargets(swings, targetType, dir, entry, barIndex)

	tp1 := minTP1
	for _, p := range candidates {
		if sign*(p-minTP1) >= 0 {
			tp1 = p
			break
		}
	}

	tp2 := minTP2
	for _, p := range candidates {
		if sign*(p-tp1) > 0 && sign*(p-minTP2) >= 0 {
			tp2 = p
			break
		}
	}
	tp2 = further(sign, tp2, tp1+sign*risk)

	tp3 := further(sign, entry+sign*risk*cfg.TP3FibExt, minTP3)
	tp3 = further(sign, tp3, tp2+sign*risk)

	return [3]float64{tp1, tp2, tp3}
}

// swingTargets returns usable opposing-swing prices beyond the entry,
// nearest first.
func swingTargets(swings *analysis.SwingDetector, t analysis.SwingType, dir analysis.Direction, entry float64, barIndex int) []float64 {
	sign := dir.Sign()
	var out []float64
	for _, s := range swings.Swings() {
		if s.Type != t || s.ConfirmableAt > barIndex {
			continue
		}
		if sign*(s.Price-entry) > 0 {
			out = append(out, s.Price)
		}
	}
	// Nearest to entry first: ascending for longs, descending for shorts.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sign*(out[j]-out[j-1]) < 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// further picks whichever price is farther along the trade direction.
func further(sign, a, b float64) float64 {
	if sign > 0 {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}
