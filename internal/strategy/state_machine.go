package strategy

import (
	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/market"
	"ict-sweep-bot/internal/risk"
)

// State is the position of the setup state machine.
type State int

const (
	StateScanning State = iota
	StateSweepDetected
	StateMSSPending
	StateAwaitingFVG
	StateAwaitingEntry
	StateInTrade
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateSweepDetected:
		return "SWEEP_DETECTED"
	case StateMSSPending:
		return "MSS_PENDING"
	case StateAwaitingFVG:
		return "AWAITING_FVG"
	case StateAwaitingEntry:
		return "AWAITING_ENTRY"
	case StateInTrade:
		return "IN_TRADE"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "SCANNING"
	}
}

// SetupContext is the working memory for one in-progress setup. Exactly one
// exists per symbol; it is cleared on every reset to SCANNING.
type SetupContext struct {
	Direction    analysis.Direction
	Sweep        *analysis.Sweep
	MSS          *analysis.MSS
	Displacement *analysis.Displacement
	FVG          *analysis.FVG
	OTE          *analysis.OTEZone

	BarsSinceSweep int
	BarsSinceMSS   int
	BarsSinceFVG   int

	// First bar index eligible for mitigation checks; the gap's own
	// three-bar pattern must not count against it.
	mitigationFrom int
}

// TradeUpdate reports lifecycle events for one trade on one bar.
type TradeUpdate struct {
	Trade  *OpenTrade
	Events []TradeEvent
}

// Strategy is the per-symbol orchestrator: it owns the bar history, the
// detectors, the setup state machine, and the open trades. Single-threaded;
// all mutation happens inside OnBar.
type Strategy struct {
	cfg    *config.Config
	symbol string
	logger zerolog.Logger

	bars   []market.Bar
	swings *analysis.SwingDetector
	sweeps *analysis.SweepDetector
	mss    *analysis.MSSDetector
	fvgs   *analysis.FVGDetector

	builder   *SignalBuilder
	lifecycle *Lifecycle
	riskMgr   *risk.Manager

	state State
	ctx   SetupContext

	openTrades   []*OpenTrade
	closedTrades []*OpenTrade
	cooldownLeft int
	atr          float64
}

// New creates a strategy instance for one symbol.
func New(cfg *config.Config, symbol string, riskMgr *risk.Manager, logger zerolog.Logger) *Strategy {
	fvgs := analysis.NewFVGDetector(cfg.Displacement, cfg.FVG)
	return &Strategy{
		cfg:       cfg,
		symbol:    symbol,
		logger:    logger.With().Str("component", "strategy").Str("symbol", symbol).Logger(),
		swings:    analysis.NewSwingDetector(cfg.Swing),
		sweeps:    analysis.NewSweepDetector(cfg.Sweep),
		mss:       analysis.NewMSSDetector(cfg.MSS),
		fvgs:      fvgs,
		builder:   NewSignalBuilder(cfg, fvgs, riskMgr),
		lifecycle: NewLifecycle(cfg.StopLoss, cfg.TakeProfit),
		riskMgr:   riskMgr,
	}
}

// OnBar consumes one bar: open trades are managed first, then the state
// machine advances. At most one signal is emitted per bar. Invalid bars are
// skipped, never propagated.
func (s *Strategy) OnBar(bar market.Bar) (*TradeSignal, []TradeUpdate) {
	var prev *market.Bar
	if len(s.bars) > 0 {
		prev = &s.bars[len(s.bars)-1]
	}
	if err := market.Validate(bar, prev); err != nil {
		s.logger.Warn().Err(err).Msg("Skipping invalid bar")
		return nil, nil
	}

	s.bars = append(s.bars, bar)
	idx := len(s.bars) - 1

	s.riskMgr.OnBar(bar.Timestamp)
	s.swings.Update(s.bars)
	s.atr = analysis.ATR(s.bars, s.cfg.Displacement.ATRPeriod)

	updates := s.manageOpenTrades(bar)

	if !s.passesFilters() {
		return nil, updates
	}

	if s.state == StateCooldown {
		s.cooldownLeft--
		if s.cooldownLeft <= 0 {
			s.toScanning()
		}
		return nil, updates
	}

	signal := s.step(bar, idx)
	return signal, updates
}

func (s *Strategy) step(bar market.Bar, idx int) *TradeSignal {
	switch s.state {
	case StateScanning:
		s.stateScanning(bar, idx)
	case StateSweepDetected:
		s.stateSweepDetected(idx)
	case StateMSSPending:
		s.stateMSSPending(bar, idx)
	case StateAwaitingFVG:
		s.stateAwaitingFVG(idx)
	case StateAwaitingEntry:
		return s.stateAwaitingEntry(bar, idx)
	case StateInTrade:
		s.stateInTrade()
	}
	return nil
}

func (s *Strategy) stateScanning(bar market.Bar, idx int) {
	for _, dir := range []analysis.Direction{analysis.Long, analysis.Short} {
		sweep := s.sweeps.Detect(dir, s.bars, s.swings, idx, s.atr)
		if sweep == nil {
			continue
		}
		s.ctx = SetupContext{Direction: dir, Sweep: sweep}
		if sweep.Confirmed {
			s.state = StateMSSPending
			s.logger.Info().
				Str("direction", dir.String()).
				Float64("swept_level", sweep.SweptSwing.Price).
				Float64("extreme", sweep.Extreme).
				Msg("Sweep confirmed")
		} else {
			s.state = StateSweepDetected
		}
		return
	}
}

func (s *Strategy) stateSweepDetected(idx int) {
	s.ctx.BarsSinceSweep++
	if s.sweeps.Confirm(s.ctx.Sweep, s.bars, idx) {
		s.state = StateMSSPending
		s.logger.Info().
			Str("direction", s.ctx.Direction.String()).
			Float64("swept_level", s.ctx.Sweep.SweptSwing.Price).
			Msg("Sweep confirmed")
		return
	}
	if s.sweeps.Expired(s.ctx.Sweep, idx) {
		s.toScanning()
	}
}

func (s *Strategy) stateMSSPending(bar market.Bar, idx int) {
	s.ctx.BarsSinceSweep++
	mss := s.mss.Detect(s.ctx.Direction, s.bars, s.ctx.Sweep, s.swings, idx)
	if mss != nil {
		s.ctx.MSS = mss
		s.ctx.BarsSinceMSS = 0
		s.ctx.OTE = s.buildOTE(bar, idx)
		s.state = StateAwaitingFVG
		s.logger.Info().
			Str("direction", s.ctx.Direction.String()).
			Float64("pivot", mss.Pivot.Price).
			Float64("break_price", mss.BreakPrice).
			Msg("Structure shift confirmed")
		return
	}
	if s.ctx.BarsSinceSweep > s.cfg.MSS.MaxBarsAfterSweep {
		s.toScanning()
	}
}

// buildOTE anchors the retracement leg at the sweep extreme and takes the
// furthest of the three most recent opposing pivots as the impulse end,
// falling back to the current bar's extreme.
func (s *Strategy) buildOTE(bar market.Bar, idx int) *analysis.OTEZone {
	dir := s.ctx.Direction
	opposite := analysis.SwingHigh
	impulse := bar.High
	if dir == analysis.Short {
		opposite = analysis.SwingLow
		impulse = bar.Low
	}
	for _, sw := range s.swings.RecentSwings(opposite, idx, 3) {
		if dir.Sign()*(sw.Price-impulse) > 0 {
			impulse = sw.Price
		}
	}
	z := analysis.NewOTEZone(dir, s.ctx.Sweep.Extreme, impulse, s.cfg.OTE)
	return &z
}

func (s *Strategy) stateAwaitingFVG(idx int) {
	s.ctx.BarsSinceMSS++
	disp, fvg := s.fvgs.DetectDisplacementFVG(s.ctx.Direction, s.bars, idx, s.atr)
	if fvg != nil {
		s.ctx.Displacement = disp
		s.ctx.FVG = fvg
		s.ctx.BarsSinceFVG = 0
		s.ctx.mitigationFrom = idx + 1
		s.state = StateAwaitingEntry
		s.logger.Debug().
			Str("direction", fvg.Direction.String()).
			Float64("top", fvg.Top).
			Float64("bottom", fvg.Bottom).
			Msg("Gap formed")
		return
	}
	if s.ctx.BarsSinceMSS > s.cfg.FVG.MaxBarsForFVG {
		s.toScanning()
	}
}

func (s *Strategy) stateAwaitingEntry(bar market.Bar, idx int) *TradeSignal {
	s.ctx.BarsSinceFVG++

	signal := s.builder.Build(s.symbol, bar, &s.ctx, s.swings, idx, s.atr)
	if signal != nil {
		if ok, reason := s.riskMgr.CanTakeTrade(signal.RiskAmount); !ok {
			s.logger.Info().Str("reason", reason).Msg("Signal rejected by risk gate")
			s.toScanning()
			return nil
		}
		trade := NewOpenTrade(signal, idx, signal.EntryPrice, risk.SpecFor(s.symbol).PointValue(), bar)
		s.openTrades = append(s.openTrades, trade)
		s.riskMgr.RegisterTradeOpen(s.symbol, signal.Contracts)
		s.ctx.FVG.Mitigated = true // the gap is spent once traded
		s.state = StateInTrade
		s.logger.Info().
			Str("direction", signal.Direction.String()).
			Int("contracts", signal.Contracts).
			Float64("entry", signal.EntryPrice).
			Float64("stop", signal.StopPrice).
			Float64("tp1", signal.Targets[0]).
			Msg("Entry")
		return signal
	}

	// No fill this bar: a consumed gap, an expired retrace window, or a
	// gap past its maximum age ends the setup.
	if s.fvgs.CheckMitigation(s.ctx.FVG, s.bars, s.ctx.mitigationFrom, idx) {
		s.toScanning()
		return nil
	}
	s.ctx.mitigationFrom = idx + 1
	if s.ctx.BarsSinceFVG > s.cfg.FVG.MaxBarsForRetrace || idx-s.ctx.FVG.BarIndex > s.cfg.FVG.MaxFVGAgeBars {
		s.toScanning()
	}
	return nil
}

func (s *Strategy) stateInTrade() {
	if len(s.openTrades) == 0 {
		s.state = StateCooldown
		s.cooldownLeft = s.cfg.Risk.CooldownBars
		if s.cooldownLeft <= 0 {
			s.toScanning()
		}
	}
}

func (s *Strategy) manageOpenTrades(bar market.Bar) []TradeUpdate {
	var updates []TradeUpdate
	remaining := s.openTrades[:0]
	for _, trade := range s.openTrades {
		events := s.lifecycle.Update(trade, bar, s.atr)
		if len(events) > 0 {
			updates = append(updates, TradeUpdate{Trade: trade, Events: events})
			for _, ev := range events {
				s.logger.Info().
					Str("trade_id", trade.Signal.ID).
					Str("event", string(ev)).
					Float64("realized_pnl", trade.RealizedPnL).
					Int("remaining", trade.RemainingContracts).
					Msg("Trade event")
			}
		}
		if trade.Status == StatusClosed {
			s.closedTrades = append(s.closedTrades, trade)
			s.riskMgr.RegisterTradeClose(s.symbol, trade.InitialContracts, trade.RealizedPnL)
		} else {
			remaining = append(remaining, trade)
		}
	}
	s.openTrades = remaining
	return updates
}

// passesFilters runs the cross-state gates: the volatility band against the
// trailing median ATR and the daily-loss cutoff. Open trades are still
// managed when these trip; only new setups stop.
func (s *Strategy) passesFilters() bool {
	window := s.cfg.Filters.MedianATRWindow
	if len(s.bars) > window {
		medianATR := analysis.MedianATR(s.bars, s.cfg.Displacement.ATRPeriod, window)
		if medianATR > 0 {
			if s.atr > medianATR*s.cfg.Filters.MaxATRMult {
				return false
			}
			if s.atr < medianATR*s.cfg.Filters.MinATRMult {
				return false
			}
		}
	}
	return !s.riskMgr.DailyLossLimitReached()
}

func (s *Strategy) toScanning() {
	s.state = StateScanning
	s.ctx = SetupContext{}
}

// State returns the current machine state.
func (s *Strategy) State() State { return s.state }

// Symbol returns the symbol this instance trades.
func (s *Strategy) Symbol() string { return s.symbol }

// ATR returns the last computed ATR value.
func (s *Strategy) ATR() float64 { return s.atr }

// OpenTrades returns the live trades.
func (s *Strategy) OpenTrades() []*OpenTrade { return s.openTrades }

// ClosedTrades returns every finished trade, oldest first.
func (s *Strategy) ClosedTrades() []*OpenTrade { return s.closedTrades }

// Reset clears all state for a fresh session.
func (s *Strategy) Reset() {
	s.bars = nil
	s.swings.Reset()
	s.openTrades = nil
	s.closedTrades = nil
	s.cooldownLeft = 0
	s.atr = 0
	s.toScanning()
}
