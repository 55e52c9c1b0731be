package strategy

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/risk"
)

func scenarioCfg() *config.Config {
	cfg := config.Default()
	// Fixed-fraction sweep buffer keeps the levels in the hand-built series
	// exact regardless of the running ATR.
	cfg.Sweep.UseATRBuffer = false
	cfg.StopLoss.MaxSLATRMult = 20
	cfg.Risk.MaxPositions = 2
	return cfg
}

func newScenario(t *testing.T, cfg *config.Config) (*Strategy, *risk.Manager) {
	t.Helper()
	rm := risk.NewManager(cfg.Risk, 100000, zerolog.Nop())
	return New(cfg, "ES", rm, zerolog.Nop()), rm
}

// longSetupSeries walks the full long pattern: a swing low at 97, a rally
// to 104, a lower high at 103, a sweep of the low at bar 11 that closes
// back above it, a break of the lower high at bar 12, a displacement bar
// leaving the [104, 106] gap, and a retrace to the gap midpoint at bar 15.
func longSetupSeries() [][4]float64 {
	return [][4]float64{
		{99, 99.5, 98.5, 99},
		{99, 99.3, 98, 98.4},
		{98.2, 98.4, 97, 98.2},
		{98.2, 99, 98, 98.8},
		{98.8, 99.5, 98.5, 99.2},
		{99.2, 104, 99, 103.5},
		{103.5, 103.6, 100.8, 101},
		{101, 101.2, 100, 100.4},
		{100.4, 101.5, 100.2, 101.2},
		{101.2, 103, 100.8, 102.5},
		{101.5, 101.8, 100.5, 100.8},
		{100.8, 101, 96.5, 97.3},
		{103.2, 104, 103, 103.5},
		{103.5, 106.6, 103.4, 106.5},
		{106.3, 107, 106, 106.8},
		{106.5, 106.8, 105, 105.5},
	}
}

func TestLongSetupEndToEnd(t *testing.T) {
	s, rm := newScenario(t, scenarioCfg())

	wantStates := map[int]State{
		10: StateScanning,
		11: StateMSSPending,
		12: StateAwaitingFVG,
		13: StateAwaitingFVG,
		14: StateAwaitingEntry,
		15: StateInTrade,
	}

	var signals []*TradeSignal
	for i, bar := range seriesBars(longSetupSeries()) {
		sig, _ := s.OnBar(bar)
		if sig != nil {
			signals = append(signals, sig)
		}
		if want, ok := wantStates[i]; ok && s.State() != want {
			t.Fatalf("after bar %d: state = %s, want %s", i, s.State(), want)
		}
	}

	if len(signals) != 1 {
		t.Fatalf("got %d signals, want exactly 1", len(signals))
	}
	sig := signals[0]

	if sig.Direction != analysis.Long {
		t.Errorf("direction = %s, want LONG", sig.Direction)
	}
	if sig.EntryPrice != 105 {
		t.Errorf("entry = %v, want the gap midpoint 105", sig.EntryPrice)
	}
	if sig.StopPrice >= 96.5 || sig.StopPrice < 95 {
		t.Errorf("stop = %v, want below the sweep extreme 96.5", sig.StopPrice)
	}
	if sig.Contracts != 2 {
		t.Errorf("contracts = %d, want 2", sig.Contracts)
	}
	if !(sig.Targets[0] < sig.Targets[1] && sig.Targets[1] < sig.Targets[2]) {
		t.Errorf("targets not ascending: %v", sig.Targets)
	}
	risk1 := sig.EntryPrice - sig.StopPrice
	if math.Abs(sig.Targets[0]-(sig.EntryPrice+risk1)) > 1e-9 {
		t.Errorf("tp1 = %v, want entry + 1R = %v", sig.Targets[0], sig.EntryPrice+risk1)
	}
	if sig.Sweep == nil || sig.MSS == nil || sig.FVG == nil {
		t.Error("signal missing pattern references")
	}
	if sig.FVG != nil && (sig.FVG.Bottom != 104 || sig.FVG.Top != 106) {
		t.Errorf("gap = [%v, %v], want [104, 106]", sig.FVG.Bottom, sig.FVG.Top)
	}

	if len(s.OpenTrades()) != 1 {
		t.Fatalf("open trades = %d, want 1", len(s.OpenTrades()))
	}
	if rm.OpenPositions() != 1 {
		t.Errorf("risk manager open positions = %d, want 1", rm.OpenPositions())
	}
}

func TestUnconfirmedSweepExpires(t *testing.T) {
	rows := longSetupSeries()[:11]
	rows = append(rows,
		[4]float64{100.8, 101, 96.5, 96.8}, // sweeps 97 but closes below it
		[4]float64{96.8, 97, 96.3, 96.5},
		[4]float64{96.5, 96.9, 96.2, 96.4},
		[4]float64{96.5, 96.8, 96.4, 96.6}, // confirmation window lapses here
		[4]float64{97.2, 97.5, 97, 97.3},
	)

	s, _ := newScenario(t, scenarioCfg())

	for i, bar := range seriesBars(rows) {
		sig, _ := s.OnBar(bar)
		if sig != nil {
			t.Fatalf("unexpected signal at bar %d", i)
		}
		if i == 11 && s.State() != StateSweepDetected {
			t.Fatalf("after sweep bar: state = %s, want SWEEP_DETECTED", s.State())
		}
	}

	if s.State() != StateScanning {
		t.Errorf("final state = %s, want SCANNING", s.State())
	}
	if len(s.OpenTrades()) != 0 {
		t.Errorf("open trades = %d, want 0", len(s.OpenTrades()))
	}
}

func TestStopOutEntersCooldownThenScanning(t *testing.T) {
	rows := longSetupSeries()
	rows = append(rows, [4]float64{105.5, 105.8, 95.5, 96}) // gouges the stop
	rows = append(rows,
		[4]float64{96, 96.4, 95.6, 96.1},
		[4]float64{96.1, 96.5, 95.8, 96.3},
		[4]float64{96.3, 96.6, 96, 96.2},
		[4]float64{96.2, 96.5, 95.9, 96.4},
		[4]float64{96.4, 96.7, 96.1, 96.5},
	)

	cfg := scenarioCfg()
	s, rm := newScenario(t, cfg)

	var allEvents []TradeEvent
	for i, bar := range seriesBars(rows) {
		_, updates := s.OnBar(bar)
		for _, u := range updates {
			allEvents = append(allEvents, u.Events...)
		}
		if i == 16 && s.State() != StateCooldown {
			t.Fatalf("after stop-out bar: state = %s, want COOLDOWN", s.State())
		}
	}

	if !hasEvent(allEvents, EventStopLossHit) || !hasEvent(allEvents, EventTradeClosed) {
		t.Errorf("events = %v, want stop loss and close", allEvents)
	}
	if s.State() != StateScanning {
		t.Errorf("final state = %s, want SCANNING after cooldown", s.State())
	}
	if got := len(s.ClosedTrades()); got != 1 {
		t.Fatalf("closed trades = %d, want 1", got)
	}
	closed := s.ClosedTrades()[0]
	if closed.Status != StatusClosed {
		t.Errorf("status = %v, want closed", closed.Status)
	}
	if closed.RealizedPnL >= 0 {
		t.Errorf("realized pnl = %v, want a loss", closed.RealizedPnL)
	}
	if rm.OpenPositions() != 0 {
		t.Errorf("risk manager open positions = %d, want 0", rm.OpenPositions())
	}
	if rm.Equity() >= 100000 {
		t.Errorf("equity = %v, want below starting equity after the loss", rm.Equity())
	}
}

func TestRiskGateRejectionResetsSetup(t *testing.T) {
	cfg := scenarioCfg()
	cfg.Risk.MaxPositions = 1
	s, rm := newScenario(t, cfg)

	// An already-open position exhausts the concurrency cap.
	rm.RegisterTradeOpen("ES", 1)

	for i, bar := range seriesBars(longSetupSeries()) {
		if sig, _ := s.OnBar(bar); sig != nil {
			t.Fatalf("unexpected signal at bar %d", i)
		}
	}

	if s.State() != StateScanning {
		t.Errorf("final state = %s, want SCANNING after rejection", s.State())
	}
	if len(s.OpenTrades()) != 0 {
		t.Errorf("open trades = %d, want 0", len(s.OpenTrades()))
	}
}

func TestDailyLossBreakerBlocksNewSetups(t *testing.T) {
	cfg := scenarioCfg()
	s, rm := newScenario(t, cfg)

	// Book a loss past the 3% daily limit before the session starts.
	rm.RegisterTradeClose("ES", 2, -4000)

	for i, bar := range seriesBars(longSetupSeries()) {
		if sig, _ := s.OnBar(bar); sig != nil {
			t.Fatalf("unexpected signal at bar %d", i)
		}
	}

	if s.State() != StateScanning {
		t.Errorf("final state = %s, want SCANNING while the breaker holds", s.State())
	}
}

func TestSharedRiskCooldownAcrossSymbols(t *testing.T) {
	// Two symbols on one interval feed a shared manager two bars per
	// timestamp; the post-trade cooldown must expire in market bars, not
	// symbol bars.
	cfg := scenarioCfg()
	cfg.Risk.CooldownBars = 4
	rm := risk.NewManager(cfg.Risk, 100000, zerolog.Nop())
	es := New(cfg, "ES", rm, zerolog.Nop())
	nq := New(cfg, "NQ", rm, zerolog.Nop())

	rm.RegisterTradeOpen("ES", 1)
	rm.RegisterTradeClose("ES", 1, -500)

	rows := make([][4]float64, 6)
	for i := range rows {
		rows[i] = [4]float64{100, 100.5, 99.5, 100.2}
	}
	bars := seriesBars(rows)

	for i, bar := range bars {
		es.OnBar(bar)
		nq.OnBar(bar)
		if i == 1 && !rm.InCooldown() {
			t.Fatal("cooldown of 4 bars expired within 2 market bars shared by 2 symbols")
		}
	}
	if rm.InCooldown() {
		t.Error("cooldown still active after 6 market bars")
	}
}

func TestStaleGapExpiresSetup(t *testing.T) {
	// With a generous retrace window the gap's own age cap ends the setup
	// when price never comes back.
	cfg := scenarioCfg()
	cfg.FVG.MaxBarsForRetrace = 100
	cfg.FVG.MaxFVGAgeBars = 3
	s, _ := newScenario(t, cfg)

	rows := append(longSetupSeries()[:15], [][4]float64{
		{106.8, 107.4, 106.2, 107},
		{107, 107.6, 106.4, 107.2},
		{107.2, 107.8, 106.5, 107.5},
		{107.5, 108, 106.6, 107.8},
	}...)

	signals := 0
	for i, bar := range seriesBars(rows) {
		sig, _ := s.OnBar(bar)
		if sig != nil {
			signals++
		}
		if i == 16 && s.State() != StateAwaitingEntry {
			t.Fatalf("state after bar 16 = %v, want AWAITING_ENTRY", s.State())
		}
		if i == 17 && s.State() != StateScanning {
			t.Fatalf("state after bar 17 = %v, want SCANNING (gap aged out)", s.State())
		}
	}
	if signals != 0 {
		t.Errorf("got %d signals from a setup whose gap aged out, want 0", signals)
	}
}
