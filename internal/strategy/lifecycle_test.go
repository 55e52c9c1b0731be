package strategy

import (
	"testing"
	"time"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/market"
)

func mkBar(o, h, l, c float64) market.Bar {
	return market.Bar{
		Timestamp: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		Open:      o, High: h, Low: l, Close: c,
		Symbol: "ES", Timeframe: "15m",
	}
}

// seriesBars builds a 15-minute bar series from o/h/l/c rows.
func seriesBars(rows [][4]float64) []market.Bar {
	start := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      r[0], High: r[1], Low: r[2], Close: r[3],
			Symbol: "ES", Timeframe: "15m",
		}
	}
	return bars
}

func testLifecycle() *Lifecycle {
	return NewLifecycle(
		config.StopLossConfig{BufferATRMult: 0.2, MaxSLATRMult: 3, TrailAfterTP1: true, TrailATRMult: 1.5},
		config.TakeProfitConfig{
			TP3FibExt: 1.618, MinTP1RMult: 1, MinTP2RMult: 2, MinTP3RMult: 3,
			TP1ExitPct: 0.5, TP2ExitPct: 0.3, MoveToBEAfterTP1: true,
		},
	)
}

// longTrade is 10 contracts long from 100, stop 95, targets 105/110/115,
// point value $50.
func longTrade() *OpenTrade {
	sig := &TradeSignal{
		ID:         "test",
		Symbol:     "ES",
		Direction:  analysis.Long,
		EntryPrice: 100,
		StopPrice:  95,
		Targets:    [3]float64{105, 110, 115},
		Contracts:  10,
	}
	return NewOpenTrade(sig, 0, 100, 50, mkBar(100, 100.5, 99.5, 100))
}

func hasEvent(events []TradeEvent, want TradeEvent) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}

func TestStopLossClosesEverything(t *testing.T) {
	lc := testLifecycle()
	trade := longTrade()

	events := lc.Update(trade, mkBar(99, 99.5, 94.8, 95.2), 2)
	if !hasEvent(events, EventStopLossHit) || !hasEvent(events, EventTradeClosed) {
		t.Fatalf("events = %v", events)
	}
	if trade.Status != StatusClosed || trade.RemainingContracts != 0 {
		t.Errorf("trade not flat: status=%s remaining=%d", trade.Status, trade.RemainingContracts)
	}
	// 5 points against, 10 contracts, $50/pt.
	if trade.RealizedPnL != -2500 {
		t.Errorf("pnl = %v, want -2500", trade.RealizedPnL)
	}
}

func TestPartialExitLadderConservesContracts(t *testing.T) {
	lc := testLifecycle()
	trade := longTrade()

	// TP1: half of the original 10 comes off.
	events := lc.Update(trade, mkBar(104, 105.5, 103.5, 105), 2)
	if !hasEvent(events, EventTP1Hit) || !hasEvent(events, EventMoveToBE) || !hasEvent(events, EventTrailingActive) {
		t.Fatalf("TP1 events = %v", events)
	}
	if trade.RemainingContracts != 5 || trade.Status != StatusPartial {
		t.Errorf("after TP1: remaining=%d status=%s", trade.RemainingContracts, trade.Status)
	}
	if trade.CurrentStop != 100 {
		t.Errorf("stop = %v, want breakeven 100", trade.CurrentStop)
	}
	if trade.RealizedPnL != 5*5*50 {
		t.Errorf("pnl after TP1 = %v, want 1250", trade.RealizedPnL)
	}

	// TP2: 30% of the original 10, not of the remainder.
	events = lc.Update(trade, mkBar(109, 110.5, 108.5, 110), 2)
	if !hasEvent(events, EventTP2Hit) {
		t.Fatalf("TP2 events = %v", events)
	}
	if trade.RemainingContracts != 2 {
		t.Errorf("after TP2: remaining=%d, want 2 (exit is 30%% of original size)", trade.RemainingContracts)
	}

	// TP3: runner closes.
	events = lc.Update(trade, mkBar(114, 115.5, 113.5, 115), 2)
	if !hasEvent(events, EventTP3Hit) || !hasEvent(events, EventTradeClosed) {
		t.Fatalf("TP3 events = %v", events)
	}
	if trade.Status != StatusClosed || trade.RemainingContracts != 0 {
		t.Errorf("not flat after TP3: %+v", trade)
	}

	// Conservation: 5 + 3 + 2 exits equal the initial 10; total pnl
	// follows: 5*5 + 3*10 + 2*15 points.
	wantPnL := float64(5*5+3*10+2*15) * 50
	if trade.RealizedPnL != wantPnL {
		t.Errorf("total pnl = %v, want %v", trade.RealizedPnL, wantPnL)
	}
}

func TestOneHandlerPerBar(t *testing.T) {
	lc := testLifecycle()
	trade := longTrade()

	// Bar spans TP1 and TP2 at once; only the TP1 handler may fire.
	events := lc.Update(trade, mkBar(104, 111, 103.5, 110.5), 2)
	if !hasEvent(events, EventTP1Hit) {
		t.Fatalf("events = %v", events)
	}
	if hasEvent(events, EventTP2Hit) {
		t.Errorf("TP2 fired on the same bar as TP1: %v", events)
	}
	if trade.RemainingContracts != 5 {
		t.Errorf("remaining = %d, want 5", trade.RemainingContracts)
	}

	// Next bar above TP2 fires it.
	events = lc.Update(trade, mkBar(110, 111, 109.5, 110.5), 2)
	if !hasEvent(events, EventTP2Hit) {
		t.Errorf("events = %v", events)
	}
}

func TestBreakevenExitIsNotALoss(t *testing.T) {
	lc := NewLifecycle(
		config.StopLossConfig{TrailAfterTP1: false, TrailATRMult: 1.5, MaxSLATRMult: 3},
		config.TakeProfitConfig{
			TP3FibExt: 1.618, MinTP1RMult: 1, MinTP2RMult: 2, MinTP3RMult: 3,
			TP1ExitPct: 0.5, TP2ExitPct: 0.3, MoveToBEAfterTP1: true,
		},
	)
	trade := longTrade()

	lc.Update(trade, mkBar(104, 105.5, 103.5, 105), 2)
	pnlAfterTP1 := trade.RealizedPnL

	// Bar's low lands exactly on the breakeven stop.
	events := lc.Update(trade, mkBar(101, 101.5, 100, 100.5), 2)
	if !hasEvent(events, EventStopLossHit) {
		t.Fatalf("events = %v", events)
	}
	if trade.Status != StatusClosed {
		t.Errorf("status = %s, want CLOSED", trade.Status)
	}
	if trade.RealizedPnL != pnlAfterTP1 {
		t.Errorf("breakeven slice changed pnl: %v -> %v", pnlAfterTP1, trade.RealizedPnL)
	}
}

func TestTrailingStopOnlyTightens(t *testing.T) {
	lc := testLifecycle()
	trade := longTrade()

	lc.Update(trade, mkBar(104, 105.5, 103.5, 105), 2) // TP1, trailing on
	if !trade.TrailingActive {
		t.Fatal("trailing should be active after TP1")
	}

	// High 108: trail = 108 - 1.5*2 = 105, above the breakeven stop.
	events := lc.Update(trade, mkBar(106, 108, 105.5, 107.5), 2)
	if !hasEvent(events, EventTrailingUpdated) || trade.CurrentStop != 105 {
		t.Fatalf("stop = %v events = %v", trade.CurrentStop, events)
	}

	// Lower high: the best price is unchanged, so the candidate trail
	// matches the current stop and must not re-fire.
	events = lc.Update(trade, mkBar(106.5, 107, 105.2, 106), 2)
	if hasEvent(events, EventTrailingUpdated) || trade.CurrentStop != 105 {
		t.Errorf("trailing loosened: stop = %v events = %v", trade.CurrentStop, events)
	}
}

func TestShortTradeMirrors(t *testing.T) {
	lc := testLifecycle()
	sig := &TradeSignal{
		ID: "short", Symbol: "ES", Direction: analysis.Short,
		EntryPrice: 100, StopPrice: 105,
		Targets:   [3]float64{95, 90, 85},
		Contracts: 10,
	}
	trade := NewOpenTrade(sig, 0, 100, 50, mkBar(100, 100.5, 99.5, 100))

	events := lc.Update(trade, mkBar(96, 96.5, 94.5, 95), 2)
	if !hasEvent(events, EventTP1Hit) || !hasEvent(events, EventMoveToBE) {
		t.Fatalf("events = %v", events)
	}
	if trade.RemainingContracts != 5 || trade.CurrentStop != 100 {
		t.Errorf("remaining=%d stop=%v", trade.RemainingContracts, trade.CurrentStop)
	}
	if trade.RealizedPnL != 5*5*50 {
		t.Errorf("pnl = %v, want 1250", trade.RealizedPnL)
	}

	// Stop-out of the rest at breakeven.
	events = lc.Update(trade, mkBar(99, 100.2, 98.5, 100), 2)
	if !hasEvent(events, EventStopLossHit) || trade.Status != StatusClosed {
		t.Errorf("events = %v status = %s", events, trade.Status)
	}
}

func TestUpdateOnClosedTradeIsNoOp(t *testing.T) {
	lc := testLifecycle()
	trade := longTrade()
	lc.Update(trade, mkBar(99, 99.5, 94, 94.5), 2) // stopped out

	before := *trade
	events := lc.Update(trade, mkBar(120, 125, 119, 124), 2)
	if events != nil {
		t.Errorf("closed trade produced events: %v", events)
	}
	if *trade != before {
		t.Errorf("closed trade mutated: %+v -> %+v", before, *trade)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	lc := testLifecycle()
	sig := &TradeSignal{
		ID: "tiny", Symbol: "ES", Direction: analysis.Long,
		EntryPrice: 100, StopPrice: 95,
		Targets:   [3]float64{105, 110, 115},
		Contracts: 1,
	}
	trade := NewOpenTrade(sig, 0, 100, 50, mkBar(100, 100.5, 99.5, 100))

	// One contract: the TP1 minimum-of-one exit takes the whole position.
	events := lc.Update(trade, mkBar(104, 105.5, 103.5, 105), 2)
	if trade.RemainingContracts != 0 {
		t.Fatalf("remaining = %d, want 0", trade.RemainingContracts)
	}
	if trade.Status != StatusClosed || !hasEvent(events, EventTradeClosed) {
		t.Errorf("single-contract TP1 should close the trade: %v, %s", events, trade.Status)
	}
}
