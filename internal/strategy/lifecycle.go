package strategy

import (
	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/market"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"
	StatusOpen      TradeStatus = "OPEN"
	StatusPartial   TradeStatus = "PARTIAL"
	StatusClosed    TradeStatus = "CLOSED"
	StatusCancelled TradeStatus = "CANCELLED"
)

// TradeEvent names something that happened to an open trade on a bar.
type TradeEvent string

const (
	EventStopLossHit     TradeEvent = "STOP_LOSS_HIT"
	EventTP1Hit          TradeEvent = "TP1_HIT"
	EventTP2Hit          TradeEvent = "TP2_HIT"
	EventTP3Hit          TradeEvent = "TP3_HIT"
	EventMoveToBE        TradeEvent = "MOVE_TO_BE"
	EventTrailingActive  TradeEvent = "TRAILING_ACTIVE"
	EventTrailingUpdated TradeEvent = "TRAILING_STOP_UPDATED"
	EventTradeClosed     TradeEvent = "TRADE_CLOSED"
)

// OpenTrade wraps a TradeSignal with mutable position state. The lifecycle
// manager is its sole mutator.
type OpenTrade struct {
	Signal         *TradeSignal
	Status         TradeStatus
	EntryBarIndex  int
	EntryFillPrice float64

	InitialContracts   int
	RemainingContracts int
	RealizedPnL        float64
	PointValue         float64

	CurrentStop    float64
	CurrentTargets [3]float64

	TP1Hit bool
	TP2Hit bool
	TP3Hit bool

	TrailingActive bool
	BestSinceEntry float64
}

// NewOpenTrade creates a trade from a filled signal. PointValue is the
// dollar value of a one point move for the signal's contract.
func NewOpenTrade(sig *TradeSignal, entryBarIndex int, fillPrice, pointValue float64, entryBar market.Bar) *OpenTrade {
	best := entryBar.High
	if sig.Direction == analysis.Short {
		best = entryBar.Low
	}
	return &OpenTrade{
		Signal:             sig,
		Status:             StatusOpen,
		EntryBarIndex:      entryBarIndex,
		EntryFillPrice:     fillPrice,
		InitialContracts:   sig.Contracts,
		RemainingContracts: sig.Contracts,
		PointValue:         pointValue,
		CurrentStop:        sig.StopPrice,
		CurrentTargets:     sig.Targets,
		BestSinceEntry:     best,
	}
}

// GrossPnL is the dollar result of exiting contracts at price.
func (t *OpenTrade) GrossPnL(price float64, contracts int) float64 {
	points := t.Signal.Direction.Sign() * (price - t.EntryFillPrice)
	return points * float64(contracts) * t.PointValue
}

// Lifecycle advances open trades bar by bar through partial exits, the
// breakeven move, and the trailing stop.
type Lifecycle struct {
	slCfg config.StopLossConfig
	tpCfg config.TakeProfitConfig
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(slCfg config.StopLossConfig, tpCfg config.TakeProfitConfig) *Lifecycle {
	return &Lifecycle{slCfg: slCfg, tpCfg: tpCfg}
}

// Update applies one bar to a trade. Handlers are evaluated in a fixed
// order: stop, TP1, TP2, then trail/TP3, and at most one fires per bar. A
// CLOSED or CANCELLED trade is left untouched.
func (l *Lifecycle) Update(t *OpenTrade, bar market.Bar, atr float64) []TradeEvent {
	if t.Status == StatusClosed || t.Status == StatusCancelled {
		return nil
	}

	sign := t.Signal.Direction.Sign()
	high, low := bar.High, bar.Low

	// Best favorable price since entry drives the trailing stop.
	favorable := high
	if t.Signal.Direction == analysis.Short {
		favorable = low
	}
	if sign*(favorable-t.BestSinceEntry) > 0 {
		t.BestSinceEntry = favorable
	}

	adverse := low
	if t.Signal.Direction == analysis.Short {
		adverse = high
	}

	// Stop.
	if sign*(adverse-t.CurrentStop) <= 0 {
		return l.closeAll(t, t.CurrentStop, EventStopLossHit)
	}

	// TP1.
	if !t.TP1Hit && sign*(favorable-t.CurrentTargets[0]) >= 0 {
		events := []TradeEvent{EventTP1Hit}
		t.TP1Hit = true
		t.exitPartial(t.CurrentTargets[0], l.partialSize(t, l.tpCfg.TP1ExitPct))

		if t.RemainingContracts > 0 {
			t.Status = StatusPartial
			if l.tpCfg.MoveToBEAfterTP1 {
				t.CurrentStop = t.EntryFillPrice
				events = append(events, EventMoveToBE)
			}
			if l.slCfg.TrailAfterTP1 {
				t.TrailingActive = true
				events = append(events, EventTrailingActive)
			}
		} else {
			t.Status = StatusClosed
			events = append(events, EventTradeClosed)
		}
		return events
	}

	// TP2, only once TP1 is banked.
	if t.TP1Hit && !t.TP2Hit && sign*(favorable-t.CurrentTargets[1]) >= 0 {
		t.TP2Hit = true
		t.exitPartial(t.CurrentTargets[1], l.partialSize(t, l.tpCfg.TP2ExitPct))
		if t.RemainingContracts <= 0 {
			t.Status = StatusClosed
			return []TradeEvent{EventTP2Hit, EventTradeClosed}
		}
		return []TradeEvent{EventTP2Hit}
	}

	// Runner: TP3 or a trailing-stop tighten.
	if t.TP2Hit && !t.TP3Hit && sign*(favorable-t.CurrentTargets[2]) >= 0 {
		t.TP3Hit = true
		return l.closeAll(t, t.CurrentTargets[2], EventTP3Hit)
	}
	if t.TrailingActive && t.RemainingContracts > 0 && atr > 0 {
		trail := t.BestSinceEntry - sign*atr*l.slCfg.TrailATRMult
		if sign*(trail-t.CurrentStop) > 0 {
			t.CurrentStop = trail
			return []TradeEvent{EventTrailingUpdated}
		}
	}

	return nil
}

// partialSize is the configured fraction of the original position, floored,
// bounded to [1, remaining].
func (l *Lifecycle) partialSize(t *OpenTrade, pct float64) int {
	n := int(float64(t.InitialContracts) * pct)
	if n < 1 {
		n = 1
	}
	if n > t.RemainingContracts {
		n = t.RemainingContracts
	}
	return n
}

func (t *OpenTrade) exitPartial(price float64, contracts int) {
	t.RealizedPnL += t.GrossPnL(price, contracts)
	t.RemainingContracts -= contracts
}

func (l *Lifecycle) closeAll(t *OpenTrade, price float64, cause TradeEvent) []TradeEvent {
	t.exitPartial(price, t.RemainingContracts)
	t.Status = StatusClosed
	return []TradeEvent{cause, EventTradeClosed}
}
