package broker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/analysis"
	"ict-sweep-bot/internal/strategy"
)

// Bracket is the order set for one executed signal: the entry, the
// protective stop, and the scale-out targets.
type Bracket struct {
	Entry   Order
	Stop    Order
	Targets []Order
}

// Executor turns trade signals into broker orders through an Adapter. It
// holds no market state; sizing and levels come entirely from the signal.
type Executor struct {
	adapter Adapter
	tpCfg   config.TakeProfitConfig
	logger  zerolog.Logger
}

// NewExecutor creates an executor on the given adapter.
func NewExecutor(adapter Adapter, tpCfg config.TakeProfitConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		adapter: adapter,
		tpCfg:   tpCfg,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

// ExecuteSignal submits the full bracket for a signal: a limit entry at the
// signal price, a stop for the full size, and one limit exit per target
// with the scale-out split applied. A failed entry submission aborts the
// bracket; a failed child order cancels the ones already working so the
// position is never left unprotected.
func (e *Executor) ExecuteSignal(ctx context.Context, sig *strategy.TradeSignal) (*Bracket, error) {
	entryAction, exitAction := Buy, Sell
	if sig.Direction == analysis.Short {
		entryAction, exitAction = Sell, Buy
	}

	entry, err := e.adapter.SubmitOrder(ctx, Order{
		Symbol:   sig.Symbol,
		Action:   entryAction,
		Qty:      sig.Contracts,
		Type:     Limit,
		Price:    sig.EntryPrice,
		SignalID: sig.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit entry: %w", err)
	}

	bracket := &Bracket{Entry: entry}

	stop, err := e.adapter.SubmitOrder(ctx, Order{
		Symbol:    sig.Symbol,
		Action:    exitAction,
		Qty:       sig.Contracts,
		Type:      Stop,
		StopPrice: sig.StopPrice,
		SignalID:  sig.ID,
	})
	if err != nil {
		e.abort(ctx, bracket)
		return nil, fmt.Errorf("submit stop: %w", err)
	}
	bracket.Stop = stop

	for i, qty := range splitExits(sig.Contracts, e.tpCfg.TP1ExitPct, e.tpCfg.TP2ExitPct) {
		if qty == 0 {
			continue
		}
		target, err := e.adapter.SubmitOrder(ctx, Order{
			Symbol:   sig.Symbol,
			Action:   exitAction,
			Qty:      qty,
			Type:     Limit,
			Price:    sig.Targets[i],
			SignalID: sig.ID,
		})
		if err != nil {
			e.abort(ctx, bracket)
			return nil, fmt.Errorf("submit target %d: %w", i+1, err)
		}
		bracket.Targets = append(bracket.Targets, target)
	}

	e.logger.Info().
		Str("signal_id", sig.ID).
		Str("entry_order", bracket.Entry.ID).
		Int("targets", len(bracket.Targets)).
		Msg("Bracket submitted")
	return bracket, nil
}

// CancelBracket cancels every still-working order of a bracket.
func (e *Executor) CancelBracket(ctx context.Context, b *Bracket) error {
	var firstErr error
	for _, o := range append([]Order{b.Entry, b.Stop}, b.Targets...) {
		if o.ID == "" {
			continue
		}
		if err := e.adapter.CancelOrder(ctx, o.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MoveStop adjusts the bracket's protective stop to a new trigger price.
func (e *Executor) MoveStop(ctx context.Context, b *Bracket, stopPrice float64) error {
	return e.adapter.ModifyOrder(ctx, b.Stop.ID, 0, stopPrice)
}

// FlattenAll market-closes every open position.
func (e *Executor) FlattenAll(ctx context.Context) error {
	positions, err := e.adapter.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if pos.Qty == 0 {
			continue
		}
		action := Sell
		qty := pos.Qty
		if qty < 0 {
			action = Buy
			qty = -qty
		}
		if _, err := e.adapter.SubmitOrder(ctx, Order{
			Symbol: pos.Symbol,
			Action: action,
			Qty:    qty,
			Type:   Market,
		}); err != nil {
			return fmt.Errorf("flatten %s: %w", pos.Symbol, err)
		}
	}
	return nil
}

func (e *Executor) abort(ctx context.Context, b *Bracket) {
	if err := e.CancelBracket(ctx, b); err != nil {
		e.logger.Error().Err(err).Msg("Failed to cancel partial bracket")
	}
}

// splitExits sizes the three scale-out exits from the full contract count.
// The first two take their configured fractions, at least one contract each
// while any remain; the last takes the remainder.
func splitExits(contracts int, tp1Pct, tp2Pct float64) [3]int {
	var out [3]int
	remaining := contracts

	for i, pct := range []float64{tp1Pct, tp2Pct} {
		if remaining == 0 {
			return out
		}
		qty := int(float64(contracts) * pct)
		if qty < 1 {
			qty = 1
		}
		if qty > remaining {
			qty = remaining
		}
		out[i] = qty
		remaining -= qty
	}
	out[2] = remaining
	return out
}
