package bot

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/alert"
	"ict-sweep-bot/internal/api"
	"ict-sweep-bot/internal/broker"
	"ict-sweep-bot/internal/market"
	"ict-sweep-bot/internal/risk"
	"ict-sweep-bot/internal/strategy"
)

// Bot wires the per-symbol strategies to the bar feed, the broker, and the
// alert sinks. One risk manager is shared across symbols so the position
// cap and daily-loss breaker hold at the portfolio level.
type Bot struct {
	cfg    *config.Config
	logger zerolog.Logger

	riskMgr    *risk.Manager
	strategies map[string]*strategy.Strategy
	executor   *broker.Executor
	paper      *broker.PaperBroker
	alerts     *alert.Manager
	scheduler  *cron.Cron

	mu        sync.RWMutex
	startedAt time.Time
	running   bool
	barsSeen  map[string]int
	brackets  map[string]*broker.Bracket
}

// New builds a bot for the configured symbols.
func New(cfg *config.Config, alerts *alert.Manager, logger zerolog.Logger) *Bot {
	riskMgr := risk.NewManager(cfg.Risk, cfg.Equity, logger)
	paper := broker.NewPaperBroker(cfg.Equity, cfg.Risk.CommissionPerContract, 0, logger)

	b := &Bot{
		cfg:        cfg,
		logger:     logger.With().Str("component", "bot").Logger(),
		riskMgr:    riskMgr,
		strategies: make(map[string]*strategy.Strategy),
		executor:   broker.NewExecutor(paper, cfg.TakeProfit, logger),
		paper:      paper,
		alerts:     alerts,
		scheduler:  cron.New(cron.WithLocation(time.UTC)),
		barsSeen:   make(map[string]int),
		brackets:   make(map[string]*broker.Bracket),
	}
	for _, symbol := range cfg.Symbols {
		b.strategies[symbol] = strategy.New(cfg, symbol, riskMgr, logger)
	}
	return b
}

// Run consumes bars until the channel closes or the context is cancelled.
// The daily risk reset fires at midnight UTC.
func (b *Bot) Run(ctx context.Context, bars <-chan market.Bar) error {
	if err := b.paper.Connect(ctx); err != nil {
		return err
	}
	defer b.paper.Disconnect()

	if _, err := b.scheduler.AddFunc("0 0 * * *", func() {
		b.riskMgr.ResetDaily(time.Now().UTC().Truncate(24 * time.Hour))
		summary := b.riskMgr.DailySummary()
		b.logger.Info().
			Int("trades", summary.TradesTaken).
			Float64("net_pnl", summary.NetPnL).
			Msg("Daily rollover")
	}); err != nil {
		return err
	}
	b.scheduler.Start()
	defer b.scheduler.Stop()

	b.mu.Lock()
	b.running = true
	b.startedAt = time.Now().UTC()
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	b.logger.Info().Strs("symbols", b.cfg.Symbols).Str("timeframe", b.cfg.Timeframe).Msg("Bot running")

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				b.shutdown()
				return nil
			}
			b.onBar(ctx, bar)
		}
	}
}

// onBar routes one bar to its symbol's strategy and acts on the outcome.
func (b *Bot) onBar(ctx context.Context, bar market.Bar) {
	strat, ok := b.strategies[bar.Symbol]
	if !ok {
		return
	}

	b.paper.ProcessBar(bar)

	// Strategy state is only ever mutated here; the lock lets the status
	// API read it from other goroutines.
	b.mu.Lock()
	signal, updates := strat.OnBar(bar)
	b.barsSeen[bar.Symbol]++
	b.mu.Unlock()

	for _, update := range updates {
		for _, event := range update.Events {
			b.alerts.Exit(bar.Symbol, string(event), bar.Close, update.Trade.RealizedPnL)
		}
		if update.Trade.Status == strategy.StatusClosed {
			b.cancelBracket(ctx, update.Trade.Signal.ID)
		}
	}

	if signal == nil {
		return
	}

	b.alerts.Signal(signal.Symbol, signal.Direction.String(), signal.EntryPrice, signal.StopPrice, signal.Targets[0])

	bracket, err := b.executor.ExecuteSignal(ctx, signal)
	if err != nil {
		b.logger.Error().Err(err).Str("signal_id", signal.ID).Msg("Bracket submission failed")
		b.alerts.Error("Order submission failed", err.Error())
		return
	}
	b.mu.Lock()
	b.brackets[signal.ID] = bracket
	b.mu.Unlock()
	b.alerts.Entry(signal.Symbol, signal.Direction.String(), signal.EntryPrice, signal.Contracts)
}

func (b *Bot) cancelBracket(ctx context.Context, signalID string) {
	b.mu.Lock()
	bracket, ok := b.brackets[signalID]
	delete(b.brackets, signalID)
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := b.executor.CancelBracket(ctx, bracket); err != nil {
		b.logger.Error().Err(err).Str("signal_id", signalID).Msg("Bracket cancel failed")
	}
}

// shutdown cancels every resting bracket so nothing works unattended.
func (b *Bot) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.mu.Lock()
	brackets := b.brackets
	b.brackets = make(map[string]*broker.Bracket)
	b.mu.Unlock()

	for id, bracket := range brackets {
		if err := b.executor.CancelBracket(ctx, bracket); err != nil {
			b.logger.Error().Err(err).Str("signal_id", id).Msg("Bracket cancel failed on shutdown")
		}
	}
	b.logger.Info().Msg("Bot stopped")
}

// Status implements api.BotAPI.
func (b *Bot) Status() api.StatusSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbols := make(map[string]api.SymbolInfo, len(b.strategies))
	for symbol, strat := range b.strategies {
		symbols[symbol] = api.SymbolInfo{
			State:      strat.State().String(),
			ATR:        strat.ATR(),
			BarsSeen:   b.barsSeen[symbol],
			OpenTrades: len(strat.OpenTrades()),
		}
	}
	return api.StatusSnapshot{
		Running:   b.running,
		StartedAt: b.startedAt,
		Timeframe: b.cfg.Timeframe,
		Symbols:   symbols,
	}
}

// OpenTrades implements api.BotAPI.
func (b *Bot) OpenTrades() []api.TradeSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []api.TradeSnapshot
	for _, strat := range b.strategies {
		for _, trade := range strat.OpenTrades() {
			out = append(out, tradeSnapshot(trade))
		}
	}
	return out
}

// ClosedTrades implements api.BotAPI.
func (b *Bot) ClosedTrades() []api.TradeSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []api.TradeSnapshot
	for _, strat := range b.strategies {
		for _, trade := range strat.ClosedTrades() {
			out = append(out, tradeSnapshot(trade))
		}
	}
	return out
}

// Account implements api.BotAPI.
func (b *Bot) Account() api.AccountSnapshot {
	return api.AccountSnapshot{
		Equity:        b.riskMgr.Equity(),
		DailyPnL:      b.riskMgr.DailyPnL(),
		OpenPositions: b.riskMgr.OpenPositions(),
		InCooldown:    b.riskMgr.InCooldown(),
		DailyLimitHit: b.riskMgr.DailyLossLimitReached(),
	}
}

func tradeSnapshot(t *strategy.OpenTrade) api.TradeSnapshot {
	return api.TradeSnapshot{
		ID:          t.Signal.ID,
		Symbol:      t.Signal.Symbol,
		Direction:   t.Signal.Direction.String(),
		Status:      string(t.Status),
		Entry:       t.EntryFillPrice,
		Stop:        t.CurrentStop,
		Contracts:   t.InitialContracts,
		Remaining:   t.RemainingContracts,
		RealizedPnL: t.RealizedPnL,
		OpenedAt:    t.Signal.Timestamp,
	}
}
