package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/market"
	"ict-sweep-bot/internal/risk"
	"ict-sweep-bot/internal/strategy"
)

// Engine replays a bar series through the strategy and collects performance
// metrics. Each run builds a fresh strategy and risk manager, so runs are
// independent and deterministic for a given series and config.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// Result holds one backtest run.
type Result struct {
	Symbol        string
	Bars          int
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	GrossProfit   float64
	GrossLoss     float64
	NetProfit     float64
	ROI           float64
	ProfitFactor  float64
	AverageWin    float64
	AverageLoss   float64
	MaxDrawdown   float64
	SharpeRatio   float64
	FinalEquity   float64
	Trades        []Trade
	EquityCurve   []EquityPoint
}

// Trade is one finished trade in a run.
type Trade struct {
	ID        string
	Direction string
	EntryTime time.Time
	ExitTime  time.Time
	Entry     float64
	Stop      float64
	Contracts int
	GrossPnL  float64
	NetPnL    float64
	RMultiple float64
}

// EquityPoint is the account equity after a trade closed.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// NewEngine creates a backtest engine for the given config.
func NewEngine(cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "backtest").Logger(),
	}
}

// Run replays the bars through a fresh strategy instance. Bars must belong
// to one symbol and be in increasing timestamp order. Daily risk limits
// roll over when the bar date changes.
func (e *Engine) Run(symbol string, bars []market.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to replay")
	}

	riskMgr := risk.NewManager(e.cfg.Risk, e.cfg.Equity, e.logger)
	strat := strategy.New(e.cfg, symbol, riskMgr, e.logger)

	result := &Result{Symbol: symbol, Bars: len(bars)}
	closedSoFar := 0
	currentDay := bars[0].Timestamp.Truncate(24 * time.Hour)

	for _, bar := range bars {
		if day := bar.Timestamp.Truncate(24 * time.Hour); day.After(currentDay) {
			riskMgr.ResetDaily(day)
			currentDay = day
		}

		strat.OnBar(bar)

		for _, closed := range strat.ClosedTrades()[closedSoFar:] {
			commission := e.cfg.Risk.CommissionPerContract * float64(closed.InitialContracts) * 2
			netPnL := closed.RealizedPnL - commission
			riskPerContract := math.Abs(closed.Signal.EntryPrice-closed.Signal.StopPrice) * closed.PointValue
			rMultiple := 0.0
			if riskPerContract > 0 {
				rMultiple = netPnL / (riskPerContract * float64(closed.InitialContracts))
			}

			result.Trades = append(result.Trades, Trade{
				ID:        closed.Signal.ID,
				Direction: closed.Signal.Direction.String(),
				EntryTime: closed.Signal.Timestamp,
				ExitTime:  bar.Timestamp,
				Entry:     closed.EntryFillPrice,
				Stop:      closed.Signal.StopPrice,
				Contracts: closed.InitialContracts,
				GrossPnL:  closed.RealizedPnL,
				NetPnL:    netPnL,
				RMultiple: rMultiple,
			})
			result.EquityCurve = append(result.EquityCurve, EquityPoint{
				Timestamp: bar.Timestamp,
				Equity:    riskMgr.Equity(),
			})
		}
		closedSoFar = len(strat.ClosedTrades())
	}

	result.FinalEquity = riskMgr.Equity()
	e.computeMetrics(result)

	e.logger.Info().
		Str("symbol", symbol).
		Int("bars", result.Bars).
		Int("trades", result.TotalTrades).
		Float64("net_profit", result.NetProfit).
		Float64("win_rate", result.WinRate).
		Msg("Backtest finished")
	return result, nil
}

func (e *Engine) computeMetrics(r *Result) {
	r.TotalTrades = len(r.Trades)
	for _, t := range r.Trades {
		if t.NetPnL > 0 {
			r.WinningTrades++
			r.GrossProfit += t.NetPnL
		} else {
			r.LosingTrades++
			r.GrossLoss += -t.NetPnL
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AverageWin = r.GrossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = r.GrossLoss / float64(r.LosingTrades)
	}

	r.NetProfit = r.FinalEquity - e.cfg.Equity
	if e.cfg.Equity > 0 {
		r.ROI = r.NetProfit / e.cfg.Equity * 100
	}
	if r.GrossLoss > 0 {
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	}

	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.SharpeRatio = sharpeRatio(r.Trades)
}

// maxDrawdown is the deepest peak-to-trough equity drop, in percent.
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	maxDD := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			if dd := (peak - point.Equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio is the per-trade mean R over its standard deviation, with a
// zero risk-free rate.
func sharpeRatio(trades []Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	mean := 0.0
	for _, t := range trades {
		mean += t.RMultiple
	}
	mean /= float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		diff := t.RMultiple - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(trades)))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

// Summary formats the headline numbers for logs or the CLI.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"%s: %d trades, %.1f%% win rate, net %.2f (ROI %.2f%%), PF %.2f, maxDD %.2f%%, sharpe %.2f",
		r.Symbol, r.TotalTrades, r.WinRate, r.NetProfit, r.ROI, r.ProfitFactor, r.MaxDrawdown, r.SharpeRatio,
	)
}
