package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
)

// riskSanityMult rejects signals asking for more than this multiple of the
// per-trade budget, a sign of a mis-sized stop upstream.
const riskSanityMult = 1.5

// DailyStats accumulates one trading day of results.
type DailyStats struct {
	Date        time.Time
	TradesTaken int
	TradesWon   int
	TradesLost  int
	GrossPnL    float64
	Commissions float64
	NetPnL      float64
	MaxDrawdown float64
	PeakEquity  float64
}

// Manager gates new trades and sizes positions. It is deliberately
// independent of the strategy package: callers hand it primitives (risk
// dollars, entry/stop prices), never strategy types.
type Manager struct {
	cfg    config.RiskConfig
	logger zerolog.Logger

	startingEquity float64
	equity         float64
	dailyPnL       float64
	openPositions  int
	cooldownBars   int
	lastBarTime    time.Time
	stats          DailyStats
}

// NewManager creates a risk manager with the given starting equity.
func NewManager(cfg config.RiskConfig, startingEquity float64, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		logger:         logger.With().Str("component", "risk_manager").Logger(),
		startingEquity: startingEquity,
		equity:         startingEquity,
		stats:          DailyStats{PeakEquity: startingEquity},
	}
}

// CanTakeTrade runs the gate checks in a fixed order: daily-loss breaker,
// concurrent position cap, cooldown, then a sanity bound on the requested
// risk. The reason string names the first check that failed.
func (m *Manager) CanTakeTrade(riskAmount float64) (bool, string) {
	maxDailyLoss := m.startingEquity * m.cfg.MaxDailyLossPct
	if math.Abs(m.dailyPnL) >= maxDailyLoss && m.dailyPnL < 0 {
		return false, "daily loss limit reached"
	}
	if m.openPositions >= m.cfg.MaxPositions {
		return false, "max concurrent positions reached"
	}
	if m.cooldownBars > 0 {
		return false, "in cooldown"
	}
	if riskAmount > m.equity*m.cfg.RiskPerTradePct*riskSanityMult {
		return false, "risk amount exceeds per-trade budget"
	}
	return true, ""
}

// CalculatePositionSize sizes a position from the per-trade risk budget and
// the stop distance in ticks. The contract count is clamped to
// [1, max_positions]; the returned risk includes round-trip commission.
// A zero or negative stop distance yields (0, 0).
func (m *Manager) CalculatePositionSize(entry, stop float64, symbol string) (int, float64) {
	spec := SpecFor(symbol)
	budget := m.equity * m.cfg.RiskPerTradePct

	slTicks := math.Abs(entry-stop) / spec.TickSize
	riskPerContract := slTicks * spec.TickValue
	if riskPerContract <= 0 {
		return 0, 0
	}

	contracts := int(budget / riskPerContract)
	if contracts < 1 {
		contracts = 1
	}
	if contracts > m.cfg.MaxPositions {
		contracts = m.cfg.MaxPositions
	}

	actualRisk := float64(contracts)*riskPerContract + float64(contracts)*m.cfg.CommissionPerContract*2
	return contracts, actualRisk
}

// RegisterTradeOpen records a new open position.
func (m *Manager) RegisterTradeOpen(symbol string, contracts int) {
	m.openPositions++
	m.stats.TradesTaken++
	m.logger.Info().
		Str("symbol", symbol).
		Int("contracts", contracts).
		Int("open_positions", m.openPositions).
		Msg("Trade opened")
}

// RegisterTradeClose books a finished trade: commission is deducted from
// the gross P&L, equity and the daily tally move by the net amount, and the
// post-trade cooldown starts.
func (m *Manager) RegisterTradeClose(symbol string, contracts int, grossPnL float64) float64 {
	commission := m.cfg.CommissionPerContract * float64(contracts) * 2
	netPnL := grossPnL - commission

	m.equity += netPnL
	m.dailyPnL += netPnL
	if m.openPositions > 0 {
		m.openPositions--
	}

	m.stats.GrossPnL += grossPnL
	m.stats.Commissions += commission
	m.stats.NetPnL += netPnL
	if netPnL > 0 {
		m.stats.TradesWon++
	} else {
		m.stats.TradesLost++
	}
	if m.equity > m.stats.PeakEquity {
		m.stats.PeakEquity = m.equity
	}
	if dd := m.stats.PeakEquity - m.equity; dd > m.stats.MaxDrawdown {
		m.stats.MaxDrawdown = dd
	}

	m.cooldownBars = m.cfg.CooldownBars

	m.logger.Info().
		Str("symbol", symbol).
		Float64("gross_pnl", grossPnL).
		Float64("net_pnl", netPnL).
		Float64("equity", m.equity).
		Msg("Trade closed")
	return netPnL
}

// OnBar ticks the cooldown counter. A manager shared across symbols sees
// each interval once per symbol; bars that do not advance the market clock
// are ignored so the cooldown counts market bars, not symbol bars.
func (m *Manager) OnBar(ts time.Time) {
	if !ts.After(m.lastBarTime) {
		return
	}
	m.lastBarTime = ts
	if m.cooldownBars > 0 {
		m.cooldownBars--
	}
}

// ResetDaily rolls the daily stats over to a new session date. Cooldown
// does not carry across sessions.
func (m *Manager) ResetDaily(day time.Time) {
	m.stats = DailyStats{Date: day, PeakEquity: m.equity}
	m.dailyPnL = 0
	m.cooldownBars = 0
	m.logger.Info().Str("date", day.Format("2006-01-02")).Msg("Daily stats reset")
}

// Equity returns the current account equity.
func (m *Manager) Equity() float64 { return m.equity }

// DailyPnL returns the net P&L booked so far today.
func (m *Manager) DailyPnL() float64 { return m.dailyPnL }

// OpenPositions returns the number of registered open positions.
func (m *Manager) OpenPositions() int { return m.openPositions }

// InCooldown reports whether the post-trade cooldown is still running.
func (m *Manager) InCooldown() bool { return m.cooldownBars > 0 }

// DailyLossLimitReached reports whether the daily-loss breaker has tripped.
func (m *Manager) DailyLossLimitReached() bool {
	return m.dailyPnL < 0 && math.Abs(m.dailyPnL) >= m.startingEquity*m.cfg.MaxDailyLossPct
}

// DailySummary returns a snapshot of today's stats.
func (m *Manager) DailySummary() DailyStats {
	s := m.stats
	return s
}
