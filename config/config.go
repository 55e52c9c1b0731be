package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FVG entry modes
const (
	EntryFirstTouch = "FIRST_TOUCH"
	EntryMidpoint   = "MIDPOINT"
	EntryLowerEdge  = "LOWER_EDGE"
)

// FVG mitigation rules
const (
	MitigationWickTouch    = "WICK_TOUCH"
	MitigationCloseThrough = "CLOSE_THROUGH"
)

// Config is the master configuration for the sweep/MSS/FVG strategy engine.
type Config struct {
	Name      string   `yaml:"name"`
	Symbols   []string `yaml:"symbols"`
	Timeframe string   `yaml:"timeframe"`
	Equity    float64  `yaml:"equity"`

	Swing        SwingConfig        `yaml:"swing"`
	Sweep        SweepConfig        `yaml:"sweep"`
	MSS          MSSConfig          `yaml:"mss"`
	Displacement DisplacementConfig `yaml:"displacement"`
	FVG          FVGConfig          `yaml:"fvg"`
	OTE          OTEConfig          `yaml:"ote"`
	StopLoss     StopLossConfig     `yaml:"stop_loss"`
	TakeProfit   TakeProfitConfig   `yaml:"take_profit"`
	Risk         RiskConfig         `yaml:"risk"`
	Filters      FilterConfig       `yaml:"filters"`

	Feed    FeedConfig    `yaml:"feed"`
	Alerts  AlertConfig   `yaml:"alerts"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// SwingConfig holds fractal pivot detection parameters.
type SwingConfig struct {
	LeftBars         int `yaml:"left_bars"`
	RightBars        int `yaml:"right_bars"`
	MinSwingDistance int `yaml:"min_swing_distance"`
}

// SweepConfig holds liquidity sweep parameters.
type SweepConfig struct {
	SweepBufferPct     float64 `yaml:"sweep_buffer_pct"`      // buffer as fraction of price
	SweepBufferATRMult float64 `yaml:"sweep_buffer_atr_mult"` // buffer as ATR multiple
	UseATRBuffer       bool    `yaml:"use_atr_buffer"`
	RequireCloseBack   bool    `yaml:"require_close_back"` // candle must close back inside the swept level
	MaxBarsForConfirm  int     `yaml:"max_bars_for_confirm"`
}

// MSSConfig holds market structure shift parameters.
type MSSConfig struct {
	PivotLookbackBars int  `yaml:"pivot_lookback_bars"`
	RequireCloseBreak bool `yaml:"require_close_break"` // break must be by close, not just wick
	MaxBarsAfterSweep int  `yaml:"max_bars_after_sweep"`
}

// DisplacementConfig holds displacement candle parameters.
type DisplacementConfig struct {
	MinBodyATRMult    float64 `yaml:"min_body_atr_mult"`
	MinBodyMedianMult float64 `yaml:"min_body_median_mult"`
	UseATRMethod      bool    `yaml:"use_atr_method"` // ATR method or median-body method, mutually exclusive
	ATRPeriod         int     `yaml:"atr_period"`
	MedianBodyPeriod  int     `yaml:"median_body_period"`
}

// FVGConfig holds fair value gap parameters.
type FVGConfig struct {
	MinFVGATRMult     float64 `yaml:"min_fvg_atr_mult"`
	MinFVGPrice       float64 `yaml:"min_fvg_price"`
	MaxFVGAgeBars     int     `yaml:"max_fvg_age_bars"`
	EntryMode         string  `yaml:"entry_mode"`      // FIRST_TOUCH, MIDPOINT, LOWER_EDGE
	MitigationRule    string  `yaml:"mitigation_rule"` // WICK_TOUCH or CLOSE_THROUGH
	MaxBarsForRetrace int     `yaml:"max_bars_for_retrace"`
	MaxBarsForFVG     int     `yaml:"max_bars_for_fvg"` // window after MSS to find displacement+FVG
}

// OTEConfig holds optimal trade entry (Fibonacci) parameters.
type OTEConfig struct {
	FibLower        float64 `yaml:"fib_lower"`        // shallower OTE boundary (retrace fraction)
	FibUpper        float64 `yaml:"fib_upper"`        // deeper OTE boundary
	DiscountFibMax  float64 `yaml:"discount_fib_max"` // discount/premium boundary
	RequireOTEEntry bool    `yaml:"require_ote_entry"`
}

// StopLossConfig holds stop placement parameters.
type StopLossConfig struct {
	BufferATRMult float64 `yaml:"buffer_atr_mult"`
	BufferFixed   float64 `yaml:"buffer_fixed"` // overrides ATR buffer when > 0
	MaxSLATRMult  float64 `yaml:"max_sl_atr_mult"`
	TrailAfterTP1 bool    `yaml:"trail_after_tp1"`
	TrailATRMult  float64 `yaml:"trail_atr_mult"`
}

// TakeProfitConfig holds target placement and partial exit parameters.
type TakeProfitConfig struct {
	TP3FibExt        float64 `yaml:"tp3_fib_ext"`
	MinTP1RMult      float64 `yaml:"min_tp1_r_mult"`
	MinTP2RMult      float64 `yaml:"min_tp2_r_mult"`
	MinTP3RMult      float64 `yaml:"min_tp3_r_mult"`
	TP1ExitPct       float64 `yaml:"tp1_exit_pct"`
	TP2ExitPct       float64 `yaml:"tp2_exit_pct"`
	MoveToBEAfterTP1 bool    `yaml:"move_to_be_after_tp1"`
}

// RiskConfig holds risk management parameters.
type RiskConfig struct {
	RiskPerTradePct       float64 `yaml:"risk_per_trade_pct"`
	MaxPositions          int     `yaml:"max_positions"`
	MaxDailyLossPct       float64 `yaml:"max_daily_loss_pct"`
	CooldownBars          int     `yaml:"cooldown_bars"`
	CommissionPerContract float64 `yaml:"commission_per_contract"` // one-way, charged round-trip
}

// FilterConfig holds cross-state no-trade filters.
type FilterConfig struct {
	MaxATRMult      float64 `yaml:"max_atr_mult"` // skip new setups when ATR > mult * median ATR
	MinATRMult      float64 `yaml:"min_atr_mult"` // skip new setups when ATR < mult * median ATR
	MedianATRWindow int     `yaml:"median_atr_window"`
}

// FeedConfig holds bar feed settings for the paper runner.
type FeedConfig struct {
	WebsocketURL   string `yaml:"websocket_url"`
	HistoryBars    int    `yaml:"history_bars"`
	ReconnectSecs  int    `yaml:"reconnect_secs"`
	ReplayDataFile string `yaml:"replay_data_file"` // when set, replay from file instead of websocket
}

// AlertConfig holds alert sink settings.
type AlertConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Console          bool   `yaml:"console"`
	FilePath         string `yaml:"file_path"`
	WebhookURL       string `yaml:"webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with the standard parameter set for index futures
// on the 15m timeframe.
func Default() *Config {
	return &Config{
		Name:      "ict-sweep-ote",
		Symbols:   []string{"ES"},
		Timeframe: "15m",
		Equity:    100000,
		Swing: SwingConfig{
			LeftBars:         2,
			RightBars:        2,
			MinSwingDistance: 3,
		},
		Sweep: SweepConfig{
			SweepBufferPct:     0.0005,
			SweepBufferATRMult: 0.1,
			UseATRBuffer:       true,
			RequireCloseBack:   true,
			MaxBarsForConfirm:  2,
		},
		MSS: MSSConfig{
			PivotLookbackBars: 20,
			RequireCloseBreak: true,
			MaxBarsAfterSweep: 10,
		},
		Displacement: DisplacementConfig{
			MinBodyATRMult:    0.8,
			MinBodyMedianMult: 1.5,
			UseATRMethod:      true,
			ATRPeriod:         14,
			MedianBodyPeriod:  20,
		},
		FVG: FVGConfig{
			MinFVGATRMult:     0.2,
			MinFVGPrice:       0,
			MaxFVGAgeBars:     50,
			EntryMode:         EntryMidpoint,
			MitigationRule:    MitigationWickTouch,
			MaxBarsForRetrace: 20,
			MaxBarsForFVG:     30,
		},
		OTE: OTEConfig{
			FibLower:        0.50,
			FibUpper:        0.79,
			DiscountFibMax:  0.50,
			RequireOTEEntry: false,
		},
		StopLoss: StopLossConfig{
			BufferATRMult: 0.2,
			BufferFixed:   0,
			MaxSLATRMult:  3.0,
			TrailAfterTP1: true,
			TrailATRMult:  1.5,
		},
		TakeProfit: TakeProfitConfig{
			TP3FibExt:        1.618,
			MinTP1RMult:      1.0,
			MinTP2RMult:      2.0,
			MinTP3RMult:      3.0,
			TP1ExitPct:       0.50,
			TP2ExitPct:       0.30,
			MoveToBEAfterTP1: true,
		},
		Risk: RiskConfig{
			RiskPerTradePct:       0.01,
			MaxPositions:          1,
			MaxDailyLossPct:       0.03,
			CooldownBars:          5,
			CommissionPerContract: 2.25,
		},
		Filters: FilterConfig{
			MaxATRMult:      2.0,
			MinATRMult:      0.3,
			MedianATRWindow: 50,
		},
		Feed: FeedConfig{
			HistoryBars:   200,
			ReconnectSecs: 5,
		},
		Alerts: AlertConfig{
			Enabled: true,
			Console: true,
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    ":8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictory or out-of-range values.
// Everything that would otherwise blow up deep inside the per-bar path is
// rejected here, once.
func (c *Config) Validate() error {
	if c.Swing.LeftBars < 1 || c.Swing.RightBars < 1 {
		return fmt.Errorf("swing: left_bars and right_bars must be >= 1")
	}
	if c.Swing.MinSwingDistance < 0 {
		return fmt.Errorf("swing: min_swing_distance must be >= 0")
	}
	if c.Sweep.UseATRBuffer && c.Sweep.SweepBufferATRMult <= 0 {
		return fmt.Errorf("sweep: sweep_buffer_atr_mult must be > 0 when use_atr_buffer is set")
	}
	if !c.Sweep.UseATRBuffer && c.Sweep.SweepBufferPct <= 0 {
		return fmt.Errorf("sweep: sweep_buffer_pct must be > 0 when use_atr_buffer is off")
	}
	if c.Sweep.MaxBarsForConfirm < 1 {
		return fmt.Errorf("sweep: max_bars_for_confirm must be >= 1")
	}
	if c.MSS.MaxBarsAfterSweep < 1 {
		return fmt.Errorf("mss: max_bars_after_sweep must be >= 1")
	}
	if c.MSS.PivotLookbackBars < 1 {
		return fmt.Errorf("mss: pivot_lookback_bars must be >= 1")
	}
	if c.Displacement.ATRPeriod < 1 {
		return fmt.Errorf("displacement: atr_period must be >= 1")
	}
	if c.Displacement.UseATRMethod && c.Displacement.MinBodyATRMult <= 0 {
		return fmt.Errorf("displacement: min_body_atr_mult must be > 0")
	}
	if !c.Displacement.UseATRMethod && c.Displacement.MinBodyMedianMult <= 0 {
		return fmt.Errorf("displacement: min_body_median_mult must be > 0")
	}
	if c.FVG.MinFVGATRMult < 0 || c.FVG.MinFVGPrice < 0 {
		return fmt.Errorf("fvg: minimum gap sizes must be >= 0")
	}
	switch c.FVG.EntryMode {
	case EntryFirstTouch, EntryMidpoint, EntryLowerEdge:
	default:
		return fmt.Errorf("fvg: unknown entry_mode %q", c.FVG.EntryMode)
	}
	switch c.FVG.MitigationRule {
	case MitigationWickTouch, MitigationCloseThrough:
	default:
		return fmt.Errorf("fvg: unknown mitigation_rule %q", c.FVG.MitigationRule)
	}
	if c.FVG.MaxFVGAgeBars < 1 {
		return fmt.Errorf("fvg: max_fvg_age_bars must be >= 1")
	}
	if c.OTE.FibLower <= 0 || c.OTE.FibLower >= 1 || c.OTE.FibUpper <= 0 || c.OTE.FibUpper >= 1 {
		return fmt.Errorf("ote: fib fractions must be in (0, 1)")
	}
	if c.OTE.FibLower == c.OTE.FibUpper {
		return fmt.Errorf("ote: fib_lower and fib_upper must differ")
	}
	if c.OTE.DiscountFibMax <= 0 || c.OTE.DiscountFibMax >= 1 {
		return fmt.Errorf("ote: discount_fib_max must be in (0, 1)")
	}
	if c.StopLoss.MaxSLATRMult <= 0 {
		return fmt.Errorf("stop_loss: max_sl_atr_mult must be > 0")
	}
	if c.StopLoss.TrailAfterTP1 && c.StopLoss.TrailATRMult <= 0 {
		return fmt.Errorf("stop_loss: trail_atr_mult must be > 0 when trailing is enabled")
	}
	if c.TakeProfit.TP1ExitPct <= 0 || c.TakeProfit.TP1ExitPct >= 1 {
		return fmt.Errorf("take_profit: tp1_exit_pct must be in (0, 1)")
	}
	if c.TakeProfit.TP2ExitPct <= 0 || c.TakeProfit.TP2ExitPct >= 1 {
		return fmt.Errorf("take_profit: tp2_exit_pct must be in (0, 1)")
	}
	if c.TakeProfit.TP1ExitPct+c.TakeProfit.TP2ExitPct >= 1 {
		return fmt.Errorf("take_profit: tp1_exit_pct + tp2_exit_pct must leave a runner (< 1)")
	}
	if c.TakeProfit.TP3FibExt <= 0 {
		return fmt.Errorf("take_profit: tp3_fib_ext must be > 0")
	}
	if c.Risk.RiskPerTradePct <= 0 || c.Risk.RiskPerTradePct >= 1 {
		return fmt.Errorf("risk: risk_per_trade_pct must be in (0, 1)")
	}
	if c.Risk.MaxPositions < 1 {
		return fmt.Errorf("risk: max_positions must be >= 1")
	}
	if c.Risk.MaxDailyLossPct <= 0 {
		return fmt.Errorf("risk: max_daily_loss_pct must be > 0")
	}
	if c.Risk.CooldownBars < 0 {
		return fmt.Errorf("risk: cooldown_bars must be >= 0")
	}
	if c.Filters.MinATRMult >= c.Filters.MaxATRMult {
		return fmt.Errorf("filters: min_atr_mult must be below max_atr_mult")
	}
	if c.Equity <= 0 {
		return fmt.Errorf("equity must be > 0")
	}
	return nil
}
