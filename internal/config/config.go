package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Risk holds the account-level risk limits. Loaded once at startup and
// never mutated; RiskManager receives it by value.
type Risk struct {
	DayLossCapPct        float64 `yaml:"day_loss_cap_pct"`       // fraction of equity, e.g. 0.01
	PerTradeNotionalCap  float64 `yaml:"per_trade_notional_cap"` // USD
	MaxTradesPerDay      int     `yaml:"max_trades_per_day"`
	MaxConsecutiveLosers int     `yaml:"max_consecutive_losers"`
	CooldownBars         int     `yaml:"cooldown_bars"`
	BarDurationMs        int64   `yaml:"bar_duration_ms"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`
	Equity               float64 `yaml:"equity"`
	MaxLeverage          float64 `yaml:"max_leverage"`
	MaxPortfolioExposure float64 `yaml:"max_portfolio_exposure"` // USD
	StatePath            string  `yaml:"state_path"`
	FailClosed           bool    `yaml:"fail_closed"`
	BaseEquityFallback   float64 `yaml:"base_equity_fallback"`

	// Sector exposure caps: sector -> max notional USD. Symbols map to
	// sectors via SymbolSectors; hedge symbols are exempt on the short side.
	SectorCaps    map[string]float64 `yaml:"sector_caps"`
	SymbolSectors map[string]string  `yaml:"symbol_sectors"`
	HedgeSymbols  []string           `yaml:"hedge_symbols"`

	KillSwitchFile string `yaml:"kill_switch_file"`
}

// Phase5 configures the per-position gate layer.
type Phase5 struct {
	DailyLossCap        float64  `yaml:"daily_loss_cap"`         // per-symbol realized, USD
	AccountDailyLossCap float64  `yaml:"account_daily_loss_cap"` // account-wide realized, USD
	MinEVBand           string   `yaml:"min_ev_band"`
	PromoteEVBand       bool     `yaml:"promote_ev_band"` // keep false: EV band is log-only
	GatedSymbols        []string `yaml:"gated_symbols"`   // microstructure RED blocks only these
}

// Gate configures the ensemble confidence gate.
type Gate struct {
	Weights           map[string]float64 `yaml:"weights"`
	Threshold         float64            `yaml:"threshold"`
	StrictMissing     bool               `yaml:"strict_missing"`
	RegimeMultipliers map[string]float64 `yaml:"regime_multipliers"`
	AdaptiveThreshold bool               `yaml:"adaptive_threshold"`
}

// Sizing configures the Kelly sizer.
type Sizing struct {
	KellyCap float64 `yaml:"kelly_cap"` // ceiling on the Kelly fraction
}

// Execution configures routing, slicing and broker retry policy.
type Execution struct {
	OrderTimeoutMs  int     `yaml:"order_timeout_ms"`
	MaxRetries      int     `yaml:"max_retries"`
	BackoffBaseMs   int     `yaml:"backoff_base_ms"`
	BackoffMaxMs    int     `yaml:"backoff_max_ms"`
	OrdersPerSecond float64 `yaml:"orders_per_second"` // broker rate limit
	VWAPSlices      int     `yaml:"vwap_slices"`
	TWAPSlices      int     `yaml:"twap_slices"`
	IcebergVisible  float64 `yaml:"iceberg_visible"` // visible fraction per slice
}

// Veto configures the sentiment and black-swan veto layers.
type Veto struct {
	SentimentFloor    float64  `yaml:"sentiment_floor"` // block below this score, [-1..1]
	BlackSwanKeywords []string `yaml:"black_swan_keywords"`
	VolSpikeThreshold float64  `yaml:"vol_spike_threshold"`
}

type Audit struct {
	Path       string `yaml:"path"`
	BackupPath string `yaml:"backup_path"`
	JournalDB  string `yaml:"journal_db"`
}

type Root struct {
	TradingMode string    `yaml:"trading_mode"` // paper | live | dry-run
	Risk        Risk      `yaml:"risk"`
	Phase5      Phase5    `yaml:"phase5"`
	Gate        Gate      `yaml:"gate"`
	Sizing      Sizing    `yaml:"sizing"`
	Execution   Execution `yaml:"execution"`
	Veto        Veto      `yaml:"veto"`
	Audit       Audit     `yaml:"audit"`
	MetricsAddr string    `yaml:"metrics_addr"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Default returns a config with every default applied, for tests and the
// risk-demo command.
func Default() Root {
	var c Root
	c.applyDefaults()
	return c
}

func (c *Root) applyDefaults() {
	if c.TradingMode == "" {
		c.TradingMode = "paper"
	}
	if c.Risk.DayLossCapPct == 0 {
		c.Risk.DayLossCapPct = 0.01
	}
	if c.Risk.PerTradeNotionalCap == 0 {
		c.Risk.PerTradeNotionalCap = 10000
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = 20
	}
	if c.Risk.MaxConsecutiveLosers == 0 {
		c.Risk.MaxConsecutiveLosers = 3
	}
	if c.Risk.CooldownBars == 0 {
		c.Risk.CooldownBars = 30
	}
	if c.Risk.BarDurationMs == 0 {
		c.Risk.BarDurationMs = 60_000
	}
	if c.Risk.MaxDrawdownPct == 0 {
		c.Risk.MaxDrawdownPct = 0.10
	}
	if c.Risk.MaxLeverage == 0 {
		c.Risk.MaxLeverage = 2.0
	}
	if c.Risk.MaxPortfolioExposure == 0 {
		c.Risk.MaxPortfolioExposure = 100000
	}
	if c.Risk.StatePath == "" {
		c.Risk.StatePath = "data/risk_state.json"
	}
	if c.Risk.BaseEquityFallback == 0 {
		c.Risk.BaseEquityFallback = 10000
	}
	if c.Phase5.DailyLossCap == 0 {
		c.Phase5.DailyLossCap = 300
	}
	if c.Phase5.AccountDailyLossCap == 0 {
		c.Phase5.AccountDailyLossCap = 1000
	}
	if c.Phase5.MinEVBand == "" {
		c.Phase5.MinEVBand = "D"
	}
	if c.Gate.Threshold == 0 {
		c.Gate.Threshold = 0.55
	}
	if c.Sizing.KellyCap == 0 {
		c.Sizing.KellyCap = 0.25
	}
	if c.Execution.OrderTimeoutMs == 0 {
		c.Execution.OrderTimeoutMs = 5000
	}
	if c.Execution.MaxRetries == 0 {
		c.Execution.MaxRetries = 3
	}
	if c.Execution.BackoffBaseMs == 0 {
		c.Execution.BackoffBaseMs = 100
	}
	if c.Execution.BackoffMaxMs == 0 {
		c.Execution.BackoffMaxMs = 5000
	}
	if c.Execution.OrdersPerSecond == 0 {
		c.Execution.OrdersPerSecond = 5
	}
	if c.Execution.VWAPSlices == 0 {
		c.Execution.VWAPSlices = 6
	}
	if c.Execution.TWAPSlices == 0 {
		c.Execution.TWAPSlices = 4
	}
	if c.Execution.IcebergVisible == 0 {
		c.Execution.IcebergVisible = 0.2
	}
	if c.Veto.SentimentFloor == 0 {
		c.Veto.SentimentFloor = -0.5
	}
	if c.Veto.VolSpikeThreshold == 0 {
		c.Veto.VolSpikeThreshold = 3.0
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "data/audit.csv"
	}
	if c.Audit.BackupPath == "" {
		c.Audit.BackupPath = "data/audit_backup.csv"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
}

// Validate fails fast on malformed config; an engine is never constructed
// from a partially valid Root.
func (c *Root) Validate() error {
	switch c.TradingMode {
	case "paper", "live", "dry-run":
	default:
		return fmt.Errorf("config: unknown trading_mode %q", c.TradingMode)
	}
	if c.Risk.DayLossCapPct < 0 || c.Risk.DayLossCapPct > 1 {
		return fmt.Errorf("config: day_loss_cap_pct %.4f outside [0,1]", c.Risk.DayLossCapPct)
	}
	if c.Risk.PerTradeNotionalCap <= 0 {
		return fmt.Errorf("config: per_trade_notional_cap must be positive")
	}
	if c.Risk.MaxTradesPerDay <= 0 {
		return fmt.Errorf("config: max_trades_per_day must be positive")
	}
	if c.Risk.MaxConsecutiveLosers <= 0 {
		return fmt.Errorf("config: max_consecutive_losers must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 1 {
		return fmt.Errorf("config: max_drawdown_pct %.4f outside (0,1]", c.Risk.MaxDrawdownPct)
	}
	if c.Risk.MaxLeverage <= 0 {
		return fmt.Errorf("config: max_leverage must be positive")
	}
	if c.Risk.BaseEquityFallback <= 0 {
		return fmt.Errorf("config: base_equity_fallback must be positive")
	}
	if c.Sizing.KellyCap <= 0 || c.Sizing.KellyCap > 1 {
		return fmt.Errorf("config: kelly_cap %.4f outside (0,1]", c.Sizing.KellyCap)
	}
	if c.Gate.Threshold < 0 || c.Gate.Threshold > 1 {
		return fmt.Errorf("config: gate threshold %.4f outside [0,1]", c.Gate.Threshold)
	}
	for model, w := range c.Gate.Weights {
		if w < 0 {
			return fmt.Errorf("config: negative gate weight %.4f for model %q", w, model)
		}
	}
	if c.Execution.OrderTimeoutMs <= 0 {
		return fmt.Errorf("config: order_timeout_ms must be positive")
	}
	if c.Execution.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	if c.Execution.BackoffBaseMs < 0 || c.Execution.BackoffMaxMs < 0 {
		return fmt.Errorf("config: backoff durations must not be negative")
	}
	if c.Execution.OrdersPerSecond <= 0 {
		return fmt.Errorf("config: orders_per_second must be positive")
	}
	if c.Execution.IcebergVisible <= 0 || c.Execution.IcebergVisible > 1 {
		return fmt.Errorf("config: iceberg_visible %.4f outside (0,1]", c.Execution.IcebergVisible)
	}
	if c.Veto.SentimentFloor < -1 || c.Veto.SentimentFloor > 1 {
		return fmt.Errorf("config: sentiment_floor %.4f outside [-1,1]", c.Veto.SentimentFloor)
	}
	return nil
}
