package risk

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/observ"
)

// ForceHaltEnv is the out-of-band kill switch. A non-empty value halts
// admission with reason FORCE_HALT_<token> regardless of every other check.
const ForceHaltEnv = "TRADEGATE_FORCE_HALT"

// PortfolioView is the read-only slice of portfolio state the risk gate
// needs. Injected so tests can supply fakes without a live tracker.
type PortfolioView interface {
	Equity() (float64, bool)
	GrossExposure() float64
	SectorNotionals(sectorOf func(string) string) map[string]float64
}

// Manager is the account-level admission gate. All mutation of State is
// serialized through its mutex: counters are account-wide, not per-symbol.
type Manager struct {
	mu        sync.Mutex
	cfg       config.Risk
	state     State
	store     StateStore
	portfolio PortfolioView

	// lastSaveErr is the latest persistence failure; under FailClosed it
	// vetoes subsequent admissions instead of being silently dropped.
	lastSaveErr error
}

// NewManager loads persisted state (absence means defaults) and returns a
// ready gate. portfolio may be nil; equity then resolves from config.
func NewManager(cfg config.Risk, store StateStore, portfolio PortfolioView) (*Manager, error) {
	st, found, err := store.Load()
	if err != nil {
		if cfg.FailClosed {
			return nil, err
		}
		observ.Log("risk_state_load_failed", map[string]any{"error": err.Error()})
		st = State{}
	}
	if !found {
		observ.Log("risk_state_fresh", map[string]any{"path": cfg.StatePath})
	}
	return &Manager{cfg: cfg, state: st, store: store, portfolio: portfolio}, nil
}

// AllowTrade runs the ordered admission checks; the first failing check wins.
// Returns (true, "") when the trade may proceed.
func (m *Manager) AllowTrade(symbol string, notional float64, side string, barTs int64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason, halted := ForceHalt(m.cfg.KillSwitchFile); halted {
		observ.IncBlock(reason)
		return false, reason
	}

	m.rolloverIfNewDay(barTs)

	// Cooldown: active until a bar at or past the expiry is observed.
	if m.state.HaltedUntilBarTs > 0 {
		if barTs < m.state.HaltedUntilBarTs {
			reason := m.state.HaltedReason
			observ.IncBlock(reason)
			return false, reason
		}
		m.state.HaltedUntilBarTs = 0
		m.state.HaltedReason = ""
		m.persist()
	}

	if m.cfg.FailClosed && m.lastSaveErr != nil {
		observ.IncBlock("STATE_IO")
		return false, "STATE_IO"
	}

	if notional > m.cfg.PerTradeNotionalCap {
		observ.IncBlock("NOTIONAL_CAP")
		return false, "NOTIONAL_CAP"
	}

	if m.state.TradesToday >= m.cfg.MaxTradesPerDay {
		observ.IncBlock("TRADES_PER_DAY")
		return false, "TRADES_PER_DAY"
	}

	equity, ok := m.resolvedEquity()
	if !ok {
		if m.cfg.FailClosed {
			observ.IncBlock("EQUITY_UNRESOLVED")
			return false, "EQUITY_UNRESOLVED"
		}
		equity = m.cfg.BaseEquityFallback
	}

	if m.state.DailyLossBreached || m.state.DayRealizedPnl <= -m.cfg.DayLossCapPct*equity {
		if !m.state.DailyLossBreached {
			// Sticky until day rollover, even if later wins claw the PnL back.
			m.state.DailyLossBreached = true
			m.persist()
		}
		observ.IncBlock("DAILY_LOSS")
		return false, "DAILY_LOSS"
	}

	if m.state.PeakEquity < equity {
		m.state.PeakEquity = equity
		m.persist()
	}
	if m.state.PeakEquity > 0 {
		drawdown := 1 - equity/m.state.PeakEquity
		observ.SetDrawdown(drawdown)
		if drawdown > m.cfg.MaxDrawdownPct {
			observ.IncBlock("MAX_DRAWDOWN")
			return false, "MAX_DRAWDOWN"
		}
	}

	if m.portfolio != nil {
		exposure := m.portfolio.GrossExposure()
		proposed := exposure + notional
		observ.SetExposure(exposure)
		if equity > 0 && proposed/equity > m.cfg.MaxLeverage {
			observ.IncBlock("LEVERAGE")
			return false, "LEVERAGE"
		}
		if proposed > m.cfg.MaxPortfolioExposure {
			observ.IncBlock("EXPOSURE")
			return false, "EXPOSURE"
		}
		if ok, reason := m.sectorAllowed(symbol, notional, side); !ok {
			observ.IncBlock(reason)
			return false, reason
		}
	}

	return true, ""
}

// OnFill records a completed fill against the daily trade budget.
func (m *Manager) OnFill(side string, qty, px float64, barTs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverIfNewDay(barTs)
	m.state.TradesToday++
	m.state.LastBarTs = barTs
	m.persist()
}

// RecordClosePnl folds a realized close into the day's PnL and drives the
// consecutive-loser cooldown.
func (m *Manager) RecordClosePnl(pnl float64, barTs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverIfNewDay(barTs)
	m.state.DayRealizedPnl += pnl
	if pnl < 0 {
		m.state.ConsecutiveLosers++
	} else {
		m.state.ConsecutiveLosers = 0
	}
	observ.SetConsecutiveLosers(m.state.ConsecutiveLosers)

	if m.state.ConsecutiveLosers >= m.cfg.MaxConsecutiveLosers {
		m.state.HaltedUntilBarTs = barTs + int64(m.cfg.CooldownBars)*m.cfg.BarDurationMs
		m.state.HaltedReason = "COOLDOWN"
		observ.Log("risk_cooldown_set", map[string]any{
			"consecutive_losers": m.state.ConsecutiveLosers,
			"halted_until":       m.state.HaltedUntilBarTs,
		})
	}
	m.state.LastBarTs = barTs
	m.persist()
}

// ResetDay clears the daily counters, as if a day boundary had been crossed.
func (m *Manager) ResetDay() {
	m.mu.Lock()
	defer m.mu.Unlock()

	equity, ok := m.resolvedEquity()
	if !ok {
		equity = m.cfg.BaseEquityFallback
	}
	m.resetDayCounters(equity)
	m.persist()
}

// Snapshot returns a copy of the current state for gates and diagnostics.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) rolloverIfNewDay(barTs int64) {
	if m.state.LastBarTs == 0 {
		equity, ok := m.resolvedEquity()
		if !ok {
			equity = m.cfg.BaseEquityFallback
		}
		m.state.DayStartEquity = equity
		m.state.LastBarTs = barTs
		m.persist()
		return
	}
	prev := time.UnixMilli(m.state.LastBarTs).UTC()
	cur := time.UnixMilli(barTs).UTC()
	if prev.Year() == cur.Year() && prev.YearDay() == cur.YearDay() {
		return
	}
	equity, ok := m.resolvedEquity()
	if !ok {
		equity = m.cfg.BaseEquityFallback
	}
	m.resetDayCounters(equity)
	m.state.LastBarTs = barTs
	m.persist()
	observ.Log("risk_day_rollover", map[string]any{"day": cur.Format("2006-01-02")})
}

func (m *Manager) resetDayCounters(equity float64) {
	m.state.DayStartEquity = equity
	m.state.DayRealizedPnl = 0
	m.state.TradesToday = 0
	m.state.DailyLossBreached = false
}

// resolvedEquity prefers live portfolio equity, then the configured static
// equity, then the fallback. ok=false only when nothing resolves.
func (m *Manager) resolvedEquity() (float64, bool) {
	if m.portfolio != nil {
		if eq, ok := m.portfolio.Equity(); ok && eq > 0 {
			observ.SetEquity(eq)
			return eq, true
		}
	}
	if m.cfg.Equity > 0 {
		return m.cfg.Equity, true
	}
	if m.cfg.BaseEquityFallback > 0 {
		return m.cfg.BaseEquityFallback, true
	}
	return 0, false
}

// persist is best-effort under the default policy: failures are logged and
// remembered, never propagated to the admission caller.
func (m *Manager) persist() {
	if err := m.store.Save(m.state); err != nil {
		m.lastSaveErr = err
		observ.Log("risk_state_save_failed", map[string]any{"error": err.Error()})
		return
	}
	m.lastSaveErr = nil
}

func (m *Manager) sectorAllowed(symbol string, notional float64, side string) (bool, string) {
	if len(m.cfg.SectorCaps) == 0 {
		return true, ""
	}
	sectorOf := func(sym string) string {
		if s, ok := m.cfg.SymbolSectors[sym]; ok {
			return s
		}
		return "other"
	}
	// Hedge symbols shorted against the book do not consume sector budget.
	if side == "SELL" {
		for _, h := range m.cfg.HedgeSymbols {
			if h == symbol {
				return true, ""
			}
		}
	}
	sector := sectorOf(symbol)
	limit, capped := m.cfg.SectorCaps[sector]
	if !capped {
		return true, ""
	}
	current := m.portfolio.SectorNotionals(sectorOf)[sector]
	if current+notional > limit {
		return false, "SECTOR_CAP"
	}
	return true, ""
}

// ForceHalt reports whether the out-of-band kill switch is engaged, via the
// env var or a sentinel file. Callers may check it ahead of any other work;
// AllowTrade always re-checks.
func ForceHalt(sentinelPath string) (string, bool) {
	if v := os.Getenv(ForceHaltEnv); v != "" {
		token := strings.ToUpper(strings.TrimSpace(v))
		return "FORCE_HALT_" + token, true
	}
	if sentinelPath != "" {
		if _, err := os.Stat(sentinelPath); err == nil {
			return "FORCE_HALT_SENTINEL", true
		}
	}
	return "", false
}
