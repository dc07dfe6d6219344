package risk

import (
	"math"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/observ"
)

// Phase5Decision is the outcome of a single position-level gate. Gates are
// pure: they read a snapshot and never mutate shared state.
type Phase5Decision struct {
	Allowed bool
	Reason  string
	Details map[string]any
}

func allow() Phase5Decision {
	return Phase5Decision{Allowed: true}
}

func block(reason string, details map[string]any) Phase5Decision {
	return Phase5Decision{Allowed: false, Reason: reason, Details: details}
}

// PositionSnapshot is the read-only view of a live position handed to the
// gates. Qty is signed: positive long, negative short, zero flat.
type PositionSnapshot struct {
	Symbol   string
	Qty      float64
	AvgPrice float64
}

// Microstructure regimes.
const (
	RegimeGreen   = "GREEN"
	RegimeCaution = "CAUTION"
	RegimeRed     = "RED"
)

// CheckNoAveragingDown blocks adding to a position in the same direction at
// a worse price than the current average. Flat positions and price-improving
// adds always pass.
func CheckNoAveragingDown(pos PositionSnapshot, side string, price float64) Phase5Decision {
	switch {
	case pos.Qty > 0 && side == "BUY" && price < pos.AvgPrice:
		return block("no_averaging_down_long_block", map[string]any{
			"avg_price": pos.AvgPrice, "price": price,
		})
	case pos.Qty < 0 && side == "SELL" && price > pos.AvgPrice:
		return block("no_averaging_down_short_block", map[string]any{
			"avg_price": pos.AvgPrice, "price": price,
		})
	}
	return allow()
}

// CheckDailyLossGate blocks increasing exposure once the symbol's realized
// PnL is at or below the (negative) cap. Reducing or flattening always passes.
func CheckDailyLossGate(realizedPnl, lossCap float64, increasing bool) Phase5Decision {
	if !increasing {
		return allow()
	}
	if realizedPnl <= -math.Abs(lossCap) {
		return block("daily_loss_cap", map[string]any{
			"realized_pnl": realizedPnl, "cap": -math.Abs(lossCap),
		})
	}
	return allow()
}

// CheckAccountDailyLossGate is the account-wide variant, independent of any
// per-symbol state.
func CheckAccountDailyLossGate(accountPnl, lossCap float64, increasing bool) Phase5Decision {
	if !increasing {
		return allow()
	}
	if accountPnl <= -math.Abs(lossCap) {
		return block("account_daily_loss_cap", map[string]any{
			"account_pnl": accountPnl, "cap": -math.Abs(lossCap),
		})
	}
	return allow()
}

// ClassifyMicrostructure buckets a symbol's tradability from its recent
// range against round-trip cost (spread plus fees).
func ClassifyMicrostructure(rangePct, spreadBps, feeBps float64) string {
	rangeBps := rangePct * 10000
	if rangeBps <= 0 {
		return RegimeRed
	}
	costRatio := (spreadBps + 2*feeBps) / rangeBps
	switch {
	case costRatio < 0.25:
		return RegimeGreen
	case costRatio < 0.5:
		return RegimeCaution
	default:
		return RegimeRed
	}
}

// CheckMicrostructure blocks only symbols in the gated set when RED.
func CheckMicrostructure(symbol, regime string, gated []string) Phase5Decision {
	if regime != RegimeRed {
		return allow()
	}
	for _, g := range gated {
		if g == symbol {
			return block("microstructure_red", map[string]any{"symbol": symbol})
		}
	}
	return allow()
}

// EVBand classifies an expected-value estimate into a quality tier. Choppy
// and volatile regimes discount the estimate before banding.
func EVBand(ev float64, regime string) string {
	switch regime {
	case "chop":
		ev *= 0.7
	case "volatile":
		ev *= 0.5
	}
	switch {
	case ev >= 0.5:
		return "A"
	case ev >= 0.25:
		return "B"
	case ev >= 0.1:
		return "C"
	case ev >= 0:
		return "D"
	default:
		return "F"
	}
}

// CheckEVBand marks vetoApplied below the minimum band but stays advisory:
// promotion to a hard veto is a config flag that defaults off.
func CheckEVBand(ev float64, regime, minBand string, promote bool) Phase5Decision {
	band := EVBand(ev, regime)
	below := bandRank(band) > bandRank(minBand)
	details := map[string]any{"band": band, "min_band": minBand, "veto_applied": below}
	if below && promote {
		return block("ev_band_below_min", details)
	}
	if below {
		d := allow()
		d.Reason = "ev_band_soft_veto"
		d.Details = details
		return d
	}
	return allow()
}

func bandRank(band string) int {
	switch band {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	case "D":
		return 3
	default:
		return 4
	}
}

// Phase5Input bundles everything the combined check reads.
type Phase5Input struct {
	Position       PositionSnapshot
	Side           string
	Price          float64
	SymbolPnl      float64
	AccountPnl     float64
	EV             float64
	Regime         string
	Microstructure string // pre-classified regime for the symbol; "" skips
}

// CheckTradePhase5 combines the gates: account cap, then daily-loss cap,
// then no-averaging-down, short-circuiting on the first block. EV-band and
// microstructure stay advisory unless explicitly promoted.
func CheckTradePhase5(in Phase5Input, cfg config.Phase5) Phase5Decision {
	increasing := isIncreasing(in.Position.Qty, in.Side)

	if d := CheckAccountDailyLossGate(in.AccountPnl, cfg.AccountDailyLossCap, increasing); !d.Allowed {
		return d
	}
	if d := CheckDailyLossGate(in.SymbolPnl, cfg.DailyLossCap, increasing); !d.Allowed {
		return d
	}
	if d := CheckNoAveragingDown(in.Position, in.Side, in.Price); !d.Allowed {
		return d
	}

	if d := CheckEVBand(in.EV, in.Regime, cfg.MinEVBand, cfg.PromoteEVBand); !d.Allowed {
		return d
	} else if d.Reason == "ev_band_soft_veto" {
		observ.Log("ev_band_soft_veto", map[string]any{
			"symbol": in.Position.Symbol, "details": d.Details,
		})
	}

	if in.Microstructure != "" {
		if d := CheckMicrostructure(in.Position.Symbol, in.Microstructure, cfg.GatedSymbols); !d.Allowed {
			return d
		}
	}

	return allow()
}

// isIncreasing reports whether a fill on side would grow the magnitude of
// the position (including opening from flat).
func isIncreasing(qty float64, side string) bool {
	switch side {
	case "BUY":
		return qty >= 0
	case "SELL":
		return qty <= 0
	}
	return false
}
