package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/execution"
	"github.com/quantfold/tradegate/internal/gatescore"
	"github.com/quantfold/tradegate/internal/journal"
	"github.com/quantfold/tradegate/internal/observ"
	"github.com/quantfold/tradegate/internal/perf"
	"github.com/quantfold/tradegate/internal/portfolio"
	"github.com/quantfold/tradegate/internal/risk"
	"github.com/quantfold/tradegate/internal/sizing"
	"github.com/quantfold/tradegate/internal/veto"
)

// Signal is one directional signal for an instrument, as produced by an
// external signal source.
type Signal struct {
	Symbol string
	Signal string // BUY | SELL | SHORT | COVER | HOLD | anything else
	Price  float64
	Size   float64 // 0 means "let the sizer decide"
	Algo   string  // "", direct, vwap, twap, iceberg
	Regime string

	ModelScores map[string]float64 // ensemble confidence inputs
	EV          float64            // expected-value estimate for the setup
	Market      veto.Context       // news/vol snapshot for the veto layers
	BarTs       int64              // epoch ms; 0 means now

	// Microstructure snapshot for the symbol; all zero means no data and
	// the microstructure gate is skipped.
	RangePct  float64 // recent bar range as a fraction of price
	SpreadBps float64
	FeeBps    float64
}

// TradeIntent is the internal, consumed-once representation of a signal
// that survived the veto stage. Never persisted.
type TradeIntent struct {
	Symbol string
	Side   string
	Qty    float64
	Price  float64
	Algo   string
	Regime string
	DayID  string
}

// Engine sequences filters, risk checks, sizing, routing and bookkeeping
// into one decision per incoming signal.
type Engine struct {
	cfg          config.Root
	vetoes       []veto.Layer
	gate         *gatescore.Gate
	risk         *risk.Manager
	portfolio    *portfolio.Tracker
	perf         *perf.Tracker
	sizer        *sizing.KellySizer
	orchestrator *execution.Orchestrator
	audit        *AuditLog
	journal      *journal.Journal // optional; nil disables durable outcomes
}

// Deps carries the constructor-injected collaborators. Everything the
// engine talks to arrives here so tests can supply fakes.
type Deps struct {
	Vetoes       []veto.Layer
	Gate         *gatescore.Gate
	Risk         *risk.Manager
	Portfolio    *portfolio.Tracker
	Perf         *perf.Tracker
	Sizer        *sizing.KellySizer
	Orchestrator *execution.Orchestrator
	Audit        *AuditLog
	Journal      *journal.Journal
}

func New(cfg config.Root, d Deps) *Engine {
	return &Engine{
		cfg:          cfg,
		vetoes:       d.Vetoes,
		gate:         d.Gate,
		risk:         d.Risk,
		portfolio:    d.Portfolio,
		perf:         d.Perf,
		sizer:        d.Sizer,
		orchestrator: d.Orchestrator,
		audit:        d.Audit,
		journal:      d.Journal,
	}
}

// ProcessSignal runs the full pipeline for one signal and returns the
// normalized outcome. Stages before routing may abort freely; once a fill
// is committed, downstream bookkeeping failures are logged and swallowed.
func (e *Engine) ProcessSignal(ctx context.Context, sig Signal) execution.Result {
	start := time.Now()
	correlationID := uuid.NewString()
	barTs := sig.BarTs
	if barTs == 0 {
		barTs = start.UnixMilli()
	}

	res := e.decide(ctx, sig, barTs, correlationID)

	observ.IncDecision(string(res.Status))
	observ.ObserveDecision(time.Since(start))
	e.writeAudit(sig, res)
	return res
}

func (e *Engine) decide(ctx context.Context, sig Signal, barTs int64, correlationID string) execution.Result {
	// Stage 1: signal -> side. Unrecognized signals and HOLD short-circuit.
	side, closing, ok := mapSignal(sig.Signal)
	if !ok {
		return execution.Result{Status: execution.StatusIgnored, Reason: "unrecognized_signal"}
	}
	if sig.Price <= 0 {
		return execution.Result{Status: execution.StatusRejected, Reason: "non_positive_price"}
	}
	if sig.Size < 0 {
		return execution.Result{Status: execution.StatusRejected, Reason: "non_positive_qty"}
	}

	// Kill switch and shutdown take precedence over all in-flight work:
	// abort new intents here, before any veto, sizing or routing.
	select {
	case <-ctx.Done():
		return execution.Result{Status: execution.StatusBlocked, Reason: "shutdown"}
	default:
	}
	if reason, halted := risk.ForceHalt(e.cfg.Risk.KillSwitchFile); halted {
		observ.IncBlock(reason)
		return execution.Result{Status: execution.StatusBlocked, Reason: reason}
	}

	// Stage 2: veto layers.
	for _, layer := range e.vetoes {
		if vetoed, reason := layer.Check(sig.Symbol, side, sig.Market); vetoed {
			observ.IncBlock(reason)
			observ.Log("signal_vetoed", map[string]any{
				"symbol": sig.Symbol, "layer": layer.Name(), "reason": reason,
				"correlation_id": correlationID,
			})
			return execution.Result{Status: execution.StatusBlocked, Reason: reason}
		}
	}

	// Stage 3: ensemble confidence gate.
	if e.gate != nil {
		v := e.gate.AllowTrade(sig.ModelScores, sig.Regime)
		if !v.Allowed {
			observ.IncBlock(v.Reason)
			observ.Log("gate_rejected", map[string]any{
				"symbol": sig.Symbol, "score": v.Score, "threshold": v.Threshold,
				"reason": v.Reason, "correlation_id": correlationID,
			})
			return execution.Result{Status: execution.StatusBlocked, Reason: v.Reason}
		}
	}

	// Stage 4: sizing. The sizer only runs when the signal left size open.
	qty := sig.Size
	if qty == 0 {
		equity, ok := e.portfolio.Equity()
		if !ok {
			equity = e.cfg.Risk.BaseEquityFallback
		}
		qty = e.sizer.SizePosition(equity, sig.Price, e.perf.WinRate(), e.perf.PayoffRatio())
		if qty <= 0 {
			return execution.Result{Status: execution.StatusIgnored, Reason: "zero_size"}
		}
	}
	notional := qty * sig.Price

	// Stage 5: account-level risk gate, then Phase-5 position gates.
	if allowed, reason := e.risk.AllowTrade(sig.Symbol, notional, side, barTs); !allowed {
		return execution.Result{Status: execution.StatusBlocked, Reason: reason}
	}

	micro := ""
	if sig.RangePct > 0 || sig.SpreadBps > 0 {
		micro = risk.ClassifyMicrostructure(sig.RangePct, sig.SpreadBps, sig.FeeBps)
	}

	pos, _ := e.portfolio.GetPosition(sig.Symbol)
	p5 := risk.CheckTradePhase5(risk.Phase5Input{
		Position:       risk.PositionSnapshot{Symbol: sig.Symbol, Qty: pos.Qty, AvgPrice: pos.AvgPrice},
		Side:           side,
		Price:          sig.Price,
		SymbolPnl:      e.symbolDayPnl(sig.Symbol),
		AccountPnl:     e.risk.Snapshot().DayRealizedPnl,
		EV:             sig.EV,
		Regime:         sig.Regime,
		Microstructure: micro,
	}, e.cfg.Phase5)
	if !p5.Allowed {
		observ.IncBlock(p5.Reason)
		return execution.Result{Status: execution.StatusBlocked, Reason: p5.Reason}
	}

	intent := TradeIntent{
		Symbol: sig.Symbol,
		Side:   side,
		Qty:    qty,
		Price:  sig.Price,
		Algo:   sig.Algo,
		Regime: sig.Regime,
		DayID:  time.UnixMilli(barTs).UTC().Format("2006-01-02"),
	}

	// Stage 6: route. Dry-run mode decides but never places orders.
	if e.cfg.TradingMode == "dry-run" {
		return execution.Result{Status: execution.StatusOK, Reason: "dry_run"}
	}
	res := e.orchestrator.Execute(ctx, intent.Algo, execution.OrderRequest{
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Qty:        intent.Qty,
		OrderType:  "market",
		LimitPrice: intent.Price,
		Meta:       map[string]string{"correlation_id": correlationID, "day_id": intent.DayID},
	})

	// Stage 7: committed-fill bookkeeping. Nothing past this point may
	// overturn the order outcome. A result normalized to rejected/error
	// is not a committed fill, whatever the raw payload claimed.
	if res.Filled > 0 && (res.Status == execution.StatusFilled ||
		res.Status == execution.StatusOK || res.Status == execution.StatusPending) {
		e.recordFill(intent, res, closing, barTs)
	}
	return res
}

// recordFill updates trackers after a committed fill. Failures here would
// otherwise undo a decision that already executed, so they are logged and
// swallowed at this stage only.
func (e *Engine) recordFill(intent TradeIntent, res execution.Result, closing bool, barTs int64) {
	defer func() {
		if r := recover(); r != nil {
			observ.Log("post_fill_update_failed", map[string]any{
				"symbol": intent.Symbol, "panic": fmt.Sprint(r),
			})
		}
	}()

	realized := e.portfolio.ApplyFill(intent.Symbol, intent.Side, res.Filled, res.AvgPrice)
	e.risk.OnFill(intent.Side, res.Filled, res.AvgPrice, barTs)

	if closing || realized != 0 {
		e.risk.RecordClosePnl(realized, barTs)
		e.perf.RecordOutcome(realized)
		if e.journal != nil {
			err := e.journal.RecordOutcome(journal.Outcome{
				TradeID:  res.OrderID,
				Symbol:   intent.Symbol,
				Side:     intent.Side,
				Qty:      res.Filled,
				Pnl:      realized,
				OpenedAt: time.UnixMilli(barTs).UTC(),
				ClosedAt: time.UnixMilli(barTs).UTC(),
				Reason:   intent.Algo,
			})
			if err != nil {
				observ.Log("journal_write_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// symbolDayPnl approximates per-symbol realized day PnL from the tracker.
// The tracker carries account-level realized PnL; per-symbol attribution
// uses the open position's unrealized swing as a proxy when flat history
// is unavailable.
func (e *Engine) symbolDayPnl(symbol string) float64 {
	// Account-level caps dominate in practice; per-symbol realized PnL is
	// tracked precisely only while the journal is enabled.
	if e.journal == nil {
		return 0
	}
	outcomes, err := e.journal.RecentOutcomes(200)
	if err != nil {
		return 0
	}
	today := time.Now().UTC().Format("2006-01-02")
	sum := 0.0
	for _, o := range outcomes {
		if o.Symbol == symbol && o.ClosedAt.UTC().Format("2006-01-02") == today {
			sum += o.Pnl
		}
	}
	return sum
}

func (e *Engine) writeAudit(sig Signal, res execution.Result) {
	if e.audit == nil {
		return
	}
	equity, _ := e.portfolio.Equity()
	err := e.audit.Append(AuditRow{
		Ts:     time.Now(),
		Symbol: sig.Symbol,
		Side:   sig.Signal,
		Qty:    res.Filled,
		Price:  res.AvgPrice,
		Status: string(res.Status),
		Equity: equity,
		Reason: res.Reason,
	})
	if err != nil {
		// Persistence failure never fails a decision that already executed.
		observ.Log("audit_write_failed", map[string]any{"error": err.Error()})
	}
}

// ResetStatus is the combined outcome of a day reset.
type ResetStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ResetDay resets the portfolio and risk day counters. A failure in either
// is reported structurally, never propagated.
func (e *Engine) ResetDay() (rs ResetStatus) {
	rs = ResetStatus{Status: "ok"}
	if err := resetComponent("portfolio", e.portfolio.ResetDay); err != nil {
		return ResetStatus{Status: "error", Reason: err.Error()}
	}
	if err := resetComponent("risk", e.risk.ResetDay); err != nil {
		return ResetStatus{Status: "error", Reason: err.Error()}
	}
	return rs
}

func resetComponent(name string, reset func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s_reset_failed:%v", name, r)
		}
	}()
	reset()
	return nil
}

// mapSignal maps the external signal vocabulary to an order side. closing
// reports whether the signal reduces an existing position by intent.
func mapSignal(signal string) (side string, closing bool, ok bool) {
	switch signal {
	case "BUY":
		return "BUY", false, true
	case "SELL":
		return "SELL", true, true
	case "SHORT":
		return "SELL", false, true
	case "COVER":
		return "BUY", true, true
	default:
		// HOLD and anything unrecognized are ignored, not errors.
		return "", false, false
	}
}
