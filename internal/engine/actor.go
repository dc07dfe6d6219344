package engine

import (
	"context"

	"github.com/quantfold/tradegate/internal/observ"
)

// Run consumes signals and processes each to completion before accepting
// the next. One Run loop per account keeps risk-state mutation atomic; the
// engine itself is the single writer of its account's counters.
//
// Cancellation of ctx aborts between signals and propagates into any
// in-flight broker call through the per-order deadline.
func (e *Engine) Run(ctx context.Context, signals <-chan Signal) {
	for {
		select {
		case <-ctx.Done():
			observ.Log("engine_stopped", map[string]any{"reason": ctx.Err().Error()})
			return
		case sig, ok := <-signals:
			if !ok {
				observ.Log("engine_stopped", map[string]any{"reason": "signal_source_closed"})
				return
			}
			res := e.ProcessSignal(ctx, sig)
			observ.Log("signal_processed", map[string]any{
				"symbol": sig.Symbol,
				"signal": sig.Signal,
				"status": string(res.Status),
				"reason": res.Reason,
			})
		}
	}
}
