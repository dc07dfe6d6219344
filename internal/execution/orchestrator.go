package execution

import (
	"context"
	"math"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/observ"
)

// Orchestrator dispatches an order to a slicing strategy or straight to the
// router. Slices share one parent context: cancelling it stops the
// remainder of the schedule.
type Orchestrator struct {
	router *Router
	cfg    config.Execution
}

func NewOrchestrator(router *Router, cfg config.Execution) *Orchestrator {
	return &Orchestrator{router: router, cfg: cfg}
}

// Execute runs req through the named algo. Empty or "direct" routes the
// whole quantity at once. An unknown algo is a caller contract bug and is
// rejected, not guessed at.
func (o *Orchestrator) Execute(ctx context.Context, algo string, req OrderRequest) Result {
	var res Result
	switch algo {
	case "", "direct":
		res = o.router.Route(ctx, req)
	case "twap":
		res = o.slice(ctx, req, equalWeights(o.cfg.TWAPSlices))
	case "vwap":
		res = o.slice(ctx, req, uShapeWeights(o.cfg.VWAPSlices))
	case "iceberg":
		res = o.iceberg(ctx, req)
	default:
		res = Result{Status: StatusRejected, Reason: "unknown_algo:" + algo}
	}
	observ.IncOrder(string(res.Status), algoLabel(algo))
	return res
}

func algoLabel(algo string) string {
	if algo == "" {
		return "direct"
	}
	return algo
}

// slice executes the request as weighted child orders and aggregates the
// outcomes: any error wins, then any pending, else filled.
func (o *Orchestrator) slice(ctx context.Context, req OrderRequest, weights []float64) Result {
	agg := Result{Status: StatusFilled, OrderID: NewOrderID()}
	remaining := req.Qty
	notional := 0.0

	for i, w := range weights {
		qty := math.Floor(req.Qty * w)
		if i == len(weights)-1 {
			qty = remaining // last slice absorbs rounding residue
		}
		if qty <= 0 {
			continue
		}
		child := req
		child.Qty = qty

		res := o.router.Route(ctx, child)
		switch res.Status {
		case StatusFilled, StatusOK:
			agg.Filled += res.Filled
			notional += res.Filled * res.AvgPrice
		case StatusPending:
			agg.Filled += res.Filled
			notional += res.Filled * res.AvgPrice
			if agg.Status != StatusError {
				agg.Status = StatusPending
			}
		default:
			agg.Status = res.Status
			agg.Reason = res.Reason
			observ.Log("slice_aborted", map[string]any{
				"symbol": req.Symbol, "slice": i, "reason": res.Reason,
			})
			if agg.Filled > 0 {
				agg.AvgPrice = notional / agg.Filled
			}
			return agg
		}
		remaining -= qty
	}

	if agg.Filled > 0 {
		agg.AvgPrice = notional / agg.Filled
	}
	return agg
}

// iceberg shows only a visible fraction per child order until the full
// quantity is worked.
func (o *Orchestrator) iceberg(ctx context.Context, req OrderRequest) Result {
	visible := math.Max(1, math.Floor(req.Qty*o.cfg.IcebergVisible))
	agg := Result{Status: StatusFilled, OrderID: NewOrderID()}
	remaining := req.Qty
	notional := 0.0

	for remaining > 0 {
		qty := math.Min(visible, remaining)
		child := req
		child.Qty = qty

		res := o.router.Route(ctx, child)
		switch res.Status {
		case StatusFilled, StatusOK:
			agg.Filled += res.Filled
			notional += res.Filled * res.AvgPrice
		case StatusPending:
			agg.Filled += res.Filled
			notional += res.Filled * res.AvgPrice
			agg.Status = StatusPending
		default:
			agg.Status = res.Status
			agg.Reason = res.Reason
			if agg.Filled > 0 {
				agg.AvgPrice = notional / agg.Filled
			}
			return agg
		}
		remaining -= qty
	}

	if agg.Filled > 0 {
		agg.AvgPrice = notional / agg.Filled
	}
	return agg
}

func equalWeights(n int) []float64 {
	if n <= 0 {
		n = 1
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// uShapeWeights front- and back-loads slices the way intraday volume
// concentrates at the open and close.
func uShapeWeights(n int) []float64 {
	if n <= 0 {
		n = 1
	}
	w := make([]float64, n)
	total := 0.0
	for i := range w {
		x := 0.0
		if n > 1 {
			x = float64(i)/float64(n-1)*2 - 1 // [-1, 1]
		}
		w[i] = 1 + x*x // parabola, heavier at the ends
		total += w[i]
	}
	for i := range w {
		w[i] /= total
	}
	return w
}
