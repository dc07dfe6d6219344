package execution

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/observ"
)

// Router places single orders against the broker with a deadline, a shared
// rate limit, and bounded retry/backoff. Exhausted retries surface as a
// Result with status error, never as a panic or passthrough.
type Router struct {
	broker  Broker
	limiter *rate.Limiter
	cfg     config.Execution
}

func NewRouter(broker Broker, cfg config.Execution) *Router {
	return &Router{
		broker:  broker,
		limiter: rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), 1),
		cfg:     cfg,
	}
}

// NewOrderID returns a lexicographically sortable order identifier.
func NewOrderID() string { return ulid.Make().String() }

// Route submits one order. ctx cancellation (shutdown, kill switch) aborts
// between attempts and inside the broker call.
func (r *Router) Route(ctx context.Context, req OrderRequest) Result {
	if req.Qty <= 0 {
		return Result{Status: StatusRejected, Reason: "non_positive_qty"}
	}

	backoff := time.Duration(r.cfg.BackoffBaseMs) * time.Millisecond
	maxBackoff := time.Duration(r.cfg.BackoffMaxMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			observ.IncBrokerRetry()
			select {
			case <-ctx.Done():
				return Result{Status: StatusError, Reason: "cancelled"}
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return Result{Status: StatusError, Reason: "cancelled"}
		}

		callCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.OrderTimeoutMs)*time.Millisecond)
		raw, err := r.broker.PlaceOrder(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			observ.Log("broker_call_failed", map[string]any{
				"symbol": req.Symbol, "attempt": attempt, "error": err.Error(),
			})
			continue
		}

		status, reason := NormalizeStatus(raw.Status)
		return Result{
			OrderID:  raw.OrderID,
			Status:   status,
			Reason:   reason,
			Filled:   raw.Filled,
			AvgPrice: raw.AvgPrice,
		}
	}

	if lastErr == nil {
		// Zero attempts ran; misconfiguration, not a broker failure.
		return Result{Status: StatusError, Reason: "broker_error"}
	}
	return Result{Status: StatusError, Reason: "broker_error:" + lastErr.Error()}
}
