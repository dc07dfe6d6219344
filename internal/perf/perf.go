package perf

import (
	"math"
	"sync"
)

// Tracker derives win-rate, payoff ratio and risk-adjusted return stats
// from a trade-outcome log. Short histories degrade to neutral values
// instead of NaNs.
type Tracker struct {
	mu   sync.RWMutex
	pnls []float64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Seed preloads historical outcomes, oldest first.
func (t *Tracker) Seed(pnls []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pnls = append(t.pnls[:0], pnls...)
}

// RecordOutcome appends one closed trade's PnL.
func (t *Tracker) RecordOutcome(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pnls = append(t.pnls, pnl)
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pnls)
}

// WinRate is wins/total; 0.5 with no history so the Kelly sizer stays
// neutral rather than zeroing out.
func (t *Tracker) WinRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.pnls) == 0 {
		return 0.5
	}
	wins := 0
	for _, p := range t.pnls {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(t.pnls))
}

// PayoffRatio is avg win / avg |loss|; 1.0 when either side is empty.
func (t *Tracker) PayoffRatio() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var winSum, lossSum float64
	var wins, losses int
	for _, p := range t.pnls {
		if p > 0 {
			winSum += p
			wins++
		} else if p < 0 {
			lossSum += -p
			losses++
		}
	}
	if wins == 0 || losses == 0 {
		return 1.0
	}
	return (winSum / float64(wins)) / (lossSum / float64(losses))
}

// Sharpe is mean/stddev over per-trade PnL; 0 with fewer than two trades
// or zero variance.
func (t *Tracker) Sharpe() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ratio(t.pnls, func(p float64) bool { return true })
}

// Sortino uses downside deviation only.
func (t *Tracker) Sortino() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ratio(t.pnls, func(p float64) bool { return p < 0 })
}

func ratio(pnls []float64, include func(float64) bool) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(len(pnls))

	variance := 0.0
	n := 0
	for _, p := range pnls {
		if include(p) {
			d := p - mean
			variance += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	sd := math.Sqrt(variance / float64(n))
	if sd == 0 {
		return 0
	}
	return mean / sd
}
