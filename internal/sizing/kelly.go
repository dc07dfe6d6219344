package sizing

import "math"

// KellySizer maps win-rate/payoff statistics to a bounded position-size
// fraction. Cap defaults well below full Kelly to prevent overshoot.
type KellySizer struct {
	cap float64
}

func NewKellySizer(cap float64) *KellySizer {
	if cap <= 0 || cap > 1 {
		cap = 0.25
	}
	return &KellySizer{cap: cap}
}

// OptimalFraction is clamp(winRate - (1-winRate)/payoffRatio, 0, cap).
// Degenerate inputs yield 0 rather than an error.
func (k *KellySizer) OptimalFraction(winRate, payoffRatio float64) float64 {
	if payoffRatio <= 0 || winRate < 0 || winRate > 1 {
		return 0
	}
	f := winRate - (1-winRate)/payoffRatio
	if f < 0 {
		return 0
	}
	if f > k.cap {
		return k.cap
	}
	return f
}

// SizePosition converts a fraction of equity into a whole-share quantity.
func (k *KellySizer) SizePosition(equity, price, winRate, payoffRatio float64) float64 {
	if equity <= 0 || price <= 0 {
		return 0
	}
	f := k.OptimalFraction(winRate, payoffRatio)
	return math.Floor(equity * f / price)
}
