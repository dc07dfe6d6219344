package perf

import (
	"math"
	"testing"
)

func TestWinRate(t *testing.T) {
	tr := NewTracker()
	if got := tr.WinRate(); got != 0.5 {
		t.Fatalf("empty WinRate = %v, want neutral 0.5", got)
	}

	tr.Seed([]float64{10, -5, 20, -5})
	if got := tr.WinRate(); got != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", got)
	}
	tr.RecordOutcome(3)
	if got := tr.WinRate(); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("WinRate = %v, want 0.6", got)
	}
}

func TestPayoffRatio(t *testing.T) {
	tr := NewTracker()
	if got := tr.PayoffRatio(); got != 1.0 {
		t.Fatalf("empty PayoffRatio = %v, want neutral 1.0", got)
	}

	tr.Seed([]float64{30, 10, -10})
	// avg win 20, avg loss 10
	if got := tr.PayoffRatio(); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("PayoffRatio = %v, want 2.0", got)
	}

	// All winners: no loss side, stays neutral.
	tr.Seed([]float64{5, 10})
	if got := tr.PayoffRatio(); got != 1.0 {
		t.Errorf("all-wins PayoffRatio = %v, want 1.0", got)
	}
}

func TestSharpeAndSortinoDegenerateInputs(t *testing.T) {
	tr := NewTracker()
	if tr.Sharpe() != 0 || tr.Sortino() != 0 {
		t.Error("empty history should yield 0")
	}

	tr.Seed([]float64{5})
	if tr.Sharpe() != 0 {
		t.Error("single trade should yield 0")
	}

	tr.Seed([]float64{5, 5, 5})
	if tr.Sharpe() != 0 {
		t.Error("zero-variance history should yield 0")
	}

	// No losers: downside deviation undefined, Sortino degrades to 0.
	tr.Seed([]float64{5, 10, 15})
	if tr.Sortino() != 0 {
		t.Error("all-wins Sortino should yield 0")
	}
}

func TestSharpeSign(t *testing.T) {
	tr := NewTracker()
	tr.Seed([]float64{10, -5, 12, -4, 8})
	if got := tr.Sharpe(); got <= 0 {
		t.Errorf("profitable history Sharpe = %v, want > 0", got)
	}

	tr.Seed([]float64{-10, 5, -12, 4, -8})
	if got := tr.Sharpe(); got >= 0 {
		t.Errorf("losing history Sharpe = %v, want < 0", got)
	}
}

func TestSeedReplacesHistory(t *testing.T) {
	tr := NewTracker()
	tr.RecordOutcome(100)
	tr.Seed([]float64{-1, -2})
	if got := tr.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if got := tr.WinRate(); got != 0 {
		t.Errorf("WinRate = %v, want 0 after reseed", got)
	}
}
