package portfolio

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyFillLifecycle(t *testing.T) {
	testCases := []struct {
		name  string
		fills []struct {
			side       string
			qty, price float64
		}
		wantQty      float64
		wantAvg      float64
		wantRealized float64 // cumulative
		wantFlat     bool
	}{
		{
			name: "open_long",
			fills: []struct {
				side       string
				qty, price float64
			}{{"BUY", 10, 100}},
			wantQty: 10, wantAvg: 100,
		},
		{
			name: "weighted_avg_add",
			fills: []struct {
				side       string
				qty, price float64
			}{{"BUY", 10, 100}, {"BUY", 10, 110}},
			wantQty: 20, wantAvg: 105,
		},
		{
			name: "partial_reduce_realizes",
			fills: []struct {
				side       string
				qty, price float64
			}{{"BUY", 10, 100}, {"SELL", 4, 110}},
			wantQty: 6, wantAvg: 100, wantRealized: 40,
		},
		{
			name: "full_close_deletes",
			fills: []struct {
				side       string
				qty, price float64
			}{{"BUY", 10, 100}, {"SELL", 10, 95}},
			wantRealized: -50, wantFlat: true,
		},
		{
			name: "flip_long_to_short",
			fills: []struct {
				side       string
				qty, price float64
			}{{"BUY", 10, 100}, {"SELL", 15, 110}},
			wantQty: -5, wantAvg: 110, wantRealized: 100,
		},
		{
			name: "short_cover_realizes",
			fills: []struct {
				side       string
				qty, price float64
			}{{"SELL", 10, 100}, {"BUY", 10, 90}},
			wantRealized: 100, wantFlat: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(10000)
			total := 0.0
			for _, f := range tc.fills {
				total += tr.ApplyFill("AAPL", f.side, f.qty, f.price)
			}
			if !almostEqual(total, tc.wantRealized) {
				t.Errorf("realized = %v, want %v", total, tc.wantRealized)
			}
			pos, ok := tr.GetPosition("AAPL")
			if tc.wantFlat {
				if ok {
					t.Fatalf("expected flat, got %+v", pos)
				}
				return
			}
			if !ok {
				t.Fatal("expected open position")
			}
			if !almostEqual(pos.Qty, tc.wantQty) || !almostEqual(pos.AvgPrice, tc.wantAvg) {
				t.Errorf("position = {qty %v avg %v}, want {qty %v avg %v}",
					pos.Qty, pos.AvgPrice, tc.wantQty, tc.wantAvg)
			}
		})
	}
}

func TestApplyFillIgnoresDegenerateInput(t *testing.T) {
	tr := NewTracker(10000)
	if r := tr.ApplyFill("AAPL", "BUY", 0, 100); r != 0 {
		t.Errorf("zero qty realized %v", r)
	}
	if r := tr.ApplyFill("AAPL", "BUY", 10, -1); r != 0 {
		t.Errorf("negative price realized %v", r)
	}
	if _, ok := tr.GetPosition("AAPL"); ok {
		t.Error("degenerate fills should not open a position")
	}
}

func TestEquityAndExposure(t *testing.T) {
	tr := NewTracker(10000)
	tr.ApplyFill("AAPL", "BUY", 10, 100)
	tr.ApplyFill("MSFT", "SELL", 5, 200)

	eq, ok := tr.Equity()
	if !ok {
		t.Fatal("Equity should resolve with a capital base")
	}
	// Marks are at entry: no unrealized PnL yet.
	if !almostEqual(eq, 10000) {
		t.Errorf("equity = %v, want 10000", eq)
	}

	tr.UpdateMark("AAPL", 110) // +100 unrealized long
	tr.UpdateMark("MSFT", 190) // +50 unrealized short
	eq, _ = tr.Equity()
	if !almostEqual(eq, 10150) {
		t.Errorf("equity after marks = %v, want 10150", eq)
	}

	if got := tr.GrossExposure(); !almostEqual(got, 10*110+5*190) {
		t.Errorf("gross exposure = %v, want %v", got, 10*110+5*190)
	}

	// Explicit prices override marks; missing entries fall back to marks.
	got := tr.TotalExposure(map[string]float64{"AAPL": 120})
	if !almostEqual(got, 10*120+5*190) {
		t.Errorf("total exposure = %v, want %v", got, 10*120+5*190)
	}
}

func TestEquityWithoutCapitalBase(t *testing.T) {
	tr := NewTracker(0)
	if _, ok := tr.Equity(); ok {
		t.Error("Equity should report unresolved without a capital base")
	}
}

func TestDrawdownRatchet(t *testing.T) {
	tr := NewTracker(10000)
	tr.ApplyFill("AAPL", "BUY", 10, 100)
	tr.UpdateMark("AAPL", 120)
	tr.ApplyFill("AAPL", "SELL", 1, 120) // realizes, ratchets peak via fill path

	tr.UpdateMark("AAPL", 100)
	dd := tr.Drawdown()
	if dd <= 0 {
		t.Fatalf("expected positive drawdown, got %v", dd)
	}

	// Recovery above the old peak clamps drawdown back to zero.
	tr.UpdateMark("AAPL", 200)
	if dd := tr.Drawdown(); dd != 0 {
		t.Errorf("drawdown above peak = %v, want 0", dd)
	}
}

func TestSectorNotionals(t *testing.T) {
	tr := NewTracker(10000)
	tr.ApplyFill("AAPL", "BUY", 10, 100)
	tr.ApplyFill("MSFT", "BUY", 5, 200)
	tr.ApplyFill("XOM", "SELL", 20, 50)

	sectorOf := func(sym string) string {
		if sym == "XOM" {
			return "energy"
		}
		return "tech"
	}
	got := tr.SectorNotionals(sectorOf)
	if !almostEqual(got["tech"], 2000) || !almostEqual(got["energy"], 1000) {
		t.Errorf("sector notionals = %v", got)
	}
}

func TestResetDayKeepsEquityContinuous(t *testing.T) {
	tr := NewTracker(10000)
	tr.ApplyFill("AAPL", "BUY", 10, 100)
	tr.ApplyFill("AAPL", "SELL", 10, 110) // +100 realized

	before, _ := tr.Equity()
	tr.ResetDay()
	after, _ := tr.Equity()

	if !almostEqual(before, after) {
		t.Errorf("equity jumped across reset: %v -> %v", before, after)
	}
	if pnl := tr.RealizedPnl(); pnl != 0 {
		t.Errorf("realized PnL after reset = %v, want 0", pnl)
	}
}
