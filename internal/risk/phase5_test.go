package risk

import (
	"testing"

	"github.com/quantfold/tradegate/internal/config"
)

func TestCheckNoAveragingDown(t *testing.T) {
	testCases := []struct {
		name       string
		pos        PositionSnapshot
		side       string
		price      float64
		wantOK     bool
		wantReason string
	}{
		{"long_add_below_avg", PositionSnapshot{Qty: 10, AvgPrice: 100}, "BUY", 95, false, "no_averaging_down_long_block"},
		{"long_add_above_avg", PositionSnapshot{Qty: 10, AvgPrice: 100}, "BUY", 105, true, ""},
		{"long_add_at_avg", PositionSnapshot{Qty: 10, AvgPrice: 100}, "BUY", 100, true, ""},
		{"short_add_above_avg", PositionSnapshot{Qty: -10, AvgPrice: 100}, "SELL", 105, false, "no_averaging_down_short_block"},
		{"short_add_below_avg", PositionSnapshot{Qty: -10, AvgPrice: 100}, "SELL", 95, true, ""},
		{"flat_open", PositionSnapshot{}, "BUY", 95, true, ""},
		{"long_reduce", PositionSnapshot{Qty: 10, AvgPrice: 100}, "SELL", 95, true, ""},
		{"short_cover", PositionSnapshot{Qty: -10, AvgPrice: 100}, "BUY", 105, true, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := CheckNoAveragingDown(tc.pos, tc.side, tc.price)
			if d.Allowed != tc.wantOK {
				t.Fatalf("Allowed = %v, want %v (reason %q)", d.Allowed, tc.wantOK, d.Reason)
			}
			if d.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tc.wantReason)
			}
		})
	}
}

func TestCheckDailyLossGate(t *testing.T) {
	testCases := []struct {
		name       string
		pnl        float64
		cap        float64
		increasing bool
		wantOK     bool
	}{
		{"under_cap", -40, 50, true, true},
		{"at_cap", -50, 50, true, false},
		{"over_cap", -60, 50, true, false},
		{"over_cap_but_reducing", -60, 50, false, true},
		{"cap_given_negative", -60, -50, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := CheckDailyLossGate(tc.pnl, tc.cap, tc.increasing)
			if d.Allowed != tc.wantOK {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tc.wantOK)
			}
		})
	}
}

func TestClassifyMicrostructure(t *testing.T) {
	testCases := []struct {
		name      string
		rangePct  float64
		spreadBps float64
		feeBps    float64
		want      string
	}{
		{"wide_range_tight_spread", 0.02, 5, 2, RegimeGreen},  // ratio 9/200
		{"borderline_caution", 0.01, 20, 5, RegimeCaution},    // ratio 30/100
		{"cost_dominates", 0.005, 20, 5, RegimeRed},           // ratio 30/50
		{"zero_range", 0, 1, 1, RegimeRed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyMicrostructure(tc.rangePct, tc.spreadBps, tc.feeBps); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCheckMicrostructureOnlyBlocksGatedSymbols(t *testing.T) {
	gated := []string{"PENNY"}
	if d := CheckMicrostructure("PENNY", RegimeRed, gated); d.Allowed {
		t.Error("gated symbol in RED should block")
	}
	if d := CheckMicrostructure("AAPL", RegimeRed, gated); !d.Allowed {
		t.Error("ungated symbol passes even in RED")
	}
	if d := CheckMicrostructure("PENNY", RegimeCaution, gated); !d.Allowed {
		t.Error("CAUTION never blocks")
	}
}

func TestEVBand(t *testing.T) {
	testCases := []struct {
		name   string
		ev     float64
		regime string
		want   string
	}{
		{"strong_trend", 0.6, "trend", "A"},
		{"strong_chop_discounted", 0.6, "chop", "B"},   // 0.42
		{"strong_volatile_discounted", 0.6, "volatile", "B"}, // 0.30
		{"marginal", 0.12, "trend", "C"},
		{"barely_positive", 0.01, "trend", "D"},
		{"negative", -0.1, "trend", "F"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EVBand(tc.ev, tc.regime); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCheckEVBandSoftVersusPromoted(t *testing.T) {
	// Band D against a C minimum: below.
	d := CheckEVBand(0.05, "trend", "C", false)
	if !d.Allowed || d.Reason != "ev_band_soft_veto" {
		t.Errorf("soft veto should allow with advisory reason, got (%v, %q)", d.Allowed, d.Reason)
	}
	if applied, _ := d.Details["veto_applied"].(bool); !applied {
		t.Error("veto_applied should be recorded even when advisory")
	}

	d = CheckEVBand(0.05, "trend", "C", true)
	if d.Allowed || d.Reason != "ev_band_below_min" {
		t.Errorf("promoted veto should block, got (%v, %q)", d.Allowed, d.Reason)
	}

	if d := CheckEVBand(0.3, "trend", "C", true); !d.Allowed || d.Reason != "" {
		t.Errorf("above-min band passes clean, got (%v, %q)", d.Allowed, d.Reason)
	}
}

func TestCheckTradePhase5Ordering(t *testing.T) {
	cfg := config.Phase5{
		DailyLossCap:        50,
		AccountDailyLossCap: 200,
		MinEVBand:           "D",
	}

	// Account cap fires before the symbol cap and the averaging check.
	in := Phase5Input{
		Position:   PositionSnapshot{Symbol: "AAPL", Qty: 10, AvgPrice: 100},
		Side:       "BUY",
		Price:      95,
		SymbolPnl:  -60,
		AccountPnl: -250,
	}
	if d := CheckTradePhase5(in, cfg); d.Allowed || d.Reason != "account_daily_loss_cap" {
		t.Errorf("expected account cap first, got (%v, %q)", d.Allowed, d.Reason)
	}

	in.AccountPnl = -10
	if d := CheckTradePhase5(in, cfg); d.Allowed || d.Reason != "daily_loss_cap" {
		t.Errorf("expected symbol cap next, got (%v, %q)", d.Allowed, d.Reason)
	}

	in.SymbolPnl = -10
	if d := CheckTradePhase5(in, cfg); d.Allowed || d.Reason != "no_averaging_down_long_block" {
		t.Errorf("expected averaging block last, got (%v, %q)", d.Allowed, d.Reason)
	}

	// Reducing a position sails past both loss caps.
	reduce := Phase5Input{
		Position:   PositionSnapshot{Symbol: "AAPL", Qty: 10, AvgPrice: 100},
		Side:       "SELL",
		Price:      90,
		SymbolPnl:  -500,
		AccountPnl: -500,
	}
	if d := CheckTradePhase5(reduce, cfg); !d.Allowed {
		t.Errorf("reduce should pass loss caps, got reason %q", d.Reason)
	}
}
