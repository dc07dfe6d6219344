package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/risk"
)

var riskDemoCmd = &cobra.Command{
	Use:   "risk-demo",
	Short: "Walk the risk gate through a scripted losing day",
	Long: `Exercise the admission checks against an in-memory state store:
a string of losers trips the cooldown, then the daily loss cap, printing
each decision as it happens.`,
	RunE: runRiskDemo,
}

func init() {
	rootCmd.AddCommand(riskDemoCmd)
}

func runRiskDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Risk.MaxConsecutiveLosers = 3
	cfg.Risk.CooldownBars = 5

	mgr, err := risk.NewManager(cfg.Risk, &risk.MemStateStore{}, nil)
	if err != nil {
		return err
	}

	barMs := cfg.Risk.BarDurationMs
	ts := int64(1_700_000_000_000)

	fmt.Println("== three losers trip the cooldown ==")
	for i := 0; i < 3; i++ {
		ok, reason := mgr.AllowTrade("AAPL", 500, "BUY", ts)
		fmt.Printf("bar %d: allow=%v reason=%q\n", i, ok, reason)
		mgr.OnFill("BUY", 10, 50, ts)
		mgr.RecordClosePnl(-25, ts)
		ts += barMs
	}

	ok, reason := mgr.AllowTrade("AAPL", 500, "BUY", ts)
	fmt.Printf("after streak: allow=%v reason=%q\n", ok, reason)

	ts += int64(cfg.Risk.CooldownBars) * barMs
	ok, reason = mgr.AllowTrade("AAPL", 500, "BUY", ts)
	fmt.Printf("after cooldown: allow=%v reason=%q\n", ok, reason)

	fmt.Println("== daily loss cap ==")
	mgr.RecordClosePnl(10, ts) // a win resets the loser streak
	mgr.RecordClosePnl(-cfg.Risk.DayLossCapPct*cfg.Risk.BaseEquityFallback-10, ts)
	ok, reason = mgr.AllowTrade("AAPL", 10, "BUY", ts+1)
	fmt.Printf("post-loss: allow=%v reason=%q\n", ok, reason)
	return nil
}
