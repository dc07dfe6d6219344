package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradegate/internal/config"
)

var resetDayCmd = &cobra.Command{
	Use:   "reset-day",
	Short: "Reset the persisted daily risk counters",
	Long: `Zero the day counters in the persisted risk state (trades today,
realized PnL, daily-loss breach flag) as if a day boundary had crossed.
Consecutive-loser streaks and peak equity carry over.`,
	RunE: runResetDay,
}

func init() {
	rootCmd.AddCommand(resetDayCmd)
}

func runResetDay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, jnl, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	if jnl != nil {
		defer jnl.Close()
	}

	rs := eng.ResetDay()
	return json.NewEncoder(os.Stdout).Encode(rs)
}
