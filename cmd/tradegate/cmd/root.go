package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradegate",
	Short: "Trade admission control and order routing",
	Long: `Tradegate decides whether a directional signal may trade, at what
size, and through which execution strategy, while enforcing account-level
and per-symbol risk limits.

Pipeline: vetoes -> confidence gate -> risk checks -> sizing -> routing ->
audit.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; env vars may come from the environment.
		_ = godotenv.Load()
	},
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "config.yaml", "path to YAML config")
}
