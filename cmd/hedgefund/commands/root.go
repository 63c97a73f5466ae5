package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hedgefund",
	Short: "AI hedge fund - backtests and trading decisions",
	Long: `AI Hedge Fund CLI

Analyst-driven trading decisions and day-by-day backtests,
served over HTTP or run directly from the command line.

Usage:
  go run ./cmd/hedgefund [command]

Examples:
  go run ./cmd/hedgefund api
  go run ./cmd/hedgefund backtest run --tickers AAPL,MSFT --from 2024-01-01 --to 2024-06-01
  go run ./cmd/hedgefund analyze --tickers NVDA --from 2024-01-01 --to 2024-01-31
  go run ./cmd/hedgefund prices seed --tickers AAPL --from 2023-01-01 --to 2024-12-31
  go run ./cmd/hedgefund db status`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file to load before the environment (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
