package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/internal/runs"
	"github.com/wonny/hedgefund/internal/validation"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the analysts over a date range",
	Long: `Simulate the portfolio manager day by day over historical prices.

The run is recorded in the configured run store, so it can also be
fetched from GET /api/backtest/{id} when the API shares the database.

Example:
  go run ./cmd/hedgefund backtest run --tickers AAPL,MSFT --from 2024-01-01 --to 2024-06-01
  go run ./cmd/hedgefund backtest run --tickers NVDA --from 2024-01-01 --to 2024-03-01 --analysts trend_following --json`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Run a backtest inline and print its performance.

Flags:
  --tickers    comma separated symbols (required)
  --from       start date YYYY-MM-DD (required)
  --to         end date YYYY-MM-DD (required)
  --capital    initial capital (default 100000)
  --margin     initial margin requirement for shorts (default 0 = no shorting)
  --analysts   comma separated analyst ids (default: configured set)
  --json       print the API response body instead of a summary`,
		RunE: runBacktest,
	}

	// Flags
	backtestTickers  []string
	backtestFrom     string
	backtestTo       string
	backtestCapital  float64
	backtestMargin   float64
	backtestAnalysts []string
	backtestJSON     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringSliceVar(&backtestTickers, "tickers", nil, "symbols (required)")
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD, required)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, required)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 100_000, "initial capital")
	backtestRunCmd.Flags().Float64Var(&backtestMargin, "margin", 0, "initial margin requirement")
	backtestRunCmd.Flags().StringSliceVar(&backtestAnalysts, "analysts", nil, "analyst ids")
	backtestRunCmd.Flags().BoolVar(&backtestJSON, "json", false, "print JSON")

	backtestRunCmd.MarkFlagRequired("tickers")
	backtestRunCmd.MarkFlagRequired("from")
	backtestRunCmd.MarkFlagRequired("to")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	body := requestBody(backtestTickers, backtestFrom, backtestTo, backtestAnalysts)
	body["initial_capital"] = backtestCapital
	body["initial_margin_requirement"] = backtestMargin

	req, err := validation.ParseBacktestRequest(body, s.defaults())
	if err != nil {
		return err
	}
	agent, err := s.agents.Agent(req.SelectedAnalysts)
	if err != nil {
		return err
	}

	if !backtestJSON {
		PrintJobHeader(JobMetadata{
			JobType: "Backtest",
			Tag:     agent.Name(),
			Period:  &Period{StartDate: backtestFrom, EndDate: backtestTo},
			Symbols: fmt.Sprint(req.Tickers),
		})
	}

	// 단일 실행: 워커 풀 없이 같은 수명주기로 실행
	manager := runs.NewManager(s.engine(), s.store, 1, 1, s.cfg.Engine.RunTimeout, s.log)
	defer manager.Shutdown(ctx)

	result, runErr := manager.Run(ctx, req, agent)
	var ee *contracts.EngineError
	if runErr != nil && (result == nil || !errors.As(runErr, &ee)) {
		return fmt.Errorf("backtest failed: %w", runErr)
	}

	if backtestJSON {
		var resp *report.BacktestResponse
		if runErr != nil {
			resp, err = report.PresentFailedBacktest(result, runErr)
		} else {
			resp, err = report.PresentBacktest(result)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return runErr
	}

	printBacktestResult(result)
	if runErr != nil {
		PrintError(runErr.Error())
		return runErr
	}
	return nil
}

func printBacktestResult(result *contracts.BacktestResult) {
	fmt.Println()
	if result.Status == contracts.StatusProcessed {
		PrintSuccess("Backtest completed")
	} else {
		PrintWarning(fmt.Sprintf("Backtest %s after %d steps", result.Status, len(result.Timeline)))
	}
	PrintDoubleSeparator()

	fmt.Println("📊 Summary")
	PrintKeyValue("Run ID", result.RunID, 14)
	PrintKeyValue("Period", result.Parameters.StartDate+" ~ "+result.Parameters.EndDate, 14)
	if result.StartedAt != nil && result.FinishedAt != nil {
		PrintKeyValue("Duration", result.FinishedAt.Sub(*result.StartedAt).String(), 14)
	}
	fmt.Println()

	m := result.Metrics
	if m == nil {
		PrintInfo("No metrics: the run recorded no steps")
		return
	}
	normalized := *m
	normalized.Normalize()

	fmt.Println("💰 Performance")
	PrintKeyValue("Initial Value", formatMoney(normalized.InitialValue), 14)
	PrintKeyValue("Final Value", formatMoney(normalized.FinalValue), 14)
	PrintKeyValue("Total Return", formatPercent(normalized.TotalReturn), 14)
	PrintKeyValue("Volatility", formatPercent(normalized.Volatility), 14)
	fmt.Println()

	fmt.Println("📉 Risk Metrics")
	PrintKeyValue("Sharpe Ratio", fmt.Sprintf("%.2f %s", normalized.SharpeRatio, rateSharpe(normalized.SharpeRatio)), 14)
	PrintKeyValue("Sortino Ratio", fmt.Sprintf("%.2f", normalized.SortinoRatio), 14)
	PrintKeyValue("Max Drawdown", fmt.Sprintf("%.2f%% %s", normalized.MaxDrawdown*100, rateDrawdown(normalized.MaxDrawdown)), 14)
	PrintKeyValue("VaR 95%", fmt.Sprintf("%.2f%%", normalized.VaR95*100), 14)
	PrintKeyValue("CVaR 95%", fmt.Sprintf("%.2f%%", normalized.CVaR95*100), 14)
	fmt.Println()

	fmt.Println("💹 Trading Metrics")
	PrintKeyValue("Trading Days", fmt.Sprint(normalized.TradingDays), 14)
	PrintKeyValue("Total Trades", fmt.Sprint(normalized.TotalTrades), 14)
	PrintKeyValue("Rejected", fmt.Sprint(normalized.RejectedTrades), 14)
	fmt.Println()

	// Equity Curve (last 10 points)
	fmt.Println("📈 Equity Curve (Last 10 Days)")
	start := max(len(result.Timeline)-10, 0)
	widths := []int{12, 16, 10}
	PrintTableHeader([]string{"Date", "Value", "Trades"}, widths)
	for _, snap := range result.Timeline[start:] {
		PrintTableRow([]string{snap.Date, formatMoney(snap.Value), fmt.Sprint(len(snap.Trades))}, widths)
	}
	fmt.Println()
}
