package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/hedgefund"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/internal/validation"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Trading decisions as of the end date",
	Long: `Run one decision pass for the given tickers, as POST /api/hedge-fund does.

Example:
  go run ./cmd/hedgefund analyze --tickers MSFT,NVDA --from 2024-01-01 --to 2024-01-31
  go run ./cmd/hedgefund analyze --tickers AAPL --from 2024-01-01 --to 2024-03-01 --cash 50000 --reasoning`,
	RunE: runAnalyze,
}

var (
	analyzeTickers   []string
	analyzeFrom      string
	analyzeTo        string
	analyzeCash      float64
	analyzeAnalysts  []string
	analyzeReasoning bool
	analyzeJSON      bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringSliceVar(&analyzeTickers, "tickers", nil, "symbols (required)")
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "start date (YYYY-MM-DD, required)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "end date (YYYY-MM-DD, required)")
	analyzeCmd.Flags().Float64Var(&analyzeCash, "cash", 0, "starting cash (default DEFAULT_ANALYSIS_CASH)")
	analyzeCmd.Flags().StringSliceVar(&analyzeAnalysts, "analysts", nil, "analyst ids")
	analyzeCmd.Flags().BoolVar(&analyzeReasoning, "reasoning", false, "include reasoning")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print JSON")

	analyzeCmd.MarkFlagRequired("tickers")
	analyzeCmd.MarkFlagRequired("from")
	analyzeCmd.MarkFlagRequired("to")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	body := requestBody(analyzeTickers, analyzeFrom, analyzeTo, analyzeAnalysts)
	body["show_reasoning"] = analyzeReasoning
	if cmd.Flags().Changed("cash") {
		body["portfolio"] = map[string]any{"cash": analyzeCash}
	}

	req, err := validation.ParseHedgeFundRequest(body, s.defaults())
	if err != nil {
		return err
	}
	agent, err := s.agents.Agent(req.SelectedAnalysts)
	if err != nil {
		return err
	}

	result, err := hedgefund.NewAnalyzer(s.prices, s.agents.Lookback(), s.log).Analyze(ctx, req, agent)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	resp, err := report.PresentHedgeFund(result)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printDecisions(result)
	return nil
}

func printDecisions(result *contracts.HedgeFundResult) {
	PrintJobHeader(JobMetadata{
		JobType: "Trading Decisions",
		Tag:     result.Agent,
		Period:  &Period{StartDate: result.Parameters.StartDate, EndDate: result.Parameters.EndDate},
		Symbols: fmt.Sprint(result.Parameters.Tickers),
	})

	widths := []int{8, 8, 10, 12, 10}
	PrintTableHeader([]string{"Ticker", "Action", "Quantity", "Price", "Conf."}, widths)
	for _, t := range result.Parameters.Tickers {
		d := result.Decisions[t]
		PrintTableRow([]string{
			t,
			string(d.Action),
			fmt.Sprint(d.Quantity),
			formatMoney(result.Prices[t]),
			fmt.Sprintf("%.0f%%", d.Confidence*100),
		}, widths)
		if d.Reasoning != "" {
			fmt.Printf("   ↳ %s\n", d.Reasoning)
		}
	}
	fmt.Println()
}
