package contracts

import "time"

// DateLayout is the calendar date format used on the wire (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// BacktestRequest is a validated backtest request
// ⭐ SSOT: 모든 엔진(실제/lite)이 공유하는 입력 계약
type BacktestRequest struct {
	Tickers                  []string
	StartDate                time.Time
	EndDate                  time.Time
	InitialCapital           float64
	ModelName                string
	ModelProvider            string
	SelectedAnalysts         []string
	InitialMarginRequirement float64
}

// Parameters echoes the request for traceability and replay
func (r *BacktestRequest) Parameters() BacktestParameters {
	return BacktestParameters{
		Tickers:                  append([]string{}, r.Tickers...),
		StartDate:                r.StartDate.Format(DateLayout),
		EndDate:                  r.EndDate.Format(DateLayout),
		InitialCapital:           r.InitialCapital,
		Model:                    r.ModelName,
		Provider:                 r.ModelProvider,
		Analysts:                 append([]string{}, r.SelectedAnalysts...),
		InitialMarginRequirement: r.InitialMarginRequirement,
	}
}

// BacktestParameters is the wire echo of a BacktestRequest
type BacktestParameters struct {
	Tickers                  []string `json:"tickers"`
	StartDate                string   `json:"start_date"`
	EndDate                  string   `json:"end_date"`
	InitialCapital           float64  `json:"initial_capital"`
	Model                    string   `json:"model"`
	Provider                 string   `json:"provider"`
	Analysts                 []string `json:"analysts"`
	InitialMarginRequirement float64  `json:"initial_margin_requirement"`
}

// PortfolioInput is the optional starting portfolio of a hedge fund analysis
type PortfolioInput struct {
	Cash              float64          `json:"cash"`
	Positions         map[string]int64 `json:"positions"`
	MarginRequirement float64          `json:"margin_requirement"`
}

// HedgeFundRequest is a validated single-pass analysis request
type HedgeFundRequest struct {
	Tickers          []string
	StartDate        time.Time
	EndDate          time.Time
	Portfolio        PortfolioInput
	ShowReasoning    bool
	SelectedAnalysts []string
	ModelName        string
	ModelProvider    string
}

// Parameters echoes the request
func (r *HedgeFundRequest) Parameters() HedgeFundParameters {
	positions := make(map[string]int64, len(r.Portfolio.Positions))
	for k, v := range r.Portfolio.Positions {
		positions[k] = v
	}
	return HedgeFundParameters{
		Tickers:       append([]string{}, r.Tickers...),
		StartDate:     r.StartDate.Format(DateLayout),
		EndDate:       r.EndDate.Format(DateLayout),
		Model:         r.ModelName,
		Provider:      r.ModelProvider,
		Analysts:      append([]string{}, r.SelectedAnalysts...),
		ShowReasoning: r.ShowReasoning,
		Portfolio: PortfolioInput{
			Cash:              r.Portfolio.Cash,
			Positions:         positions,
			MarginRequirement: r.Portfolio.MarginRequirement,
		},
	}
}

// HedgeFundParameters is the wire echo of a HedgeFundRequest
type HedgeFundParameters struct {
	Tickers       []string       `json:"tickers"`
	StartDate     string         `json:"start_date"`
	EndDate       string         `json:"end_date"`
	Model         string         `json:"model"`
	Provider      string         `json:"provider"`
	Analysts      []string       `json:"analysts"`
	ShowReasoning bool           `json:"show_reasoning"`
	Portfolio     PortfolioInput `json:"portfolio"`
}
