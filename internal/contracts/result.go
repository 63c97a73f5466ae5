package contracts

import (
	"math"
	"time"
)

// RunStatus is the lifecycle status of a backtest run
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusProcessed RunStatus = "processed"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further change is allowed
func (s RunStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Metrics are derived from a completed timeline
type Metrics struct {
	InitialValue   float64 `json:"initial_value"`
	FinalValue     float64 `json:"final_value"`
	TotalReturn    float64 `json:"total_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	Volatility     float64 `json:"volatility"`
	VaR95          float64 `json:"var_95"`  // historical, loss positive
	CVaR95         float64 `json:"cvar_95"` // expected shortfall beyond VaR95
	TradingDays    int     `json:"trading_days"`
	TotalTrades    int     `json:"total_trades"`
	RejectedTrades int     `json:"rejected_trades"`
}

// Normalize replaces non-finite values with 0 and returns the json names it changed
func (m *Metrics) Normalize() []string {
	fields := []struct {
		name string
		v    *float64
	}{
		{"initial_value", &m.InitialValue},
		{"final_value", &m.FinalValue},
		{"total_return", &m.TotalReturn},
		{"max_drawdown", &m.MaxDrawdown},
		{"sharpe_ratio", &m.SharpeRatio},
		{"sortino_ratio", &m.SortinoRatio},
		{"volatility", &m.Volatility},
		{"var_95", &m.VaR95},
		{"cvar_95", &m.CVaR95},
	}

	normalized := make([]string, 0)
	for _, f := range fields {
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			*f.v = 0
			normalized = append(normalized, f.name)
		}
	}
	return normalized
}

// BacktestResult is the output of any engine
// ⭐ SSOT: 실제 엔진과 lite 엔진이 동일한 출력 형태를 따름
type BacktestResult struct {
	RunID      string             `json:"run_id,omitempty"`
	Status     RunStatus          `json:"status"`
	Message    string             `json:"message,omitempty"`
	Parameters BacktestParameters `json:"parameters"`
	Timeline   []Snapshot         `json:"timeline"`
	Metrics    *Metrics           `json:"metrics,omitempty"`
	Error      string             `json:"error,omitempty"`
	Note       string             `json:"note,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// Clone returns a deep copy that shares nothing with r
func (r *BacktestResult) Clone() *BacktestResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Parameters.Tickers = append([]string{}, r.Parameters.Tickers...)
	out.Parameters.Analysts = append([]string{}, r.Parameters.Analysts...)
	out.Timeline = make([]Snapshot, len(r.Timeline))
	for i, s := range r.Timeline {
		out.Timeline[i] = s.Clone()
	}
	if r.Metrics != nil {
		m := *r.Metrics
		out.Metrics = &m
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

// FinalSnapshot returns the last timeline entry
func (r *BacktestResult) FinalSnapshot() (Snapshot, bool) {
	if len(r.Timeline) == 0 {
		return Snapshot{}, false
	}
	return r.Timeline[len(r.Timeline)-1], true
}

// Signal is an analyst's directional view
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// AnalystSignal is one analyst's view of one ticker
type AnalystSignal struct {
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Analysis is a decision pass together with the signals behind it
type Analysis struct {
	Decisions []TradeDecision                     `json:"decisions"`
	Signals   map[string]map[string]AnalystSignal `json:"analyst_signals"` // analyst → ticker → signal
}

// HedgeFundResult is the output of a single analysis pass
type HedgeFundResult struct {
	Status         RunStatus                           `json:"status"`
	Parameters     HedgeFundParameters                 `json:"parameters"`
	Decisions      map[string]TradeDecision            `json:"decisions"`
	AnalystSignals map[string]map[string]AnalystSignal `json:"analyst_signals"`
	Portfolio      *PortfolioState                     `json:"portfolio,omitempty"`
	Prices         map[string]float64                  `json:"prices,omitempty"`
	Agent          string                              `json:"agent,omitempty"`
	Note           string                              `json:"note,omitempty"`
}
