package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/hedgefund/internal/contracts"
)

// PendingMessage is reported for runs whose metrics do not exist yet
const PendingMessage = "Performance analysis will be generated after backtest completion"

// Performance status values
const (
	PerformancePending     = "pending"
	PerformanceComplete    = "complete"
	PerformancePartial     = "partial" // 실패한 실행의 부분 타임라인 기준
	PerformanceUnavailable = "unavailable"
)

// StatusSuccess and StatusError are the top-level response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Performance is the performance_metrics section of a backtest response
type Performance struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	*contracts.Metrics
	NormalizedFields []string `json:"normalized_fields,omitempty"`
}

// BacktestResponse is the wire shape of /api/backtest
type BacktestResponse struct {
	Status             string                    `json:"status"`
	Message            string                    `json:"message,omitempty"`
	BacktestResults    *contracts.BacktestResult `json:"backtest_results"`
	PerformanceMetrics Performance               `json:"performance_metrics"`
	Note               string                    `json:"note,omitempty"`
}

// HedgeFundResponse is the wire shape of /api/hedge-fund
type HedgeFundResponse struct {
	Status  string                     `json:"status"`
	Results *contracts.HedgeFundResult `json:"results"`
	Note    string                     `json:"note,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewError builds an error body
func NewError(err error) ErrorResponse {
	return ErrorResponse{Status: StatusError, Message: err.Error()}
}

// PresentBacktest shapes a result for the wire.
// Non-finite metrics become 0 and are listed in normalized_fields; a
// non-finite value in the recorded state is a *contracts.SerializationError.
func PresentBacktest(result *contracts.BacktestResult) (*BacktestResponse, error) {
	out := result.Clone()
	if err := checkTimeline(out.Timeline); err != nil {
		return nil, err
	}

	resp := &BacktestResponse{
		Status:          StatusSuccess,
		BacktestResults: out,
		Note:            out.Note,
	}

	switch {
	case !out.Status.Terminal():
		resp.PerformanceMetrics = Performance{Status: PerformancePending, Message: PendingMessage}
	case out.Metrics == nil:
		resp.PerformanceMetrics = Performance{Status: PerformanceUnavailable, Message: out.Error}
	default:
		status := PerformanceComplete
		if out.Status == contracts.StatusFailed {
			status = PerformancePartial
		}
		normalized := out.Metrics.Normalize()
		resp.PerformanceMetrics = Performance{Status: status, Metrics: out.Metrics}
		if len(normalized) > 0 {
			resp.PerformanceMetrics.NormalizedFields = normalized
		}
	}
	return resp, nil
}

// PresentFailedBacktest shapes a run that ended with err; the partial
// results travel with the error message
func PresentFailedBacktest(result *contracts.BacktestResult, err error) (*BacktestResponse, error) {
	resp, perr := PresentBacktest(result)
	if perr != nil {
		return nil, perr
	}
	resp.Status = StatusError
	resp.Message = err.Error()
	return resp, nil
}

// PresentHedgeFund shapes an analysis result for the wire
func PresentHedgeFund(result *contracts.HedgeFundResult) (*HedgeFundResponse, error) {
	if result.Portfolio != nil {
		if err := finite("portfolio.cash", result.Portfolio.Cash); err != nil {
			return nil, err
		}
		if err := finiteMap("portfolio.margin_used", result.Portfolio.MarginUsed); err != nil {
			return nil, err
		}
	}
	if err := finiteMap("prices", result.Prices); err != nil {
		return nil, err
	}
	for _, t := range sortedKeys(result.Decisions) {
		if err := finite(fmt.Sprintf("decisions.%s.confidence", t), result.Decisions[t].Confidence); err != nil {
			return nil, err
		}
	}
	for _, analyst := range sortedKeys(result.AnalystSignals) {
		perTicker := result.AnalystSignals[analyst]
		for _, t := range sortedKeys(perTicker) {
			if err := finite(fmt.Sprintf("analyst_signals.%s.%s.confidence", analyst, t), perTicker[t].Confidence); err != nil {
				return nil, err
			}
		}
	}

	return &HedgeFundResponse{Status: StatusSuccess, Results: result, Note: result.Note}, nil
}

func checkTimeline(timeline []contracts.Snapshot) error {
	for i, s := range timeline {
		prefix := fmt.Sprintf("timeline[%d]", i)
		if err := finite(prefix+".cash", s.Cash); err != nil {
			return err
		}
		if err := finite(prefix+".portfolio_value", s.Value); err != nil {
			return err
		}
		if err := finiteMap(prefix+".prices", s.Prices); err != nil {
			return err
		}
		if err := finiteMap(prefix+".margin_used", s.MarginUsed); err != nil {
			return err
		}
		for j, t := range s.Trades {
			if err := finite(fmt.Sprintf("%s.trades[%d].price", prefix, j), t.Price); err != nil {
				return err
			}
		}
	}
	return nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &contracts.SerializationError{Field: field, Value: v}
	}
	return nil
}

func finiteMap(field string, m map[string]float64) error {
	for _, k := range sortedKeys(m) {
		if err := finite(field+"."+k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
