package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/hedgefund/internal/contracts"
)

// tradingDaysPerYear annualizes daily statistics
const tradingDaysPerYear = 252

// ComputeMetrics derives performance metrics from a timeline.
// Ratios are left as computed; a flat or single-step curve yields NaN or Inf,
// which presentation normalizes.
func ComputeMetrics(initialCapital float64, timeline []contracts.Snapshot) *contracts.Metrics {
	m := &contracts.Metrics{
		InitialValue: initialCapital,
		FinalValue:   initialCapital,
		TradingDays:  len(timeline),
	}

	values := make([]float64, 0, len(timeline)+1)
	values = append(values, initialCapital)
	for _, s := range timeline {
		values = append(values, s.Value)
		for _, t := range s.Trades {
			if t.Status == contracts.TradeRejected {
				m.RejectedTrades++
			} else {
				m.TotalTrades++
			}
		}
	}

	m.FinalValue = values[len(values)-1]
	if initialCapital != 0 {
		m.TotalReturn = (m.FinalValue - initialCapital) / initialCapital
	}
	m.MaxDrawdown = maxDrawdown(values)

	returns := periodReturns(values)
	if len(returns) == 0 {
		return m
	}

	annualize := math.Sqrt(tradingDaysPerYear)
	mean, std := stat.MeanStdDev(returns, nil)
	m.Volatility = std * annualize
	m.SharpeRatio = mean / std * annualize
	m.SortinoRatio = mean / downsideDeviation(returns) * annualize

	v := historicalVaR(returns, 0.95)
	m.VaR95 = v.VaR
	m.CVaR95 = v.CVaR

	return m
}

// periodReturns are step-over-step returns; steps from a non-positive value are skipped
func periodReturns(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, values[i]/prev-1)
	}
	return out
}

// maxDrawdown is the largest peak-to-trough fall as a fraction of the peak
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// downsideDeviation is the root mean square of negative returns over all periods
func downsideDeviation(returns []float64) float64 {
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// varResult holds historical VaR and CVaR
// ⭐ SSOT: 손실을 양수로 표현 (VaR=0.05 → 5% 손실 가능)
type varResult struct {
	VaR  float64
	CVaR float64
}

// historicalVaR is the (1-confidence) percentile loss and the mean loss in that tail
func historicalVaR(returns []float64, confidence float64) varResult {
	if len(returns) == 0 {
		return varResult{}
	}

	// 오름차순: 손실이 앞에
	sorted := append([]float64{}, returns...)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	var out varResult
	if sorted[idx] < 0 {
		out.VaR = -sorted[idx]
	}

	// tail 평균
	tail := stat.Mean(sorted[:idx+1], nil)
	if tail < 0 {
		out.CVaR = -tail
	}
	return out
}
