package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/hedgefund/internal/contracts"
)

func timeline(values ...float64) []contracts.Snapshot {
	out := make([]contracts.Snapshot, len(values))
	for i, v := range values {
		out[i] = contracts.Snapshot{Step: i + 1, Value: v}
	}
	return out
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(100, timeline(110, 99, 120))

	assert.Equal(t, 100.0, m.InitialValue)
	assert.Equal(t, 120.0, m.FinalValue)
	assert.InDelta(t, 0.2, m.TotalReturn, 1e-12)
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-12)
	assert.Equal(t, 3, m.TradingDays)
	assert.Greater(t, m.Volatility, 0.0)
	assert.Greater(t, m.SharpeRatio, 0.0)
	assert.Greater(t, m.SortinoRatio, 0.0)
	assert.InDelta(t, 0.1, m.VaR95, 1e-12)
}

func TestComputeMetrics_ZeroCapital(t *testing.T) {
	m := ComputeMetrics(0, timeline(0, 0))
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.SharpeRatio)
}

func TestComputeMetrics_FlatCurveIsNonFinite(t *testing.T) {
	m := ComputeMetrics(1000, timeline(1000))
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.True(t, math.IsNaN(m.SharpeRatio))

	normalized := m.Normalize()
	assert.Contains(t, normalized, "sharpe_ratio")
	assert.Equal(t, 0.0, m.SharpeRatio)
}

func TestComputeMetrics_CountsTrades(t *testing.T) {
	tl := timeline(100, 100)
	tl[0].Trades = []contracts.Trade{
		{Status: contracts.TradeExecuted},
		{Status: contracts.TradePartial},
	}
	tl[1].Trades = []contracts.Trade{{Status: contracts.TradeRejected}}

	m := ComputeMetrics(100, tl)
	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.RejectedTrades)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"monotonic up", []float64{1, 2, 3}, 0},
		{"single dip", []float64{100, 50, 100}, 0.5},
		{"new peak then deeper fall", []float64{100, 90, 200, 100}, 0.5},
		{"non-positive peak skipped", []float64{0, -1, -2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestHistoricalVaR(t *testing.T) {
	returns := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		returns = append(returns, float64(i-50)/1000) // -0.049 .. 0.05
	}

	v := historicalVaR(returns, 0.95)
	assert.InDelta(t, 0.044, v.VaR, 1e-12)
	assert.InDelta(t, 0.0465, v.CVaR, 1e-12)

	assert.Equal(t, varResult{}, historicalVaR(nil, 0.95))
	assert.Equal(t, varResult{}, historicalVaR([]float64{0.01, 0.02}, 0.95))
}
