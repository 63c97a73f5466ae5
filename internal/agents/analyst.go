package agents

import (
	"fmt"
	"math"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Analyst identifiers accepted in selected_analysts
const (
	AnalystMomentum       = "momentum"
	AnalystMeanReversion  = "mean_reversion"
	AnalystTrendFollowing = "trend_following"
	AnalystVolatility     = "volatility"
)

// Analyst scores one ticker from its bar history.
// bars are in ascending date order; the last bar is the decision date.
type Analyst interface {
	ID() string
	Description() string
	Analyze(ticker string, bars []contracts.Bar) contracts.AnalystSignal
}

var descriptions = map[string]string{
	AnalystMomentum:       "Buys strength: trailing return over the lookback window",
	AnalystMeanReversion:  "Fades extremes: RSI below 30 is bullish, above 70 bearish",
	AnalystTrendFollowing: "Follows trend: EMA12/EMA26 spread and price against MA20",
	AnalystVolatility:     "Risk-off in turbulence: annualized volatility against recent drift",
}

var builders = map[string]func(AnalystConfig) Analyst{
	AnalystMomentum:       func(c AnalystConfig) Analyst { return &momentum{cfg: c} },
	AnalystMeanReversion:  func(c AnalystConfig) Analyst { return &meanReversion{cfg: c} },
	AnalystTrendFollowing: func(c AnalystConfig) Analyst { return &trendFollowing{cfg: c} },
	AnalystVolatility:     func(c AnalystConfig) Analyst { return &volatility{cfg: c} },
}

// AnalystInfo describes an available analyst
type AnalystInfo struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Lookback    int     `json:"lookback"`
	Default     bool    `json:"default"`
}

// toSignal converts a score in [-1, 1] into a directional signal
func toSignal(score, threshold float64, reasoning string) contracts.AnalystSignal {
	score = clamp(score)
	sig := contracts.SignalNeutral
	switch {
	case score >= threshold && score > 0:
		sig = contracts.SignalBullish
	case score <= -threshold && score < 0:
		sig = contracts.SignalBearish
	}
	return contracts.AnalystSignal{
		Signal:     sig,
		Confidence: math.Round(math.Abs(score)*100) / 100,
		Reasoning:  reasoning,
	}
}

func insufficient(ticker string, have, need int) contracts.AnalystSignal {
	return contracts.AnalystSignal{
		Signal:    contracts.SignalNeutral,
		Reasoning: fmt.Sprintf("%s: %d bars available, %d needed", ticker, have, need),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

func closes(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
