package agents

import (
	"fmt"
	"math"

	"github.com/wonny/hedgefund/internal/contracts"
)

type momentum struct{ cfg AnalystConfig }

func (a *momentum) ID() string          { return AnalystMomentum }
func (a *momentum) Description() string { return descriptions[AnalystMomentum] }

// Analyze maps the trailing return through tanh so ±10% is a strong signal
func (a *momentum) Analyze(ticker string, bars []contracts.Bar) contracts.AnalystSignal {
	n := a.cfg.Lookback
	if len(bars) < n+1 {
		return insufficient(ticker, len(bars), n+1)
	}
	ret := trailingReturn(closes(bars), n)
	score := math.Tanh(ret * 10)
	return toSignal(score, a.cfg.Threshold, fmt.Sprintf("%d-day return %.2f%%", n, ret*100))
}

type meanReversion struct{ cfg AnalystConfig }

func (a *meanReversion) ID() string          { return AnalystMeanReversion }
func (a *meanReversion) Description() string { return descriptions[AnalystMeanReversion] }

// Analyze scores oversold as positive and overbought as negative
func (a *meanReversion) Analyze(ticker string, bars []contracts.Bar) contracts.AnalystSignal {
	n := a.cfg.Lookback
	if len(bars) < n+1 {
		return insufficient(ticker, len(bars), n+1)
	}
	r := rsi(closes(bars), n)

	var score float64
	switch {
	case r < 30:
		score = 0.5 + (30-r)/60 // 0.5 .. 1
	case r > 70:
		score = -0.5 - (r-70)/60
	default:
		score = (50 - r) / 40 // -0.5 .. 0.5
	}
	return toSignal(score, a.cfg.Threshold, fmt.Sprintf("RSI(%d) %.1f", n, r))
}

type trendFollowing struct{ cfg AnalystConfig }

func (a *trendFollowing) ID() string          { return AnalystTrendFollowing }
func (a *trendFollowing) Description() string { return descriptions[AnalystTrendFollowing] }

// Analyze blends the MACD spread (as a fraction of price) with price versus MA20
func (a *trendFollowing) Analyze(ticker string, bars []contracts.Bar) contracts.AnalystSignal {
	n := a.cfg.Lookback
	if n < 20 {
		n = 20
	}
	if len(bars) < n {
		return insufficient(ticker, len(bars), n)
	}
	c := closes(bars)
	last := c[len(c)-1]
	if last <= 0 {
		return insufficient(ticker, 0, n)
	}

	macd := (ema(c, 12) - ema(c, n)) / last
	ma20 := sma(c, 20)
	maGap := (last - ma20) / ma20

	score := 0.6*math.Tanh(macd*50) + 0.4*math.Tanh(maGap*25)
	return toSignal(score, a.cfg.Threshold, fmt.Sprintf("MACD %.2f%% of price, %.2f%% vs MA20", macd*100, maGap*100))
}

type volatility struct{ cfg AnalystConfig }

func (a *volatility) ID() string          { return AnalystVolatility }
func (a *volatility) Description() string { return descriptions[AnalystVolatility] }

// Analyze rewards calm uptrends and penalises turbulent downtrends.
// 연 변동성 40% 이상이면 방향과 무관하게 약세로 본다
func (a *volatility) Analyze(ticker string, bars []contracts.Bar) contracts.AnalystSignal {
	n := a.cfg.Lookback
	if len(bars) < n+1 {
		return insufficient(ticker, len(bars), n+1)
	}
	c := closes(bars)
	vol := annualizedVol(dailyReturns(c, n))
	drift := trailingReturn(c, n)

	var score float64
	if vol >= 0.40 {
		score = -math.Min(1, vol)
	} else {
		// risk adjusted drift, damped by volatility
		score = math.Tanh(drift*10) * (1 - vol/0.40)
	}
	return toSignal(score, a.cfg.Threshold, fmt.Sprintf("annualized volatility %.1f%%, %d-day drift %.2f%%", vol*100, n, drift*100))
}
