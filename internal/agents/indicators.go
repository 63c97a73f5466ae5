package agents

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// trailingReturn is the return over the last n steps
func trailingReturn(c []float64, n int) float64 {
	if len(c) < n+1 {
		return 0
	}
	past := c[len(c)-1-n]
	if past == 0 {
		return 0
	}
	return (c[len(c)-1] - past) / past
}

// rsi is Wilder's relative strength over the last period changes
func rsi(c []float64, period int) float64 {
	if len(c) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(c) - period; i < len(c); i++ {
		change := c[i] - c[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs)
}

// ema seeds with the SMA of the first period values
func ema(c []float64, period int) float64 {
	if len(c) < period {
		return 0
	}
	seed := stat.Mean(c[:period], nil)
	k := 2.0 / (float64(period) + 1)
	v := seed
	for _, x := range c[period:] {
		v = x*k + v*(1-k)
	}
	return v
}

func sma(c []float64, n int) float64 {
	if len(c) < n || n == 0 {
		return 0
	}
	return stat.Mean(c[len(c)-n:], nil)
}

// dailyReturns over the last n+1 closes
func dailyReturns(c []float64, n int) []float64 {
	if len(c) < 2 {
		return nil
	}
	start := len(c) - n - 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, len(c)-start-1)
	for i := start + 1; i < len(c); i++ {
		if c[i-1] == 0 {
			continue
		}
		out = append(out, c[i]/c[i-1]-1)
	}
	return out
}

func annualizedVol(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(252)
}
