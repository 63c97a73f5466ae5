// Package marketdata provides daily price history for backtests and analyses.
package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Synthetic generates deterministic daily bars per ticker.
// The same ticker and date always yield the same bar, whatever window is asked for.
type Synthetic struct{}

// NewSynthetic creates a synthetic price source
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

var epoch = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

// History returns weekday bars in [from, to]
func (s *Synthetic) History(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("history %s: to %s is before from %s", ticker, to.Format(contracts.DateLayout), from.Format(contracts.DateLayout))
	}

	p := paramsFor(ticker)
	from = truncateDay(from)
	to = truncateDay(to)

	bars := make([]contracts.Bar, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isWeekend(d) {
			continue
		}
		bars = append(bars, p.bar(ticker, d))
	}
	return bars, nil
}

type tickerParams struct {
	base   float64
	drift  float64 // annual log drift
	phase1 float64
	phase2 float64
	amp    float64
}

func paramsFor(ticker string) tickerParams {
	h := hash64(ticker)
	return tickerParams{
		base:   20 + float64(h%480),
		drift:  (float64((h>>9)%41) - 10) / 100, // -10% .. +30%
		phase1: float64((h>>17)%628) / 100,
		phase2: float64((h>>27)%628) / 100,
		amp:    0.05 + float64((h>>37)%15)/100,
	}
}

func (p tickerParams) logClose(ticker string, d time.Time) float64 {
	days := d.Sub(epoch).Hours() / 24
	return math.Log(p.base) +
		p.drift*days/365 +
		p.amp*math.Sin(2*math.Pi*days/180+p.phase1) +
		p.amp/2*math.Sin(2*math.Pi*days/45+p.phase2) +
		0.01*noise(ticker, d, 0)
}

func (p tickerParams) bar(ticker string, d time.Time) contracts.Bar {
	closePrice := math.Exp(p.logClose(ticker, d))
	open := closePrice * (1 + 0.005*noise(ticker, d, 1))
	high := math.Max(open, closePrice) * (1 + 0.004*math.Abs(noise(ticker, d, 2)))
	low := math.Min(open, closePrice) * (1 - 0.004*math.Abs(noise(ticker, d, 3)))
	volume := int64(1_000_000 * (1.5 + noise(ticker, d, 4)))

	return contracts.Bar{
		Date:   d,
		Open:   round2(open),
		High:   round2(high),
		Low:    round2(low),
		Close:  round2(closePrice),
		Volume: volume,
	}
}

// noise maps (ticker, date, salt) to a value in [-1, 1)
func noise(ticker string, d time.Time, salt byte) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	_, _ = h.Write([]byte(d.Format(contracts.DateLayout)))
	_, _ = h.Write([]byte{salt})
	return float64(h.Sum64()%2_000_000)/1_000_000 - 1
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
