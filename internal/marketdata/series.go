package marketdata

import (
	"sort"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Series indexes one ticker's bars by date for step lookups
type Series struct {
	bars []contracts.Bar
}

// NewSeries sorts a copy of bars by date
func NewSeries(bars []contracts.Bar) *Series {
	sorted := append([]contracts.Bar{}, bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return &Series{bars: sorted}
}

// Len returns the number of bars
func (s *Series) Len() int { return len(s.bars) }

// upto is the count of bars dated on or before d
func (s *Series) upto(d time.Time) int {
	return sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Date.After(d) })
}

// CloseAt returns the last close on or before d.
// 휴장일에는 직전 종가를 사용
func (s *Series) CloseAt(d time.Time) (float64, bool) {
	n := s.upto(d)
	if n == 0 {
		return 0, false
	}
	return s.bars[n-1].Close, true
}

// Until returns the bars dated on or before d; the slice must not be modified
func (s *Series) Until(d time.Time) []contracts.Bar {
	n := s.upto(d)
	return s.bars[:n:n]
}
