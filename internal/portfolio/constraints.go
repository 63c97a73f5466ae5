package portfolio

import (
	"math"
	"slices"
)

// Constraints bound how the portfolio manager sizes positions
// ⭐ SSOT: 포지션 사이징 제약조건은 여기서만
type Constraints struct {
	MaxPositionPct float64  // 종목당 최대 비중 (0.0 ~ 1.0), 포트폴리오 가치 기준
	BlackList      []string // 거래 제외 종목
}

// IsBlackListed checks if a ticker is excluded from trading
func (c *Constraints) IsBlackListed(ticker string) bool {
	return slices.Contains(c.BlackList, ticker)
}

// DefaultConstraints returns default constraint configuration
func DefaultConstraints() Constraints {
	return Constraints{
		MaxPositionPct: 0.25,
		BlackList:      []string{},
	}
}

// MaxShares is how many shares of one ticker fit under MaxPositionPct of value
func (c *Constraints) MaxShares(portfolioValue, price float64) int64 {
	if price <= 0 || portfolioValue <= 0 || c.MaxPositionPct <= 0 {
		return 0
	}
	return int64(math.Floor(portfolioValue * c.MaxPositionPct / price))
}
