package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/hedgefund/internal/contracts"
)

// ErrFrozen is returned when a completed run's state would be mutated
var ErrFrozen = errors.New("portfolio state is frozen")

// cashEpsilon absorbs float rounding so a fully spent balance reads as zero
const cashEpsilon = 1e-9

// State is the simulation state of exactly one run
// ⭐ SSOT: 현금/보유수량 변경은 Apply를 통해서만
type State struct {
	cash              float64
	holdings          map[string]int64
	marginUsed        map[string]float64
	marginRequirement float64
	tickers           []string
	frozen            bool
}

// New creates state with every ticker at zero shares
func New(tickers []string, cash, marginRequirement float64) *State {
	s := &State{
		cash:              cash,
		holdings:          make(map[string]int64, len(tickers)),
		marginUsed:        make(map[string]float64, len(tickers)),
		marginRequirement: marginRequirement,
		tickers:           append([]string{}, tickers...),
	}
	for _, t := range tickers {
		s.holdings[t] = 0
		s.marginUsed[t] = 0
	}
	return s
}

// FromInput seeds state from a caller supplied portfolio.
// Existing shorts are backed by margin at the given prices.
func FromInput(tickers []string, in contracts.PortfolioInput, prices map[string]float64) *State {
	s := New(tickers, in.Cash, in.MarginRequirement)
	for ticker, shares := range in.Positions {
		if _, ok := s.holdings[ticker]; !ok {
			continue
		}
		s.holdings[ticker] = shares
		if shares < 0 {
			s.marginUsed[ticker] = float64(-shares) * prices[ticker] * in.MarginRequirement
		}
	}
	return s
}

// Cash returns the cash balance
func (s *State) Cash() float64 { return s.cash }

// Holdings returns the signed share count for ticker
func (s *State) Holdings(ticker string) int64 { return s.holdings[ticker] }

// Freeze makes the state read-only
func (s *State) Freeze() { s.frozen = true }

// Frozen reports whether the state is read-only
func (s *State) Frozen() bool { return s.frozen }

// Snapshot returns a copy that shares nothing with s
func (s *State) Snapshot() contracts.PortfolioState {
	return contracts.PortfolioState{
		Cash:              s.cash,
		Holdings:          copyInts(s.holdings),
		MarginUsed:        copyFloats(s.marginUsed),
		MarginRequirement: s.marginRequirement,
	}
}

// Value marks the portfolio to market
func (s *State) Value(prices map[string]float64) float64 {
	return ValueOf(contracts.PortfolioState{
		Cash:       s.cash,
		Holdings:   s.holdings,
		MarginUsed: s.marginUsed,
	}, prices)
}

// ValueOf marks a state copy to market.
// cash + long value + posted margin - cost to cover shorts
func ValueOf(ps contracts.PortfolioState, prices map[string]float64) float64 {
	tickers := make([]string, 0, len(ps.Holdings))
	for t := range ps.Holdings {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	v := ps.Cash
	for _, t := range tickers {
		shares := ps.Holdings[t]
		p := prices[t]
		switch {
		case shares > 0:
			v += float64(shares) * p
		case shares < 0:
			v += ps.MarginUsed[t] - float64(-shares)*p
		}
	}
	return v
}

// Apply executes decisions in ticker order at the given prices.
// Each trade is clipped to what cash and margin allow; a trade that cannot
// execute at all is returned as rejected. Hold decisions produce no trade.
func (s *State) Apply(decisions []contracts.TradeDecision, prices map[string]float64) ([]contracts.Trade, error) {
	if s.frozen {
		return nil, ErrFrozen
	}

	ordered := append([]contracts.TradeDecision{}, decisions...)
	order := make(map[string]int, len(s.tickers))
	for i, t := range s.tickers {
		order[t] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		oi, iok := order[ordered[i].Ticker]
		oj, jok := order[ordered[j].Ticker]
		if iok != jok {
			return iok
		}
		return oi < oj
	})

	trades := make([]contracts.Trade, 0, len(ordered))
	for _, d := range ordered {
		if d.Action == contracts.ActionHold {
			continue
		}
		trades = append(trades, s.applyOne(d, prices))
	}
	return trades, nil
}

func (s *State) applyOne(d contracts.TradeDecision, prices map[string]float64) contracts.Trade {
	trade := contracts.Trade{Ticker: d.Ticker, Action: d.Action, Requested: d.Quantity}

	if _, ok := s.holdings[d.Ticker]; !ok {
		return reject(trade, "ticker is not part of this run")
	}
	if !d.Action.Valid() {
		return reject(trade, fmt.Sprintf("unknown action %q", d.Action))
	}
	price, ok := prices[d.Ticker]
	if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return reject(trade, "no price available")
	}
	trade.Price = price
	if d.Quantity <= 0 {
		return reject(trade, "quantity must be positive")
	}

	var executed int64
	var reason string
	switch d.Action {
	case contracts.ActionBuy:
		executed, reason = s.buy(d.Ticker, d.Quantity, price)
	case contracts.ActionSell:
		executed, reason = s.sell(d.Ticker, d.Quantity, price)
	case contracts.ActionShort:
		executed, reason = s.short(d.Ticker, d.Quantity, price)
	case contracts.ActionCover:
		executed, reason = s.cover(d.Ticker, d.Quantity, price)
	}

	if s.cash < 0 && s.cash > -cashEpsilon {
		s.cash = 0
	}

	trade.Executed = executed
	switch {
	case executed == 0:
		return reject(trade, reason)
	case executed < d.Quantity:
		trade.Status = contracts.TradePartial
		trade.Reason = reason
	default:
		trade.Status = contracts.TradeExecuted
	}
	return trade
}

func reject(t contracts.Trade, reason string) contracts.Trade {
	t.Executed = 0
	t.Status = contracts.TradeRejected
	t.Reason = reason
	return t
}

func (s *State) buy(ticker string, qty int64, price float64) (int64, string) {
	if s.holdings[ticker] < 0 {
		return 0, "cover the short position before buying"
	}
	affordable := int64(math.Floor((s.cash + cashEpsilon) / price))
	executed := min(qty, affordable)
	if executed <= 0 {
		return 0, "insufficient cash"
	}
	s.cash -= float64(executed) * price
	s.holdings[ticker] += executed
	if executed < qty {
		return executed, "clipped to available cash"
	}
	return executed, ""
}

func (s *State) sell(ticker string, qty int64, price float64) (int64, string) {
	long := s.holdings[ticker]
	if long <= 0 {
		return 0, "no long position to sell"
	}
	executed := min(qty, long)
	s.cash += float64(executed) * price
	s.holdings[ticker] -= executed
	if executed < qty {
		return executed, "clipped to long position"
	}
	return executed, ""
}

// short receives the proceeds and posts margin out of them.
// 마진 요건이 0이면 공매도 불가 (현금이 음수가 될 수 있으므로)
func (s *State) short(ticker string, qty int64, price float64) (int64, string) {
	if s.marginRequirement <= 0 {
		return 0, "short selling requires a margin requirement"
	}
	if s.holdings[ticker] > 0 {
		return 0, "sell the long position before shorting"
	}
	perShare := price * s.marginRequirement
	allowed := int64(math.Floor((s.cash + cashEpsilon) / perShare))
	executed := min(qty, allowed)
	if executed <= 0 {
		return 0, "insufficient cash for margin"
	}
	proceeds := float64(executed) * price
	margin := proceeds * s.marginRequirement
	s.cash += proceeds - margin
	s.marginUsed[ticker] += margin
	s.holdings[ticker] -= executed
	if executed < qty {
		return executed, "clipped to available margin"
	}
	return executed, ""
}

// cover buys back shares and releases the proportional margin
func (s *State) cover(ticker string, qty int64, price float64) (int64, string) {
	short := -s.holdings[ticker]
	if short <= 0 {
		return 0, "no short position to cover"
	}
	executed := min(qty, short)
	reason := ""
	if executed < qty {
		reason = "clipped to short position"
	}

	marginPerShare := s.marginUsed[ticker] / float64(short)
	if net := price - marginPerShare; net > 0 {
		affordable := int64(math.Floor((s.cash + cashEpsilon) / net))
		if affordable < executed {
			executed = affordable
			reason = "clipped to available cash"
		}
	}
	if executed <= 0 {
		return 0, "insufficient cash to cover"
	}

	released := marginPerShare * float64(executed)
	s.cash += released - float64(executed)*price
	s.marginUsed[ticker] -= released
	s.holdings[ticker] += executed
	if s.holdings[ticker] == 0 {
		s.marginUsed[ticker] = 0
	}
	return executed, reason
}

func copyInts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
