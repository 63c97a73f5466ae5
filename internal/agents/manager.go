package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/logger"
)

// PortfolioManager runs the selected analysts and turns their weighted vote
// into sized trade decisions
// ⭐ SSOT: 로컬 의사결정은 여기서만
type PortfolioManager struct {
	analysts    []Analyst
	weights     map[string]float64
	cfg         ManagerConfig
	constraints portfolio.Constraints
	logger      *logger.Logger
}

// NewPortfolioManager creates a manager over the given analysts
func NewPortfolioManager(analysts []Analyst, weights map[string]float64, cfg ManagerConfig, constraints portfolio.Constraints, log *logger.Logger) *PortfolioManager {
	return &PortfolioManager{
		analysts:    analysts,
		weights:     weights,
		cfg:         cfg,
		constraints: constraints,
		logger:      log,
	}
}

// Name identifies the agent in results and logs
func (m *PortfolioManager) Name() string {
	ids := make([]string, len(m.analysts))
	for i, a := range m.analysts {
		ids[i] = a.ID()
	}
	return "portfolio_manager[" + strings.Join(ids, ",") + "]"
}

// Decide implements contracts.Agent
func (m *PortfolioManager) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	analysis, err := m.Explain(ctx, in)
	if err != nil {
		return nil, err
	}
	return analysis.Decisions, nil
}

// Explain implements contracts.Explainer
func (m *PortfolioManager) Explain(ctx context.Context, in contracts.AgentInput) (*contracts.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signals := make(map[string]map[string]contracts.AnalystSignal, len(m.analysts))
	for _, a := range m.analysts {
		perTicker := make(map[string]contracts.AnalystSignal, len(in.Tickers))
		for _, t := range in.Tickers {
			perTicker[t] = a.Analyze(t, in.History[t])
		}
		signals[a.ID()] = perTicker
	}

	value := portfolio.ValueOf(in.State, in.Prices)
	decisions := make([]contracts.TradeDecision, 0, len(in.Tickers))
	for _, t := range in.Tickers {
		score, votes := m.aggregate(t, signals)
		d := m.size(t, score, value, in)
		d.Reasoning = fmt.Sprintf("weighted score %.2f (%s)", score, strings.Join(votes, ", "))
		decisions = append(decisions, d)

		m.logger.WithFields(map[string]interface{}{
			"date":     in.Date.Format(contracts.DateLayout),
			"ticker":   t,
			"score":    score,
			"action":   d.Action,
			"quantity": d.Quantity,
		}).Debug("Portfolio manager decision")
	}

	return &contracts.Analysis{Decisions: decisions, Signals: signals}, nil
}

// aggregate is Σ w·direction·confidence / Σ w over analysts
func (m *PortfolioManager) aggregate(ticker string, signals map[string]map[string]contracts.AnalystSignal) (float64, []string) {
	var num, den float64
	votes := make([]string, 0, len(m.analysts))
	for _, a := range m.analysts {
		sig := signals[a.ID()][ticker]
		w := m.weights[a.ID()]
		if w <= 0 {
			w = 1
		}
		den += w
		switch sig.Signal {
		case contracts.SignalBullish:
			num += w * sig.Confidence
		case contracts.SignalBearish:
			num -= w * sig.Confidence
		}
		votes = append(votes, fmt.Sprintf("%s=%s", a.ID(), sig.Signal))
	}
	if den == 0 {
		return 0, votes
	}
	return math.Round(num/den*1000) / 1000, votes
}

// size converts a score into one decision. Exits come before entries:
// a bullish score on a short covers it, a bearish score on a long sells it.
func (m *PortfolioManager) size(ticker string, score, value float64, in contracts.AgentInput) contracts.TradeDecision {
	hold := contracts.TradeDecision{Ticker: ticker, Action: contracts.ActionHold, Confidence: math.Abs(score)}

	price := in.Prices[ticker]
	if price <= 0 || m.constraints.IsBlackListed(ticker) {
		return hold
	}
	held := in.State.Holdings[ticker]
	maxShares := m.constraints.MaxShares(value, price)

	switch {
	case score >= m.cfg.BuyThreshold:
		if held < 0 {
			return contracts.TradeDecision{Ticker: ticker, Action: contracts.ActionCover, Quantity: -held, Confidence: score}
		}
		if qty := maxShares - held; qty > 0 {
			return contracts.TradeDecision{Ticker: ticker, Action: contracts.ActionBuy, Quantity: qty, Confidence: score}
		}
	case score <= m.cfg.SellThreshold:
		if held > 0 {
			return contracts.TradeDecision{Ticker: ticker, Action: contracts.ActionSell, Quantity: held, Confidence: -score}
		}
		if in.State.MarginRequirement > 0 {
			if qty := maxShares + held; qty > 0 {
				return contracts.TradeDecision{Ticker: ticker, Action: contracts.ActionShort, Quantity: qty, Confidence: -score}
			}
		}
	}
	return hold
}
