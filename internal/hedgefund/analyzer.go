package hedgefund

import (
	"context"
	"fmt"
	"maps"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/marketdata"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/logger"
)

// LiteNote explains the reduced capability of the stand-in analyzer
const LiteNote = "lite analyzer: request validated and echoed, no analysts were consulted"

// Analyzer runs a single decision pass as of a request's end date
// ⭐ SSOT: 단일 분석 실행은 여기서만
type Analyzer struct {
	prices   contracts.PriceSource
	lookback int
	logger   *logger.Logger
}

// NewAnalyzer creates an analyzer reading history from prices
func NewAnalyzer(prices contracts.PriceSource, lookback int, log *logger.Logger) *Analyzer {
	return &Analyzer{
		prices:   prices,
		lookback: lookback,
		logger:   log.WithField("component", "hedgefund"),
	}
}

// Analyze asks agent for decisions on req.Tickers given the caller's portfolio
func (a *Analyzer) Analyze(ctx context.Context, req *contracts.HedgeFundRequest, agent contracts.Agent) (*contracts.HedgeFundResult, error) {
	from := req.StartDate.AddDate(0, 0, -(a.lookback*3/2 + 7))

	prices := make(map[string]float64, len(req.Tickers))
	history := make(map[string][]contracts.Bar, len(req.Tickers))
	for _, t := range req.Tickers {
		bars, err := a.prices.History(ctx, t, from, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("load prices for %s: %w", t, err)
		}
		s := marketdata.NewSeries(bars)
		if p, ok := s.CloseAt(req.EndDate); ok {
			prices[t] = p
		}
		history[t] = s.Until(req.EndDate)
	}

	state := portfolio.FromInput(req.Tickers, req.Portfolio, prices)
	analysis, err := agents.Explain(ctx, agent, contracts.AgentInput{
		Date:             req.EndDate,
		Tickers:          req.Tickers,
		State:            state.Snapshot(),
		Prices:           maps.Clone(prices),
		History:          history,
		SelectedAnalysts: req.SelectedAnalysts,
		ModelName:        req.ModelName,
		ModelProvider:    req.ModelProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("hedge fund analysis: %w", err)
	}

	decisions := make(map[string]contracts.TradeDecision, len(req.Tickers))
	for _, t := range req.Tickers {
		decisions[t] = contracts.TradeDecision{Ticker: t, Action: contracts.ActionHold}
	}
	for _, d := range analysis.Decisions {
		if _, ok := decisions[d.Ticker]; !ok {
			a.logger.WithField("ticker", d.Ticker).Warn("Dropping decision for ticker outside the request")
			continue
		}
		decisions[d.Ticker] = d
	}

	signals := analysis.Signals
	if signals == nil {
		signals = make(map[string]map[string]contracts.AnalystSignal)
	}
	if !req.ShowReasoning {
		stripReasoning(decisions, signals)
	}

	snapshot := state.Snapshot()
	a.logger.WithFields(map[string]interface{}{
		"tickers":  req.Tickers,
		"date":     req.EndDate.Format(contracts.DateLayout),
		"agent":    agent.Name(),
		"analysts": len(signals),
	}).Info("Hedge fund analysis completed")

	return &contracts.HedgeFundResult{
		Status:         contracts.StatusProcessed,
		Parameters:     req.Parameters(),
		Decisions:      decisions,
		AnalystSignals: signals,
		Portfolio:      &snapshot,
		Prices:         prices,
		Agent:          agent.Name(),
	}, nil
}

func stripReasoning(decisions map[string]contracts.TradeDecision, signals map[string]map[string]contracts.AnalystSignal) {
	for t, d := range decisions {
		d.Reasoning = ""
		decisions[t] = d
	}
	for _, perTicker := range signals {
		for t, s := range perTicker {
			s.Reasoning = ""
			perTicker[t] = s
		}
	}
}

// Lite is the stand-in used when ENGINE_MODE=lite
type Lite struct {
	logger *logger.Logger
}

// NewLite creates the stand-in analyzer
func NewLite(log *logger.Logger) *Lite {
	return &Lite{logger: log}
}

// Analyze echoes req with no decisions
func (l *Lite) Analyze(req *contracts.HedgeFundRequest) *contracts.HedgeFundResult {
	l.logger.WithField("tickers", req.Tickers).Debug("Lite hedge fund analysis accepted")

	return &contracts.HedgeFundResult{
		Status:         contracts.StatusProcessed,
		Parameters:     req.Parameters(),
		Decisions:      make(map[string]contracts.TradeDecision),
		AnalystSignals: make(map[string]map[string]contracts.AnalystSignal),
		Note:           LiteNote,
	}
}
