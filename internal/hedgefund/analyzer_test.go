package hedgefund

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/marketdata"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

func day(s string) time.Time {
	d, _ := time.Parse(contracts.DateLayout, s)
	return d
}

func request(showReasoning bool) *contracts.HedgeFundRequest {
	return &contracts.HedgeFundRequest{
		Tickers:          []string{"MSFT", "NVDA"},
		StartDate:        day("2024-01-01"),
		EndDate:          day("2024-01-31"),
		Portfolio:        contracts.PortfolioInput{Cash: 100000, Positions: map[string]int64{"MSFT": 10}},
		ShowReasoning:    showReasoning,
		SelectedAnalysts: []string{},
		ModelName:        "gpt-4o",
		ModelProvider:    "OpenAI",
	}
}

func localAgent(t *testing.T) contracts.Agent {
	t.Helper()
	f, err := agents.NewFactory(&config.Config{Agent: config.AgentConfig{MaxPositionPct: 0.25}}, nil, logger.Nop())
	require.NoError(t, err)
	agent, err := f.Agent(nil)
	require.NoError(t, err)
	return agent
}

func TestAnalyze_LocalAnalysts(t *testing.T) {
	a := NewAnalyzer(marketdata.NewSynthetic(), 27, logger.Nop())

	result, err := a.Analyze(context.Background(), request(true), localAgent(t))
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusProcessed, result.Status)
	assert.Equal(t, []string{"MSFT", "NVDA"}, result.Parameters.Tickers)
	assert.Len(t, result.Decisions, 2)
	assert.Len(t, result.AnalystSignals, 4)
	assert.Contains(t, result.AnalystSignals["momentum"], "NVDA")
	assert.NotEmpty(t, result.Decisions["MSFT"].Reasoning)

	require.NotNil(t, result.Portfolio)
	assert.Equal(t, int64(10), result.Portfolio.Holdings["MSFT"])
	assert.Equal(t, 100000.0, result.Portfolio.Cash)
	assert.Greater(t, result.Prices["NVDA"], 0.0)
}

func TestAnalyze_HidesReasoning(t *testing.T) {
	a := NewAnalyzer(marketdata.NewSynthetic(), 27, logger.Nop())

	result, err := a.Analyze(context.Background(), request(false), localAgent(t))
	require.NoError(t, err)

	for _, d := range result.Decisions {
		assert.Empty(t, d.Reasoning)
	}
	for _, perTicker := range result.AnalystSignals {
		for _, s := range perTicker {
			assert.Empty(t, s.Reasoning)
		}
	}
}

type fixedAgent struct {
	decisions []contracts.TradeDecision
	err       error
}

func (f *fixedAgent) Name() string { return "fixed" }
func (f *fixedAgent) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	return f.decisions, f.err
}

func TestAnalyze_FillsMissingTickersWithHold(t *testing.T) {
	a := NewAnalyzer(marketdata.NewSynthetic(), 27, logger.Nop())
	agent := &fixedAgent{decisions: []contracts.TradeDecision{
		{Ticker: "NVDA", Action: contracts.ActionBuy, Quantity: 5},
		{Ticker: "TSLA", Action: contracts.ActionBuy, Quantity: 1},
	}}

	result, err := a.Analyze(context.Background(), request(false), agent)
	require.NoError(t, err)

	assert.Len(t, result.Decisions, 2)
	assert.Equal(t, contracts.ActionHold, result.Decisions["MSFT"].Action)
	assert.Equal(t, contracts.ActionBuy, result.Decisions["NVDA"].Action)
	assert.NotNil(t, result.AnalystSignals)
	assert.Equal(t, "fixed", result.Agent)
}

func TestAnalyze_AgentError(t *testing.T) {
	a := NewAnalyzer(marketdata.NewSynthetic(), 27, logger.Nop())
	_, err := a.Analyze(context.Background(), request(false), &fixedAgent{err: errors.New("boom")})
	assert.ErrorContains(t, err, "boom")
}

func TestLite(t *testing.T) {
	result := NewLite(logger.Nop()).Analyze(request(false))
	assert.Equal(t, contracts.StatusProcessed, result.Status)
	assert.Equal(t, []string{"MSFT", "NVDA"}, result.Parameters.Tickers)
	assert.Empty(t, result.Decisions)
	assert.Equal(t, LiteNote, result.Note)
}
