package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/marketdata"
	"github.com/wonny/hedgefund/pkg/logger"
)

func day(s string) time.Time {
	d, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// flatSource prices every ticker at a constant close on weekdays
type flatSource struct {
	close float64
	err   error
}

func (f *flatSource) History(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	var bars []contracts.Bar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if isWeekend(d) {
			continue
		}
		bars = append(bars, contracts.Bar{Date: d, Open: f.close, High: f.close, Low: f.close, Close: f.close, Volume: 100})
	}
	return bars, nil
}

// scriptedAgent returns decisions by step (1-based) and can fail at one step
type scriptedAgent struct {
	byStep map[int][]contracts.TradeDecision
	failAt int
	onStep func(step int)
	calls  int
	seen   []contracts.AgentInput
}

func (a *scriptedAgent) Name() string { return "scripted" }

func (a *scriptedAgent) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	a.calls++
	a.seen = append(a.seen, in)
	if a.onStep != nil {
		a.onStep(a.calls)
	}
	if a.calls == a.failAt {
		return nil, errors.New("model unavailable")
	}
	return a.byStep[a.calls], nil
}

func request(tickers []string, from, to string, capital float64) *contracts.BacktestRequest {
	return &contracts.BacktestRequest{
		Tickers:          tickers,
		StartDate:        day(from),
		EndDate:          day(to),
		InitialCapital:   capital,
		ModelName:        "gpt-4o",
		ModelProvider:    "OpenAI",
		SelectedAnalysts: []string{},
	}
}

func newEngine(src contracts.PriceSource) *Engine {
	return NewEngine(src, 20, true, logger.Nop())
}

func TestEngine_SingleDayNoDecisions(t *testing.T) {
	// 2024-01-02 is a Tuesday
	req := request([]string{"AAPL"}, "2024-01-02", "2024-01-02", 10000)

	result, err := newEngine(&flatSource{close: 100}).Run(context.Background(), req, &scriptedAgent{}, Options{RunID: "r1"})
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusProcessed, result.Status)
	assert.Equal(t, "r1", result.RunID)
	require.Len(t, result.Timeline, 1)

	snap := result.Timeline[0]
	assert.Equal(t, "2024-01-02", snap.Date)
	assert.Equal(t, 10000.0, snap.Cash)
	assert.Equal(t, map[string]int64{"AAPL": 0}, snap.Holdings)
	assert.Equal(t, 10000.0, snap.Value)
	assert.Empty(t, snap.Trades)
	assert.NotNil(t, snap.Trades)

	require.NotNil(t, result.Metrics)
	assert.Equal(t, 0.0, result.Metrics.TotalReturn)
	assert.Equal(t, 1, result.Metrics.TradingDays)
	assert.NotNil(t, result.FinishedAt)
}

func TestEngine_SkipsWeekends(t *testing.T) {
	// Fri..Mon
	req := request([]string{"AAPL"}, "2024-01-05", "2024-01-08", 1000)
	agent := &scriptedAgent{}

	result, err := newEngine(&flatSource{close: 10}).Run(context.Background(), req, agent, Options{})
	require.NoError(t, err)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, "2024-01-05", result.Timeline[0].Date)
	assert.Equal(t, "2024-01-08", result.Timeline[1].Date)
	assert.Equal(t, 2, agent.calls)

	// weekend only
	req = request([]string{"AAPL"}, "2024-01-06", "2024-01-07", 1000)
	result, err = newEngine(&flatSource{close: 10}).Run(context.Background(), req, &scriptedAgent{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusProcessed, result.Status)
	assert.Empty(t, result.Timeline)
	assert.Equal(t, 1000.0, result.Metrics.FinalValue)
}

func TestEngine_AppliesAndClipsTrades(t *testing.T) {
	req := request([]string{"AAPL", "MSFT"}, "2024-01-02", "2024-01-04", 1000)
	agent := &scriptedAgent{byStep: map[int][]contracts.TradeDecision{
		1: {
			{Ticker: "MSFT", Action: contracts.ActionBuy, Quantity: 5},
			{Ticker: "AAPL", Action: contracts.ActionBuy, Quantity: 50}, // only 10 affordable
		},
		2: {{Ticker: "AAPL", Action: contracts.ActionSell, Quantity: 3}},
		3: {{Ticker: "NVDA", Action: contracts.ActionBuy, Quantity: 1}},
	}}

	var streamed []contracts.Snapshot
	result, err := newEngine(&flatSource{close: 100}).Run(context.Background(), req, agent, Options{
		OnStep: func(s contracts.Snapshot) { streamed = append(streamed, s) },
	})
	require.NoError(t, err)
	require.Len(t, result.Timeline, 3)
	assert.Len(t, streamed, 3)

	first := result.Timeline[0]
	require.Len(t, first.Trades, 2)
	// applied in request ticker order
	assert.Equal(t, "AAPL", first.Trades[0].Ticker)
	assert.Equal(t, contracts.TradePartial, first.Trades[0].Status)
	assert.Equal(t, int64(10), first.Trades[0].Executed)
	assert.Equal(t, contracts.TradeRejected, first.Trades[1].Status)
	assert.Equal(t, 0.0, first.Cash)

	second := result.Timeline[1]
	assert.Equal(t, int64(7), second.Holdings["AAPL"])
	assert.Equal(t, 300.0, second.Cash)
	assert.Equal(t, 1000.0, second.Value)

	assert.Equal(t, contracts.TradeRejected, result.Timeline[2].Trades[0].Status)
	assert.Equal(t, 2, result.Metrics.TotalTrades)
	assert.Equal(t, 2, result.Metrics.RejectedTrades)

	// agents see copies of the state before the step
	assert.Equal(t, int64(10), agent.seen[1].State.Holdings["AAPL"])
	assert.Equal(t, 100.0, agent.seen[0].Prices["AAPL"])
	assert.NotEmpty(t, agent.seen[0].History["AAPL"])
}

func TestEngine_AgentFailureKeepsPartialTimeline(t *testing.T) {
	req := request([]string{"AAPL"}, "2024-01-02", "2024-01-10", 1000)
	agent := &scriptedAgent{failAt: 3}

	result, err := newEngine(&flatSource{close: 10}).Run(context.Background(), req, agent, Options{})
	require.Error(t, err)

	var ee *contracts.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.Step)
	assert.Equal(t, day("2024-01-04"), ee.Date)
	assert.Contains(t, err.Error(), "model unavailable")

	require.NotNil(t, result)
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Len(t, result.Timeline, 2)
	assert.Equal(t, err.Error(), result.Error)
}

func TestEngine_CancelStopsAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent := &scriptedAgent{onStep: func(step int) {
		if step == 2 {
			cancel()
		}
	}}
	req := request([]string{"AAPL"}, "2024-01-02", "2024-01-31", 1000)

	result, err := newEngine(&flatSource{close: 10}).Run(ctx, req, agent, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Len(t, result.Timeline, 2)
	assert.Equal(t, 2, agent.calls)
}

func TestEngine_PriceSourceFailure(t *testing.T) {
	req := request([]string{"AAPL"}, "2024-01-02", "2024-01-05", 1000)
	result, err := newEngine(&flatSource{err: errors.New("db down")}).Run(context.Background(), req, &scriptedAgent{}, Options{})

	var ee *contracts.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 0, ee.Step)
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Empty(t, result.Timeline)
	assert.Nil(t, result.Metrics)
}

func TestEngine_SyntheticDeterministic(t *testing.T) {
	req := request([]string{"AAPL", "NVDA"}, "2024-01-01", "2024-03-01", 100000)
	buyOnce := func() *scriptedAgent {
		return &scriptedAgent{byStep: map[int][]contracts.TradeDecision{
			1: {{Ticker: "AAPL", Action: contracts.ActionBuy, Quantity: 100}},
		}}
	}

	engine := newEngine(marketdata.NewSynthetic())
	a, err := engine.Run(context.Background(), req, buyOnce(), Options{})
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), req, buyOnce(), Options{})
	require.NoError(t, err)

	require.Equal(t, len(a.Timeline), len(b.Timeline))
	for i := range a.Timeline {
		assert.Equal(t, a.Timeline[i].Value, b.Timeline[i].Value)
	}
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.False(t, math.IsNaN(a.Metrics.SharpeRatio))
}
