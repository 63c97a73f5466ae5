package agents

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/httputil"
	"github.com/wonny/hedgefund/pkg/logger"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds n bars where close(i) = f(i)
func series(n int, f func(i int) float64) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := range bars {
		c := f(i)
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return bars
}

func rising(n int) []contracts.Bar {
	return series(n, func(i int) float64 { return 100 * math.Pow(1.01, float64(i)) })
}

func falling(n int) []contracts.Bar {
	return series(n, func(i int) float64 { return 100 * math.Pow(0.99, float64(i)) })
}

func analystByID(t *testing.T, id string) Analyst {
	t.Helper()
	for _, ac := range DefaultConfig().Analysts {
		if ac.ID == id {
			return builders[id](ac)
		}
	}
	t.Fatalf("analyst %s not configured", id)
	return nil
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	h1, err := cfg.Hash()
	require.NoError(t, err)
	h2, err := DefaultConfig().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg, raw, err := LoadConfig(filepath.Join("..", "..", "configs", "analysts.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, cfg.Analysts, 4)
	assert.Equal(t, 0.15, cfg.PortfolioManager.BuyThreshold)
}

func TestParseConfig_Errors(t *testing.T) {
	valid := `
default: [momentum]
analysts:
  - {id: momentum, weight: 1, lookback: 5, threshold: 0.1}
portfolio_manager: {buy_threshold: 0.1, sell_threshold: -0.1}
`
	_, err := ParseConfig([]byte(valid))
	require.NoError(t, err)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", valid + "extra: 1\n"},
		{"unknown analyst", `
analysts:
  - {id: astrology, weight: 1, lookback: 5, threshold: 0.1}
portfolio_manager: {buy_threshold: 0.1, sell_threshold: -0.1}
`},
		{"zero weight", `
analysts:
  - {id: momentum, weight: 0, lookback: 5, threshold: 0.1}
portfolio_manager: {buy_threshold: 0.1, sell_threshold: -0.1}
`},
		{"default not configured", `
default: [volatility]
analysts:
  - {id: momentum, weight: 1, lookback: 5, threshold: 0.1}
portfolio_manager: {buy_threshold: 0.1, sell_threshold: -0.1}
`},
		{"positive sell threshold", `
analysts:
  - {id: momentum, weight: 1, lookback: 5, threshold: 0.1}
portfolio_manager: {buy_threshold: 0.1, sell_threshold: 0.1}
`},
		{"no analysts", `portfolio_manager: {buy_threshold: 0.1, sell_threshold: -0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysts: [}"), 0o600))
	_, _, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestAnalysts_Direction(t *testing.T) {
	tests := []struct {
		id   string
		bars []contracts.Bar
		want contracts.Signal
	}{
		{AnalystMomentum, rising(40), contracts.SignalBullish},
		{AnalystMomentum, falling(40), contracts.SignalBearish},
		{AnalystMeanReversion, rising(40), contracts.SignalBearish}, // overbought
		{AnalystMeanReversion, falling(40), contracts.SignalBullish},
		{AnalystTrendFollowing, rising(40), contracts.SignalBullish},
		{AnalystTrendFollowing, falling(40), contracts.SignalBearish},
		{AnalystVolatility, rising(40), contracts.SignalBullish}, // calm uptrend
	}

	for _, tt := range tests {
		t.Run(tt.id+"_"+string(tt.want), func(t *testing.T) {
			sig := analystByID(t, tt.id).Analyze("AAPL", tt.bars)
			assert.Equal(t, tt.want, sig.Signal, sig.Reasoning)
			assert.GreaterOrEqual(t, sig.Confidence, 0.0)
			assert.LessOrEqual(t, sig.Confidence, 1.0)
			assert.NotEmpty(t, sig.Reasoning)
		})
	}
}

func TestAnalysts_Turbulence(t *testing.T) {
	// ±8% daily swings
	bars := series(40, func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 108
	})
	sig := analystByID(t, AnalystVolatility).Analyze("GME", bars)
	assert.Equal(t, contracts.SignalBearish, sig.Signal)
}

func TestAnalysts_InsufficientHistory(t *testing.T) {
	for id := range builders {
		t.Run(id, func(t *testing.T) {
			sig := analystByID(t, id).Analyze("AAPL", rising(3))
			assert.Equal(t, contracts.SignalNeutral, sig.Signal)
			assert.Equal(t, 0.0, sig.Confidence)
		})
	}
}

func TestIndicators(t *testing.T) {
	flat := []float64{10, 10, 10, 10, 10}
	assert.Equal(t, 50.0, rsi(flat, 4))
	assert.Equal(t, 100.0, rsi([]float64{1, 2, 3, 4, 5}, 4))
	assert.InDelta(t, 10.0, ema(flat, 3), 1e-9)
	assert.InDelta(t, 10.0, sma(flat, 5), 1e-9)
	assert.InDelta(t, 0.5, trailingReturn([]float64{2, 3}, 1), 1e-9)
	assert.Equal(t, 0.0, annualizedVol(dailyReturns(flat, 4)))
}

func managerInput(bars []contracts.Bar, held int64, cash, margin float64) contracts.AgentInput {
	last := bars[len(bars)-1]
	return contracts.AgentInput{
		Date:    last.Date,
		Tickers: []string{"AAPL"},
		State: contracts.PortfolioState{
			Cash:              cash,
			Holdings:          map[string]int64{"AAPL": held},
			MarginUsed:        map[string]float64{"AAPL": 0},
			MarginRequirement: margin,
		},
		Prices:  map[string]float64{"AAPL": last.Close},
		History: map[string][]contracts.Bar{"AAPL": bars},
	}
}

func newTestFactory(t *testing.T, appCfg *config.Config) *Factory {
	t.Helper()
	if appCfg.Agent.MaxPositionPct == 0 {
		appCfg.Agent.MaxPositionPct = 0.25
	}
	f, err := NewFactory(appCfg, nil, logger.Nop())
	require.NoError(t, err)
	return f
}

func TestPortfolioManager_BuysUptrend(t *testing.T) {
	agent, err := newTestFactory(t, &config.Config{}).Agent([]string{AnalystMomentum, AnalystTrendFollowing})
	require.NoError(t, err)

	bars := rising(60)
	in := managerInput(bars, 0, 10000, 0)
	decisions, err := agent.Decide(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, contracts.ActionBuy, d.Action)
	// sized to 25% of value
	assert.Equal(t, int64(math.Floor(2500/in.Prices["AAPL"])), d.Quantity)
	assert.Contains(t, d.Reasoning, "momentum=bullish")
}

func TestPortfolioManager_ExitsBeforeEntries(t *testing.T) {
	agent, err := newTestFactory(t, &config.Config{}).Agent([]string{AnalystMomentum, AnalystTrendFollowing})
	require.NoError(t, err)
	ctx := context.Background()

	// bearish while long: sell everything
	decisions, err := agent.Decide(ctx, managerInput(falling(60), 7, 1000, 0))
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionSell, decisions[0].Action)
	assert.Equal(t, int64(7), decisions[0].Quantity)

	// bullish while short: cover everything
	decisions, err = agent.Decide(ctx, managerInput(rising(60), -4, 1000, 0.5))
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionCover, decisions[0].Action)
	assert.Equal(t, int64(4), decisions[0].Quantity)

	// bearish and flat without margin: nothing to do
	decisions, err = agent.Decide(ctx, managerInput(falling(60), 0, 1000, 0))
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionHold, decisions[0].Action)

	// bearish and flat with margin: short
	decisions, err = agent.Decide(ctx, managerInput(falling(60), 0, 1000, 0.5))
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionShort, decisions[0].Action)
	assert.Greater(t, decisions[0].Quantity, int64(0))
}

func TestPortfolioManager_Explain(t *testing.T) {
	f := newTestFactory(t, &config.Config{})
	agent, err := f.Agent(nil)
	require.NoError(t, err)

	analysis, err := Explain(context.Background(), agent, managerInput(rising(60), 0, 1000, 0))
	require.NoError(t, err)
	assert.Len(t, analysis.Signals, 4)
	assert.Contains(t, analysis.Signals[AnalystMomentum], "AAPL")
}

func TestPortfolioManager_BlackList(t *testing.T) {
	pm := NewPortfolioManager(
		[]Analyst{analystByID(t, AnalystMomentum)},
		map[string]float64{AnalystMomentum: 1},
		DefaultConfig().PortfolioManager,
		portfolio.Constraints{MaxPositionPct: 1, BlackList: []string{"AAPL"}},
		logger.Nop(),
	)
	decisions, err := pm.Decide(context.Background(), managerInput(rising(60), 0, 1000, 0))
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionHold, decisions[0].Action)
}

func TestFactory_Resolve(t *testing.T) {
	f := newTestFactory(t, &config.Config{})

	ids, err := f.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Default, ids)

	ids, err = f.Resolve([]string{"momentum", "momentum"})
	require.NoError(t, err)
	assert.Equal(t, []string{"momentum"}, ids)

	_, err = f.Resolve([]string{"warren_buffett"})
	var ve *contracts.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "selected_analysts", ve.Field)

	assert.Len(t, f.Available(), 4)
	assert.Equal(t, 27, f.Lookback())
	assert.NotEmpty(t, f.ConfigHash())
}

func TestRemoteAgent(t *testing.T) {
	var got remoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/decide", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(remoteResponse{
			Decisions: []contracts.TradeDecision{{Ticker: "AAPL", Action: contracts.ActionBuy, Quantity: 3}},
			AnalystSignals: map[string]map[string]contracts.AnalystSignal{
				"warren_buffett": {"AAPL": {Signal: contracts.SignalBullish, Confidence: 0.8}},
			},
		})
	}))
	defer server.Close()

	f := newTestFactory(t, &config.Config{Agent: config.AgentConfig{ServiceURL: server.URL + "/"}})
	assert.True(t, f.Remote())

	agent, err := f.Agent([]string{"warren_buffett"})
	require.NoError(t, err)

	in := managerInput(rising(100), 0, 1000, 0)
	in.ModelName = "llama3"
	in.ModelProvider = "Ollama"
	in.SelectedAnalysts = []string{"warren_buffett"}

	analysis, err := Explain(context.Background(), agent, in)
	require.NoError(t, err)
	assert.Equal(t, int64(3), analysis.Decisions[0].Quantity)
	assert.Equal(t, contracts.SignalBullish, analysis.Signals["warren_buffett"]["AAPL"].Signal)

	assert.Equal(t, "llama3", got.ModelName)
	assert.Equal(t, "Ollama", got.ModelProvider)
	assert.Len(t, got.History["AAPL"], historyWindow)
}

func TestRemoteAgent_RejectsUnknownAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"decisions":[{"ticker":"AAPL","action":"yolo","quantity":1}]}`))
	}))
	defer server.Close()

	agent := NewRemoteAgent(httputil.New(logger.Nop(), time.Second).DisableRetry(), server.URL, logger.Nop())
	_, err := agent.Decide(context.Background(), managerInput(rising(10), 0, 1000, 0))
	assert.Error(t, err)
}

type stubAgent struct{ calls int }

func (s *stubAgent) Name() string { return "stub" }
func (s *stubAgent) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	s.calls++
	return nil, nil
}

func TestThrottled(t *testing.T) {
	inner := &stubAgent{}
	agent := NewThrottled(inner, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := agent.Decide(context.Background(), contracts.AgentInput{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = agent.Decide(ctx, contracts.AgentInput{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)

	// Explain falls back to Decide for agents without signals
	analysis, err := Explain(context.Background(), inner, contracts.AgentInput{})
	require.NoError(t, err)
	assert.NotNil(t, analysis.Signals)
}

func TestFactory_WrapsWithLimiter(t *testing.T) {
	f := newTestFactory(t, &config.Config{Agent: config.AgentConfig{RateLimit: 5, Burst: 2}})
	agent, err := f.Agent(nil)
	require.NoError(t, err)
	assert.IsType(t, &Throttled{}, agent)
}
