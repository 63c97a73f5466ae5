package backtest

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/marketdata"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/logger"
)

// Engine runs day-by-day backtest simulations
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	prices       contracts.PriceSource
	logger       *logger.Logger
	lookback     int // 첫 스텝 이전에 필요한 거래일 수
	skipWeekends bool
}

// Options carry per-run settings
type Options struct {
	RunID string

	// OnStep receives a copy of every snapshot as soon as it is recorded
	OnStep func(contracts.Snapshot)
}

// NewEngine creates a new backtest engine
func NewEngine(prices contracts.PriceSource, lookback int, skipWeekends bool, log *logger.Logger) *Engine {
	return &Engine{
		prices:       prices,
		logger:       log,
		lookback:     lookback,
		skipWeekends: skipWeekends,
	}
}

// Run simulates req with agent deciding at every step.
// On failure the returned result is still usable: it carries the partial
// timeline and status failed, and the error is a *contracts.EngineError.
func (e *Engine) Run(ctx context.Context, req *contracts.BacktestRequest, agent contracts.Agent, opts Options) (*contracts.BacktestResult, error) {
	started := time.Now().UTC()
	result := &contracts.BacktestResult{
		RunID:      opts.RunID,
		Status:     contracts.StatusRunning,
		Parameters: req.Parameters(),
		Timeline:   make([]contracts.Snapshot, 0),
		CreatedAt:  started,
		StartedAt:  &started,
	}

	log := e.logger.WithRun(opts.RunID).WithField("agent", agent.Name())
	log.WithFields(map[string]interface{}{
		"tickers":         req.Tickers,
		"start_date":      req.StartDate.Format(contracts.DateLayout),
		"end_date":        req.EndDate.Format(contracts.DateLayout),
		"initial_capital": req.InitialCapital,
	}).Info("Starting backtest")

	series, err := e.load(ctx, req)
	if err != nil {
		return e.fail(result, &contracts.EngineError{Step: 0, Date: req.StartDate, Cause: err}, log)
	}

	state := portfolio.New(req.Tickers, req.InitialCapital, req.InitialMarginRequirement)
	step := 0

	for d := req.StartDate; !d.After(req.EndDate); d = d.AddDate(0, 0, 1) {
		if e.skipWeekends && isWeekend(d) {
			continue
		}
		step++

		// 스텝 경계에서만 취소 확인
		if err := ctx.Err(); err != nil {
			return e.fail(result, &contracts.EngineError{Step: step, Date: d, Cause: err}, log)
		}

		prices := make(map[string]float64, len(req.Tickers))
		history := make(map[string][]contracts.Bar, len(req.Tickers))
		for _, t := range req.Tickers {
			s := series[t]
			if p, ok := s.CloseAt(d); ok {
				prices[t] = p
			}
			history[t] = s.Until(d)
		}

		decisions, err := agent.Decide(ctx, contracts.AgentInput{
			Date:             d,
			Tickers:          req.Tickers,
			State:            state.Snapshot(),
			Prices:           maps.Clone(prices),
			History:          history,
			SelectedAnalysts: req.SelectedAnalysts,
			ModelName:        req.ModelName,
			ModelProvider:    req.ModelProvider,
		})
		if err != nil {
			return e.fail(result, &contracts.EngineError{Step: step, Date: d, Cause: err}, log)
		}

		trades, err := state.Apply(decisions, prices)
		if err != nil {
			return e.fail(result, &contracts.EngineError{Step: step, Date: d, Cause: err}, log)
		}

		ps := state.Snapshot()
		snap := contracts.Snapshot{
			Step:       step,
			Date:       d.Format(contracts.DateLayout),
			Cash:       ps.Cash,
			Holdings:   ps.Holdings,
			MarginUsed: ps.MarginUsed,
			Prices:     prices,
			Trades:     trades,
			Value:      state.Value(prices),
		}
		result.Timeline = append(result.Timeline, snap)
		if opts.OnStep != nil {
			opts.OnStep(snap.Clone())
		}

		log.WithFields(map[string]interface{}{
			"step":   step,
			"date":   snap.Date,
			"value":  snap.Value,
			"trades": len(trades),
		}).Debug("Backtest step applied")
	}

	state.Freeze()

	finished := time.Now().UTC()
	result.Status = contracts.StatusProcessed
	result.Metrics = ComputeMetrics(req.InitialCapital, result.Timeline)
	result.FinishedAt = &finished

	log.WithFields(map[string]interface{}{
		"duration":     finished.Sub(started).Seconds(),
		"trading_days": result.Metrics.TradingDays,
		"total_trades": result.Metrics.TotalTrades,
		"total_return": fmt.Sprintf("%.2f%%", result.Metrics.TotalReturn*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Metrics.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

// load fetches each ticker's history once, including the warm-up window analysts need
func (e *Engine) load(ctx context.Context, req *contracts.BacktestRequest) (map[string]*marketdata.Series, error) {
	// 거래일 → 달력일 환산 (주말/휴일 여유분 포함)
	from := req.StartDate.AddDate(0, 0, -(e.lookback*3/2 + 7))

	series := make(map[string]*marketdata.Series, len(req.Tickers))
	for _, t := range req.Tickers {
		bars, err := e.prices.History(ctx, t, from, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("load prices for %s: %w", t, err)
		}
		series[t] = marketdata.NewSeries(bars)
	}
	return series, nil
}

func (e *Engine) fail(result *contracts.BacktestResult, err *contracts.EngineError, log *logger.Logger) (*contracts.BacktestResult, error) {
	finished := time.Now().UTC()
	result.Status = contracts.StatusFailed
	result.Error = err.Error()
	result.FinishedAt = &finished
	if len(result.Timeline) > 0 {
		result.Metrics = ComputeMetrics(result.Parameters.InitialCapital, result.Timeline)
	}

	log.WithFields(map[string]interface{}{
		"step":      err.Step,
		"date":      err.Date.Format(contracts.DateLayout),
		"completed": len(result.Timeline),
	}).WithError(err.Cause).Error("Backtest failed")

	return result, err
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
