package contracts

import (
	"context"
	"time"
)

// Bar is one daily price bar
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// AgentInput is everything an agent sees at one step.
// State is a copy; agents cannot mutate the run's portfolio.
type AgentInput struct {
	Date             time.Time
	Tickers          []string
	State            PortfolioState
	Prices           map[string]float64
	History          map[string][]Bar // bars up to and including Date
	SelectedAnalysts []string
	ModelName        string
	ModelProvider    string
}

// Agent produces trade decisions from state and market context
// ⭐ SSOT: 실제/원격/테스트 에이전트가 모두 이 인터페이스를 따름
type Agent interface {
	Name() string
	Decide(ctx context.Context, in AgentInput) ([]TradeDecision, error)
}

// Explainer is implemented by agents that can report the analyst signals behind a decision
type Explainer interface {
	Explain(ctx context.Context, in AgentInput) (*Analysis, error)
}

// PriceSource provides daily bars
type PriceSource interface {
	History(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// RunStore persists runs append-only.
// Snapshots are only appended; a run is finalized exactly once.
type RunStore interface {
	Create(ctx context.Context, run *BacktestResult) error
	MarkRunning(ctx context.Context, runID string, at time.Time) error
	AppendSnapshot(ctx context.Context, runID string, snap Snapshot) error
	Finalize(ctx context.Context, run *BacktestResult) error
	Get(ctx context.Context, runID string) (*BacktestResult, error)
	List(ctx context.Context, limit int) ([]*BacktestResult, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
