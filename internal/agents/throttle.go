package agents

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Throttled limits how often the wrapped agent is consulted.
// One limiter is shared by every run so a remote service sees a bounded rate overall.
type Throttled struct {
	inner   contracts.Agent
	limiter *rate.Limiter
}

// NewThrottled wraps inner with limiter
func NewThrottled(inner contracts.Agent, limiter *rate.Limiter) *Throttled {
	return &Throttled{inner: inner, limiter: limiter}
}

// Name implements contracts.Agent
func (t *Throttled) Name() string { return t.inner.Name() }

// Decide waits for a token, then delegates
func (t *Throttled) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("agent rate limit: %w", err)
	}
	return t.inner.Decide(ctx, in)
}

// Explain waits for a token, then delegates
func (t *Throttled) Explain(ctx context.Context, in contracts.AgentInput) (*contracts.Analysis, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("agent rate limit: %w", err)
	}
	return Explain(ctx, t.inner, in)
}

// Explain asks agent for its analysis, falling back to plain decisions
// for agents that do not report signals
func Explain(ctx context.Context, agent contracts.Agent, in contracts.AgentInput) (*contracts.Analysis, error) {
	if ex, ok := agent.(contracts.Explainer); ok {
		return ex.Explain(ctx, in)
	}
	decisions, err := agent.Decide(ctx, in)
	if err != nil {
		return nil, err
	}
	return &contracts.Analysis{
		Decisions: decisions,
		Signals:   make(map[string]map[string]contracts.AnalystSignal),
	}, nil
}
