package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/httputil"
	"github.com/wonny/hedgefund/pkg/logger"
)

// historyWindow is how many trailing bars per ticker are sent to the remote service
const historyWindow = 60

// RemoteAgent delegates decisions to an external decision service.
// The service selects its model from model_name and model_provider.
type RemoteAgent struct {
	client   *httputil.Client
	endpoint string
	logger   *logger.Logger
}

// NewRemoteAgent creates an agent posting to {baseURL}/decide
func NewRemoteAgent(client *httputil.Client, baseURL string, log *logger.Logger) *RemoteAgent {
	return &RemoteAgent{
		client:   client,
		endpoint: strings.TrimRight(baseURL, "/") + "/decide",
		logger:   log,
	}
}

type remoteRequest struct {
	Date             string                     `json:"date"`
	Tickers          []string                   `json:"tickers"`
	Portfolio        contracts.PortfolioState   `json:"portfolio"`
	Prices           map[string]float64         `json:"prices"`
	History          map[string][]contracts.Bar `json:"history"`
	SelectedAnalysts []string                   `json:"selected_analysts"`
	ModelName        string                     `json:"model_name"`
	ModelProvider    string                     `json:"model_provider"`
}

type remoteResponse struct {
	Decisions      []contracts.TradeDecision                     `json:"decisions"`
	AnalystSignals map[string]map[string]contracts.AnalystSignal `json:"analyst_signals"`
}

// Name identifies the agent in results and logs
func (r *RemoteAgent) Name() string {
	return "remote[" + r.endpoint + "]"
}

// Decide implements contracts.Agent
func (r *RemoteAgent) Decide(ctx context.Context, in contracts.AgentInput) ([]contracts.TradeDecision, error) {
	analysis, err := r.Explain(ctx, in)
	if err != nil {
		return nil, err
	}
	return analysis.Decisions, nil
}

// Explain implements contracts.Explainer
func (r *RemoteAgent) Explain(ctx context.Context, in contracts.AgentInput) (*contracts.Analysis, error) {
	history := make(map[string][]contracts.Bar, len(in.History))
	for t, bars := range in.History {
		if len(bars) > historyWindow {
			bars = bars[len(bars)-historyWindow:]
		}
		history[t] = bars
	}

	req := remoteRequest{
		Date:             in.Date.Format(contracts.DateLayout),
		Tickers:          in.Tickers,
		Portfolio:        in.State,
		Prices:           in.Prices,
		History:          history,
		SelectedAnalysts: in.SelectedAnalysts,
		ModelName:        in.ModelName,
		ModelProvider:    in.ModelProvider,
	}

	var resp remoteResponse
	if err := r.client.PostJSONDecode(ctx, r.endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("remote agent: %w", err)
	}

	for i, d := range resp.Decisions {
		if !d.Action.Valid() {
			return nil, fmt.Errorf("remote agent: decision %d has unknown action %q", i, d.Action)
		}
	}
	if resp.AnalystSignals == nil {
		resp.AnalystSignals = make(map[string]map[string]contracts.AnalystSignal)
	}

	r.logger.WithFields(map[string]interface{}{
		"date":      req.Date,
		"decisions": len(resp.Decisions),
		"model":     in.ModelName,
	}).Debug("Remote agent responded")

	return &contracts.Analysis{Decisions: resp.Decisions, Signals: resp.AnalystSignals}, nil
}
