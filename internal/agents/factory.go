package agents

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/httputil"
	"github.com/wonny/hedgefund/pkg/logger"
)

// Factory builds the agent for each request
// ⭐ SSOT: 요청별 에이전트 생성은 여기서만
type Factory struct {
	cfg         *Config
	cfgHash     string
	byID        map[string]AnalystConfig
	remoteURL   string
	client      *httputil.Client
	limiter     *rate.Limiter
	constraints portfolio.Constraints
	logger      *logger.Logger
}

// NewFactory wires the analysts config and the agent settings from the environment
func NewFactory(appCfg *config.Config, analysts *Config, log *logger.Logger) (*Factory, error) {
	if analysts == nil {
		analysts = DefaultConfig()
	}
	if err := analysts.Validate(); err != nil {
		return nil, fmt.Errorf("analysts config: %w", err)
	}
	hash, err := analysts.Hash()
	if err != nil {
		return nil, fmt.Errorf("analysts config hash: %w", err)
	}

	f := &Factory{
		cfg:       analysts,
		cfgHash:   hash,
		byID:      make(map[string]AnalystConfig, len(analysts.Analysts)),
		remoteURL: appCfg.Agent.ServiceURL,
		constraints: portfolio.Constraints{
			MaxPositionPct: appCfg.Agent.MaxPositionPct,
			BlackList:      append([]string{}, analysts.PortfolioManager.BlackList...),
		},
		logger: log.WithField("component", "agents"),
	}
	for _, a := range analysts.Analysts {
		f.byID[a.ID] = a
	}

	if f.remoteURL != "" {
		f.client = httputil.New(log, 60*time.Second).WithRetry(2, time.Second)
	}
	if appCfg.Agent.RateLimit > 0 {
		burst := appCfg.Agent.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(appCfg.Agent.RateLimit), burst)
	}

	f.logger.WithFields(map[string]interface{}{
		"remote":      f.remoteURL != "",
		"config_hash": hash,
		"rate_limit":  appCfg.Agent.RateLimit,
	}).Info("Agent factory ready")

	return f, nil
}

// Remote reports whether decisions are delegated to a decision service
func (f *Factory) Remote() bool { return f.remoteURL != "" }

// ConfigHash identifies the analysts config in use
func (f *Factory) ConfigHash() string { return f.cfgHash }

// Resolve checks selected analysts; an empty selection means the default set.
// A remote service owns its analyst names, so they pass through unchecked.
func (f *Factory) Resolve(selected []string) ([]string, error) {
	if f.Remote() {
		return append([]string{}, selected...), nil
	}
	if len(selected) == 0 {
		return append([]string{}, f.cfg.Default...), nil
	}

	out := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if _, ok := f.byID[id]; !ok {
			return nil, &contracts.ValidationError{
				Kind:   contracts.InvalidValue,
				Field:  "selected_analysts",
				Reason: fmt.Sprintf("unknown analyst %q (available: %s)", id, strings.Join(f.ids(), ", ")),
			}
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Agent returns the decision maker for a request's analyst selection
func (f *Factory) Agent(selected []string) (contracts.Agent, error) {
	ids, err := f.Resolve(selected)
	if err != nil {
		return nil, err
	}

	var agent contracts.Agent
	if f.Remote() {
		agent = NewRemoteAgent(f.client, f.remoteURL, f.logger)
	} else {
		analysts := make([]Analyst, 0, len(ids))
		weights := make(map[string]float64, len(ids))
		for _, id := range ids {
			ac := f.byID[id]
			analysts = append(analysts, builders[id](ac))
			weights[id] = ac.Weight
		}
		agent = NewPortfolioManager(analysts, weights, f.cfg.PortfolioManager, f.constraints, f.logger)
	}

	if f.limiter != nil {
		agent = NewThrottled(agent, f.limiter)
	}
	return agent, nil
}

// Available lists the configured analysts
func (f *Factory) Available() []AnalystInfo {
	defaults := make(map[string]bool, len(f.cfg.Default))
	for _, id := range f.cfg.Default {
		defaults[id] = true
	}

	out := make([]AnalystInfo, 0, len(f.cfg.Analysts))
	for _, a := range f.cfg.Analysts {
		out = append(out, AnalystInfo{
			ID:          a.ID,
			Description: descriptions[a.ID],
			Weight:      a.Weight,
			Lookback:    a.Lookback,
			Default:     defaults[a.ID],
		})
	}
	return out
}

// Lookback is the longest history any configured analyst needs, in trading days
func (f *Factory) Lookback() int {
	longest := 0
	for _, a := range f.cfg.Analysts {
		if a.Lookback > longest {
			longest = a.Lookback
		}
	}
	if longest < 20 {
		longest = 20 // trend_following always needs MA20
	}
	return longest + 1
}

func (f *Factory) ids() []string {
	ids := make([]string, 0, len(f.cfg.Analysts))
	for _, a := range f.cfg.Analysts {
		ids = append(ids, a.ID)
	}
	return ids
}
