package handlers

import (
	"net/http"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/hedgefund"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/internal/validation"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

// HedgeFundHandler handles single-pass analysis requests
type HedgeFundHandler struct {
	mode     string
	defaults validation.Defaults
	agents   *agents.Factory
	analyzer *hedgefund.Analyzer
	lite     *hedgefund.Lite
	logger   *logger.Logger
}

// NewHedgeFundHandler creates a new hedge fund handler
func NewHedgeFundHandler(
	mode string,
	defaults validation.Defaults,
	factory *agents.Factory,
	analyzer *hedgefund.Analyzer,
	lite *hedgefund.Lite,
	log *logger.Logger,
) *HedgeFundHandler {
	return &HedgeFundHandler{
		mode:     mode,
		defaults: defaults,
		agents:   factory,
		analyzer: analyzer,
		lite:     lite,
		logger:   log.WithField("handler", "hedge_fund"),
	}
}

// Analyze returns trading decisions for the requested tickers
// POST /api/hedge-fund
func (h *HedgeFundHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	req, err := validation.ParseHedgeFundRequest(raw, h.defaults)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	var result *contracts.HedgeFundResult
	if h.mode == config.ModeLite || h.analyzer == nil {
		result = h.lite.Analyze(req)
	} else {
		agent, err := h.agents.Agent(req.SelectedAnalysts)
		if err != nil {
			respondFailure(w, h.logger, err)
			return
		}
		if result, err = h.analyzer.Analyze(r.Context(), req, agent); err != nil {
			respondFailure(w, h.logger, err)
			return
		}
	}

	resp, err := report.PresentHedgeFund(result)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
