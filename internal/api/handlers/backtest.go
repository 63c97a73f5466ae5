package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/backtest"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/internal/runs"
	"github.com/wonny/hedgefund/internal/validation"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// BacktestHandler handles backtest submission and run lookups
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	mode     string
	defaults validation.Defaults
	agents   *agents.Factory
	runs     *runs.Manager
	lite     *backtest.LiteEngine
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler.
// In lite mode factory and manager may be nil.
func NewBacktestHandler(
	mode string,
	defaults validation.Defaults,
	factory *agents.Factory,
	manager *runs.Manager,
	lite *backtest.LiteEngine,
	log *logger.Logger,
) *BacktestHandler {
	return &BacktestHandler{
		mode:     mode,
		defaults: defaults,
		agents:   factory,
		runs:     manager,
		lite:     lite,
		logger:   log.WithField("handler", "backtest"),
	}
}

// CancelResponse acknowledges a cancellation request
type CancelResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// ListResponse is a page of recent runs without timelines
type ListResponse struct {
	Status string                      `json:"status"`
	Runs   []*contracts.BacktestResult `json:"runs"`
}

// Run validates a backtest request and runs it according to the engine mode
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	req, err := validation.ParseBacktestRequest(raw, h.defaults)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	if h.mode == config.ModeLite || h.runs == nil {
		h.present(w, h.lite.Run(req))
		return
	}

	agent, err := h.agents.Agent(req.SelectedAnalysts)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	var result *contracts.BacktestResult
	if h.mode == config.ModeSync {
		result, err = h.runs.Run(r.Context(), req, agent)
	} else {
		result, err = h.runs.Submit(r.Context(), req, agent)
	}
	if err != nil {
		var ee *contracts.EngineError
		if result != nil && errors.As(err, &ee) {
			h.presentFailed(w, result, err)
			return
		}
		respondFailure(w, h.logger, err)
		return
	}

	h.present(w, result)
}

// Get returns the current state of a run
// GET /api/backtest/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondFailure(w, h.logger, contracts.ErrRunNotFound)
		return
	}

	result, err := h.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	h.present(w, result)
}

// List returns recent runs, newest first
// GET /api/backtest?limit=20
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondFailure(w, h.logger, &contracts.ValidationError{
				Kind:   contracts.InvalidValue,
				Field:  "limit",
				Reason: "must be a positive integer",
			})
			return
		}
		limit = min(n, maxListLimit)
	}

	list := make([]*contracts.BacktestResult, 0)
	if h.runs != nil {
		found, err := h.runs.List(r.Context(), limit)
		if err != nil {
			respondFailure(w, h.logger, err)
			return
		}
		list = append(list, found...)
	}

	respondJSON(w, http.StatusOK, ListResponse{Status: report.StatusSuccess, Runs: list})
}

// Cancel stops a queued or running run
// DELETE /api/backtest/{id}
func (h *BacktestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondFailure(w, h.logger, contracts.ErrRunNotFound)
		return
	}

	runID := mux.Vars(r)["id"]
	if err := h.runs.Cancel(r.Context(), runID); err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusAccepted, CancelResponse{
		Status:  report.StatusSuccess,
		Message: "Cancellation requested",
		RunID:   runID,
	})
}

func (h *BacktestHandler) present(w http.ResponseWriter, result *contracts.BacktestResult) {
	resp, err := report.PresentBacktest(result)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// presentFailed reports a failed run with its partial results
func (h *BacktestHandler) presentFailed(w http.ResponseWriter, result *contracts.BacktestResult, runErr error) {
	resp, err := report.PresentFailedBacktest(result, runErr)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	h.logger.WithRun(result.RunID).WithError(runErr).Warn("Backtest failed")
	respondJSON(w, http.StatusInternalServerError, resp)
}
