package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/hedgefund/internal/agents"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/internal/runs"
	"github.com/wonny/hedgefund/internal/scheduler"
	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/redis"
)

// IndexMessage is the liveness message of GET /
const IndexMessage = "AI Hedge Fund API is running"

const healthTimeout = 3 * time.Second

// SystemHandler serves liveness, health and catalog endpoints.
// Every dependency is optional.
type SystemHandler struct {
	mode      string
	agents    *agents.Factory
	runs      *runs.Manager
	scheduler *scheduler.Scheduler
	db        *database.DB
	redis     *redis.Client
	logger    *logger.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(
	mode string,
	factory *agents.Factory,
	manager *runs.Manager,
	sched *scheduler.Scheduler,
	db *database.DB,
	rdb *redis.Client,
	log *logger.Logger,
) *SystemHandler {
	return &SystemHandler{
		mode:      mode,
		agents:    factory,
		runs:      manager,
		scheduler: sched,
		db:        db,
		redis:     rdb,
		logger:    log.WithField("handler", "system"),
	}
}

// IndexResponse is the body of GET /
type IndexResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse reports the state of each dependency
type HealthResponse struct {
	Status     string                 `json:"status"` // ok, degraded
	Mode       string                 `json:"mode"`
	Components map[string]interface{} `json:"components"`
}

// AnalystsResponse lists the analysts a request may select
type AnalystsResponse struct {
	Status     string               `json:"status"`
	Remote     bool                 `json:"remote"`
	ConfigHash string               `json:"config_hash,omitempty"`
	Analysts   []agents.AnalystInfo `json:"analysts"`
}

// JobsResponse lists scheduled jobs and their run statistics
type JobsResponse struct {
	Status string                        `json:"status"`
	Jobs   []string                      `json:"jobs"`
	Stats  map[string]scheduler.JobStats `json:"stats"`
}

// Index reports that the service is up
// GET /
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, IndexResponse{Status: report.StatusSuccess, Message: IndexMessage})
}

// Health checks the database, redis and the run manager
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "ok",
		Mode:       h.mode,
		Components: make(map[string]interface{}),
	}

	if h.db != nil {
		health, err := h.db.HealthCheck(ctx)
		if err != nil {
			h.logger.WithError(err).Warn("Database health check failed")
			resp.Status = "degraded"
		}
		resp.Components["database"] = health
	} else {
		resp.Components["database"] = "disabled"
	}

	switch {
	case h.redis == nil || !h.redis.Enabled():
		resp.Components["redis"] = "disabled"
	default:
		if err := h.redis.Redis().Ping(ctx).Err(); err != nil {
			h.logger.WithError(err).Warn("Redis health check failed")
			resp.Status = "degraded"
			resp.Components["redis"] = map[string]interface{}{"healthy": false, "error": err.Error()}
		} else {
			resp.Components["redis"] = map[string]interface{}{"healthy": true}
		}
	}

	if h.runs != nil {
		resp.Components["runs"] = h.runs.Stats()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// Analysts lists the configured analysts
// GET /api/analysts
func (h *SystemHandler) Analysts(w http.ResponseWriter, r *http.Request) {
	resp := AnalystsResponse{Status: report.StatusSuccess, Analysts: []agents.AnalystInfo{}}
	if h.agents != nil {
		resp.Remote = h.agents.Remote()
		resp.ConfigHash = h.agents.ConfigHash()
		resp.Analysts = h.agents.Available()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Jobs returns scheduler job statistics
// GET /api/system/jobs
func (h *SystemHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	resp := JobsResponse{
		Status: report.StatusSuccess,
		Jobs:   []string{},
		Stats:  map[string]scheduler.JobStats{},
	}
	if h.scheduler != nil {
		resp.Jobs = h.scheduler.GetAllJobs()
		resp.Stats = h.scheduler.GetJobStats()
	}
	respondJSON(w, http.StatusOK, resp)
}
