package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/logger"
)

// RunRetentionJob deletes finished backtest runs older than the retention window
type RunRetentionJob struct {
	store     contracts.RunStore
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewRunRetentionJob creates a new retention job
func NewRunRetentionJob(store contracts.RunStore, retention time.Duration, log *logger.Logger) *RunRetentionJob {
	return &RunRetentionJob{
		store:     store,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *RunRetentionJob) Name() string {
	return "run_retention"
}

// Schedule returns the cron schedule (hourly, on the hour)
func (j *RunRetentionJob) Schedule() string {
	return "0 0 * * * *"
}

// Run executes the cleanup
func (j *RunRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	deleted, err := j.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete finished runs: %w", err)
	}

	if deleted > 0 {
		j.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Run retention completed")
	}
	return nil
}
