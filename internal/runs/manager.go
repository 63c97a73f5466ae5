package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/hedgefund/internal/backtest"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/logger"
)

const queuedMessage = backtest.QueuedMessage

// Runner executes one backtest; *backtest.Engine implements it
type Runner interface {
	Run(ctx context.Context, req *contracts.BacktestRequest, agent contracts.Agent, opts backtest.Options) (*contracts.BacktestResult, error)
}

// EventType distinguishes progress events
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventStatus   EventType = "status"
)

// Event is one progress notification for a run
type Event struct {
	Type     EventType           `json:"type"`
	RunID    string              `json:"run_id"`
	Status   contracts.RunStatus `json:"status"`
	Snapshot *contracts.Snapshot `json:"snapshot,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may lag before events are dropped.
// The last slot is kept for the final status event.
const subscriberBuffer = 64

type job struct {
	runID     string
	createdAt time.Time
	req       *contracts.BacktestRequest
	agent     contracts.Agent
}

// active tracks a run that has not been finalized
type active struct {
	cancel    context.CancelFunc
	cancelled bool
	subs      map[chan Event]struct{}
}

// Manager owns the worker pool that executes backtest runs
// ⭐ SSOT: 백테스트 실행 수명주기(큐/타임아웃/취소)는 여기서만
type Manager struct {
	runner  Runner
	store   contracts.RunStore
	workers int
	timeout time.Duration
	logger  *logger.Logger

	queue chan job

	mu     sync.Mutex
	active map[string]*active
	closed bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager creates a manager; call Start before Submit
func NewManager(runner Runner, store contracts.RunStore, workers, queueSize int, timeout time.Duration, log *logger.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:     runner,
		store:      store,
		workers:    workers,
		timeout:    timeout,
		logger:     log.WithField("component", "runs"),
		queue:      make(chan job, queueSize),
		active:     make(map[string]*active),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Start launches the workers
func (m *Manager) Start() {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	m.logger.WithFields(map[string]interface{}{
		"workers":    m.workers,
		"queue_size": cap(m.queue),
		"timeout":    m.timeout.String(),
	}).Info("Run manager started")
}

// Submit records a queued run and hands it to the pool.
// The returned result is the queued record; the run id is in RunID.
func (m *Manager) Submit(ctx context.Context, req *contracts.BacktestRequest, agent contracts.Agent) (*contracts.BacktestResult, error) {
	run := &contracts.BacktestResult{
		RunID:      uuid.NewString(),
		Status:     contracts.StatusQueued,
		Message:    queuedMessage,
		Parameters: req.Parameters(),
		Timeline:   make([]contracts.Snapshot, 0),
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, contracts.ErrShuttingDown
	}
	// Submit is the only sender and holds mu, so a free slot stays free
	if len(m.queue) == cap(m.queue) {
		return nil, contracts.ErrQueueFull
	}
	if err := m.store.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	m.active[run.RunID] = &active{subs: make(map[chan Event]struct{})}
	m.queue <- job{runID: run.RunID, createdAt: run.CreatedAt, req: req, agent: agent}

	m.logger.WithRun(run.RunID).WithField("tickers", req.Tickers).Info("Backtest queued")
	return run, nil
}

// Run executes a backtest inline with the same lifecycle as a queued run
func (m *Manager) Run(ctx context.Context, req *contracts.BacktestRequest, agent contracts.Agent) (*contracts.BacktestResult, error) {
	j := job{runID: uuid.NewString(), createdAt: time.Now().UTC(), req: req, agent: agent}
	run := &contracts.BacktestResult{
		RunID:      j.runID,
		Status:     contracts.StatusQueued,
		Parameters: req.Parameters(),
		Timeline:   make([]contracts.Snapshot, 0),
		CreatedAt:  j.createdAt,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, contracts.ErrShuttingDown
	}
	if err := m.store.Create(ctx, run); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("record run: %w", err)
	}
	m.active[j.runID] = &active{subs: make(map[chan Event]struct{})}
	m.mu.Unlock()

	return m.execute(ctx, j)
}

// Get returns the current record of a run
func (m *Manager) Get(ctx context.Context, runID string) (*contracts.BacktestResult, error) {
	return m.store.Get(ctx, runID)
}

// List returns recent runs, newest first
func (m *Manager) List(ctx context.Context, limit int) ([]*contracts.BacktestResult, error) {
	return m.store.List(ctx, limit)
}

// Cancel stops a queued or running run at its next step boundary
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	m.mu.Lock()
	a, ok := m.active[runID]
	if ok {
		a.cancelled = true
		if a.cancel != nil {
			a.cancel()
		}
	}
	m.mu.Unlock()

	if ok {
		m.logger.WithRun(runID).Info("Backtest cancellation requested")
		return nil
	}

	// 활성 목록에 없으면 존재하지 않거나 이미 종료된 실행
	if _, err := m.store.Get(ctx, runID); err != nil {
		return err
	}
	return contracts.ErrRunFinalized
}

// Subscribe streams progress of an active run. The channel is closed after
// the final status event. ErrRunFinalized means the run already ended.
func (m *Manager) Subscribe(runID string) (<-chan Event, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[runID]
	if !ok {
		return nil, nil, contracts.ErrRunFinalized
	}

	ch := make(chan Event, subscriberBuffer)
	a.subs[ch] = struct{}{}

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if a, ok := m.active[runID]; ok {
			if _, ok := a.subs[ch]; ok {
				delete(a.subs, ch)
				close(ch)
			}
		}
	}
	return ch, unsubscribe, nil
}

// Stats reports queue depth and active runs
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"workers":    m.workers,
		"queued":     len(m.queue),
		"queue_size": cap(m.queue),
		"active":     len(m.active),
	}
}

// Shutdown stops accepting runs and waits for workers to drain the queue.
// When ctx expires first, in-flight runs are cancelled and recorded as failed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.baseCancel()
		m.logger.Info("Run manager stopped")
		return nil
	case <-ctx.Done():
		m.baseCancel()
		<-done
		m.logger.Warn("Run manager stopped with runs cancelled")
		return ctx.Err()
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for j := range m.queue {
		if _, err := m.execute(m.baseCtx, j); err != nil {
			m.logger.WithRun(j.runID).WithField("worker", id).WithError(err).Warn("Backtest run ended with error")
		}
	}
}

// execute runs j and finalizes its record exactly once
func (m *Manager) execute(parent context.Context, j job) (*contracts.BacktestResult, error) {
	log := m.logger.WithRun(j.runID)

	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()

	m.mu.Lock()
	a := m.active[j.runID]
	a.cancel = cancel
	if a.cancelled {
		cancel()
	}
	m.mu.Unlock()

	startedAt := time.Now().UTC()
	if err := m.store.MarkRunning(ctx, j.runID, startedAt); err != nil {
		log.WithError(err).Warn("Failed to mark run as running")
	}
	m.publish(j.runID, Event{Type: EventStatus, RunID: j.runID, Status: contracts.StatusRunning})

	result, runErr := m.runner.Run(ctx, j.req, j.agent, backtest.Options{
		RunID: j.runID,
		OnStep: func(snap contracts.Snapshot) {
			if err := m.store.AppendSnapshot(ctx, j.runID, snap); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).WithField("step", snap.Step).Warn("Failed to append snapshot")
			}
			m.publish(j.runID, Event{Type: EventSnapshot, RunID: j.runID, Status: contracts.StatusRunning, Snapshot: &snap})
		},
	})

	if result == nil {
		now := time.Now().UTC()
		result = &contracts.BacktestResult{
			Status:     contracts.StatusFailed,
			Parameters: j.req.Parameters(),
			Timeline:   make([]contracts.Snapshot, 0),
			FinishedAt: &now,
		}
		if runErr != nil {
			result.Error = runErr.Error()
		}
	}
	result.RunID = j.runID
	result.CreatedAt = j.createdAt
	result.StartedAt = &startedAt

	// 취소/타임아웃과 무관하게 최종 기록은 남긴다
	finalizeCtx, finalizeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finalizeCancel()
	if err := m.store.Finalize(finalizeCtx, result); err != nil {
		log.WithError(err).Error("Failed to finalize run")
	}

	m.finish(j.runID, Event{Type: EventStatus, RunID: j.runID, Status: result.Status, Error: result.Error})
	return result, runErr
}

func (m *Manager) publish(runID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[runID]
	if !ok {
		return
	}
	for ch := range a.subs {
		if len(ch) >= cap(ch)-1 {
			// slow subscriber; drop the event
			continue
		}
		ch <- ev
	}
}

// finish delivers the final event into the reserved slot and closes every subscriber
func (m *Manager) finish(runID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[runID]
	if !ok {
		return
	}
	for ch := range a.subs {
		ch <- ev
		close(ch)
	}
	delete(m.active, runID)
}
