package backtest

import (
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/logger"
)

// QueuedMessage accompanies every result that is accepted but not yet simulated
const QueuedMessage = "Backtest request received and will be processed asynchronously"

// LiteNote explains the reduced capability of the stand-in engine
const LiteNote = "lite engine: request validated and echoed, no simulation was run"

// LiteEngine is the stand-in used when ENGINE_MODE=lite.
// It never fetches prices or consults an agent.
type LiteEngine struct {
	logger *logger.Logger
}

// NewLiteEngine creates the stand-in engine
func NewLiteEngine(log *logger.Logger) *LiteEngine {
	return &LiteEngine{logger: log}
}

// Run echoes req as a queued result with an empty timeline and no metrics
func (l *LiteEngine) Run(req *contracts.BacktestRequest) *contracts.BacktestResult {
	l.logger.WithField("tickers", req.Tickers).Debug("Lite backtest accepted")

	return &contracts.BacktestResult{
		Status:     contracts.StatusQueued,
		Message:    QueuedMessage,
		Parameters: req.Parameters(),
		Timeline:   make([]contracts.Snapshot, 0),
		Note:       LiteNote,
		CreatedAt:  time.Now().UTC(),
	}
}
