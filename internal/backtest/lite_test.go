package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/logger"
)

func TestLiteEngine(t *testing.T) {
	req := request([]string{"AAPL"}, "2024-01-01", "2024-06-01", 10000.5)
	lite := NewLiteEngine(logger.Nop())

	a := lite.Run(req)
	b := lite.Run(req)

	assert.Equal(t, contracts.StatusQueued, a.Status)
	assert.Equal(t, QueuedMessage, a.Message)
	assert.Equal(t, LiteNote, a.Note)
	assert.Empty(t, a.Timeline)
	assert.Nil(t, a.Metrics)

	assert.Equal(t, 10000.5, a.Parameters.InitialCapital)
	assert.Equal(t, []string{}, a.Parameters.Analysts)
	assert.Equal(t, a.Parameters, b.Parameters)
}
