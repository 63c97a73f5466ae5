package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/report"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512
)

// EventResult is the last message on a stream: the run as /api/backtest/{id} reports it
const EventResult = "result"

// StreamResult carries the final run state to a stream client
type StreamResult struct {
	Type     string                   `json:"type"`
	RunID    string                   `json:"run_id"`
	Response *report.BacktestResponse `json:"response"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Stream pushes a run's snapshots and status changes over a websocket,
// then the final result. A finished run gets the final result only.
// GET /api/backtest/{id}/stream
func (h *BacktestHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondFailure(w, h.logger, contracts.ErrRunNotFound)
		return
	}

	runID := mux.Vars(r)["id"]
	events, unsubscribe, err := h.runs.Subscribe(runID)
	switch {
	case errors.Is(err, contracts.ErrRunFinalized):
		// 종료된 실행: 존재 여부만 확인
		if _, gerr := h.runs.Get(r.Context(), runID); gerr != nil {
			respondFailure(w, h.logger, gerr)
			return
		}
	case err != nil:
		respondFailure(w, h.logger, err)
		return
	default:
		defer unsubscribe()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.WithRun(runID).WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.WithRun(runID)
	log.Debug("Stream client connected")

	closed := make(chan struct{})
	go readPump(conn, closed)

	if events != nil {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

	loop:
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					break loop
				}
				if err := writeJSON(conn, ev); err != nil {
					log.WithError(err).Debug("Stream write failed")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-closed:
				log.Debug("Stream client disconnected")
				return
			}
		}
	}

	// 최종 결과 전송 (요청 ctx가 아닌 별도 ctx 사용)
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	if result, err := h.runs.Get(ctx, runID); err == nil {
		if resp, err := report.PresentBacktest(result); err == nil {
			writeJSON(conn, StreamResult{Type: EventResult, RunID: runID, Response: resp})
		} else {
			log.WithError(err).Warn("Failed to present final result")
		}
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readPump drains client frames so pongs and close frames are processed
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
