package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/contracts"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &contracts.ValidationError{Kind: contracts.MissingField, Field: "tickers"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("parse: %w", &contracts.ValidationError{Field: "x"}), http.StatusBadRequest},
		{"not found", contracts.ErrRunNotFound, http.StatusNotFound},
		{"finalized", contracts.ErrRunFinalized, http.StatusConflict},
		{"queue full", contracts.ErrQueueFull, http.StatusServiceUnavailable},
		{"shutting down", contracts.ErrShuttingDown, http.StatusServiceUnavailable},
		{"serialization", &contracts.SerializationError{Field: "cash"}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"object", `{"initial_capital": 10000.50}`, ""},
		{"empty", ``, "empty request body"},
		{"malformed", `{"a":`, "malformed JSON"},
		{"array", `[1,2]`, "must be a JSON object"},
		{"string", `"hello"`, "must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			raw, err := decodeObject(httptest.NewRecorder(), r)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, contracts.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, json.Number("10000.50"), raw["initial_capital"])
		})
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusBadRequest, "Missing required parameter: tickers")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Missing required parameter: tickers"}`, rec.Body.String())
}
