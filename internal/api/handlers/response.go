package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/pkg/logger"
)

// maxBodyBytes bounds a request body
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, report.ErrorResponse{
		Status:  report.StatusError,
		Message: message,
	})
}

// respondFailure maps err onto its HTTP status and writes the error body
func respondFailure(w http.ResponseWriter, log *logger.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}
	respondError(w, status, err.Error())
}

// StatusFor returns the HTTP status an error is reported with
func StatusFor(err error) int {
	var ve *contracts.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrRunFinalized):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrQueueFull), errors.Is(err, contracts.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeObject reads a JSON object body; numbers stay json.Number for validation
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		reason := "malformed JSON: " + err.Error()
		if errors.Is(err, io.EOF) {
			reason = "empty request body"
		}
		return nil, &contracts.ValidationError{Kind: contracts.InvalidType, Field: "body", Reason: reason}
	}

	raw, ok := body.(map[string]any)
	if !ok {
		return nil, &contracts.ValidationError{Kind: contracts.InvalidType, Field: "body", Reason: "must be a JSON object"}
	}
	return raw, nil
}
