package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loan-rpsn/domain"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// decodeJSON reads a JSON request body into v. It rejects other content
// types and bodies with trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return http.StatusUnsupportedMediaType, errors.New("Content-Type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return http.StatusBadRequest, errors.New("invalid request body: trailing data")
	}
	return http.StatusOK, nil
}

// writeJSON encodes into a buffer first so a failed encode never leaves a
// half-written 200 behind.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("encoding response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors to status codes. Invalid input is
// the caller's fault; anything else is ours.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		writeError(w, logger, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", RequestIDFrom(r.Context()),
		"error", err,
	)
	writeError(w, logger, http.StatusInternalServerError, "internal server error")
}
