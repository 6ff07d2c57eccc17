package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tsuyoshi-3110/dslab571/internal/platform/requestctx"
)

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

type errorPayload struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an envelope. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Code: clip(code, 80), Message: clip(message, 512), Status: status}
}

// WithDetails attaches extra top-level fields to the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders err with the request and trace ids found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	payload := errorPayload{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		RequestID: clip(middleware.GetReqID(ctx), 80),
		TraceID:   clip(requestctx.TraceID(ctx), 64),
	}
	if len(err.Details) == 0 {
		WriteJSON(w, err.Status, payload)
		return
	}

	body := map[string]any{
		"error":   payload.Error,
		"message": payload.Message,
		"status":  payload.Status,
	}
	if payload.RequestID != "" {
		body["request_id"] = payload.RequestID
	}
	if payload.TraceID != "" {
		body["trace_id"] = payload.TraceID
	}
	for k, v := range err.Details {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	WriteJSON(w, err.Status, body)
}

// WriteJSON encodes value with the given status.
func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func clip(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
