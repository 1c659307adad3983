package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pulselabs/pulse-gateway/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as an application/json response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Data relays a pre-encoded payload without re-serializing it.
func Data(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write response body", "error", err)
		}
	}
}

// Error is the single exit point for failed requests. Classified errors keep
// their message and status; anything else collapses to a generic 500 so
// internal details never reach a client. The original error is attached to
// the request log either way.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer("internal error")
	}

	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}

	JSON(w, apiErr.HTTPStatusCode(), errorBody{Error: apiErr.Message})
}
