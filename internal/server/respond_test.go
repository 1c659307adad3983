package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulselabs/pulse-gateway/internal/domain"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	msg, ok := body["error"]
	if !ok {
		t.Fatalf("response %q is missing error key", rec.Body.String())
	}
	if len(body) != 1 {
		t.Errorf("error body has extra keys: %v", body)
	}
	return msg
}

func TestErrorClassifiedStatusAndMessage(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{domain.ErrValidation("id is required"), http.StatusBadRequest, "id is required"},
		{domain.ErrAuthentication("invalid admin key"), http.StatusUnauthorized, "invalid admin key"},
		{domain.ErrPermission("admin session required"), http.StatusForbidden, "admin session required"},
		{domain.ErrNotFound("job not found"), http.StatusNotFound, "job not found"},
		{domain.ErrRateLimit("rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{domain.ErrUpstream("upstream unreachable"), http.StatusBadGateway, "upstream unreachable"},
		{domain.ErrConfiguration("upstream base URL is not configured"), http.StatusInternalServerError, "upstream base URL is not configured"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		Error(rec, req, tt.err)

		if rec.Code != tt.wantStatus {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.wantStatus)
		}
		if got := decodeErrorBody(t, rec); got != tt.wantMsg {
			t.Errorf("%v: message = %q, want %q", tt.err, got, tt.wantMsg)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%v: content-type = %q", tt.err, ct)
		}
	}
}

func TestErrorUnclassifiedNeverLeaks(t *testing.T) {
	secret := "sk-upstream-credential-12345"
	raw := fmt.Errorf("dial tcp: header X-Function-Key=%s rejected: %w", secret, errors.New("boom"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Error(rec, req, raw)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != "internal error" {
		t.Errorf("message = %q, want generic message", got)
	}
	if strings.Contains(rec.Body.String(), secret) {
		t.Error("response leaked the upstream credential")
	}
}

func TestErrorSetsRetryAfter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Error(rec, req, domain.ErrRateLimit("rate limit exceeded").WithRetryAfter(42))

	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After = %q, want 42", got)
	}
}

func TestErrorWrappedAPIErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", domain.ErrNotFound("job not found"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Error(rec, req, wrapped)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != "job not found" {
		t.Errorf("message = %q", got)
	}
}

func TestDataDefaultsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, "", []byte(`{"id":"p1"}`))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	if rec.Body.String() != `{"id":"p1"}` {
		t.Errorf("body = %q, want relayed bytes", rec.Body.String())
	}
}
