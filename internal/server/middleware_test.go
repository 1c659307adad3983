package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/auth"
	"github.com/pulselabs/pulse-gateway/internal/session"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("context request ID is empty")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header request ID %q != context request ID %q", got, seen)
	}
}

func TestRecoveryMiddlewareNormalizesPanics(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret internal state: sk-12345")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != "internal error" {
		t.Errorf("message = %q, want generic message", got)
	}
	if strings.Contains(rec.Body.String(), "sk-12345") {
		t.Error("panic value leaked into the response")
	}
}

func TestRecoveryMiddlewareAuditsInternalErrors(t *testing.T) {
	store := audit.NewMemoryStore()
	recorder := audit.NewRecorder(store, discardLogger(), 16)

	handler := RecoveryMiddleware(discardLogger(), recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil)
	req.RemoteAddr = "10.0.0.9:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := recorder.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	evt := events[0]
	if evt.Kind != audit.KindInternalError {
		t.Errorf("event kind = %q, want %q", evt.Kind, audit.KindInternalError)
	}
	if evt.OriginIP != "10.0.0.9" {
		t.Errorf("event origin = %q, want 10.0.0.9", evt.OriginIP)
	}
}

type stubSessions struct {
	sess *session.Session
}

func (s stubSessions) Current(*http.Request) (*session.Session, error) { return s.sess, nil }
func (s stubSessions) Issue(http.ResponseWriter, *session.Session) error {
	return nil
}
func (s stubSessions) Clear(http.ResponseWriter) {}

func TestRequireAdminDeniesWithoutSession(t *testing.T) {
	gate := auth.NewGate(stubSessions{})
	handler := RequireAdmin(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a session")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/prompts", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != "admin session required" {
		t.Errorf("message = %q", got)
	}
}

func TestRequireAdminPutsSessionInContext(t *testing.T) {
	want := &session.Session{UserID: "admin", Role: session.RoleAdmin}
	gate := auth.NewGate(stubSessions{sess: want})

	var got *session.Session
	handler := RequireAdmin(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/prompts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.UserID != want.UserID || got.Role != want.Role {
		t.Errorf("context session = %+v, want %+v", got, want)
	}
}
