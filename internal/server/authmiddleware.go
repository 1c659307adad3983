package server

import (
	"context"
	"net/http"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/auth"
	"github.com/pulselabs/pulse-gateway/internal/ratelimit"
	"github.com/pulselabs/pulse-gateway/internal/session"
)

type sessionKey struct{}

// SessionFromContext returns the authenticated session, or nil when the
// request did not pass through RequireAdmin.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// RequireAdmin rejects requests without an admin session before any handler
// work happens. Denials are audited; accepted sessions ride the request
// context for downstream handlers.
func RequireAdmin(gate *auth.Gate, recorder *audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, denied := gate.RequireAdmin(r)
			if denied != nil {
				if recorder != nil {
					recorder.Record(audit.Event{
						Kind:      audit.KindAuthFailure,
						OriginIP:  ratelimit.ClientIP(r),
						Detail:    r.Method + " " + r.URL.Path,
						RequestID: GetRequestID(r.Context()),
					})
				}
				Error(w, r, denied)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
