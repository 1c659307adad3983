package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/domain"
	"github.com/pulselabs/pulse-gateway/internal/ratelimit"
)

// RateLimit enforces the named policy for every request passing through it.
// Denied requests get a 429 with Retry-After and are written to the audit
// trail. A limiter backend failure lets the request through so a degraded
// limiter store cannot take the whole gateway down with it.
func RateLimit(limiter ratelimit.Limiter, policy ratelimit.Policy, recorder *audit.Recorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if sess := SessionFromContext(r.Context()); sess != nil {
				userID = sess.UserID
			}
			key := ratelimit.ResolveClientKey(r, userID)

			result, err := limiter.Check(r.Context(), key, policy)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					"policy", policy.Name, "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("x-ratelimit-limit", strconv.Itoa(result.Limit))
			w.Header().Set("x-ratelimit-remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("x-ratelimit-reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			if recorder != nil {
				recorder.Record(audit.Event{
					Kind:      audit.KindRateLimitDenied,
					Actor:     userID,
					OriginIP:  ratelimit.ClientIP(r),
					Detail:    "policy " + policy.Name,
					RequestID: GetRequestID(r.Context()),
				})
			}

			Error(w, r, domain.ErrRateLimit("rate limit exceeded").WithRetryAfter(retryAfter))
		})
	}
}
