package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// sentinelKey buckets clients whose identity cannot be resolved at all.
// Sharing one conservative bucket beats letting them bypass the limiter.
const sentinelKey = "ip:unknown"

// ResolveClientKey derives the rate-limiting key for a request. An
// authenticated user ID wins over any network identifier since it survives
// NAT and shared proxies; otherwise the first entry of the X-Forwarded-For
// chain is used, then the direct connection address. The result is never
// empty.
func ResolveClientKey(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	if ip := ClientIP(r); ip != "" {
		return "ip:" + ip
	}
	return sentinelKey
}

// ClientIP extracts the best available client network identifier: the first
// entry of the X-Forwarded-For chain, else the direct connection host. Empty
// when nothing is resolvable.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
