// Package ratelimit implements per-client fixed-window request limiting
// against named policies. Counters live either in process memory or in a
// shared Redis instance; everything above the Limiter interface is unaware of
// the backing store.
package ratelimit

import (
	"fmt"
	"time"
)

// Policy is a named fixed-window rate-limit configuration. Policies are
// static process-wide configuration loaded once at startup.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Policies is the immutable policy table.
type Policies struct {
	byName map[string]Policy
}

// NewPolicies builds the policy table. Validation of individual policies
// happens at config load; this only indexes them.
func NewPolicies(policies []Policy) *Policies {
	byName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		byName[p.Name] = p
	}
	return &Policies{byName: byName}
}

// Get looks up a policy by name. An unknown name is a configuration error:
// callers resolve policies at route wiring time and treat an error as fatal,
// so a misnamed policy can never surface per-request.
func (p *Policies) Get(name string) (Policy, error) {
	policy, ok := p.byName[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown rate limit policy %q", name)
	}
	return policy, nil
}
