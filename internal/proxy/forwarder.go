// Package proxy forwards validated requests to the orchestrator, injecting
// the shared-secret credential and relaying the upstream response unchanged.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulselabs/pulse-gateway/internal/domain"
)

// secretHeader is the credential header the orchestrator validates.
const secretHeader = "X-Function-Key"

// Result carries a relayed upstream response. Body is the exact upstream
// bytes; non-2xx statuses are the upstream's own error vocabulary and are
// relayed, not translated.
type Result struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Forwarder builds and issues upstream requests.
type Forwarder struct {
	baseURL string
	secret  string
	client  *http.Client
}

// New creates a Forwarder for the given upstream. A trailing slash on the
// base URL is tolerated.
func New(baseURL, sharedSecret string, timeout time.Duration) *Forwarder {
	base := strings.TrimRight(baseURL, "/")

	var transport http.RoundTripper
	if u, err := url.Parse(base); err == nil && u.Hostname() != "" {
		transport = restrictedTransport(u.Hostname())
	}

	return &Forwarder{
		baseURL: base,
		secret:  sharedSecret,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Forward issues method path?rawQuery against the upstream and relays the
// response. path is the decoded literal path; each segment is
// percent-encoded before the request is built. The inbound context rides on
// the outbound call, so a client abort cancels the upstream request.
//
// Missing deployment configuration fails before any network I/O so operators
// can tell "misconfigured" from "backend is down".
func (f *Forwarder) Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType string) (*Result, *domain.APIError) {
	if f.baseURL == "" {
		return nil, domain.ErrConfiguration("upstream base URL is not configured")
	}
	if f.secret == "" {
		return nil, domain.ErrConfiguration("upstream shared secret is not configured")
	}

	target := f.baseURL + EscapePath(path)
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, domain.ErrValidation("invalid upstream request")
	}
	req.Header.Set(secretHeader, f.secret)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
			return nil, domain.ErrUpstream("upstream timed out")
		}
		return nil, domain.ErrUpstream("upstream unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrUpstream("upstream response truncated")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: ct,
	}, nil
}

// EscapePath percent-encodes each segment of a decoded literal path.
// "/admin/prompts/abc def" becomes "/admin/prompts/abc%20def".
func EscapePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segments, "/")
}
