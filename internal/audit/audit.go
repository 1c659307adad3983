// Package audit records structured security and operational events. Writes
// are fire-and-forget: losing an audit record must never translate into
// denying a legitimate request.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	KindRateLimitDenied Kind = "rate_limit_denied"
	KindAuthFailure     Kind = "auth_failure"
	KindUpstreamError   Kind = "upstream_error"
	KindInternalError   Kind = "internal_error"
	KindLogin           Kind = "login"
	KindLoginFailure    Kind = "login_failure"
	KindJobStarted      Kind = "job_started"
)

// Event is one append-only audit record.
type Event struct {
	ID        string
	Kind      Kind
	Actor     string
	OriginIP  string
	Detail    string
	RequestID string
	CreatedAt time.Time
}

// Store persists events. Append-only; the gateway core needs no read path
// beyond what tests use.
type Store interface {
	Append(ctx context.Context, evt *Event) error
	Close() error
}

// Recorder decouples the request path from persistence with a buffered
// channel and one writer goroutine. A full buffer or a failing store is
// logged locally and swallowed.
type Recorder struct {
	store  Store
	logger *slog.Logger
	ch     chan Event
	done   chan struct{}
}

// NewRecorder starts the writer goroutine.
func NewRecorder(store Store, logger *slog.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for evt := range r.ch {
		if err := r.store.Append(context.Background(), &evt); err != nil {
			r.logger.Warn("audit write failed",
				slog.String("kind", string(evt.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Record enqueues an event, filling ID and timestamp when absent. It never
// blocks: if the buffer is full the event is dropped with a local warning.
func (r *Recorder) Record(evt Event) {
	if evt.ID == "" {
		evt.ID = "evt_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}

	select {
	case r.ch <- evt:
	default:
		r.logger.Warn("audit buffer full, dropping event",
			slog.String("kind", string(evt.Kind)),
		)
	}
}

// Close stops accepting events and waits for the writer to drain, bounded by
// ctx.
func (r *Recorder) Close(ctx context.Context) error {
	close(r.ch)
	select {
	case <-r.done:
		return r.store.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}
