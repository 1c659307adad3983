package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderDeliversEvents(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discardLogger(), 16)

	rec.Record(Event{Kind: KindLogin, Actor: "u-1", OriginIP: "1.2.3.4"})
	rec.Record(Event{Kind: KindRateLimitDenied, Actor: "ip:1.2.3.4", Detail: "policy=strict"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events := store.Events()
	if len(events) != 2 {
		t.Fatalf("stored %d events, want 2", len(events))
	}
	if events[0].Kind != KindLogin || events[1].Kind != KindRateLimitDenied {
		t.Errorf("events = %+v", events)
	}
	for _, evt := range events {
		if evt.ID == "" {
			t.Error("event stored without generated ID")
		}
		if evt.CreatedAt.IsZero() {
			t.Error("event stored without timestamp")
		}
	}
}

// failingStore always errors, standing in for a broken audit backend.
type failingStore struct{}

func (failingStore) Append(context.Context, *Event) error { return errors.New("disk gone") }
func (failingStore) Close() error                         { return nil }

func TestRecorderSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(failingStore{}, discardLogger(), 16)

	// Must not panic or surface the failure to the caller
	rec.Record(Event{Kind: KindInternalError, Detail: "boom"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	// A store that blocks forever would stall the writer; the recorder must
	// still accept (and drop) events without blocking the caller.
	blocked := make(chan struct{})
	store := &blockingStore{wait: blocked}
	rec := NewRecorder(store, discardLogger(), 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			rec.Record(Event{Kind: KindLogin})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record() blocked the request path")
	}
	close(blocked)
}

type blockingStore struct {
	wait chan struct{}
}

func (s *blockingStore) Append(context.Context, *Event) error {
	<-s.wait
	return nil
}
func (s *blockingStore) Close() error { return nil }

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	evt := &Event{
		ID:        "evt_test1",
		Kind:      KindAuthFailure,
		Actor:     "anonymous",
		OriginIP:  "1.2.3.4",
		Detail:    "admin session required",
		RequestID: "req-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Append(ctx, evt); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("ListRecent() returned %d events, want 1", len(events))
	}
	got := events[0]
	if got.ID != evt.ID || got.Kind != evt.Kind || got.OriginIP != evt.OriginIP || got.RequestID != evt.RequestID {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
