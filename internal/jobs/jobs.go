// Package jobs tracks ephemeral long-running job records for the
// download-status flow. Records are created when a job starts, updated by the
// job's own execution, and expire after a retention window.
package jobs

import (
	"context"
	"fmt"
	"time"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// statusOrder defines the forward progression; failed is reachable from any
// non-terminal state and sits outside the order.
var statusOrder = map[Status]int{
	StatusStarting:    0,
	StatusDownloading: 1,
	StatusExtracting:  2,
	StatusCompleted:   3,
}

// Terminal reports whether no further updates are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is one job's observable state.
type Record struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists job records. Get returns (nil, nil) for an unknown or
// expired ID; that maps to a 404 at the route boundary.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
}

// Tracker owns one job's record and enforces its invariants: progress never
// decreases, status only moves forward through the lifecycle, terminal states
// accept no further updates, and completed pins progress to 100.
type Tracker struct {
	store Store
	rec   Record
}

// Start creates the record in the starting state and returns its tracker.
func Start(ctx context.Context, store Store, id, message string) (*Tracker, error) {
	now := time.Now()
	t := &Tracker{
		store: store,
		rec: Record{
			ID:        id,
			Status:    StatusStarting,
			Progress:  0,
			Message:   message,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := store.Put(ctx, &t.rec); err != nil {
		return nil, fmt.Errorf("create job %s: %w", id, err)
	}
	return t, nil
}

// Update advances the job. Moving backwards through the lifecycle or past a
// terminal state is rejected; a lower progress value is clamped to the
// current one.
func (t *Tracker) Update(ctx context.Context, status Status, progress int, message string) error {
	if t.rec.Status.Terminal() {
		return fmt.Errorf("job %s is %s, no further updates", t.rec.ID, t.rec.Status)
	}
	to, ok := statusOrder[status]
	if !ok {
		return fmt.Errorf("job %s: cannot update to %q", t.rec.ID, status)
	}
	if to < statusOrder[t.rec.Status] {
		return fmt.Errorf("job %s: cannot move from %s back to %s", t.rec.ID, t.rec.Status, status)
	}

	if progress < t.rec.Progress {
		progress = t.rec.Progress
	}
	if progress > 100 {
		progress = 100
	}
	if status == StatusCompleted {
		progress = 100
	}

	t.rec.Status = status
	t.rec.Progress = progress
	t.rec.Message = message
	t.rec.UpdatedAt = time.Now()

	if err := t.store.Put(ctx, &t.rec); err != nil {
		return fmt.Errorf("update job %s: %w", t.rec.ID, err)
	}
	return nil
}

// Fail terminates the job from any non-terminal state.
func (t *Tracker) Fail(ctx context.Context, errMsg string) error {
	if t.rec.Status.Terminal() {
		return fmt.Errorf("job %s is %s, no further updates", t.rec.ID, t.rec.Status)
	}

	t.rec.Status = StatusFailed
	t.rec.Error = errMsg
	t.rec.UpdatedAt = time.Now()

	if err := t.store.Put(ctx, &t.rec); err != nil {
		return fmt.Errorf("fail job %s: %w", t.rec.ID, err)
	}
	return nil
}

// Record returns a copy of the current state.
func (t *Tracker) Record() Record {
	return t.rec
}
