package jobs

import (
	"context"
	"sync"
	"time"
)

// defaultRetention keeps finished jobs visible to pollers for a while before
// garbage collection.
const defaultRetention = 15 * time.Minute

// MemoryStore is the in-process Store. Records expire retention after their
// last update.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*memoryRecord
	retention time.Duration

	now func() time.Time
}

type memoryRecord struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryStore creates an in-process job store.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &MemoryStore{
		records:   make(map[string]*memoryRecord),
		retention: retention,
		now:       time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &memoryRecord{
		rec:       cp,
		expiresAt: s.now().Add(s.retention),
	}
	return nil
}

// Get implements Store. Expired records read as absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.records[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	cp := entry.rec
	return &cp, nil
}

// StartJanitor removes expired records periodically until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.cleanup()
			}
		}
	}()
}

func (s *MemoryStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.records {
		if !now.Before(entry.expiresAt) {
			delete(s.records, id)
		}
	}
}
