package memory

import (
	"context"
	"sync"

	"meetprobe/internal/core/state"
)

// MemorySnapshotSink keeps the latest snapshot in process. It backs the probe
// when Redis is disabled or unreachable.
type MemorySnapshotSink struct {
	mu    sync.RWMutex
	snap  state.Snapshot
	saved bool
	saves int
}

func NewMemorySnapshotSink() *MemorySnapshotSink {
	return &MemorySnapshotSink{}
}

func (s *MemorySnapshotSink) Save(_ context.Context, snap state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.saved = true
	s.saves++
	return nil
}

func (s *MemorySnapshotSink) Load(context.Context) (state.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.saved, nil
}

func (s *MemorySnapshotSink) Ping(context.Context) error { return nil }

func (s *MemorySnapshotSink) Close() error { return nil }

// Saves returns how many snapshots were saved.
func (s *MemorySnapshotSink) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
