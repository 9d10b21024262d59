package repositories

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"meetprobe/internal/core/ports"
	"meetprobe/internal/core/state"
	"meetprobe/pkg/circuitbreaker"
	"meetprobe/pkg/listeners"
)

// SnapshotMirror copies window snapshots to a sink off the sync path. Only
// the newest pending snapshot is kept; older ones are superseded.
type SnapshotMirror struct {
	sink    ports.SnapshotSink
	timeout time.Duration
	logger  *zap.SugaredLogger
	pending chan state.Snapshot
	breaker *circuitbreaker.Breaker
}

func NewSnapshotMirror(sink ports.SnapshotSink, timeout time.Duration, logger *zap.SugaredLogger) *SnapshotMirror {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &SnapshotMirror{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		pending: make(chan state.Snapshot, 1),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// Breaker guards sink writes. While it is open snapshots are dropped; the
// next sync after the cool-down carries the full state anyway.
func (m *SnapshotMirror) Breaker() *circuitbreaker.Breaker {
	return m.breaker
}

// Attach listens for window syncs through timers so its Cleanup detaches.
func (m *SnapshotMirror) Attach(w *state.Window, timers *listeners.Manager) error {
	_, err := timers.AddListener(w, state.EventSync, func(payload any) {
		if snap, ok := payload.(state.Snapshot); ok {
			m.Offer(snap)
		}
	})
	return err
}

// Offer queues snap, replacing any snapshot not yet written.
func (m *SnapshotMirror) Offer(snap state.Snapshot) {
	for {
		select {
		case m.pending <- snap:
			return
		default:
		}
		select {
		case old := <-m.pending:
			if old.Version > snap.Version {
				snap = old
			}
		default:
		}
	}
}

// Run writes queued snapshots until ctx is done.
func (m *SnapshotMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-m.pending:
			m.save(ctx, snap)
		}
	}
}

func (m *SnapshotMirror) save(ctx context.Context, snap state.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.breaker.Do(func() error { return m.sink.Save(ctx, snap) })
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		m.logger.Debugw("snapshot sink unavailable, dropping snapshot", "version", snap.Version)
	case err != nil:
		m.logger.Warnw("failed to mirror snapshot", "version", snap.Version, "error", err)
	}
}

// Hydrate loads the last mirrored snapshot into the store. It reports whether
// one was found.
func Hydrate(ctx context.Context, sink ports.SnapshotSink, store *state.Store) (bool, error) {
	snap, ok, err := sink.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	store.Window().Load(snap)
	store.InitFromWindow()
	return true, nil
}
