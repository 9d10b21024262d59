package ports

import (
	"context"

	"meetprobe/internal/core/state"
)

// SnapshotSink mirrors published window snapshots outside the process.
// It is a convenience for remote drivers, never a source of truth.
type SnapshotSink interface {
	Save(ctx context.Context, snap state.Snapshot) error
	// Load returns the last saved snapshot. ok is false when none exists.
	Load(ctx context.Context) (snap state.Snapshot, ok bool, err error)
	Ping(ctx context.Context) error
	Close() error
}
