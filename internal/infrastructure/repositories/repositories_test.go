package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/state"
	"meetprobe/internal/infrastructure/repositories/memory"
	"meetprobe/pkg/circuitbreaker"
	"meetprobe/pkg/config"
	"meetprobe/pkg/listeners"
)

func TestSnapshotMirror_WritesLatestSnapshot(t *testing.T) {
	sink := memory.NewMemorySnapshotSink()
	store := state.NewStore(nil)
	timers := listeners.NewManager(nil)
	defer timers.Cleanup()

	mirror := NewSnapshotMirror(sink, time.Second, nil)
	require.NoError(t, mirror.Attach(store.Window(), timers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mirror.Run(ctx)

	store.Errors.SetLast("first")
	store.SyncToWindow()
	store.Errors.SetLast("second")
	last := store.SyncToWindow()

	assert.Eventually(t, func() bool {
		snap, ok, _ := sink.Load(context.Background())
		return ok && snap.Version == last.Version
	}, time.Second, 5*time.Millisecond)

	snap, _, err := sink.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", snap.Bindings[state.BindLastError])
}

func TestSnapshotMirror_OfferKeepsNewest(t *testing.T) {
	mirror := NewSnapshotMirror(memory.NewMemorySnapshotSink(), 0, nil)

	mirror.Offer(state.Snapshot{Version: 3})
	mirror.Offer(state.Snapshot{Version: 1})
	mirror.Offer(state.Snapshot{Version: 2})

	got := <-mirror.pending
	assert.Equal(t, uint64(3), got.Version)
	assert.Empty(t, mirror.pending)
}

type failingSink struct {
	memory.MemorySnapshotSink
	saves int
}

func (s *failingSink) Save(context.Context, state.Snapshot) error {
	s.saves++
	return errors.New("connection refused")
}

func TestSnapshotMirror_BreakerStopsWritesToFailingSink(t *testing.T) {
	sink := &failingSink{}
	mirror := NewSnapshotMirror(sink, time.Second, nil)

	for v := uint64(1); v <= 5; v++ {
		mirror.save(context.Background(), state.Snapshot{Version: v})
	}

	assert.Equal(t, circuitbreaker.DefaultConfig().FailureThreshold, sink.saves)
	assert.Equal(t, circuitbreaker.StateOpen, mirror.Breaker().State())
}

func TestSnapshotMirror_DetachOnCleanup(t *testing.T) {
	sink := memory.NewMemorySnapshotSink()
	store := state.NewStore(nil)
	timers := listeners.NewManager(nil)

	mirror := NewSnapshotMirror(sink, time.Second, nil)
	require.NoError(t, mirror.Attach(store.Window(), timers))
	assert.Equal(t, 1, store.Window().ListenerCount())

	timers.Cleanup()
	assert.Equal(t, 0, store.Window().ListenerCount())
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewMemorySnapshotSink()

	ok, err := Hydrate(ctx, sink, state.NewStore(nil))
	require.NoError(t, err)
	assert.False(t, ok)

	src := state.NewStore(nil)
	src.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventMuted, TrackKind: domain.TrackKindAudio, ParticipantIdentity: "bob"})
	src.Simulcast.SetEnabled(false)
	require.NoError(t, sink.Save(ctx, src.SyncToWindow()))

	dst := state.NewStore(nil)
	ok, err = Hydrate(ctx, sink, dst)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, src.Mute.Events(), dst.Mute.Events())
	assert.False(t, dst.Simulcast.Enabled())
	assert.Equal(t, src.Window().Version(), dst.Window().Version())
}

func TestRepositoryFactory_MemoryWhenDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Publish.Enabled = false

	f := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	defer f.Close()

	assert.False(t, f.UsesRedis())
	assert.IsType(t, &memory.MemorySnapshotSink{}, f.CreateSnapshotSink())
	assert.NoError(t, f.HealthCheck(context.Background()))
}

func TestRepositoryFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Publish.Enabled = true
	cfg.Publish.Address = "127.0.0.1:1"

	f := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	defer f.Close()

	assert.False(t, f.UsesRedis())
	assert.Nil(t, f.RedisClient())
	assert.IsType(t, &memory.MemorySnapshotSink{}, f.CreateSnapshotSink())
}
