package state

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/listeners"
)

func int64Ptr(v int64) *int64 { return &v }

func TestStore_Defaults(t *testing.T) {
	s := NewStore(nil)

	assert.True(t, s.Simulcast.Enabled())
	assert.Equal(t, domain.QualityHigh, s.Simulcast.CurrentQuality())
	assert.Empty(t, s.Simulcast.ReceivingLayers())
	assert.Empty(t, s.Subscription.Failures())
	assert.False(t, s.Connection.Established())
	_, ok := s.Connection.StartTime()
	assert.False(t, ok)
	_, ok = s.Bitrate.BaselineCapture()
	assert.False(t, ok)
}

func TestStore_ResetRestoresDefaultsAndKeepsIdentity(t *testing.T) {
	s := NewStore(nil)
	sub, mute, conn := s.Subscription, s.Mute, s.Connection

	s.Subscription.AddFailure(domain.SubscriptionFailure{TrackSID: "TR_1"})
	s.Subscription.SetPermissionDenied(true)
	s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventMuted})
	s.Simulcast.SetEnabled(false)
	require.NoError(t, s.Simulcast.SetCurrentQuality(domain.QualityLow))
	s.Connection.SetStartTime(100)
	s.Console.AddLog("LOG: hello")
	s.Errors.SetLast("boom")
	s.Bitrate.SetBaselineCapture(domain.BaselineCapture{Bytes: 10, Timestamp: 1})

	s.Reset()

	assert.Same(t, sub, s.Subscription)
	assert.Same(t, mute, s.Mute)
	assert.Same(t, conn, s.Connection)
	assert.Equal(t, 0, s.Subscription.FailureCount())
	assert.False(t, s.Subscription.PermissionDenied())
	assert.Equal(t, 0, s.Mute.EventCount())
	assert.True(t, s.Simulcast.Enabled())
	assert.Equal(t, domain.QualityHigh, s.Simulcast.CurrentQuality())
	_, ok := s.Connection.StartTime()
	assert.False(t, ok)
	assert.Empty(t, s.Console.Logs())
	assert.Empty(t, s.Errors.Last())
	_, ok = s.Bitrate.BaselineCapture()
	assert.False(t, ok)
}

func TestStore_ResetDoesNotSync(t *testing.T) {
	s := NewStore(nil)
	s.Errors.SetLast("boom")
	s.SyncToWindow()

	s.Reset()

	v, err := s.Window().Get(BindLastError)
	require.NoError(t, err)
	assert.Equal(t, "boom", v)
}

func TestSimulcast_RejectsUnknownQuality(t *testing.T) {
	s := NewStore(nil)
	err := s.Simulcast.SetCurrentQuality(domain.VideoQuality("ULTRA"))
	assert.ErrorIs(t, err, domain.ErrInvalidVideoQuality)
	assert.Equal(t, domain.QualityHigh, s.Simulcast.CurrentQuality())
}

func TestDataChannel_LatencyStats(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, domain.LatencyStats{}, s.DataChannel.LatencyStats())

	s.DataChannel.AddMessage(domain.DataMessage{Content: "no latency"})
	for _, l := range []int64{10, 20, 30} {
		s.DataChannel.AddMessage(domain.DataMessage{Latency: int64Ptr(l)})
	}

	stats := s.DataChannel.LatencyStats()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, int64(10), stats.Min)
	assert.Equal(t, int64(30), stats.Max)
	assert.InDelta(t, 20.0, stats.Average, 0.0001)
}

func TestMute_LastEventReflectsOrder(t *testing.T) {
	s := NewStore(nil)
	s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventMuted, TrackSID: "TR_a"})
	s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventUnmuted, TrackSID: "TR_a"})

	assert.Equal(t, 2, s.Mute.EventCount())
	last, ok := s.Mute.LastEvent()
	require.True(t, ok)
	assert.Equal(t, domain.MuteEventUnmuted, last.Type)
}

func TestConnection_RecordConnectedOnlyOnce(t *testing.T) {
	s := NewStore(nil)
	s.Connection.SetStartTime(1000)
	assert.True(t, s.Connection.RecordConnected(1250))
	assert.False(t, s.Connection.RecordConnected(9000))
	assert.True(t, s.Connection.Established())

	ms, ok := s.Connection.Time()
	require.True(t, ok)
	assert.Equal(t, int64(250), ms)
}

func TestConnection_RecordConnectedWithoutStartTimeIsZero(t *testing.T) {
	s := NewStore(nil)
	assert.True(t, s.Connection.RecordConnected(50))

	ms, ok := s.Connection.Time()
	require.True(t, ok)
	assert.Zero(t, ms)
}

func TestConnection_NewStartTimeRecordsItsOwnTime(t *testing.T) {
	s := NewStore(nil)
	s.Connection.SetStartTime(1000)
	require.True(t, s.Connection.RecordConnected(1250))
	s.Connection.SetEstablished(false)

	s.Connection.SetStartTime(20000)
	_, ok := s.Connection.Time()
	assert.False(t, ok)
	assert.Nil(t, s.SyncToWindow().Bindings[BindConnectionTime])
	assert.True(t, s.Connection.RecordConnected(20900))

	ms, ok := s.Connection.Time()
	require.True(t, ok)
	assert.Equal(t, int64(900), ms)
	assert.Equal(t, int64(900), s.SyncToWindow().Bindings[BindConnectionTime])
}

func TestConsole_CapsCapture(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < maxConsoleLines+10; i++ {
		s.Console.AddLog("LOG: line")
	}
	s.Console.AddLog("LOG: last")

	logs := s.Console.Logs()
	assert.Len(t, logs, maxConsoleLines)
	assert.Equal(t, "LOG: last", logs[len(logs)-1])
}

func TestConsole_LogsAsString(t *testing.T) {
	s := NewStore(nil)
	s.Console.AddLog("LOG: a")
	s.Console.AddLog("WARN: b")
	assert.Equal(t, "LOG: a\nWARN: b", s.Console.LogsAsString())
}

func TestSyncToWindow_PublishesEveryBinding(t *testing.T) {
	s := NewStore(nil)
	snap := s.SyncToWindow()

	for _, name := range BindingNames() {
		_, ok := snap.Bindings[name]
		assert.True(t, ok, name)
	}
	assert.Nil(t, snap.Bindings[BindLastError])
	assert.Nil(t, snap.Bindings[BindConnectionStartTime])
	assert.Nil(t, snap.Bindings[BindBaselineVideoBytesCapture])
	assert.Equal(t, []domain.MuteEvent{}, snap.Bindings[BindMuteEvents])
	assert.Equal(t, uint64(1), snap.Version)
}

func TestSyncToWindow_PublishesCopies(t *testing.T) {
	s := NewStore(nil)
	s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventMuted})
	snap := s.SyncToWindow()

	s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventUnmuted})

	assert.Len(t, snap.Bindings[BindMuteEvents], 1)
	v, err := s.Window().Get(BindMuteEvents)
	require.NoError(t, err)
	assert.Len(t, v, 1)
}

func TestSyncThenInit_RoundTrips(t *testing.T) {
	s := NewStore(nil)
	s.Subscription.AddFailure(domain.SubscriptionFailure{TrackSID: "TR_1", ParticipantIdentity: "bob", Error: "denied"})
	s.Subscription.SetLastError("denied")
	s.Simulcast.SetReceivingLayer("bob", domain.LayerInfo{TrackSID: "TR_2", Quality: domain.QualityMedium})
	require.NoError(t, s.Simulcast.SetCurrentQuality(domain.QualityLow))
	s.Connection.SetStartTime(10)
	s.Connection.RecordConnected(30)
	s.Bitrate.SetBaselineCapture(domain.BaselineCapture{Bytes: 4096, Timestamp: 99})
	s.SyncToWindow()

	s.Reset()
	s.InitFromWindow()

	assert.Equal(t, 1, s.Subscription.FailureCount())
	assert.Equal(t, "denied", s.Subscription.LastError())
	assert.Equal(t, domain.QualityLow, s.Simulcast.CurrentQuality())
	layer, ok := s.Simulcast.ReceivingLayer("bob")
	require.True(t, ok)
	assert.Equal(t, "TR_2", layer.TrackSID)
	ms, ok := s.Connection.Time()
	require.True(t, ok)
	assert.Equal(t, int64(20), ms)
	base, ok := s.Bitrate.BaselineCapture()
	require.True(t, ok)
	assert.Equal(t, uint64(4096), base.Bytes)
}

func TestSyncToWindow_ConcurrentSyncsPublishLatest(t *testing.T) {
	s := NewStore(nil)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Mute.AddEvent(domain.MuteEvent{Type: domain.MuteEventMuted})
			s.SyncToWindow()
		}()
	}
	wg.Wait()

	v, err := s.Window().Get(BindMuteEvents)
	require.NoError(t, err)
	assert.Len(t, v, n)
	assert.Equal(t, uint64(n), s.Window().Version())
}

func TestInitFromWindow_AcceptsAnyNumericKind(t *testing.T) {
	s := NewStore(nil)
	s.Window().Set(BindConnectionStartTime, 1000)
	s.Window().Set(BindConnectionTime, float64(250))

	s.InitFromWindow()

	start, ok := s.Connection.StartTime()
	require.True(t, ok)
	assert.Equal(t, int64(1000), start)
	ms, ok := s.Connection.Time()
	require.True(t, ok)
	assert.Equal(t, int64(250), ms)
}

func TestInitFromWindow_SkipsUndefinedBindings(t *testing.T) {
	s := NewStore(nil)
	s.Errors.SetLast("kept")
	s.Window().Set(BindScreenShareActive, true)

	s.InitFromWindow()

	assert.True(t, s.ScreenShare.Active())
	assert.Equal(t, "kept", s.Errors.Last())
}

func TestSnapshotJSON_HydratesTypedStore(t *testing.T) {
	src := NewStore(nil)
	src.DataChannel.AddMessage(domain.DataMessage{Content: "hi", From: "alice", Latency: int64Ptr(12)})
	src.Metadata.SetRoomListening(true)
	src.Errors.SetLast("late")
	data, err := json.Marshal(src.SyncToWindow())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Nil(t, snap.Bindings[BindConnectionTime])

	dst := NewStore(nil)
	dst.Window().Load(snap)
	dst.InitFromWindow()

	msgs := dst.DataChannel.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0].From)
	assert.Equal(t, int64(12), *msgs[0].Latency)
	assert.True(t, dst.Metadata.RoomListening())
	assert.Equal(t, "late", dst.Errors.Last())
	assert.Equal(t, snap.Version, dst.Window().Version())
}

func TestWindow_GetUnknownBinding(t *testing.T) {
	w := NewWindow()
	_, err := w.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownBinding)
}

func TestWindow_SyncListeners(t *testing.T) {
	s := NewStore(nil)
	mgr := listeners.NewManager(nil)

	var versions []uint64
	_, err := mgr.AddListener(s.Window(), EventSync, func(payload any) {
		versions = append(versions, payload.(Snapshot).Version)
	})
	require.NoError(t, err)

	s.SyncToWindow()
	s.SyncToWindow()
	assert.Equal(t, []uint64{1, 2}, versions)

	_, err = s.Window().AddListener("other", func(any) {})
	assert.Error(t, err)

	mgr.Cleanup()
	assert.Equal(t, 0, s.Window().ListenerCount())
	s.SyncToWindow()
	assert.Len(t, versions, 2)
}
