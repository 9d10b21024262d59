package room

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
)

type lifecycleStub struct {
	mu           sync.Mutex
	connected    int
	disconnected []string
}

func (l *lifecycleStub) MarkConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected++
	return true
}

func (l *lifecycleStub) HandleDisconnection(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected = append(l.disconnected, reason)
}

type failureCall struct {
	sid, identity string
	kind          domain.AttemptType
}

type resubStub struct {
	mu        sync.Mutex
	forced    []string
	manual    []string
	arrived   []string
	forgotten []string
	failures  []failureCall
}

func (r *resubStub) ScheduleForced(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forced = append(r.forced, identity)
}

func (r *resubStub) ScheduleManual(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manual = append(r.manual, identity)
}

func (r *resubStub) TrackArrived(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrived = append(r.arrived, sid)
}

func (r *resubStub) ForgetParticipant(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, identity)
}

func (r *resubStub) RecordFailure(sid, identity string, _ error, kind domain.AttemptType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failureCall{sid: sid, identity: identity, kind: kind})
}

type countingMetrics struct {
	mu        sync.Mutex
	events    map[string]int
	latencies []int64
	connect   []time.Duration
	data      map[string]int
	attempts  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{events: map[string]int{}, data: map[string]int{}, attempts: map[string]int{}}
}

func (m *countingMetrics) RecordEvent(t string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[t]++
}

func (m *countingMetrics) RecordSubscriptionAttempt(attemptType string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attemptType]++
}

func (m *countingMetrics) RecordDataMessage(direction string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[direction]++
}

func (m *countingMetrics) ObserveDataLatency(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, ms)
}

func (m *countingMetrics) ObserveConnectionTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connect = append(m.connect, d)
}

func (m *countingMetrics) SetClientState(string) {}
func (m *countingMetrics) RecordSnapshotSync()   {}

type harness struct {
	store     *state.Store
	bus       *events.Bus
	lifecycle *lifecycleStub
	resub     *resubStub
	metrics   *countingMetrics
	board     *status.Board
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     state.NewStore(nil),
		bus:       events.NewBus(8, nil),
		lifecycle: &lifecycleStub{},
		resub:     &resubStub{},
		metrics:   newCountingMetrics(),
		board:     status.NewBoard(),
		now:       time.UnixMilli(1_700_000_010_000),
	}
	reg := events.NewRegistry(nil)
	reg.SetRoom(h.bus)
	RegisterAll(reg, Deps{
		Store:        h.store,
		Board:        h.board,
		Client:       h.lifecycle,
		Resubscriber: h.resub,
		Metrics:      h.metrics,
		Now:          func() time.Time { return h.now },
	})
	reg.AttachAll()
	return h
}

func (h *harness) emit(ev events.Event) { h.bus.Dispatch(ev) }

var (
	bob       = events.Participant{Identity: "bob", SID: "PA_bob"}
	bobVideo  = events.Publication{SID: "TR_bob_v", Kind: "video", Width: 1280, Height: 720}
	bobAudio  = events.Publication{SID: "TR_bob_a", Kind: "audio"}
	localUser = events.Participant{Identity: "alice", Local: true}
)

func TestConnectionHandlers_ConnectedRecordsTiming(t *testing.T) {
	h := newHarness(t)
	h.store.Connection.SetStartTime(h.now.UnixMilli() - 250)

	h.emit(events.Connected{Verified: true})

	assert.True(t, h.store.Connection.Established())
	assert.True(t, h.store.Connection.RealWebRTCVerified())
	ms, ok := h.store.Connection.Time()
	require.True(t, ok)
	assert.Equal(t, int64(250), ms)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, h.metrics.connect)
	assert.Equal(t, 1, h.lifecycle.connected)
	assert.Equal(t, 1, h.metrics.events["connected"])

	v, err := h.store.Window().Get("connectionTime")
	require.NoError(t, err)
	assert.Equal(t, int64(250), v)
}

func TestConnectionHandlers_SecondConnectedKeepsFirstTiming(t *testing.T) {
	h := newHarness(t)
	h.store.Connection.SetStartTime(h.now.UnixMilli() - 100)

	h.emit(events.Connected{})
	h.now = h.now.Add(time.Second)
	h.emit(events.Connected{})

	ms, _ := h.store.Connection.Time()
	assert.Equal(t, int64(100), ms)
	assert.Len(t, h.metrics.connect, 1)
	assert.False(t, h.store.Connection.RealWebRTCVerified())
}

func TestConnectionHandlers_DisconnectedTearsDown(t *testing.T) {
	h := newHarness(t)

	h.emit(events.Disconnected{Reason: "server shutdown"})

	assert.Equal(t, []string{"server shutdown"}, h.lifecycle.disconnected)
}

func TestConnectionHandlers_ErrorsBecomeLastError(t *testing.T) {
	h := newHarness(t)

	h.emit(events.MediaDevicesError{Err: errors.New("camera: device busy")})
	assert.Equal(t, "camera: device busy", h.store.Errors.Last())

	h.emit(events.EngineError{Err: errors.New("ice failed")})
	assert.Equal(t, "ice failed", h.store.Errors.Last())

	v, err := h.store.Window().Get("lastError")
	require.NoError(t, err)
	assert.Equal(t, "ice failed", v)
}

func TestTrackHandlers_SubscribedVideoSetsLayer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Simulcast.SetCurrentQuality(domain.QualityMedium))

	h.emit(events.TrackSubscribed{Publication: bobVideo, Participant: bob})

	layer, ok := h.store.Simulcast.ReceivingLayer("bob")
	require.True(t, ok)
	assert.Equal(t, "TR_bob_v", layer.TrackSID)
	assert.Equal(t, domain.QualityMedium, layer.Quality)
	assert.Equal(t, 1280, layer.Width)
	assert.Equal(t, h.now.UnixMilli(), layer.Timestamp)
	assert.Equal(t, []string{"TR_bob_v"}, h.resub.arrived)

	h.emit(events.TrackUnsubscribed{Publication: bobVideo, Participant: bob})
	_, ok = h.store.Simulcast.ReceivingLayer("bob")
	assert.False(t, ok)
}

func TestTrackHandlers_SubscribedAudioHasNoLayer(t *testing.T) {
	h := newHarness(t)

	h.emit(events.TrackSubscribed{Publication: bobAudio, Participant: bob})

	_, ok := h.store.Simulcast.ReceivingLayer("bob")
	assert.False(t, ok)
	assert.Equal(t, []string{"TR_bob_a"}, h.resub.arrived)
}

func TestTrackHandlers_PublishedRemoteVideoForcesSubscription(t *testing.T) {
	h := newHarness(t)

	h.emit(events.TrackPublished{Publication: bobVideo, Participant: bob})
	h.emit(events.TrackPublished{Publication: bobAudio, Participant: bob})
	h.emit(events.TrackPublished{Publication: bobVideo, Participant: localUser})

	assert.Equal(t, []string{"bob"}, h.resub.forced)
}

func TestTrackHandlers_SubscriptionFailedIsRecorded(t *testing.T) {
	h := newHarness(t)

	h.emit(events.TrackSubscriptionFailed{TrackSID: "TR_x", Participant: bob, Err: errors.New("denied")})

	require.Len(t, h.resub.failures, 1)
	assert.Equal(t, failureCall{sid: "TR_x", identity: "bob", kind: domain.AttemptEvent}, h.resub.failures[0])
	assert.Equal(t, 1, h.metrics.attempts["event"])
}

func TestTrackHandlers_MuteEventsInOrder(t *testing.T) {
	h := newHarness(t)

	h.emit(events.TrackMuted{Publication: bobAudio, Participant: bob})
	h.emit(events.TrackUnmuted{Publication: bobAudio, Participant: bob})
	h.emit(events.TrackMuted{Publication: events.Publication{SID: "TR_local", Kind: "video"}, Participant: localUser})

	got := h.store.Mute.Events()
	require.Len(t, got, 3)
	assert.Equal(t, domain.MuteEventMuted, got[0].Type)
	assert.Equal(t, domain.TrackKindAudio, got[0].TrackKind)
	assert.Equal(t, "bob", got[0].ParticipantIdentity)
	assert.Equal(t, domain.MuteEventUnmuted, got[1].Type)
	assert.Equal(t, "alice", got[2].ParticipantIdentity)
	assert.Equal(t, domain.TrackKindVideo, got[2].TrackKind)
}

func TestTrackHandlers_StreamStateChanges(t *testing.T) {
	h := newHarness(t)

	h.emit(events.TrackStreamStateChanged{Publication: bobVideo, Participant: bob, State: "paused"})
	h.emit(events.TrackStreamStateChanged{Publication: bobVideo, Participant: bob, State: "active"})

	got := h.store.TrackStream.Events()
	require.Len(t, got, 2)
	assert.Equal(t, domain.StreamStatePaused, got[0].StreamState)
	assert.Equal(t, domain.StreamStateActive, got[1].StreamState)
	assert.Equal(t, "TR_bob_v", got[1].TrackSID)
}

func TestParticipantHandlers(t *testing.T) {
	h := newHarness(t)
	h.store.Simulcast.SetReceivingLayer("bob", domain.LayerInfo{TrackSID: "TR_bob_v"})

	h.emit(events.ParticipantConnected{Participant: bob})
	assert.Equal(t, []string{"bob"}, h.resub.manual)

	h.emit(events.ParticipantDisconnected{Participant: bob})
	assert.Equal(t, []string{"bob"}, h.resub.forgotten)
	_, ok := h.store.Simulcast.ReceivingLayer("bob")
	assert.False(t, ok)
}

func TestDataHandlers_PlainMessage(t *testing.T) {
	h := newHarness(t)

	h.emit(events.DataReceived{Payload: []byte("hello"), Participant: bob, Kind: "reliable", Topic: "chat"})

	got := h.store.DataChannel.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, "bob", got[0].From)
	assert.Equal(t, "reliable", got[0].Kind)
	assert.Equal(t, "chat", got[0].Topic)
	assert.Equal(t, 5, got[0].Size)
	assert.Nil(t, got[0].Latency)
	assert.Equal(t, 1, h.metrics.data["received"])
}

func TestDataHandlers_TimestampedMessageYieldsLatency(t *testing.T) {
	h := newHarness(t)
	sent := h.now.UnixMilli() - 42
	payload := []byte(`{"content":"ping","timestamp":` + itoa(sent) + `}`)

	h.emit(events.DataReceived{Payload: payload, Participant: bob})

	got := h.store.DataChannel.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "ping", got[0].Content)
	require.NotNil(t, got[0].Latency)
	assert.Equal(t, int64(42), *got[0].Latency)
	require.NotNil(t, got[0].SentTimestamp)
	assert.Equal(t, sent, *got[0].SentTimestamp)
	assert.Equal(t, []int64{42}, h.metrics.latencies)

	stats := h.store.DataChannel.LatencyStats()
	assert.Equal(t, 1, stats.Count)
}

func TestDataHandlers_JSONWithoutTimestampIsPlain(t *testing.T) {
	h := newHarness(t)

	h.emit(events.DataReceived{Payload: []byte(`{"content":"x"}`), Participant: events.Participant{}})

	got := h.store.DataChannel.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, `{"content":"x"}`, got[0].Content)
	assert.Equal(t, "unknown", got[0].From)
	assert.Nil(t, got[0].Latency)
}

func TestMetadataHandlers(t *testing.T) {
	h := newHarness(t)

	h.emit(events.RoomMetadataChanged{Metadata: "topic=standup"})
	h.emit(events.ParticipantMetadataChanged{
		Participant:  events.Participant{Identity: "bob", Metadata: "hand=up"},
		PrevMetadata: "hand=down",
	})

	rooms := h.store.Metadata.RoomEvents()
	require.Len(t, rooms, 1)
	assert.Equal(t, "topic=standup", rooms[0].Metadata)

	parts := h.store.Metadata.ParticipantEvents()
	require.Len(t, parts, 1)
	assert.Equal(t, "bob", parts[0].ParticipantIdentity)
	assert.Equal(t, "hand=up", parts[0].Metadata)
	assert.Equal(t, "hand=down", parts[0].PrevMetadata)
	assert.Equal(t, 1, h.metrics.events["participantMetadataChanged"])
}

func TestRegisterAll_DetachStopsRecording(t *testing.T) {
	store := state.NewStore(nil)
	bus := events.NewBus(8, nil)
	reg := events.NewRegistry(nil)
	reg.SetRoom(bus)
	RegisterAll(reg, Deps{Store: store})
	reg.AttachAll()
	assert.Equal(t, 1, bus.HandlerCount(events.TypeDataReceived))

	reg.DetachAll()
	bus.Dispatch(events.DataReceived{Payload: []byte("late"), Participant: bob})

	assert.Empty(t, store.DataChannel.Messages())
	assert.Equal(t, 0, bus.HandlerCount(events.TypeConnected))
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
