package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
	"meetprobe/internal/testutils"
	"meetprobe/pkg/config"
	"meetprobe/pkg/retry"
)

type fixture struct {
	store     *state.Store
	bus       *events.Bus
	registry  *events.Registry
	room      *testutils.FakeRoom
	connector *testutils.FakeConnector
	resub     *Resubscriber
	client    *MeetingClient
	helpers   *Helpers
	clock     time.Time
}

func testResubscribeConfig() ResubscribeConfig {
	return ResubscribeConfig{
		MaxAttempts: 3,
		Backoff: retry.Config{
			Enabled:      true,
			InitialDelay: time.Second,
			MaxDelay:     8 * time.Second,
			Multiplier:   2,
		},
		ForcedDelay: time.Millisecond,
		ManualDelay: time.Millisecond,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    state.NewStore(nil),
		bus:      events.NewBus(16, nil),
		registry: events.NewRegistry(nil),
		room:     testutils.NewFakeRoom("test-room", "alice"),
		clock:    time.UnixMilli(1_700_000_000_000),
	}
	f.connector = &testutils.FakeConnector{Room: f.room, Confirm: true}

	board := status.NewBoard()
	f.resub = NewResubscriber(testResubscribeConfig(), f.store, board, nil, nil)
	f.resub.now = f.now
	f.client = NewMeetingClient(ClientConfig{
		ConnectTimeout: time.Second,
		AutoJoinDelay:  20 * time.Millisecond,
		PublishVideo:   true,
		PublishAudio:   true,
	}, f.resub, ClientDeps{
		Connector: f.connector,
		Store:     f.store,
		Board:     board,
		Bus:       f.bus,
		Emitter:   testutils.SyncEmitter{Bus: f.bus},
		Registry:  f.registry,
	})
	f.client.now = f.now
	f.helpers = NewHelpers(f.client, f.store, nil, nil)
	f.helpers.now = f.now

	f.registry.Register(events.TypeConnected, func(events.Event) {
		f.store.Connection.RecordConnected(f.now().UnixMilli())
		f.store.SyncToWindow()
		f.client.MarkConnected()
	}, "test")
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) session() config.SessionParams {
	return config.SessionParams{
		LiveKitURL:      "ws://localhost:7880",
		Token:           "token",
		RoomName:        "test-room",
		ParticipantName: "alice",
		Simulcast:       true,
	}
}

func (f *fixture) join(t *testing.T) {
	t.Helper()
	require.NoError(t, f.client.Join(context.Background(), f.session()))
	require.Equal(t, domain.ClientConnected, f.client.State())
}

func (f *fixture) addRemoteVideo(identity, sid string) *testutils.FakePublication {
	pub := &testutils.FakePublication{
		Sid:       sid,
		TrackKind: domain.TrackKindVideo,
		TrackSrc:  domain.SourceCamera,
		Width:     1280,
		Height:    720,
	}
	f.room.AddRemote(&testutils.FakeRemoteParticipant{
		Ident: identity,
		Sid:   "PA_" + identity,
		Pubs:  []*testutils.FakePublication{pub},
	})
	return pub
}
