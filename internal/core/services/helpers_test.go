package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/testutils"
)

func testRemoteWithoutVideo(identity string) *testutils.FakeRemoteParticipant {
	return &testutils.FakeRemoteParticipant{
		Ident: identity,
		Pubs:  []*testutils.FakePublication{{Sid: "TR_" + identity + "_audio", TrackKind: domain.TrackKindAudio}},
	}
}

func TestHelpers_SendDataWithoutRoom(t *testing.T) {
	f := newFixture(t)

	err := f.helpers.SendDataMessage(context.Background(), "hello", true, nil)

	assert.ErrorIs(t, err, domain.ErrNoActiveRoom)
	assert.True(t, f.helpers.IsPublishingBlocked())
	assert.Equal(t, "No active room connection", f.helpers.LastDataChannelError())
}

func TestHelpers_SendDataForbiddenDoesNotPublish(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	f.room.Local.CanPublish = false

	err := f.helpers.SendDataMessage(context.Background(), "hello", true, nil)

	assert.ErrorIs(t, err, domain.ErrPublishDataForbidden)
	assert.Zero(t, f.room.Local.PublishCount())
	assert.True(t, f.helpers.IsPublishingBlocked())
	assert.Zero(t, f.helpers.SentMessageCount())
}

func TestHelpers_SendDataRecordsSentMessage(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	err := f.helpers.SendDataMessage(context.Background(), "hello", false, []string{"bob"})
	require.NoError(t, err)

	require.Equal(t, 1, f.room.Local.PublishCount())
	published := f.room.Local.Published[0]
	assert.Equal(t, []byte("hello"), published.Payload)
	assert.False(t, published.Opts.Reliable)
	assert.Equal(t, []string{"bob"}, published.Opts.DestinationIdentities)

	sent := f.store.DataChannel.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Content)
	assert.Equal(t, 5, sent[0].Size)
	assert.Equal(t, f.clock.UnixMilli(), sent[0].Timestamp)
	assert.False(t, f.helpers.IsPublishingBlocked())
}

func TestHelpers_SendDataPermissionErrorBlocks(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	f.room.Local.PublishErr = errors.New("publishing data not allowed")

	err := f.helpers.SendDataMessage(context.Background(), "hello", true, nil)

	require.Error(t, err)
	assert.True(t, f.helpers.IsPublishingBlocked())
	assert.Equal(t, "publishing data not allowed", f.helpers.LastDataChannelError())
	assert.Zero(t, f.helpers.SentMessageCount())
}

func TestHelpers_SendDataTransportErrorDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	f.room.Local.PublishErr = errors.New("data channel closed")

	require.Error(t, f.helpers.SendDataMessage(context.Background(), "hello", true, nil))
	assert.False(t, f.helpers.IsPublishingBlocked())
	assert.Equal(t, "data channel closed", f.helpers.LastDataChannelError())
}

func TestHelpers_SendSizedAndTimestampedMessages(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	ctx := context.Background()

	require.NoError(t, f.helpers.SendDataMessageOfSize(ctx, 1024, true))
	require.NoError(t, f.helpers.SendTimestampedDataMessage(ctx, "ping", true))

	require.Equal(t, 2, f.room.Local.PublishCount())
	assert.Len(t, f.room.Local.Published[0].Payload, 1024)

	var env struct {
		Content   string `json:"content"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(f.room.Local.Published[1].Payload, &env))
	assert.Equal(t, "ping", env.Content)
	assert.Equal(t, f.clock.UnixMilli(), env.Timestamp)
}

func TestHelpers_ReceivedMessageQueries(t *testing.T) {
	f := newFixture(t)
	f.store.DataChannel.AddMessage(domain.DataMessage{Content: "hi", From: "bob"})
	f.store.DataChannel.AddMessage(domain.DataMessage{Content: "yo", From: "carol"})
	f.store.DataChannel.AddMessage(domain.DataMessage{Content: "hi", From: "carol"})

	msg, ok := f.helpers.FindReceivedMessage("hi", "carol")
	require.True(t, ok)
	assert.Equal(t, "carol", msg.From)
	assert.True(t, f.helpers.HasReceivedMessage("yo", ""))
	assert.False(t, f.helpers.HasReceivedMessage("yo", "bob"))
	assert.Len(t, f.helpers.MessagesFromSender("carol"), 2)
	assert.Empty(t, f.helpers.MessagesFromSender("dave"))

	f.helpers.ClearDataChannelState()
	assert.Empty(t, f.helpers.ReceivedMessages())
}

func TestKbps(t *testing.T) {
	assert.Equal(t, int64(0), kbps(1000, 0, 0))
	assert.Equal(t, int64(0), kbps(1000, 0, -5))
	assert.Equal(t, int64(8), kbps(1000, 0, 1000))
	assert.Equal(t, int64(400), kbps(150_000, 100_000, 1000))
	assert.Equal(t, int64(1), kbps(125, 0, 1000))
}

func TestHelpers_BitrateFromBaseline(t *testing.T) {
	f := newFixture(t)

	_, err := f.helpers.CaptureBaseline()
	assert.ErrorIs(t, err, domain.ErrNoRoom)
	assert.Zero(t, f.helpers.CurrentBitrateKbps())

	f.join(t)
	f.room.Local.AddBytesSent(10_000)
	baseline, err := f.helpers.CaptureBaseline()
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), baseline.Bytes)

	f.room.Local.AddBytesSent(250_000)
	f.advance(2 * time.Second)
	assert.Equal(t, int64(1000), f.helpers.CurrentBitrateKbps())
}

func TestHelpers_CaptureBaselineNeedsVideo(t *testing.T) {
	f := newFixture(t)
	f.client.cfg.PublishVideo = false
	f.join(t)

	_, err := f.helpers.CaptureBaseline()
	assert.ErrorIs(t, err, domain.ErrTrackNotPublished)
}

func TestHelpers_MuteStateDefaults(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.helpers.IsAudioMuted())
	assert.True(t, f.helpers.IsVideoMuted())
	assert.ErrorIs(t, f.helpers.MuteAudio(), domain.ErrNoRoom)

	f.join(t)
	assert.False(t, f.helpers.IsAudioMuted())
	require.NoError(t, f.helpers.MuteVideo())
	assert.True(t, f.helpers.IsVideoMuted())
	require.NoError(t, f.helpers.UnmuteVideo())
	assert.False(t, f.helpers.IsVideoMuted())
}

func TestHelpers_RemoteMuteState(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pub := f.addRemoteVideo("bob", "TR_bob")
	pub.Muted = true

	ts, ok := f.helpers.RemoteTrackMuteState("bob", domain.TrackKindVideo)
	require.True(t, ok)
	assert.True(t, ts.Muted)
	assert.Equal(t, "TR_bob", ts.SID)

	_, ok = f.helpers.RemoteTrackMuteState("bob", domain.TrackKindAudio)
	assert.False(t, ok)
	_, ok = f.helpers.RemoteTrackMuteState("nobody", domain.TrackKindVideo)
	assert.False(t, ok)
}

func TestHelpers_SetVideoSubscribedErrors(t *testing.T) {
	f := newFixture(t)

	err := f.helpers.SetVideoSubscribed("bob", true)
	assert.ErrorIs(t, err, domain.ErrNoRoom)
	assert.Equal(t, "No room connected", f.helpers.LastSubscriptionError())

	f.join(t)
	err = f.helpers.SetVideoSubscribed("bob", true)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	f.room.AddRemote(testRemoteWithoutVideo("bob"))
	err = f.helpers.SetVideoSubscribed("bob", true)
	assert.ErrorIs(t, err, domain.ErrVideoTrackNotFound)
	assert.Contains(t, f.helpers.LastSubscriptionError(), "bob")
}

func TestHelpers_SetVideoSubscribedTogglesAndClearsError(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pub := f.addRemoteVideo("bob", "TR_bob")
	f.store.Subscription.SetLastError("stale")

	require.NoError(t, f.helpers.SetVideoSubscribed("bob", true))
	assert.True(t, f.helpers.IsVideoSubscribed("bob"))
	assert.Empty(t, f.helpers.LastSubscriptionError())

	require.NoError(t, f.helpers.SetVideoSubscribed("bob", false))
	assert.False(t, pub.IsSubscribed())

	pub.SubscribeErr = errors.New("subscription rejected")
	err := f.helpers.SetVideoSubscribed("bob", true)
	require.Error(t, err)
	assert.Equal(t, "subscription rejected", f.helpers.LastSubscriptionError())
}

func TestHelpers_TrackStreamState(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pub := f.addRemoteVideo("bob", "TR_bob")

	st, ok := f.helpers.TrackStreamState("bob")
	require.True(t, ok)
	assert.Equal(t, domain.StreamStateUnsubscribed, st)

	pub.Subscribed = true
	st, _ = f.helpers.TrackStreamState("bob")
	assert.Equal(t, domain.StreamStatePending, st)

	pub.Track = true
	st, _ = f.helpers.TrackStreamState("bob")
	assert.Equal(t, domain.StreamStateActive, st)

	f.store.TrackStream.AddEvent(domain.TrackStreamEvent{
		TrackSID:            "TR_bob",
		ParticipantIdentity: "bob",
		StreamState:         domain.StreamStatePaused,
	})
	st, _ = f.helpers.TrackStreamState("bob")
	assert.Equal(t, domain.StreamStatePaused, st)

	f.helpers.ClearDynacastState()
	st, _ = f.helpers.TrackStreamState("bob")
	assert.Equal(t, domain.StreamStateActive, st)

	_, ok = f.helpers.TrackStreamState("nobody")
	assert.False(t, ok)
}

func TestHelpers_SubscriberVideoStats(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pub := f.addRemoteVideo("bob", "TR_bob")

	assert.Nil(t, f.helpers.SubscriberVideoStats("bob"))
	assert.False(t, f.helpers.IsReceivingVideoFrom("bob"))

	pub.Subscribed, pub.Track = true, true
	pub.Stats = &domain.ReceiveStats{Bytes: 4096, Packets: 12, Width: 640, Height: 360}

	stats := f.helpers.SubscriberVideoStats("bob")
	require.NotNil(t, stats)
	assert.True(t, stats.IsPlaying)
	assert.Equal(t, 640, stats.FrameWidth)
	assert.Equal(t, 360, stats.FrameHeight)
	assert.True(t, f.helpers.IsReceivingVideoFrom("bob"))
	assert.Equal(t, 640, f.helpers.RemoteVideoTrackWidth("bob"))
}

func TestHelpers_VideoQualityPreference(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pub := f.addRemoteVideo("bob", "TR_bob")
	pub.Subscribed = true
	other := f.addRemoteVideo("carol", "TR_carol")

	require.NoError(t, f.helpers.SetVideoQualityPreference(domain.QualityLow))
	assert.Equal(t, domain.QualityLow, f.helpers.VideoQualityPreference())
	assert.Equal(t, domain.QualityLow, pub.Quality)
	assert.Empty(t, other.Quality)

	err := f.helpers.SetVideoQualityPreference(domain.VideoQuality("ULTRA"))
	assert.ErrorIs(t, err, domain.ErrInvalidVideoQuality)
	assert.Equal(t, domain.QualityLow, f.helpers.VideoQualityPreference())
}

func TestHelpers_SimulcastToggle(t *testing.T) {
	f := newFixture(t)

	f.helpers.DisableSimulcast()
	assert.False(t, f.helpers.IsSimulcastEnabled())
	assert.False(t, f.store.Simulcast.Enabled())

	f.helpers.EnableSimulcast()
	assert.True(t, f.helpers.IsSimulcastEnabled())
}

func TestHelpers_ScreenShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "No error captured", f.helpers.LastScreenShareError())
	assert.ErrorIs(t, f.helpers.StartScreenShare(ctx), domain.ErrNoRoom)

	f.join(t)
	require.NoError(t, f.helpers.StartScreenShare(ctx))
	assert.True(t, f.helpers.IsScreenSharing())
	require.NoError(t, f.helpers.StopScreenShare(ctx))
	assert.False(t, f.helpers.IsScreenSharing())

	f.room.Local.ScreenShareErr = errors.New("NotAllowedError: Permission denied")
	require.Error(t, f.helpers.StartScreenShare(ctx))
	assert.True(t, f.helpers.IsScreenSharePermissionDenied())
	assert.False(t, f.helpers.IsScreenSharing())
	assert.Equal(t, "NotAllowedError: Permission denied", f.helpers.LastScreenShareError())
}

func TestHelpers_Metadata(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.helpers.RoomMetadata())
	assert.ErrorIs(t, f.helpers.SetLocalMetadata("x"), domain.ErrNoRoom)

	f.join(t)
	f.room.Meta = `{"topic":"standup"}`
	f.addRemoteVideo("bob", "TR_bob")
	f.room.Remotes[0].Meta = "bob-meta"

	require.NoError(t, f.helpers.SetLocalMetadata("alice-meta"))
	assert.Equal(t, `{"topic":"standup"}`, f.helpers.RoomMetadata())
	assert.Equal(t, "alice-meta", f.helpers.LocalMetadata())
	assert.Equal(t, "bob-meta", f.helpers.ParticipantMetadata("bob"))
	assert.Equal(t, "alice-meta", f.helpers.ParticipantMetadata("alice"))
	assert.Empty(t, f.helpers.ParticipantMetadata("nobody"))

	f.store.Metadata.AddRoomEvent(domain.RoomMetadataEvent{Metadata: "v1"})
	f.store.Metadata.AddParticipantEvent(domain.ParticipantMetadataEvent{ParticipantIdentity: "bob", Metadata: "v2"})
	assert.True(t, f.helpers.HasRoomEventWithValue("v1"))
	assert.False(t, f.helpers.HasRoomEventWithValue("v2"))
	assert.True(t, f.helpers.HasParticipantEventWithValue("bob", "v2"))
	assert.False(t, f.helpers.HasParticipantEventWithValue("carol", "v2"))

	f.helpers.StartListeningRoom()
	assert.True(t, f.store.Metadata.RoomListening())
	f.helpers.ClearMetadataEvents()
	assert.Empty(t, f.helpers.RoomMetadataEvents())
	assert.Empty(t, f.helpers.ParticipantMetadataEvents())
}

func TestHelpers_ConnectionQueries(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "No console logs captured", f.helpers.ConsoleLogs())
	assert.False(t, f.helpers.IsConnectionEstablished())

	f.store.Console.AddLog("[LOG] one")
	f.store.Console.AddLog("[WARN] two")
	assert.Equal(t, "[LOG] one\n[WARN] two", f.helpers.ConsoleLogs())

	f.helpers.SetMaxReceiveBandwidth(500_000)
	assert.Equal(t, int64(500_000), f.helpers.MaxReceiveBandwidth())
}
