package livekit

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/ports"
)

const dataKindUser = "user"

// Connector joins LiveKit rooms with the server SDK.
type Connector struct {
	media  MediaConfig
	logger *zap.SugaredLogger
}

var _ ports.Connector = (*Connector)(nil)

func NewConnector(media MediaConfig, logger *zap.SugaredLogger) *Connector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Connector{media: media.withDefaults(), logger: logger}
}

// Connect joins with params.Token and emits Connected once the SDK reports the
// room joined. JoinWithToken is not cancellable, so a join that completes
// after ctx is done is disconnected in the background.
func (c *Connector) Connect(ctx context.Context, params domain.JoinParams, sink events.Emitter) (ports.Room, error) {
	sess := newSession(sink, c.logger)
	room := lksdk.NewRoom(sess.callbacks())

	joined := make(chan error, 1)
	go func() {
		joined <- room.JoinWithToken(params.URL, params.Token, lksdk.WithAutoSubscribe(true))
	}()

	select {
	case err := <-joined:
		if err != nil {
			return nil, fmt.Errorf("failed to join %s: %w", params.RoomName, err)
		}
	case <-ctx.Done():
		go func() {
			if err := <-joined; err == nil {
				room.Disconnect()
			}
		}()
		return nil, fmt.Errorf("join %s: %w", params.RoomName, ctx.Err())
	}

	c.logger.Infow("Room joined",
		"room", room.Name(),
		"identity", room.LocalParticipant.Identity(),
		"remote_participants", len(room.GetRemoteParticipants()),
	)

	r := &Room{
		room:  room,
		sess:  sess,
		local: newLocalParticipant(room.LocalParticipant, c.media, c.logger),
	}
	sink.Emit(events.Connected{Verified: room.ConnectionState() == lksdk.ConnectionStateConnected})
	return r, nil
}

// callbacks maps every SDK callback the probe cares about onto an event.
func (s *session) callbacks() *lksdk.RoomCallback {
	cb := lksdk.NewRoomCallback()

	cb.OnDisconnectedWithReason = func(reason lksdk.DisconnectionReason) {
		s.stopMonitors()
		s.sink.Emit(events.Disconnected{Reason: fmt.Sprint(reason)})
	}
	cb.OnReconnecting = func() {
		s.sink.Emit(events.Reconnecting{})
	}
	cb.OnReconnected = func() {
		s.sink.Emit(events.Reconnected{})
	}
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		s.sink.Emit(events.ParticipantConnected{Participant: remoteOf(rp)})
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		for _, pub := range rp.TrackPublications() {
			s.stopMonitor(pub.SID())
		}
		s.sink.Emit(events.ParticipantDisconnected{Participant: remoteOf(rp)})
	}
	cb.OnRoomMetadataChanged = func(metadata string) {
		s.sink.Emit(events.RoomMetadataChanged{Metadata: metadata})
	}

	pc := &cb.ParticipantCallback
	pc.OnTrackPublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		s.sink.Emit(events.TrackPublished{Publication: publicationOf(pub), Participant: remoteOf(rp)})
	}
	pc.OnTrackUnpublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		s.stopMonitor(pub.SID())
		s.sink.Emit(events.TrackUnpublished{Publication: publicationOf(pub), Participant: remoteOf(rp)})
	}
	pc.OnTrackSubscribed = func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		s.startMonitor(track, pub, rp)
		s.sink.Emit(events.TrackSubscribed{Publication: publicationOf(pub), Participant: remoteOf(rp)})
	}
	pc.OnTrackUnsubscribed = func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		s.stopMonitor(pub.SID())
		s.sink.Emit(events.TrackUnsubscribed{Publication: publicationOf(pub), Participant: remoteOf(rp)})
	}
	pc.OnTrackSubscriptionFailed = func(sid string, rp *lksdk.RemoteParticipant) {
		s.sink.Emit(events.TrackSubscriptionFailed{
			TrackSID:    sid,
			Participant: remoteOf(rp),
			Err:         fmt.Errorf("subscription to track %s failed", sid),
		})
	}
	pc.OnTrackMuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		s.sink.Emit(events.TrackMuted{Publication: publicationOf(pub), Participant: participantOf(p)})
	}
	pc.OnTrackUnmuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		s.sink.Emit(events.TrackUnmuted{Publication: publicationOf(pub), Participant: participantOf(p)})
	}
	pc.OnMetadataChanged = func(oldMetadata string, p lksdk.Participant) {
		s.sink.Emit(events.ParticipantMetadataChanged{Participant: participantOf(p), PrevMetadata: oldMetadata})
	}
	pc.OnConnectionQualityChanged = func(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
		s.sink.Emit(events.ConnectionQualityChanged{
			Participant: participantOf(p),
			Quality:     connectionQualityName(update.GetQuality()),
		})
	}
	pc.OnDataPacket = func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
		user, ok := data.(*lksdk.UserDataPacket)
		if !ok {
			return
		}
		ev := events.DataReceived{
			Payload:     user.Payload,
			Participant: events.Participant{Identity: params.SenderIdentity},
			Kind:        dataKindUser,
			Topic:       params.Topic,
		}
		if params.Sender != nil {
			ev.Participant = remoteOf(params.Sender)
		}
		s.sink.Emit(ev)
	}
	return cb
}
