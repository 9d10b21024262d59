package ports

import (
	"context"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
)

// Room is a joined session as seen by the client and the helpers. Its events
// are delivered through the bus handed to Connector.Connect.
type Room interface {
	Name() string
	Metadata() string
	ConnectionState() domain.ConnectionState
	LocalParticipant() LocalParticipant
	RemoteParticipants() []RemoteParticipant
	RemoteParticipant(identity string) (RemoteParticipant, bool)
	Disconnect()
}

type LocalParticipant interface {
	Identity() string
	Metadata() string
	SetMetadata(metadata string) error
	CanPublishData() bool
	PublishData(ctx context.Context, payload []byte, opts domain.DataPublishOptions) error

	// EnableCamera and EnableMicrophone publish a synthetic track the first
	// time they are enabled and mute it afterwards.
	EnableCamera(ctx context.Context, enabled bool) error
	EnableMicrophone(ctx context.Context, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, enabled bool) error
	SetTrackMuted(kind domain.TrackKind, muted bool) error
	TrackState(kind domain.TrackKind) (domain.LocalTrackState, bool)

	// VideoBytesSent sums the bytes written to every published video track.
	VideoBytesSent() uint64
}

type RemoteParticipant interface {
	Identity() string
	SID() string
	Metadata() string
	Publications() []RemotePublication
	Publication(kind domain.TrackKind) (RemotePublication, bool)
}

type RemotePublication interface {
	SID() string
	Kind() domain.TrackKind
	Source() domain.TrackSource
	IsSubscribed() bool
	HasTrack() bool
	IsMuted() bool
	SetSubscribed(subscribed bool) error
	SetVideoQuality(q domain.VideoQuality) error
	Dimensions() (width, height int)
	ReceiveStats() (domain.ReceiveStats, bool)
}

// Connector joins rooms. Implementations emit every room event onto sink,
// starting with events.Connected once the transport is up.
type Connector interface {
	Connect(ctx context.Context, params domain.JoinParams, sink events.Emitter) (Room, error)
}
