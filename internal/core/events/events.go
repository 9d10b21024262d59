// Package events defines the closed set of room events produced by the SDK
// adapter, the Bus that delivers them in order, and the Registry that binds
// handlers to a swappable event source.
package events

// Type names an event. Values follow the SDK's room event names.
type Type string

const (
	TypeConnected                  Type = "connected"
	TypeDisconnected               Type = "disconnected"
	TypeReconnecting               Type = "reconnecting"
	TypeReconnected                Type = "reconnected"
	TypeConnectionQualityChanged   Type = "connectionQualityChanged"
	TypeParticipantConnected       Type = "participantConnected"
	TypeParticipantDisconnected    Type = "participantDisconnected"
	TypeTrackPublished             Type = "trackPublished"
	TypeTrackUnpublished           Type = "trackUnpublished"
	TypeTrackSubscribed            Type = "trackSubscribed"
	TypeTrackUnsubscribed          Type = "trackUnsubscribed"
	TypeTrackSubscriptionFailed    Type = "trackSubscriptionFailed"
	TypeTrackMuted                 Type = "trackMuted"
	TypeTrackUnmuted               Type = "trackUnmuted"
	TypeTrackStreamStateChanged    Type = "trackStreamStateChanged"
	TypeDataReceived               Type = "dataReceived"
	TypeRoomMetadataChanged        Type = "roomMetadataChanged"
	TypeParticipantMetadataChanged Type = "participantMetadataChanged"
	TypeMediaDevicesError          Type = "mediaDevicesError"
	TypeEngineError                Type = "engineError"
)

// Event is implemented by every variant below.
type Event interface {
	Type() Type
}

// Handler receives events of the type it was registered for.
type Handler func(Event)

// Participant is the adapter's view of a participant at event time.
type Participant struct {
	Identity string
	SID      string
	Name     string
	Metadata string
	Local    bool
}

// Publication is the adapter's view of a track publication at event time.
type Publication struct {
	SID        string
	Kind       string
	Source     string
	Muted      bool
	Subscribed bool
	HasTrack   bool
	Width      int
	Height     int
}

type Connected struct {
	// Verified is set when the transport itself confirmed the connection.
	Verified bool
}

type Disconnected struct {
	Reason string
}

type Reconnecting struct{}

type Reconnected struct{}

type ConnectionQualityChanged struct {
	Participant Participant
	Quality     string
}

type ParticipantConnected struct {
	Participant Participant
}

type ParticipantDisconnected struct {
	Participant Participant
}

type TrackPublished struct {
	Publication Publication
	Participant Participant
}

type TrackUnpublished struct {
	Publication Publication
	Participant Participant
}

type TrackSubscribed struct {
	Publication Publication
	Participant Participant
}

type TrackUnsubscribed struct {
	Publication Publication
	Participant Participant
}

type TrackSubscriptionFailed struct {
	TrackSID    string
	Participant Participant
	Err         error
}

type TrackMuted struct {
	Publication Publication
	Participant Participant
}

type TrackUnmuted struct {
	Publication Publication
	Participant Participant
}

type TrackStreamStateChanged struct {
	Publication Publication
	Participant Participant
	State       string
}

type DataReceived struct {
	Payload     []byte
	Participant Participant
	Kind        string
	Topic       string
}

type RoomMetadataChanged struct {
	Metadata string
}

type ParticipantMetadataChanged struct {
	Participant  Participant
	PrevMetadata string
}

type MediaDevicesError struct {
	Err error
}

type EngineError struct {
	Err error
}

func (Connected) Type() Type                  { return TypeConnected }
func (Disconnected) Type() Type               { return TypeDisconnected }
func (Reconnecting) Type() Type               { return TypeReconnecting }
func (Reconnected) Type() Type                { return TypeReconnected }
func (ConnectionQualityChanged) Type() Type   { return TypeConnectionQualityChanged }
func (ParticipantConnected) Type() Type       { return TypeParticipantConnected }
func (ParticipantDisconnected) Type() Type    { return TypeParticipantDisconnected }
func (TrackPublished) Type() Type             { return TypeTrackPublished }
func (TrackUnpublished) Type() Type           { return TypeTrackUnpublished }
func (TrackSubscribed) Type() Type            { return TypeTrackSubscribed }
func (TrackUnsubscribed) Type() Type          { return TypeTrackUnsubscribed }
func (TrackSubscriptionFailed) Type() Type    { return TypeTrackSubscriptionFailed }
func (TrackMuted) Type() Type                 { return TypeTrackMuted }
func (TrackUnmuted) Type() Type               { return TypeTrackUnmuted }
func (TrackStreamStateChanged) Type() Type    { return TypeTrackStreamStateChanged }
func (DataReceived) Type() Type               { return TypeDataReceived }
func (RoomMetadataChanged) Type() Type        { return TypeRoomMetadataChanged }
func (ParticipantMetadataChanged) Type() Type { return TypeParticipantMetadataChanged }
func (MediaDevicesError) Type() Type          { return TypeMediaDevicesError }
func (EngineError) Type() Type                { return TypeEngineError }
