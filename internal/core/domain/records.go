package domain

// AttemptType says which path requested a subscription.
type AttemptType string

const (
	AttemptManual   AttemptType = "manual"
	AttemptForced   AttemptType = "forced"
	AttemptPeriodic AttemptType = "periodic"
	AttemptEvent    AttemptType = "event"
)

// Timestamps below are Unix milliseconds, matching what test suites assert on.

type SubscriptionFailure struct {
	TrackSID            string      `json:"trackSid"`
	ParticipantIdentity string      `json:"participantIdentity"`
	Error               string      `json:"error"`
	Timestamp           int64       `json:"timestamp"`
	Type                AttemptType `json:"type"`
}

type MuteEventType string

const (
	MuteEventMuted   MuteEventType = "muted"
	MuteEventUnmuted MuteEventType = "unmuted"
)

type MuteEvent struct {
	Type                MuteEventType `json:"type"`
	TrackKind           TrackKind     `json:"trackKind"`
	ParticipantIdentity string        `json:"participantIdentity"`
	TrackSID            string        `json:"trackSid"`
	Timestamp           int64         `json:"timestamp"`
}

// DataMessage is a received data packet. SentTimestamp and Latency are set
// only when the payload carried its own send time.
type DataMessage struct {
	Content       string `json:"content"`
	From          string `json:"from"`
	Kind          string `json:"kind"`
	Topic         string `json:"topic,omitempty"`
	Timestamp     int64  `json:"timestamp"`
	Size          int    `json:"size"`
	SentTimestamp *int64 `json:"sentTimestamp,omitempty"`
	Latency       *int64 `json:"latency,omitempty"`
}

type SentDataMessage struct {
	Content               string   `json:"content"`
	Reliable              bool     `json:"reliable"`
	DestinationIdentities []string `json:"destinationIdentities"`
	Timestamp             int64    `json:"timestamp"`
	Size                  int      `json:"size"`
}

type LatencyStats struct {
	Count   int     `json:"count"`
	Min     int64   `json:"min"`
	Max     int64   `json:"max"`
	Average float64 `json:"average"`
}

type RoomMetadataEvent struct {
	Metadata  string `json:"metadata"`
	Timestamp int64  `json:"timestamp"`
}

type ParticipantMetadataEvent struct {
	ParticipantIdentity string `json:"participantIdentity"`
	Metadata            string `json:"metadata"`
	PrevMetadata        string `json:"prevMetadata"`
	Timestamp           int64  `json:"timestamp"`
}

type TrackStreamEvent struct {
	TrackSID            string      `json:"trackSid"`
	TrackKind           TrackKind   `json:"trackKind"`
	ParticipantIdentity string      `json:"participantIdentity"`
	StreamState         StreamState `json:"streamState"`
	Timestamp           int64       `json:"timestamp"`
}

// LayerInfo is the simulcast layer currently received from one participant.
type LayerInfo struct {
	TrackSID  string       `json:"trackSid"`
	Quality   VideoQuality `json:"quality"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Timestamp int64        `json:"timestamp"`
}

type BaselineCapture struct {
	Bytes     uint64 `json:"bytes"`
	Timestamp int64  `json:"timestamp"`
}
