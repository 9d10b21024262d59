package domain

import (
	"fmt"
	"strings"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

func ParseTrackKind(s string) (TrackKind, error) {
	switch TrackKind(strings.ToLower(s)) {
	case TrackKindAudio:
		return TrackKindAudio, nil
	case TrackKindVideo:
		return TrackKindVideo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTrackKind, s)
}

type TrackSource string

const (
	SourceCamera      TrackSource = "camera"
	SourceMicrophone  TrackSource = "microphone"
	SourceScreenShare TrackSource = "screen_share"
	SourceUnknown     TrackSource = "unknown"
)

// VideoQuality is the simulcast layer preference.
type VideoQuality string

const (
	QualityLow    VideoQuality = "LOW"
	QualityMedium VideoQuality = "MEDIUM"
	QualityHigh   VideoQuality = "HIGH"
	QualityOff    VideoQuality = "OFF"
)

func (q VideoQuality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityOff:
		return true
	}
	return false
}

// ParseVideoQuality accepts any casing of LOW, MEDIUM, HIGH or OFF.
func ParseVideoQuality(s string) (VideoQuality, error) {
	q := VideoQuality(strings.ToUpper(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoQuality, s)
	}
	return q, nil
}

// StreamState describes whether media is flowing on a subscribed track.
type StreamState string

const (
	StreamStateActive       StreamState = "active"
	StreamStatePaused       StreamState = "paused"
	StreamStatePending      StreamState = "pending"
	StreamStateUnsubscribed StreamState = "unsubscribed"
)

// DataPublishOptions controls how a data packet is delivered.
type DataPublishOptions struct {
	Reliable              bool
	DestinationIdentities []string
	Topic                 string
}

// LocalTrackState is the mute view of one local or remote track.
type LocalTrackState struct {
	Muted   bool   `json:"muted"`
	Enabled bool   `json:"enabled"`
	SID     string `json:"sid"`
}

// ReceiveStats summarises media received on one subscribed track.
type ReceiveStats struct {
	Bytes          uint64 `json:"bytesReceived"`
	Packets        uint64 `json:"packetsReceived"`
	LastPacketUnix int64  `json:"lastPacketTimestamp"`
	Width          int    `json:"frameWidth"`
	Height         int    `json:"frameHeight"`
}
