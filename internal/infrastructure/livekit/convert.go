// Package livekit adapts the LiveKit Go SDK to the probe's room ports. SDK
// callbacks are translated into events and emitted onto the probe's bus;
// nothing in this package touches the state store directly.
package livekit

import (
	"fmt"
	"strings"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
)

func sourceOf(s livekit.TrackSource) domain.TrackSource {
	switch s {
	case livekit.TrackSource_CAMERA:
		return domain.SourceCamera
	case livekit.TrackSource_MICROPHONE:
		return domain.SourceMicrophone
	case livekit.TrackSource_SCREEN_SHARE:
		return domain.SourceScreenShare
	default:
		return domain.SourceUnknown
	}
}

func sourceToProto(s domain.TrackSource) livekit.TrackSource {
	switch s {
	case domain.SourceCamera:
		return livekit.TrackSource_CAMERA
	case domain.SourceMicrophone:
		return livekit.TrackSource_MICROPHONE
	case domain.SourceScreenShare:
		return livekit.TrackSource_SCREEN_SHARE
	default:
		return livekit.TrackSource_UNKNOWN
	}
}

func qualityToProto(q domain.VideoQuality) (livekit.VideoQuality, error) {
	switch q {
	case domain.QualityLow:
		return livekit.VideoQuality_LOW, nil
	case domain.QualityMedium:
		return livekit.VideoQuality_MEDIUM, nil
	case domain.QualityHigh:
		return livekit.VideoQuality_HIGH, nil
	case domain.QualityOff:
		return livekit.VideoQuality_OFF, nil
	}
	return livekit.VideoQuality_HIGH, fmt.Errorf("%w: %q", domain.ErrInvalidVideoQuality, q)
}

func kindOf(k lksdk.TrackKind) domain.TrackKind {
	if strings.EqualFold(string(k), string(domain.TrackKindVideo)) {
		return domain.TrackKindVideo
	}
	return domain.TrackKindAudio
}

func connectionStateOf(s lksdk.ConnectionState) domain.ConnectionState {
	switch s {
	case lksdk.ConnectionStateConnected:
		return domain.ConnectionConnected
	case lksdk.ConnectionStateReconnecting:
		return domain.ConnectionReconnecting
	default:
		return domain.ConnectionDisconnected
	}
}

// connectionQualityName renders EXCELLENT as "excellent".
func connectionQualityName(q livekit.ConnectionQuality) string {
	return strings.ToLower(q.String())
}

func participantOf(p lksdk.Participant) events.Participant {
	if p == nil {
		return events.Participant{}
	}
	_, local := p.(*lksdk.LocalParticipant)
	return events.Participant{
		Identity: p.Identity(),
		SID:      p.SID(),
		Name:     p.Name(),
		Metadata: p.Metadata(),
		Local:    local,
	}
}

func remoteOf(rp *lksdk.RemoteParticipant) events.Participant {
	if rp == nil {
		return events.Participant{}
	}
	return participantOf(rp)
}

func publicationOf(pub lksdk.TrackPublication) events.Publication {
	if pub == nil {
		return events.Publication{}
	}
	out := events.Publication{
		SID:        pub.SID(),
		Kind:       string(kindOf(pub.Kind())),
		Source:     string(sourceOf(pub.Source())),
		Muted:      pub.IsMuted(),
		Subscribed: pub.IsSubscribed(),
		HasTrack:   pub.Track() != nil,
	}
	if info := pub.TrackInfo(); info != nil {
		out.Width = int(info.GetWidth())
		out.Height = int(info.GetHeight())
	}
	return out
}
