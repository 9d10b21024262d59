package state

import (
	"encoding/json"
	"fmt"

	"meetprobe/internal/core/domain"
)

// Names of the flat read-surface bindings. Existing test suites read these
// names verbatim, so they must not change.
const (
	BindSubscriptionFailedEvents     = "subscriptionFailedEvents"
	BindSubscriptionPermissionDenied = "subscriptionPermissionDenied"
	BindLastSubscriptionError        = "lastSubscriptionError"
	BindScreenSharePermissionDenied  = "screenSharePermissionDenied"
	BindScreenShareActive            = "screenShareActive"
	BindLastScreenShareError         = "lastScreenShareError"
	BindSimulcastEnabled             = "simulcastEnabled"
	BindCurrentVideoQuality          = "currentVideoQuality"
	BindReceivingLayers              = "receivingLayers"
	BindMuteEvents                   = "muteEvents"
	BindDataChannelMessages          = "dataChannelMessages"
	BindDataMessagesSent             = "dataMessagesSent"
	BindLastDataChannelError         = "lastDataChannelError"
	BindDataPublishingBlocked        = "dataPublishingBlocked"
	BindRoomMetadataEvents           = "roomMetadataEvents"
	BindParticipantMetadataEvents    = "participantMetadataEvents"
	BindRoomMetadataListening        = "roomMetadataListening"
	BindParticipantMetaListening     = "participantMetadataListening"
	BindTrackStreamStateEvents       = "trackStreamStateEvents"
	BindConnectionEstablished        = "connectionEstablished"
	BindConnectionStartTime          = "connectionStartTime"
	BindConnectionTime               = "connectionTime"
	BindRealWebRTCVerified           = "REAL_WEBRTC_CONNECTION_VERIFIED"
	BindConsoleLogCapture            = "consoleLogCapture"
	BindLastError                    = "lastError"
	BindBaselineVideoBytesCapture    = "baselineVideoBytesCapture"
)

type decoder func(raw json.RawMessage) (any, error)

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeOptional maps JSON null to a nil binding and anything else to T.
func decodeOptional[T any](raw json.RawMessage) (any, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	return decodeAs[T](raw)
}

var bindingDecoders = map[string]decoder{
	BindSubscriptionFailedEvents:     decodeAs[[]domain.SubscriptionFailure],
	BindSubscriptionPermissionDenied: decodeAs[bool],
	BindLastSubscriptionError:        decodeOptional[string],
	BindScreenSharePermissionDenied:  decodeAs[bool],
	BindScreenShareActive:            decodeAs[bool],
	BindLastScreenShareError:         decodeOptional[string],
	BindSimulcastEnabled:             decodeAs[bool],
	BindCurrentVideoQuality:          decodeAs[domain.VideoQuality],
	BindReceivingLayers:              decodeAs[map[string]domain.LayerInfo],
	BindMuteEvents:                   decodeAs[[]domain.MuteEvent],
	BindDataChannelMessages:          decodeAs[[]domain.DataMessage],
	BindDataMessagesSent:             decodeAs[[]domain.SentDataMessage],
	BindLastDataChannelError:         decodeOptional[string],
	BindDataPublishingBlocked:        decodeAs[bool],
	BindRoomMetadataEvents:           decodeAs[[]domain.RoomMetadataEvent],
	BindParticipantMetadataEvents:    decodeAs[[]domain.ParticipantMetadataEvent],
	BindRoomMetadataListening:        decodeAs[bool],
	BindParticipantMetaListening:     decodeAs[bool],
	BindTrackStreamStateEvents:       decodeAs[[]domain.TrackStreamEvent],
	BindConnectionEstablished:        decodeAs[bool],
	BindConnectionStartTime:          decodeOptional[int64],
	BindConnectionTime:               decodeOptional[int64],
	BindRealWebRTCVerified:           decodeAs[bool],
	BindConsoleLogCapture:            decodeAs[[]string],
	BindLastError:                    decodeOptional[string],
	BindBaselineVideoBytesCapture:    decodeOptional[domain.BaselineCapture],
}

// BindingNames lists every binding SyncToWindow writes.
func BindingNames() []string {
	names := make([]string, 0, len(bindingDecoders))
	for name := range bindingDecoders {
		names = append(names, name)
	}
	return names
}

func decodeBinding(name string, raw json.RawMessage) (any, error) {
	dec, ok := bindingDecoders[name]
	if !ok {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return v, nil
	}
	v, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalInt(v int64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}
