// Package state holds the in-memory record of everything the probe observed
// and its projection onto the flat Window read by test drivers.
package state

import (
	"encoding/json"
	"sync"

	"meetprobe/internal/core/domain"
)

// Store is the process-wide aggregate of observed behaviour. Sub-domain
// pointers are stable for the life of the store, including across Reset.
type Store struct {
	mu     sync.RWMutex
	syncMu sync.Mutex
	window *Window

	Subscription *SubscriptionState
	ScreenShare  *ScreenShareState
	Simulcast    *SimulcastState
	Mute         *MuteState
	DataChannel  *DataChannelState
	Metadata     *MetadataState
	TrackStream  *TrackStreamState
	Connection   *ConnectionState
	Console      *ConsoleState
	Errors       *ErrorState
	Bitrate      *BitrateState
}

func NewStore(window *Window) *Store {
	if window == nil {
		window = NewWindow()
	}
	s := &Store{window: window}
	s.Subscription = &SubscriptionState{mu: &s.mu}
	s.ScreenShare = &ScreenShareState{mu: &s.mu}
	s.Simulcast = &SimulcastState{mu: &s.mu}
	s.Mute = &MuteState{mu: &s.mu}
	s.DataChannel = &DataChannelState{mu: &s.mu}
	s.Metadata = &MetadataState{mu: &s.mu}
	s.TrackStream = &TrackStreamState{mu: &s.mu}
	s.Connection = &ConnectionState{mu: &s.mu}
	s.Console = &ConsoleState{mu: &s.mu}
	s.Errors = &ErrorState{mu: &s.mu}
	s.Bitrate = &BitrateState{mu: &s.mu}
	s.Reset()
	return s
}

func (s *Store) Window() *Window {
	return s.window
}

// Reset restores every sub-domain to its default in place.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Subscription.clearLocked()
	s.ScreenShare.clearLocked()
	s.Simulcast.clearLocked()
	s.Mute.events = nil
	s.DataChannel.clearLocked()
	s.Metadata.clearLocked()
	s.TrackStream.events = nil
	s.Connection.clearLocked()
	s.Console.logs = nil
	s.Errors.last = ""
	s.Bitrate.baseline = nil
}

// SyncToWindow publishes every field onto the window and returns the
// resulting snapshot. Call it after each externally visible mutation.
func (s *Store) SyncToWindow() Snapshot {
	// Build and publish as one step so projections land in order.
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.RLock()
	values := map[string]any{
		BindSubscriptionFailedEvents:     cloneSlice(s.Subscription.failedEvents),
		BindSubscriptionPermissionDenied: s.Subscription.permissionDenied,
		BindLastSubscriptionError:        optionalString(s.Subscription.lastError),

		BindScreenSharePermissionDenied: s.ScreenShare.permissionDenied,
		BindScreenShareActive:           s.ScreenShare.active,
		BindLastScreenShareError:        optionalString(s.ScreenShare.lastError),

		BindSimulcastEnabled:    s.Simulcast.enabled,
		BindCurrentVideoQuality: s.Simulcast.currentQuality,
		BindReceivingLayers:     cloneMap(s.Simulcast.receivingLayers),

		BindMuteEvents: cloneSlice(s.Mute.events),

		BindDataChannelMessages:   cloneSlice(s.DataChannel.messages),
		BindDataMessagesSent:      cloneSlice(s.DataChannel.messagesSent),
		BindLastDataChannelError:  optionalString(s.DataChannel.lastError),
		BindDataPublishingBlocked: s.DataChannel.publishingBlocked,

		BindRoomMetadataEvents:        cloneSlice(s.Metadata.roomEvents),
		BindParticipantMetadataEvents: cloneSlice(s.Metadata.participantEvents),
		BindRoomMetadataListening:     s.Metadata.roomListening,
		BindParticipantMetaListening:  s.Metadata.participantListening,

		BindTrackStreamStateEvents: cloneSlice(s.TrackStream.events),

		BindConnectionEstablished: s.Connection.established,
		BindConnectionStartTime:   optionalInt(s.Connection.startTime, s.Connection.hasStartTime),
		BindConnectionTime:        optionalInt(s.Connection.time, s.Connection.hasTime),
		BindRealWebRTCVerified:    s.Connection.realWebRTCVerified,

		BindConsoleLogCapture: cloneSlice(s.Console.logs),
		BindLastError:         optionalString(s.Errors.last),
	}
	if s.Bitrate.baseline != nil {
		values[BindBaselineVideoBytesCapture] = *s.Bitrate.baseline
	} else {
		values[BindBaselineVideoBytesCapture] = nil
	}
	s.mu.RUnlock()

	return s.window.Publish(values)
}

// InitFromWindow copies back every binding that is defined on the window.
// Undefined bindings leave the current value untouched.
func (s *Store) InitFromWindow() {
	w := s.window
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := lookup[[]domain.SubscriptionFailure](w, BindSubscriptionFailedEvents); ok {
		s.Subscription.failedEvents = cloneSlice(v)
	}
	if v, ok := lookup[bool](w, BindSubscriptionPermissionDenied); ok {
		s.Subscription.permissionDenied = v
	}
	if v, ok := lookupString(w, BindLastSubscriptionError); ok {
		s.Subscription.lastError = v
	}

	if v, ok := lookup[bool](w, BindScreenSharePermissionDenied); ok {
		s.ScreenShare.permissionDenied = v
	}
	if v, ok := lookup[bool](w, BindScreenShareActive); ok {
		s.ScreenShare.active = v
	}
	if v, ok := lookupString(w, BindLastScreenShareError); ok {
		s.ScreenShare.lastError = v
	}

	if v, ok := lookup[bool](w, BindSimulcastEnabled); ok {
		s.Simulcast.enabled = v
	}
	if v, ok := lookup[domain.VideoQuality](w, BindCurrentVideoQuality); ok && v.Valid() {
		s.Simulcast.currentQuality = v
	}
	if v, ok := lookup[map[string]domain.LayerInfo](w, BindReceivingLayers); ok {
		s.Simulcast.receivingLayers = cloneMap(v)
	}

	if v, ok := lookup[[]domain.MuteEvent](w, BindMuteEvents); ok {
		s.Mute.events = cloneSlice(v)
	}

	if v, ok := lookup[[]domain.DataMessage](w, BindDataChannelMessages); ok {
		s.DataChannel.messages = cloneSlice(v)
	}
	if v, ok := lookup[[]domain.SentDataMessage](w, BindDataMessagesSent); ok {
		s.DataChannel.messagesSent = cloneSlice(v)
	}
	if v, ok := lookupString(w, BindLastDataChannelError); ok {
		s.DataChannel.lastError = v
	}
	if v, ok := lookup[bool](w, BindDataPublishingBlocked); ok {
		s.DataChannel.publishingBlocked = v
	}

	if v, ok := lookup[[]domain.RoomMetadataEvent](w, BindRoomMetadataEvents); ok {
		s.Metadata.roomEvents = cloneSlice(v)
	}
	if v, ok := lookup[[]domain.ParticipantMetadataEvent](w, BindParticipantMetadataEvents); ok {
		s.Metadata.participantEvents = cloneSlice(v)
	}
	if v, ok := lookup[bool](w, BindRoomMetadataListening); ok {
		s.Metadata.roomListening = v
	}
	if v, ok := lookup[bool](w, BindParticipantMetaListening); ok {
		s.Metadata.participantListening = v
	}

	if v, ok := lookup[[]domain.TrackStreamEvent](w, BindTrackStreamStateEvents); ok {
		s.TrackStream.events = cloneSlice(v)
	}

	if v, ok := lookup[bool](w, BindConnectionEstablished); ok {
		s.Connection.established = v
	}
	if v, ok := lookupInt(w, BindConnectionStartTime); ok {
		s.Connection.startTime, s.Connection.hasStartTime = v, true
	}
	if v, ok := lookupInt(w, BindConnectionTime); ok {
		s.Connection.time, s.Connection.hasTime = v, true
	}
	if v, ok := lookup[bool](w, BindRealWebRTCVerified); ok {
		s.Connection.realWebRTCVerified = v
	}

	if v, ok := lookup[[]string](w, BindConsoleLogCapture); ok {
		s.Console.logs = cloneSlice(v)
	}
	if v, ok := lookupString(w, BindLastError); ok {
		s.Errors.last = v
	}
	if v, ok := lookup[domain.BaselineCapture](w, BindBaselineVideoBytesCapture); ok {
		s.Bitrate.baseline = &v
	}
}

// lookup returns a binding when it is defined and holds a T.
func lookup[T any](w *Window, name string) (T, bool) {
	var zero T
	raw, ok := w.Lookup(name)
	if !ok || raw == nil {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// lookupInt accepts any numeric kind, including the float64 a JSON decode
// produces.
func lookupInt(w *Window, name string) (int64, bool) {
	raw, ok := w.Lookup(name)
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			n = int64(f)
		}
		return n, true
	}
	return 0, false
}

// lookupString treats a defined null binding as the empty string.
func lookupString(w *Window, name string) (string, bool) {
	raw, ok := w.Lookup(name)
	if !ok {
		return "", false
	}
	if raw == nil {
		return "", true
	}
	v, ok := raw.(string)
	return v, ok
}
