package state

import (
	"strings"
	"sync"

	"meetprobe/internal/core/domain"
)

// maxConsoleLines bounds the console capture of a long-running probe.
const maxConsoleLines = 5000

// SubscriptionState records failed subscription attempts.
type SubscriptionState struct {
	mu               *sync.RWMutex
	failedEvents     []domain.SubscriptionFailure
	permissionDenied bool
	lastError        string
}

func (s *SubscriptionState) AddFailure(f domain.SubscriptionFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedEvents = append(s.failedEvents, f)
}

func (s *SubscriptionState) Failures() []domain.SubscriptionFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.failedEvents)
}

func (s *SubscriptionState) FailureCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.failedEvents)
}

func (s *SubscriptionState) SetPermissionDenied(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionDenied = v
}

func (s *SubscriptionState) PermissionDenied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionDenied
}

func (s *SubscriptionState) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *SubscriptionState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *SubscriptionState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *SubscriptionState) clearLocked() {
	s.failedEvents = nil
	s.permissionDenied = false
	s.lastError = ""
}

// ScreenShareState tracks the local screen share.
type ScreenShareState struct {
	mu               *sync.RWMutex
	active           bool
	permissionDenied bool
	lastError        string
}

func (s *ScreenShareState) SetActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = v
}

func (s *ScreenShareState) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *ScreenShareState) SetPermissionDenied(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionDenied = v
}

func (s *ScreenShareState) PermissionDenied() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionDenied
}

func (s *ScreenShareState) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *ScreenShareState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *ScreenShareState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *ScreenShareState) clearLocked() {
	s.active = false
	s.permissionDenied = false
	s.lastError = ""
}

// SimulcastState holds the quality preference and received layers.
type SimulcastState struct {
	mu              *sync.RWMutex
	enabled         bool
	currentQuality  domain.VideoQuality
	receivingLayers map[string]domain.LayerInfo
}

func (s *SimulcastState) SetEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
}

func (s *SimulcastState) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetCurrentQuality rejects values outside LOW/MEDIUM/HIGH/OFF.
func (s *SimulcastState) SetCurrentQuality(q domain.VideoQuality) error {
	if !q.Valid() {
		return domain.ErrInvalidVideoQuality
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentQuality = q
	return nil
}

func (s *SimulcastState) CurrentQuality() domain.VideoQuality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuality
}

func (s *SimulcastState) SetReceivingLayer(identity string, info domain.LayerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivingLayers[identity] = info
}

func (s *SimulcastState) RemoveReceivingLayer(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.receivingLayers, identity)
}

func (s *SimulcastState) ReceivingLayer(identity string) (domain.LayerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.receivingLayers[identity]
	return info, ok
}

func (s *SimulcastState) ReceivingLayers() map[string]domain.LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.receivingLayers)
}

func (s *SimulcastState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *SimulcastState) clearLocked() {
	s.enabled = true
	s.currentQuality = domain.QualityHigh
	s.receivingLayers = make(map[string]domain.LayerInfo)
}

// MuteState is the append-only log of mute and unmute events.
type MuteState struct {
	mu     *sync.RWMutex
	events []domain.MuteEvent
}

func (s *MuteState) AddEvent(e domain.MuteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *MuteState) Events() []domain.MuteEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.events)
}

func (s *MuteState) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *MuteState) LastEvent() (domain.MuteEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return domain.MuteEvent{}, false
	}
	return s.events[len(s.events)-1], true
}

func (s *MuteState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// DataChannelState records received and sent data packets.
type DataChannelState struct {
	mu                *sync.RWMutex
	messages          []domain.DataMessage
	messagesSent      []domain.SentDataMessage
	lastError         string
	publishingBlocked bool
}

func (s *DataChannelState) AddMessage(m domain.DataMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

func (s *DataChannelState) Messages() []domain.DataMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.messages)
}

func (s *DataChannelState) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *DataChannelState) AddSentMessage(m domain.SentDataMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesSent = append(s.messagesSent, m)
}

func (s *DataChannelState) SentMessages() []domain.SentDataMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.messagesSent)
}

func (s *DataChannelState) SentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messagesSent)
}

func (s *DataChannelState) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *DataChannelState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *DataChannelState) SetPublishingBlocked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishingBlocked = v
}

func (s *DataChannelState) PublishingBlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publishingBlocked
}

// LatencyStats summarises the latency of received messages that carried a
// send timestamp. It is all zeros when none did.
func (s *DataChannelState) LatencyStats() domain.LatencyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.LatencyStats
	var sum int64
	for _, m := range s.messages {
		if m.Latency == nil {
			continue
		}
		l := *m.Latency
		if stats.Count == 0 || l < stats.Min {
			stats.Min = l
		}
		if stats.Count == 0 || l > stats.Max {
			stats.Max = l
		}
		sum += l
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats
}

func (s *DataChannelState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *DataChannelState) clearLocked() {
	s.messages = nil
	s.messagesSent = nil
	s.lastError = ""
	s.publishingBlocked = false
}

// MetadataState records room and participant metadata changes.
type MetadataState struct {
	mu                   *sync.RWMutex
	roomEvents           []domain.RoomMetadataEvent
	participantEvents    []domain.ParticipantMetadataEvent
	roomListening        bool
	participantListening bool
}

func (s *MetadataState) AddRoomEvent(e domain.RoomMetadataEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomEvents = append(s.roomEvents, e)
}

func (s *MetadataState) RoomEvents() []domain.RoomMetadataEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.roomEvents)
}

func (s *MetadataState) RoomEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roomEvents)
}

func (s *MetadataState) AddParticipantEvent(e domain.ParticipantMetadataEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participantEvents = append(s.participantEvents, e)
}

func (s *MetadataState) ParticipantEvents() []domain.ParticipantMetadataEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.participantEvents)
}

func (s *MetadataState) ParticipantEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participantEvents)
}

func (s *MetadataState) SetRoomListening(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomListening = v
}

func (s *MetadataState) RoomListening() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomListening
}

func (s *MetadataState) SetParticipantListening(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participantListening = v
}

func (s *MetadataState) ParticipantListening() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participantListening
}

func (s *MetadataState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *MetadataState) clearLocked() {
	s.roomEvents = nil
	s.participantEvents = nil
	s.roomListening = false
	s.participantListening = false
}

// TrackStreamState records stream state changes of subscribed tracks.
type TrackStreamState struct {
	mu     *sync.RWMutex
	events []domain.TrackStreamEvent
}

func (s *TrackStreamState) AddEvent(e domain.TrackStreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *TrackStreamState) Events() []domain.TrackStreamEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.events)
}

func (s *TrackStreamState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// ConnectionState tracks how and when the room connection was established.
type ConnectionState struct {
	mu                 *sync.RWMutex
	established        bool
	startTime          int64
	hasStartTime       bool
	time               int64
	hasTime            bool
	realWebRTCVerified bool
}

func (s *ConnectionState) SetEstablished(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.established = v
}

func (s *ConnectionState) Established() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.established
}

// SetStartTime begins a new connection attempt and forgets the previous
// attempt's connect time.
func (s *ConnectionState) SetStartTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime, s.hasStartTime = ms, true
	s.time, s.hasTime = 0, false
}

func (s *ConnectionState) StartTime() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime, s.hasStartTime
}

func (s *ConnectionState) SetTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time, s.hasTime = ms, true
}

func (s *ConnectionState) Time() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time, s.hasTime
}

// RecordConnected sets the elapsed connect time from the start time, only the
// first time it is called after a start. Without a start time the elapsed
// time is 0. It reports whether it recorded.
func (s *ConnectionState) RecordConnected(nowMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.established = true
	if s.hasTime {
		return false
	}
	start := nowMs
	if s.hasStartTime {
		start = s.startTime
	}
	s.time, s.hasTime = nowMs-start, true
	return true
}

func (s *ConnectionState) SetRealWebRTCVerified(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realWebRTCVerified = v
}

func (s *ConnectionState) RealWebRTCVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realWebRTCVerified
}

func (s *ConnectionState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *ConnectionState) clearLocked() {
	*s = ConnectionState{mu: s.mu}
}

// ConsoleState captures log lines.
type ConsoleState struct {
	mu   *sync.RWMutex
	logs []string
}

func (s *ConsoleState) AddLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) >= maxConsoleLines {
		s.logs = append(s.logs[:0:0], s.logs[len(s.logs)-maxConsoleLines+1:]...)
	}
	s.logs = append(s.logs, line)
}

func (s *ConsoleState) Logs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.logs)
}

func (s *ConsoleState) LogsAsString() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.Join(s.logs, "\n")
}

func (s *ConsoleState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
}

// ErrorState keeps the last uncaught error. It is overwritten, not appended.
type ErrorState struct {
	mu   *sync.RWMutex
	last string
}

func (s *ErrorState) SetLast(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = msg
}

func (s *ErrorState) Last() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// BitrateState holds the reference point for outbound rate computation.
type BitrateState struct {
	mu       *sync.RWMutex
	baseline *domain.BaselineCapture
}

func (s *BitrateState) SetBaselineCapture(b domain.BaselineCapture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = &b
}

func (s *BitrateState) BaselineCapture() (domain.BaselineCapture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.baseline == nil {
		return domain.BaselineCapture{}, false
	}
	return *s.baseline, true
}

func (s *BitrateState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = nil
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
