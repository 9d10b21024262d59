package livekit

import (
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/ports"
)

// session is the per-join state shared by the SDK callbacks and the room
// wrappers. It exists before the SDK room so early callbacks have a sink.
type session struct {
	sink   events.Emitter
	logger *zap.SugaredLogger

	mu       sync.Mutex
	monitors map[string]*receiveMonitor
}

func newSession(sink events.Emitter, logger *zap.SugaredLogger) *session {
	return &session{
		sink:     sink,
		logger:   logger,
		monitors: make(map[string]*receiveMonitor),
	}
}

func (s *session) startMonitor(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	sid := pub.SID()
	read := func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}
	m := newReceiveMonitor(kindOf(pub.Kind()), read, func(st domain.StreamState) {
		s.sink.Emit(events.TrackStreamStateChanged{
			Publication: publicationOf(pub),
			Participant: remoteOf(rp),
			State:       string(st),
		})
	})

	s.mu.Lock()
	prev := s.monitors[sid]
	s.monitors[sid] = m
	s.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	m.start()
}

func (s *session) stopMonitor(sid string) {
	s.mu.Lock()
	m := s.monitors[sid]
	delete(s.monitors, sid)
	s.mu.Unlock()
	if m != nil {
		m.stop()
	}
}

func (s *session) stopMonitors() {
	s.mu.Lock()
	monitors := s.monitors
	s.monitors = make(map[string]*receiveMonitor)
	s.mu.Unlock()
	for _, m := range monitors {
		m.stop()
	}
}

func (s *session) receiveStats(sid string) (domain.ReceiveStats, bool) {
	s.mu.Lock()
	m, ok := s.monitors[sid]
	s.mu.Unlock()
	if !ok {
		return domain.ReceiveStats{}, false
	}
	return m.Stats(), true
}

// Room wraps a joined SDK room.
type Room struct {
	room  *lksdk.Room
	sess  *session
	local *LocalParticipant

	once sync.Once
}

var _ ports.Room = (*Room)(nil)

func (r *Room) Name() string     { return r.room.Name() }
func (r *Room) Metadata() string { return r.room.Metadata() }

func (r *Room) ConnectionState() domain.ConnectionState {
	return connectionStateOf(r.room.ConnectionState())
}

func (r *Room) LocalParticipant() ports.LocalParticipant { return r.local }

func (r *Room) RemoteParticipants() []ports.RemoteParticipant {
	remotes := r.room.GetRemoteParticipants()
	out := make([]ports.RemoteParticipant, 0, len(remotes))
	for _, rp := range remotes {
		out = append(out, &RemoteParticipant{rp: rp, sess: r.sess})
	}
	return out
}

func (r *Room) RemoteParticipant(identity string) (ports.RemoteParticipant, bool) {
	rp := r.room.GetParticipantByIdentity(identity)
	if rp == nil {
		return nil, false
	}
	return &RemoteParticipant{rp: rp, sess: r.sess}, true
}

// Disconnect stops local media and receive monitors before leaving. Calling
// it twice is a no-op.
func (r *Room) Disconnect() {
	r.once.Do(func() {
		r.local.stopMedia()
		r.room.Disconnect()
		r.sess.stopMonitors()
	})
}
