package livekit

import (
	"sync"
	"time"

	"github.com/pion/rtp"

	"meetprobe/internal/core/domain"
)

const (
	defaultStallAfter = 2 * time.Second
	stallCheckEvery   = 500 * time.Millisecond
)

// receiveMonitor drains one subscribed track and keeps its receive stats. A
// track that delivered packets and then went quiet for stallAfter is reported
// paused, and active again on the next packet.
type receiveMonitor struct {
	kind       domain.TrackKind
	read       func() (*rtp.Packet, error)
	now        func() time.Time
	stallAfter time.Duration
	onState    func(domain.StreamState)

	mu     sync.Mutex
	stats  domain.ReceiveStats
	paused bool

	done     chan struct{}
	stopOnce sync.Once
}

func newReceiveMonitor(kind domain.TrackKind, read func() (*rtp.Packet, error), onState func(domain.StreamState)) *receiveMonitor {
	if onState == nil {
		onState = func(domain.StreamState) {}
	}
	return &receiveMonitor{
		kind:       kind,
		read:       read,
		now:        time.Now,
		stallAfter: defaultStallAfter,
		onState:    onState,
		done:       make(chan struct{}),
	}
}

func (m *receiveMonitor) start() {
	go m.readLoop()
	go m.checkLoop()
}

// stop ends the check loop. The read loop ends when the SDK closes the track.
func (m *receiveMonitor) stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *receiveMonitor) readLoop() {
	for {
		pkt, err := m.read()
		if err != nil {
			m.stop()
			return
		}
		m.record(pkt)
	}
}

func (m *receiveMonitor) checkLoop() {
	ticker := time.NewTicker(stallCheckEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *receiveMonitor) record(pkt *rtp.Packet) {
	if pkt == nil {
		return
	}
	m.mu.Lock()
	m.stats.Packets++
	m.stats.Bytes += uint64(pkt.MarshalSize())
	m.stats.LastPacketUnix = m.now().UnixMilli()
	if m.kind == domain.TrackKindVideo {
		if w, h, ok := vp8Dimensions(pkt.Payload); ok {
			m.stats.Width, m.stats.Height = w, h
		}
	}
	resumed := m.paused
	m.paused = false
	m.mu.Unlock()

	if resumed {
		m.onState(domain.StreamStateActive)
	}
}

func (m *receiveMonitor) check() {
	m.mu.Lock()
	if m.paused || m.stats.Packets == 0 {
		m.mu.Unlock()
		return
	}
	last := time.UnixMilli(m.stats.LastPacketUnix)
	stalled := m.now().Sub(last) > m.stallAfter
	if stalled {
		m.paused = true
	}
	m.mu.Unlock()

	if stalled {
		m.onState(domain.StreamStatePaused)
	}
}

func (m *receiveMonitor) Stats() domain.ReceiveStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
