// Package testutils provides in-memory stand-ins for the SDK-facing ports.
package testutils

import (
	"context"
	"sync"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/ports"
)

type FakePublication struct {
	mu sync.Mutex

	Sid        string
	TrackKind  domain.TrackKind
	TrackSrc   domain.TrackSource
	Subscribed bool
	Track      bool
	Muted      bool
	Width      int
	Height     int
	Stats      *domain.ReceiveStats

	// SubscribeErr is returned by SetSubscribed. When nil, subscribing also
	// attaches a track.
	SubscribeErr  error
	QualityErr    error
	SubscribeCall int
	Quality       domain.VideoQuality
}

func (p *FakePublication) SID() string                { return p.Sid }
func (p *FakePublication) Kind() domain.TrackKind     { return p.TrackKind }
func (p *FakePublication) Source() domain.TrackSource { return p.TrackSrc }

func (p *FakePublication) IsSubscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Subscribed
}

func (p *FakePublication) HasTrack() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Track
}

func (p *FakePublication) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Muted
}

func (p *FakePublication) SetSubscribed(subscribed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SubscribeCall++
	if p.SubscribeErr != nil {
		return p.SubscribeErr
	}
	p.Subscribed = subscribed
	p.Track = subscribed
	return nil
}

func (p *FakePublication) SetVideoQuality(q domain.VideoQuality) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.QualityErr != nil {
		return p.QualityErr
	}
	p.Quality = q
	return nil
}

func (p *FakePublication) Dimensions() (int, int) { return p.Width, p.Height }

func (p *FakePublication) ReceiveStats() (domain.ReceiveStats, bool) {
	if p.Stats == nil {
		return domain.ReceiveStats{}, false
	}
	return *p.Stats, true
}

func (p *FakePublication) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SubscribeCall
}

type FakeRemoteParticipant struct {
	Ident string
	Sid   string
	Meta  string
	Pubs  []*FakePublication
}

func (p *FakeRemoteParticipant) Identity() string { return p.Ident }
func (p *FakeRemoteParticipant) SID() string      { return p.Sid }
func (p *FakeRemoteParticipant) Metadata() string { return p.Meta }

func (p *FakeRemoteParticipant) Publications() []ports.RemotePublication {
	out := make([]ports.RemotePublication, 0, len(p.Pubs))
	for _, pub := range p.Pubs {
		out = append(out, pub)
	}
	return out
}

func (p *FakeRemoteParticipant) Publication(kind domain.TrackKind) (ports.RemotePublication, bool) {
	for _, pub := range p.Pubs {
		if pub.TrackKind == kind {
			return pub, true
		}
	}
	return nil, false
}

type PublishedData struct {
	Payload []byte
	Opts    domain.DataPublishOptions
}

type FakeLocalParticipant struct {
	mu sync.Mutex

	Ident      string
	Meta       string
	CanPublish bool
	PublishErr error
	Published  []PublishedData

	ScreenShareErr error
	ScreenSharing  bool
	MediaErr       error
	Tracks         map[domain.TrackKind]*domain.LocalTrackState
	BytesSent      uint64
}

func NewFakeLocalParticipant(identity string) *FakeLocalParticipant {
	return &FakeLocalParticipant{
		Ident:      identity,
		CanPublish: true,
		Tracks:     make(map[domain.TrackKind]*domain.LocalTrackState),
	}
}

func (p *FakeLocalParticipant) Identity() string { return p.Ident }

func (p *FakeLocalParticipant) Metadata() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Meta
}

func (p *FakeLocalParticipant) SetMetadata(md string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Meta = md
	return nil
}

func (p *FakeLocalParticipant) CanPublishData() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CanPublish
}

func (p *FakeLocalParticipant) PublishData(_ context.Context, payload []byte, opts domain.DataPublishOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.Published = append(p.Published, PublishedData{Payload: append([]byte(nil), payload...), Opts: opts})
	return nil
}

func (p *FakeLocalParticipant) PublishCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}

func (p *FakeLocalParticipant) EnableCamera(_ context.Context, enabled bool) error {
	return p.enable(domain.TrackKindVideo, "TR_local_video", enabled)
}

func (p *FakeLocalParticipant) EnableMicrophone(_ context.Context, enabled bool) error {
	return p.enable(domain.TrackKindAudio, "TR_local_audio", enabled)
}

func (p *FakeLocalParticipant) enable(kind domain.TrackKind, sid string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MediaErr != nil {
		return p.MediaErr
	}
	ts, ok := p.Tracks[kind]
	if !ok {
		if !enabled {
			return nil
		}
		ts = &domain.LocalTrackState{SID: sid}
		p.Tracks[kind] = ts
	}
	ts.Muted = !enabled
	ts.Enabled = enabled
	return nil
}

func (p *FakeLocalParticipant) SetScreenShareEnabled(_ context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenShareErr != nil {
		return p.ScreenShareErr
	}
	p.ScreenSharing = enabled
	return nil
}

func (p *FakeLocalParticipant) SetTrackMuted(kind domain.TrackKind, muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.Tracks[kind]
	if !ok {
		return domain.ErrTrackNotPublished
	}
	ts.Muted = muted
	ts.Enabled = !muted
	return nil
}

func (p *FakeLocalParticipant) TrackState(kind domain.TrackKind) (domain.LocalTrackState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.Tracks[kind]
	if !ok {
		return domain.LocalTrackState{}, false
	}
	return *ts, true
}

func (p *FakeLocalParticipant) VideoBytesSent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.BytesSent
}

func (p *FakeLocalParticipant) AddBytesSent(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BytesSent += n
}

type FakeRoom struct {
	mu sync.Mutex

	RoomName     string
	Meta         string
	State        domain.ConnectionState
	Local        *FakeLocalParticipant
	Remotes      []*FakeRemoteParticipant
	Disconnected bool
}

func NewFakeRoom(name, identity string) *FakeRoom {
	return &FakeRoom{
		RoomName: name,
		State:    domain.ConnectionConnected,
		Local:    NewFakeLocalParticipant(identity),
	}
}

func (r *FakeRoom) Name() string     { return r.RoomName }
func (r *FakeRoom) Metadata() string { return r.Meta }

func (r *FakeRoom) ConnectionState() domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

func (r *FakeRoom) LocalParticipant() ports.LocalParticipant { return r.Local }

func (r *FakeRoom) RemoteParticipants() []ports.RemoteParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.RemoteParticipant, 0, len(r.Remotes))
	for _, rp := range r.Remotes {
		out = append(out, rp)
	}
	return out
}

func (r *FakeRoom) RemoteParticipant(identity string) (ports.RemoteParticipant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rp := range r.Remotes {
		if rp.Ident == identity {
			return rp, true
		}
	}
	return nil, false
}

func (r *FakeRoom) AddRemote(rp *FakeRemoteParticipant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Remotes = append(r.Remotes, rp)
}

func (r *FakeRoom) RemoveRemote(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rp := range r.Remotes {
		if rp.Ident == identity {
			r.Remotes = append(r.Remotes[:i], r.Remotes[i+1:]...)
			return
		}
	}
}

func (r *FakeRoom) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Disconnected = true
	r.State = domain.ConnectionDisconnected
}

// FakeConnector returns Room from Connect. When Confirm is set it emits
// events.Connected on the sink before returning.
type FakeConnector struct {
	mu sync.Mutex

	Room     *FakeRoom
	Err      error
	Failures int
	Confirm  bool
	Verified bool
	Calls    int
	Params   domain.JoinParams

	// OnConnect runs before the Connected event is emitted.
	OnConnect func()
}

func (c *FakeConnector) Connect(_ context.Context, params domain.JoinParams, sink events.Emitter) (ports.Room, error) {
	c.mu.Lock()
	c.Calls++
	c.Params = params
	if c.Failures > 0 {
		c.Failures--
		c.mu.Unlock()
		return nil, c.Err
	}
	if c.Err != nil && c.Failures == 0 && c.Room == nil {
		c.mu.Unlock()
		return nil, c.Err
	}
	room, confirm, verified, hook := c.Room, c.Confirm, c.Verified, c.OnConnect
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	if confirm {
		sink.Emit(events.Connected{Verified: verified})
	}
	return room, nil
}

// SyncEmitter dispatches emitted events immediately on the calling goroutine.
type SyncEmitter struct {
	Bus *events.Bus
}

func (e SyncEmitter) Emit(ev events.Event) { e.Bus.Dispatch(ev) }
