package livekit

import (
	"context"
	"fmt"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/ports"
)

type localTrack struct {
	samples *sampleTrack
	pub     *lksdk.LocalTrackPublication
}

// LocalParticipant publishes synthetic media on behalf of the probe.
type LocalParticipant struct {
	lp     *lksdk.LocalParticipant
	media  MediaConfig
	logger *zap.SugaredLogger

	mu     sync.Mutex
	tracks map[domain.TrackKind]*localTrack
	screen *localTrack
}

var _ ports.LocalParticipant = (*LocalParticipant)(nil)

func newLocalParticipant(lp *lksdk.LocalParticipant, media MediaConfig, logger *zap.SugaredLogger) *LocalParticipant {
	return &LocalParticipant{
		lp:     lp,
		media:  media.withDefaults(),
		logger: logger,
		tracks: make(map[domain.TrackKind]*localTrack),
	}
}

func (l *LocalParticipant) Identity() string { return l.lp.Identity() }
func (l *LocalParticipant) Metadata() string { return l.lp.Metadata() }

func (l *LocalParticipant) SetMetadata(metadata string) error {
	l.lp.SetMetadata(metadata)
	return nil
}

func (l *LocalParticipant) CanPublishData() bool {
	return l.lp.Permissions().GetCanPublishData()
}

func (l *LocalParticipant) PublishData(ctx context.Context, payload []byte, opts domain.DataPublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	publishOpts := []lksdk.DataPublishOption{lksdk.WithDataPublishReliable(opts.Reliable)}
	if len(opts.DestinationIdentities) > 0 {
		publishOpts = append(publishOpts, lksdk.WithDataPublishDestination(opts.DestinationIdentities))
	}
	if opts.Topic != "" {
		publishOpts = append(publishOpts, lksdk.WithDataPublishTopic(opts.Topic))
	}
	return l.lp.PublishDataPacket(lksdk.UserData(payload), publishOpts...)
}

func (l *LocalParticipant) EnableCamera(ctx context.Context, enabled bool) error {
	return l.enable(ctx, domain.TrackKindVideo, domain.SourceCamera, enabled)
}

func (l *LocalParticipant) EnableMicrophone(ctx context.Context, enabled bool) error {
	return l.enable(ctx, domain.TrackKindAudio, domain.SourceMicrophone, enabled)
}

func (l *LocalParticipant) enable(ctx context.Context, kind domain.TrackKind, source domain.TrackSource, enabled bool) error {
	l.mu.Lock()
	_, published := l.tracks[kind]
	l.mu.Unlock()

	if published {
		return l.SetTrackMuted(kind, !enabled)
	}
	if !enabled {
		return nil
	}

	t, err := l.publish(ctx, kind, source)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.tracks[kind] = t
	l.mu.Unlock()
	return nil
}

func (l *LocalParticipant) publish(ctx context.Context, kind domain.TrackKind, source domain.TrackSource) (*localTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	samples, err := newSampleTrack(kind, source, l.media, l.logger)
	if err != nil {
		return nil, err
	}
	opts := &lksdk.TrackPublicationOptions{
		Name:   string(source),
		Source: sourceToProto(source),
	}
	if kind == domain.TrackKindVideo {
		opts.VideoWidth = l.media.Width
		opts.VideoHeight = l.media.Height
	}
	pub, err := l.lp.PublishTrack(samples.track, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", source, err)
	}
	samples.setSID(pub.SID())
	samples.start()

	l.logger.Infow("Published synthetic track", "source", source, "track_sid", pub.SID())
	return &localTrack{samples: samples, pub: pub}, nil
}

func (l *LocalParticipant) SetScreenShareEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	screen := l.screen
	l.mu.Unlock()

	if enabled {
		if screen != nil {
			return nil
		}
		t, err := l.publish(ctx, domain.TrackKindVideo, domain.SourceScreenShare)
		if err != nil {
			return err
		}
		l.mu.Lock()
		l.screen = t
		l.mu.Unlock()
		return nil
	}

	if screen == nil {
		return nil
	}
	l.mu.Lock()
	l.screen = nil
	l.mu.Unlock()
	screen.samples.stop()
	if err := l.lp.UnpublishTrack(screen.pub.SID()); err != nil {
		return fmt.Errorf("failed to unpublish screen share: %w", err)
	}
	return nil
}

func (l *LocalParticipant) SetTrackMuted(kind domain.TrackKind, muted bool) error {
	l.mu.Lock()
	t, ok := l.tracks[kind]
	l.mu.Unlock()
	if !ok {
		return domain.ErrTrackNotPublished
	}
	t.samples.muted.Store(muted)
	t.pub.SetMuted(muted)
	return nil
}

func (l *LocalParticipant) TrackState(kind domain.TrackKind) (domain.LocalTrackState, bool) {
	l.mu.Lock()
	t, ok := l.tracks[kind]
	l.mu.Unlock()
	if !ok {
		return domain.LocalTrackState{}, false
	}
	muted := t.samples.muted.Load()
	return domain.LocalTrackState{Muted: muted, Enabled: !muted, SID: t.samples.SID()}, true
}

func (l *LocalParticipant) VideoBytesSent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	if t, ok := l.tracks[domain.TrackKindVideo]; ok {
		total += t.samples.bytes.Load()
	}
	if l.screen != nil {
		total += l.screen.samples.bytes.Load()
	}
	return total
}

func (l *LocalParticipant) stopMedia() {
	l.mu.Lock()
	all := make([]*localTrack, 0, len(l.tracks)+1)
	for _, t := range l.tracks {
		all = append(all, t)
	}
	if l.screen != nil {
		all = append(all, l.screen)
	}
	l.mu.Unlock()

	for _, t := range all {
		t.samples.stop()
	}
}

// RemoteParticipant is a read-mostly view over an SDK remote participant.
type RemoteParticipant struct {
	rp   *lksdk.RemoteParticipant
	sess *session
}

var _ ports.RemoteParticipant = (*RemoteParticipant)(nil)

func (r *RemoteParticipant) Identity() string { return r.rp.Identity() }
func (r *RemoteParticipant) SID() string      { return r.rp.SID() }
func (r *RemoteParticipant) Metadata() string { return r.rp.Metadata() }

func (r *RemoteParticipant) Publications() []ports.RemotePublication {
	var out []ports.RemotePublication
	for _, tp := range r.rp.TrackPublications() {
		pub, ok := tp.(*lksdk.RemoteTrackPublication)
		if !ok {
			continue
		}
		out = append(out, &RemotePublication{pub: pub, sess: r.sess})
	}
	return out
}

func (r *RemoteParticipant) Publication(kind domain.TrackKind) (ports.RemotePublication, bool) {
	for _, pub := range r.Publications() {
		if pub.Kind() == kind {
			return pub, true
		}
	}
	return nil, false
}

type RemotePublication struct {
	pub  *lksdk.RemoteTrackPublication
	sess *session
}

var _ ports.RemotePublication = (*RemotePublication)(nil)

func (p *RemotePublication) SID() string                { return p.pub.SID() }
func (p *RemotePublication) Kind() domain.TrackKind     { return kindOf(p.pub.Kind()) }
func (p *RemotePublication) Source() domain.TrackSource { return sourceOf(p.pub.Source()) }
func (p *RemotePublication) IsSubscribed() bool         { return p.pub.IsSubscribed() }
func (p *RemotePublication) HasTrack() bool             { return p.pub.TrackRemote() != nil }
func (p *RemotePublication) IsMuted() bool              { return p.pub.IsMuted() }

func (p *RemotePublication) SetSubscribed(subscribed bool) error {
	return p.pub.SetSubscribed(subscribed)
}

func (p *RemotePublication) SetVideoQuality(q domain.VideoQuality) error {
	quality, err := qualityToProto(q)
	if err != nil {
		return err
	}
	return p.pub.SetVideoQuality(quality)
}

func (p *RemotePublication) Dimensions() (int, int) {
	info := p.pub.TrackInfo()
	if info == nil {
		return 0, 0
	}
	return int(info.GetWidth()), int(info.GetHeight())
}

func (p *RemotePublication) ReceiveStats() (domain.ReceiveStats, bool) {
	return p.sess.receiveStats(p.pub.SID())
}
