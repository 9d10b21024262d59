package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	// interframes are padded to this size; keyframes are four times larger.
	videoFrameSize = 1200
)

// MediaConfig sizes the synthetic tracks.
type MediaConfig struct {
	FPS    int
	Width  int
	Height int
}

func (c MediaConfig) withDefaults() MediaConfig {
	if c.FPS <= 0 {
		c.FPS = 15
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	return c
}

// sampleTrack writes synthetic samples to a local track until stopped. While
// muted it keeps the track published but writes nothing.
type sampleTrack struct {
	kind   domain.TrackKind
	source domain.TrackSource
	track  *webrtc.TrackLocalStaticSample
	cfg    MediaConfig

	sid   atomic.Value // string
	muted atomic.Bool
	bytes atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger
}

func newSampleTrack(kind domain.TrackKind, source domain.TrackSource, cfg MediaConfig, logger *zap.SugaredLogger) (*sampleTrack, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == domain.TrackKindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	id := fmt.Sprintf("%s-%s", source, uuid.NewString()[:8])
	track, err := webrtc.NewTrackLocalStaticSample(codec, id, "meetprobe")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s track: %w", source, err)
	}
	st := &sampleTrack{
		kind:   kind,
		source: source,
		track:  track,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
	st.sid.Store("")
	return st, nil
}

func (s *sampleTrack) SID() string {
	return s.sid.Load().(string)
}

func (s *sampleTrack) setSID(sid string) { s.sid.Store(sid) }

func (s *sampleTrack) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *sampleTrack) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *sampleTrack) run(ctx context.Context) {
	defer s.wg.Done()

	interval := audioFrameInterval
	if s.kind == domain.TrackKindVideo {
		interval = time.Second / time.Duration(s.cfg.FPS)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.muted.Load() {
			continue
		}
		data := s.nextSample(frame)
		frame++
		if err := s.track.WriteSample(media.Sample{Data: data, Duration: interval}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Debugw("Sample write failed", "source", s.source, "error", err)
			continue
		}
		s.bytes.Add(uint64(len(data)))
	}
}

func (s *sampleTrack) nextSample(frame int) []byte {
	if s.kind != domain.TrackKindVideo {
		return opusSilence
	}
	if frame%s.cfg.FPS == 0 {
		return syntheticVP8Frame(s.cfg.Width, s.cfg.Height, true, 4*videoFrameSize)
	}
	return syntheticVP8Frame(s.cfg.Width, s.cfg.Height, false, videoFrameSize)
}
