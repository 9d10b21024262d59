package services

import (
	"context"
	"math"
	"time"

	"meetprobe/internal/core/domain"
)

// CaptureBaseline records the bytes sent on local video so far.
func (h *Helpers) CaptureBaseline() (domain.BaselineCapture, error) {
	room := h.client.Room()
	if room == nil {
		return domain.BaselineCapture{}, domain.ErrNoRoom
	}
	if _, ok := room.LocalParticipant().TrackState(domain.TrackKindVideo); !ok {
		return domain.BaselineCapture{}, domain.ErrTrackNotPublished
	}
	capture := domain.BaselineCapture{
		Bytes:     room.LocalParticipant().VideoBytesSent(),
		Timestamp: h.nowMs(),
	}
	h.store.Bitrate.SetBaselineCapture(capture)
	h.store.SyncToWindow()
	return capture, nil
}

// CurrentBitrateKbps is the outbound video rate since the baseline. It is 0
// without a room, a baseline or elapsed time.
func (h *Helpers) CurrentBitrateKbps() int64 {
	room := h.client.Room()
	if room == nil {
		return 0
	}
	baseline, ok := h.store.Bitrate.BaselineCapture()
	if !ok {
		return 0
	}
	return kbps(room.LocalParticipant().VideoBytesSent(), baseline.Bytes, h.nowMs()-baseline.Timestamp)
}

// MeasureBitrateOverInterval samples bytes sent twice, d apart.
func (h *Helpers) MeasureBitrateOverInterval(ctx context.Context, d time.Duration) (int64, error) {
	room := h.client.Room()
	if room == nil {
		return 0, domain.ErrNoRoom
	}
	lp := room.LocalParticipant()
	startBytes, start := lp.VideoBytesSent(), h.nowMs()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	return kbps(lp.VideoBytesSent(), startBytes, h.nowMs()-start), nil
}

func kbps(bytes, baseline uint64, elapsedMs int64) int64 {
	if elapsedMs <= 0 {
		return 0
	}
	delta := float64(bytes) - float64(baseline)
	bitsPerSecond := delta * 8 / (float64(elapsedMs) / 1000)
	return int64(math.Round(bitsPerSecond / 1000))
}
