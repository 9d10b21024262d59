package services

import (
	"context"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/errclass"
)

const noScreenShareError = "No error captured"

// StartScreenShare publishes the synthetic screen track.
func (h *Helpers) StartScreenShare(ctx context.Context) error {
	return h.setScreenShare(ctx, true)
}

func (h *Helpers) StopScreenShare(ctx context.Context) error {
	return h.setScreenShare(ctx, false)
}

func (h *Helpers) setScreenShare(ctx context.Context, enabled bool) error {
	room := h.client.Room()
	if room == nil {
		h.store.ScreenShare.SetLastError(domain.ErrNoRoom.Error())
		h.store.SyncToWindow()
		return domain.ErrNoRoom
	}

	if err := room.LocalParticipant().SetScreenShareEnabled(ctx, enabled); err != nil {
		msg := errclass.Message(err)
		h.store.ScreenShare.SetLastError(msg)
		if errclass.IsPermission(err) {
			h.store.ScreenShare.SetPermissionDenied(true)
		}
		h.store.SyncToWindow()
		h.logger.Errorw("Screen share toggle failed", "enabled", enabled, "error", err)
		return err
	}

	h.store.ScreenShare.SetActive(enabled)
	h.store.SyncToWindow()
	return nil
}

func (h *Helpers) IsScreenSharing() bool {
	return h.store.ScreenShare.Active()
}

func (h *Helpers) IsScreenSharePermissionDenied() bool {
	return h.store.ScreenShare.PermissionDenied()
}

func (h *Helpers) LastScreenShareError() string {
	if msg := h.store.ScreenShare.LastError(); msg != "" {
		return msg
	}
	return noScreenShareError
}

func (h *Helpers) EnableSimulcast()  { h.setSimulcast(true) }
func (h *Helpers) DisableSimulcast() { h.setSimulcast(false) }

func (h *Helpers) setSimulcast(v bool) {
	h.store.Simulcast.SetEnabled(v)
	h.client.SetSimulcastEnabled(v)
	h.store.SyncToWindow()
}

func (h *Helpers) IsSimulcastEnabled() bool {
	return h.client.SimulcastEnabled()
}

// SetVideoQualityPreference stores q and applies it to every subscribed
// remote video.
func (h *Helpers) SetVideoQualityPreference(q domain.VideoQuality) error {
	if err := h.store.Simulcast.SetCurrentQuality(q); err != nil {
		return err
	}
	h.store.SyncToWindow()

	room := h.client.Room()
	if room == nil {
		return nil
	}
	for _, rp := range room.RemoteParticipants() {
		for _, pub := range videoPublications(rp) {
			if !pub.IsSubscribed() {
				continue
			}
			if err := pub.SetVideoQuality(q); err != nil {
				h.logger.Warnw("Failed to set video quality", "participant", rp.Identity(), "quality", q, "error", err)
			}
		}
	}
	return nil
}

func (h *Helpers) VideoQualityPreference() domain.VideoQuality {
	return h.store.Simulcast.CurrentQuality()
}

// SetMaxReceiveBandwidth records a receive cap in bits per second. The SDK
// has no receive-side cap, so it is reported only.
func (h *Helpers) SetMaxReceiveBandwidth(bps int64) {
	h.maxReceiveBandwidth.Store(bps)
}

func (h *Helpers) MaxReceiveBandwidth() int64 {
	return h.maxReceiveBandwidth.Load()
}

// RemoteVideoTrackWidth returns the received frame width of identity's video,
// or 0.
func (h *Helpers) RemoteVideoTrackWidth(identity string) int {
	rp, err := h.remote(identity)
	if err != nil {
		return 0
	}
	width := 0
	for _, pub := range videoPublications(rp) {
		if !pub.HasTrack() {
			continue
		}
		if rs, ok := pub.ReceiveStats(); ok && rs.Width > 0 {
			width = rs.Width
		} else if w, _ := pub.Dimensions(); w > 0 {
			width = w
		}
	}
	return width
}

func (h *Helpers) ReceivingLayerInfo(identity string) (domain.LayerInfo, bool) {
	return h.store.Simulcast.ReceivingLayer(identity)
}

func (h *Helpers) SubscribedVideoTrackCount() int {
	room := h.client.Room()
	if room == nil {
		return 0
	}
	n := 0
	for _, rp := range room.RemoteParticipants() {
		for _, pub := range videoPublications(rp) {
			if pub.IsSubscribed() {
				n++
			}
		}
	}
	return n
}

func (h *Helpers) IsDynacastEnabled() bool {
	return h.client.DynacastEnabled()
}
