package services

import (
	"meetprobe/internal/core/domain"
)

func (h *Helpers) MuteAudio() error   { return h.client.SetLocalMuted(domain.TrackKindAudio, true) }
func (h *Helpers) UnmuteAudio() error { return h.client.SetLocalMuted(domain.TrackKindAudio, false) }
func (h *Helpers) MuteVideo() error   { return h.client.SetLocalMuted(domain.TrackKindVideo, true) }
func (h *Helpers) UnmuteVideo() error { return h.client.SetLocalMuted(domain.TrackKindVideo, false) }

// IsAudioMuted is true when there is no room or no published microphone.
func (h *Helpers) IsAudioMuted() bool {
	return h.isMuted(domain.TrackKindAudio)
}

// IsVideoMuted is true when there is no room or no published camera.
func (h *Helpers) IsVideoMuted() bool {
	return h.isMuted(domain.TrackKindVideo)
}

func (h *Helpers) isMuted(kind domain.TrackKind) bool {
	ts, ok := h.LocalTrackMuteState(kind)
	if !ok {
		return true
	}
	return ts.Muted
}

func (h *Helpers) LocalTrackMuteState(kind domain.TrackKind) (domain.LocalTrackState, bool) {
	room := h.client.Room()
	if room == nil {
		return domain.LocalTrackState{}, false
	}
	return room.LocalParticipant().TrackState(kind)
}

func (h *Helpers) RemoteTrackMuteState(identity string, kind domain.TrackKind) (domain.LocalTrackState, bool) {
	rp, err := h.remote(identity)
	if err != nil {
		return domain.LocalTrackState{}, false
	}
	pub, ok := rp.Publication(kind)
	if !ok {
		return domain.LocalTrackState{}, false
	}
	return domain.LocalTrackState{
		Muted:   pub.IsMuted(),
		Enabled: pub.HasTrack() && !pub.IsMuted(),
		SID:     pub.SID(),
	}, true
}

func (h *Helpers) MuteEvents() []domain.MuteEvent {
	return h.store.Mute.Events()
}

func (h *Helpers) MuteEventCount() int {
	return h.store.Mute.EventCount()
}

func (h *Helpers) LastMuteEvent() (domain.MuteEvent, bool) {
	return h.store.Mute.LastEvent()
}

func (h *Helpers) ClearMuteEvents() {
	h.store.Mute.Clear()
	h.store.SyncToWindow()
}
