package services

import (
	"errors"
	"fmt"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/errclass"
)

// VideoStats describes the video received from one remote participant.
type VideoStats struct {
	IsSubscribed bool                `json:"isSubscribed"`
	HasTrack     bool                `json:"hasTrack"`
	FrameWidth   int                 `json:"frameWidth"`
	FrameHeight  int                 `json:"frameHeight"`
	IsPlaying    bool                `json:"isPlaying"`
	StreamState  domain.StreamState  `json:"streamState"`
	Receive      domain.ReceiveStats `json:"receive"`
	Timestamp    int64               `json:"timestamp"`
}

// SetVideoSubscribed toggles the subscription of every video publication of
// identity. The outcome is recorded as the last subscription error.
func (h *Helpers) SetVideoSubscribed(identity string, subscribed bool) error {
	h.store.Subscription.SetLastError("")
	err := h.setVideoSubscribed(identity, subscribed)
	if err != nil {
		h.store.Subscription.SetLastError(errclass.Message(err))
	}
	h.store.SyncToWindow()
	return err
}

func (h *Helpers) setVideoSubscribed(identity string, subscribed bool) error {
	rp, err := h.remote(identity)
	if err != nil {
		return err
	}

	pubs := videoPublications(rp)
	if len(pubs) == 0 {
		return fmt.Errorf("%w for: %s", domain.ErrVideoTrackNotFound, identity)
	}

	var errs []error
	success := false
	for _, pub := range pubs {
		if err := pub.SetSubscribed(subscribed); err != nil {
			h.logger.Warnw("Failed to set subscription", "participant", identity, "track_sid", pub.SID(), "error", err)
			errs = append(errs, err)
			continue
		}
		success = true
		h.logger.Infow("Set video subscription", "participant", identity, "subscribed", subscribed)
	}
	if success {
		return nil
	}
	return errors.Join(errs...)
}

func (h *Helpers) IsVideoSubscribed(identity string) bool {
	rp, err := h.remote(identity)
	if err != nil {
		return false
	}
	for _, pub := range videoPublications(rp) {
		if pub.IsSubscribed() {
			return true
		}
	}
	return false
}

// TrackStreamState reports unsubscribed, pending or the live stream state of
// identity's video. ok is false when there is nothing to report.
func (h *Helpers) TrackStreamState(identity string) (domain.StreamState, bool) {
	rp, err := h.remote(identity)
	if err != nil {
		return "", false
	}
	var st domain.StreamState
	found := false
	for _, pub := range videoPublications(rp) {
		found = true
		switch {
		case !pub.IsSubscribed():
			st = domain.StreamStateUnsubscribed
		case pub.HasTrack():
			st = h.lastStreamEvent(identity, pub.SID())
			if st == "" {
				st = domain.StreamStateActive
			}
		default:
			st = domain.StreamStatePending
		}
	}
	return st, found
}

// SubscriberVideoStats returns nil when identity has no received video track.
func (h *Helpers) SubscriberVideoStats(identity string) *VideoStats {
	rp, err := h.remote(identity)
	if err != nil {
		return nil
	}
	for _, pub := range videoPublications(rp) {
		if !pub.HasTrack() {
			continue
		}
		stats := &VideoStats{
			IsSubscribed: pub.IsSubscribed(),
			HasTrack:     true,
			StreamState:  domain.StreamStateActive,
			Timestamp:    h.nowMs(),
		}
		stats.FrameWidth, stats.FrameHeight = pub.Dimensions()
		if rs, ok := pub.ReceiveStats(); ok {
			stats.Receive = rs
			stats.IsPlaying = rs.Packets > 0
			if rs.Width > 0 {
				stats.FrameWidth, stats.FrameHeight = rs.Width, rs.Height
			}
		}
		if st := h.lastStreamEvent(identity, pub.SID()); st != "" {
			stats.StreamState = st
		}
		return stats
	}
	return nil
}

func (h *Helpers) lastStreamEvent(identity, sid string) domain.StreamState {
	events := h.store.TrackStream.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ParticipantIdentity == identity && events[i].TrackSID == sid {
			return events[i].StreamState
		}
	}
	return ""
}

func (h *Helpers) IsReceivingVideoFrom(identity string) bool {
	stats := h.SubscriberVideoStats(identity)
	if stats == nil {
		return false
	}
	return stats.IsSubscribed && stats.HasTrack &&
		(stats.FrameWidth > 0 || stats.IsPlaying || stats.StreamState == domain.StreamStateActive)
}

// ClearDynacastState drops the recorded stream state events.
func (h *Helpers) ClearDynacastState() {
	h.store.TrackStream.Clear()
	h.store.SyncToWindow()
}

func (h *Helpers) SubscriptionFailures() []domain.SubscriptionFailure {
	return h.store.Subscription.Failures()
}

func (h *Helpers) SubscriptionFailureCount() int {
	return h.store.Subscription.FailureCount()
}

func (h *Helpers) IsSubscriptionPermissionDenied() bool {
	return h.store.Subscription.PermissionDenied()
}

func (h *Helpers) LastSubscriptionError() string {
	return h.store.Subscription.LastError()
}
