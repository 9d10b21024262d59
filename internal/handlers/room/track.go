package room

import (
	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
)

type TrackHandlers struct {
	d Deps
}

func NewTrackHandlers(d Deps) *TrackHandlers {
	d.defaults()
	return &TrackHandlers{d: d}
}

func (h *TrackHandlers) Register(reg *events.Registry) {
	const owner = "track"
	reg.Register(events.TypeTrackSubscribed, observe(h.d, h.onSubscribed), owner)
	reg.Register(events.TypeTrackUnsubscribed, observe(h.d, h.onUnsubscribed), owner)
	reg.Register(events.TypeTrackPublished, observe(h.d, h.onPublished), owner)
	reg.Register(events.TypeTrackUnpublished, observe(h.d, h.onUnpublished), owner)
	reg.Register(events.TypeTrackSubscriptionFailed, observe(h.d, h.onSubscriptionFailed), owner)
	reg.Register(events.TypeTrackMuted, observe(h.d, h.onMuted), owner)
	reg.Register(events.TypeTrackUnmuted, observe(h.d, h.onUnmuted), owner)
	reg.Register(events.TypeTrackStreamStateChanged, observe(h.d, h.onStreamStateChanged), owner)
}

func (h *TrackHandlers) onSubscribed(ev events.Event) {
	e := ev.(events.TrackSubscribed)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Track subscribed: %s from %s", e.Publication.Kind, identity)

	if h.d.Resubscriber != nil {
		h.d.Resubscriber.TrackArrived(e.Publication.SID)
	}
	if e.Publication.Kind != string(domain.TrackKindVideo) {
		return
	}
	h.d.Store.Simulcast.SetReceivingLayer(identity, domain.LayerInfo{
		TrackSID:  e.Publication.SID,
		Quality:   h.d.Store.Simulcast.CurrentQuality(),
		Width:     e.Publication.Width,
		Height:    e.Publication.Height,
		Timestamp: h.d.nowMs(),
	})
	h.d.Store.SyncToWindow()
}

func (h *TrackHandlers) onUnsubscribed(ev events.Event) {
	e := ev.(events.TrackUnsubscribed)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Track unsubscribed: %s from %s", e.Publication.Kind, identity)

	if e.Publication.Kind != string(domain.TrackKindVideo) {
		return
	}
	if layer, ok := h.d.Store.Simulcast.ReceivingLayer(identity); ok && layer.TrackSID == e.Publication.SID {
		h.d.Store.Simulcast.RemoveReceivingLayer(identity)
		h.d.Store.SyncToWindow()
	}
}

// onPublished forces a subscription to remote video shortly after it is
// published, in case auto-subscribe loses the race.
func (h *TrackHandlers) onPublished(ev events.Event) {
	e := ev.(events.TrackPublished)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Track published: %s from %s", e.Publication.Kind, identity)

	if e.Participant.Local || e.Publication.Kind != string(domain.TrackKindVideo) {
		return
	}
	if h.d.Resubscriber != nil {
		h.d.Board.Tracef("Forcing subscription to video track from %s", identity)
		h.d.Resubscriber.ScheduleForced(identity)
	}
}

func (h *TrackHandlers) onUnpublished(ev events.Event) {
	e := ev.(events.TrackUnpublished)
	h.d.Board.Tracef("Track unpublished: %s from %s", e.Publication.Kind, identityOf(e.Participant))
}

func (h *TrackHandlers) onSubscriptionFailed(ev events.Event) {
	e := ev.(events.TrackSubscriptionFailed)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Track subscription failed: %s from %s", e.TrackSID, identity)
	if h.d.Resubscriber != nil {
		h.d.Resubscriber.RecordFailure(e.TrackSID, identity, e.Err, domain.AttemptEvent)
	}
	h.d.Metrics.RecordSubscriptionAttempt(string(domain.AttemptEvent), false)
}

func (h *TrackHandlers) onMuted(ev events.Event) {
	e := ev.(events.TrackMuted)
	h.recordMute(domain.MuteEventMuted, e.Publication, e.Participant)
}

func (h *TrackHandlers) onUnmuted(ev events.Event) {
	e := ev.(events.TrackUnmuted)
	h.recordMute(domain.MuteEventUnmuted, e.Publication, e.Participant)
}

func (h *TrackHandlers) recordMute(t domain.MuteEventType, pub events.Publication, p events.Participant) {
	identity := identityOf(p)
	h.d.Store.Mute.AddEvent(domain.MuteEvent{
		Type:                t,
		TrackKind:           domain.TrackKind(pub.Kind),
		ParticipantIdentity: identity,
		TrackSID:            pub.SID,
		Timestamp:           h.d.nowMs(),
	})
	h.d.Store.SyncToWindow()
	h.d.Board.Tracef("Track %s: %s from %s", t, pub.Kind, identity)
}

func (h *TrackHandlers) onStreamStateChanged(ev events.Event) {
	e := ev.(events.TrackStreamStateChanged)
	identity := identityOf(e.Participant)
	h.d.Store.TrackStream.AddEvent(domain.TrackStreamEvent{
		TrackSID:            e.Publication.SID,
		TrackKind:           domain.TrackKind(e.Publication.Kind),
		ParticipantIdentity: identity,
		StreamState:         domain.StreamState(e.State),
		Timestamp:           h.d.nowMs(),
	})
	h.d.Store.SyncToWindow()
	h.d.Board.Tracef("Track stream state changed: %s from %s -> %s", e.Publication.Kind, identity, e.State)
}
