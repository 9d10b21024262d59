package room

import (
	"meetprobe/internal/core/events"
)

type ParticipantHandlers struct {
	d Deps
}

func NewParticipantHandlers(d Deps) *ParticipantHandlers {
	d.defaults()
	return &ParticipantHandlers{d: d}
}

func (h *ParticipantHandlers) Register(reg *events.Registry) {
	const owner = "participant"
	reg.Register(events.TypeParticipantConnected, observe(h.d, h.onConnected), owner)
	reg.Register(events.TypeParticipantDisconnected, observe(h.d, h.onDisconnected), owner)
}

// onConnected schedules a manual subscription sweep for the newcomer.
func (h *ParticipantHandlers) onConnected(ev events.Event) {
	e := ev.(events.ParticipantConnected)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Participant connected: %s", identity)
	h.d.Logger.Infow("Participant connected", "participant", identity, "sid", e.Participant.SID)
	if h.d.Resubscriber != nil {
		h.d.Resubscriber.ScheduleManual(identity)
	}
}

func (h *ParticipantHandlers) onDisconnected(ev events.Event) {
	e := ev.(events.ParticipantDisconnected)
	identity := identityOf(e.Participant)
	h.d.Board.Tracef("Participant disconnected: %s", identity)
	h.d.Logger.Infow("Participant disconnected", "participant", identity)

	if h.d.Resubscriber != nil {
		h.d.Resubscriber.ForgetParticipant(identity)
	}
	if _, ok := h.d.Store.Simulcast.ReceivingLayer(identity); ok {
		h.d.Store.Simulcast.RemoveReceivingLayer(identity)
		h.d.Store.SyncToWindow()
	}
}
