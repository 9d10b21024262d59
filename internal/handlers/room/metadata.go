package room

import (
	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
)

// MetadataHandlers record every metadata change. The listening flags are
// reported alongside but do not gate recording.
type MetadataHandlers struct {
	d Deps
}

func NewMetadataHandlers(d Deps) *MetadataHandlers {
	d.defaults()
	return &MetadataHandlers{d: d}
}

func (h *MetadataHandlers) Register(reg *events.Registry) {
	const owner = "metadata"
	reg.Register(events.TypeRoomMetadataChanged, observe(h.d, h.onRoomMetadataChanged), owner)
	reg.Register(events.TypeParticipantMetadataChanged, observe(h.d, h.onParticipantMetadataChanged), owner)
}

func (h *MetadataHandlers) onRoomMetadataChanged(ev events.Event) {
	e := ev.(events.RoomMetadataChanged)
	h.d.Store.Metadata.AddRoomEvent(domain.RoomMetadataEvent{
		Metadata:  e.Metadata,
		Timestamp: h.d.nowMs(),
	})
	h.d.Store.SyncToWindow()
	h.d.Board.Tracef("Room metadata changed: %s", e.Metadata)
}

func (h *MetadataHandlers) onParticipantMetadataChanged(ev events.Event) {
	e := ev.(events.ParticipantMetadataChanged)
	identity := identityOf(e.Participant)
	h.d.Store.Metadata.AddParticipantEvent(domain.ParticipantMetadataEvent{
		ParticipantIdentity: identity,
		Metadata:            e.Participant.Metadata,
		PrevMetadata:        e.PrevMetadata,
		Timestamp:           h.d.nowMs(),
	})
	h.d.Store.SyncToWindow()
	h.d.Board.Tracef("Participant metadata changed: %s -> %s", identity, e.Participant.Metadata)
}
