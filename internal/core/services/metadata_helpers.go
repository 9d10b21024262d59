package services

import (
	"meetprobe/internal/core/domain"
)

func (h *Helpers) StartListeningRoom() {
	h.store.Metadata.SetRoomListening(true)
	h.store.SyncToWindow()
}

func (h *Helpers) StartListeningParticipant() {
	h.store.Metadata.SetParticipantListening(true)
	h.store.SyncToWindow()
}

func (h *Helpers) RoomMetadataEvents() []domain.RoomMetadataEvent {
	return h.store.Metadata.RoomEvents()
}

func (h *Helpers) ParticipantMetadataEvents() []domain.ParticipantMetadataEvent {
	return h.store.Metadata.ParticipantEvents()
}

func (h *Helpers) RoomMetadata() string {
	room := h.client.Room()
	if room == nil {
		return ""
	}
	return room.Metadata()
}

func (h *Helpers) LocalMetadata() string {
	room := h.client.Room()
	if room == nil {
		return ""
	}
	return room.LocalParticipant().Metadata()
}

// ParticipantMetadata looks identity up among remote participants first and
// then the local one.
func (h *Helpers) ParticipantMetadata(identity string) string {
	room := h.client.Room()
	if room == nil {
		return ""
	}
	if rp, ok := room.RemoteParticipant(identity); ok {
		return rp.Metadata()
	}
	if lp := room.LocalParticipant(); lp.Identity() == identity {
		return lp.Metadata()
	}
	return ""
}

func (h *Helpers) SetLocalMetadata(metadata string) error {
	room := h.client.Room()
	if room == nil {
		return domain.ErrNoRoom
	}
	return room.LocalParticipant().SetMetadata(metadata)
}

func (h *Helpers) HasRoomEventWithValue(value string) bool {
	for _, e := range h.store.Metadata.RoomEvents() {
		if e.Metadata == value {
			return true
		}
	}
	return false
}

func (h *Helpers) HasParticipantEventWithValue(identity, value string) bool {
	for _, e := range h.store.Metadata.ParticipantEvents() {
		if e.ParticipantIdentity == identity && e.Metadata == value {
			return true
		}
	}
	return false
}

func (h *Helpers) ClearMetadataEvents() {
	h.store.Metadata.Clear()
	h.store.SyncToWindow()
}
