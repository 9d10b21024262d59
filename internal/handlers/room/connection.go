package room

import (
	"time"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/pkg/errclass"
)

type ConnectionHandlers struct {
	d Deps
}

func NewConnectionHandlers(d Deps) *ConnectionHandlers {
	d.defaults()
	return &ConnectionHandlers{d: d}
}

func (h *ConnectionHandlers) Register(reg *events.Registry) {
	const owner = "connection"
	reg.Register(events.TypeConnected, observe(h.d, h.onConnected), owner)
	reg.Register(events.TypeDisconnected, observe(h.d, h.onDisconnected), owner)
	reg.Register(events.TypeReconnecting, observe(h.d, h.onReconnecting), owner)
	reg.Register(events.TypeReconnected, observe(h.d, h.onReconnected), owner)
	reg.Register(events.TypeConnectionQualityChanged, observe(h.d, h.onQualityChanged), owner)
	reg.Register(events.TypeMediaDevicesError, observe(h.d, h.onMediaDevicesError), owner)
	reg.Register(events.TypeEngineError, observe(h.d, h.onEngineError), owner)
}

func (h *ConnectionHandlers) onConnected(ev events.Event) {
	e := ev.(events.Connected)
	store := h.d.Store

	now := h.d.nowMs()
	if store.Connection.RecordConnected(now) {
		if ms, ok := store.Connection.Time(); ok {
			h.d.Metrics.ObserveConnectionTime(time.Duration(ms) * time.Millisecond)
			h.d.Board.Tracef("Connected event fired after %dms", ms)
		}
	} else {
		h.d.Board.Trace("Connected event fired")
	}
	if e.Verified {
		store.Connection.SetRealWebRTCVerified(true)
	}
	store.SyncToWindow()

	h.d.Logger.Infow("Connected event received", "verified", e.Verified)
	if h.d.Client != nil {
		h.d.Client.MarkConnected()
	}
}

func (h *ConnectionHandlers) onDisconnected(ev events.Event) {
	e := ev.(events.Disconnected)
	h.d.Board.Tracef("Disconnected from room (%s)", e.Reason)
	h.d.Logger.Warnw("Disconnected from room", "reason", e.Reason)
	if h.d.Client != nil {
		h.d.Client.HandleDisconnection(e.Reason)
	}
}

func (h *ConnectionHandlers) onReconnecting(events.Event) {
	h.d.Board.Trace("Reconnecting to room...")
	h.d.Board.Update("Reconnecting...", domain.SeverityWarning)
	h.d.Logger.Warnw("Reconnecting to room")
}

func (h *ConnectionHandlers) onReconnected(events.Event) {
	h.d.Board.Trace("Reconnected to room")
	h.d.Board.Update("Reconnected", domain.SeverityConnected)
	h.d.Logger.Infow("Reconnected to room")
}

func (h *ConnectionHandlers) onQualityChanged(ev events.Event) {
	e := ev.(events.ConnectionQualityChanged)
	who := e.Participant.Identity
	if who == "" || e.Participant.Local {
		who = "local"
	}
	h.d.Board.Tracef("Connection quality: %s for %s", e.Quality, who)
}

func (h *ConnectionHandlers) onMediaDevicesError(ev events.Event) {
	e := ev.(events.MediaDevicesError)
	h.recordError("Media devices error", e.Err)
}

func (h *ConnectionHandlers) onEngineError(ev events.Event) {
	e := ev.(events.EngineError)
	h.recordError("Room error", e.Err)
}

func (h *ConnectionHandlers) recordError(prefix string, err error) {
	msg := errclass.Message(err)
	h.d.Store.Errors.SetLast(msg)
	h.d.Store.SyncToWindow()
	h.d.Board.Tracef("%s: %s", prefix, msg)
	h.d.Logger.Errorw(prefix, "category", errclass.Classify(err), "error", msg)
}
