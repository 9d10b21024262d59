// Package room translates room events into store records. Handlers observe
// only; they never retry or recover beyond scheduling resubscriptions.
package room

import (
	"time"

	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/ports"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
)

// Lifecycle is the part of the meeting client the handlers drive.
type Lifecycle interface {
	MarkConnected() bool
	HandleDisconnection(reason string)
}

// Resubscription is the part of the resubscriber the handlers drive.
type Resubscription interface {
	ScheduleForced(identity string)
	ScheduleManual(identity string)
	TrackArrived(sid string)
	ForgetParticipant(identity string)
	RecordFailure(sid, identity string, err error, kind domain.AttemptType)
}

type Deps struct {
	Store        *state.Store
	Board        *status.Board
	Client       Lifecycle
	Resubscriber Resubscription
	Metrics      ports.MetricsRecorder
	Logger       *zap.SugaredLogger
	Now          func() time.Time
}

func (d *Deps) defaults() {
	if d.Metrics == nil {
		d.Metrics = ports.NopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Board == nil {
		d.Board = status.NewBoard()
	}
}

func (d *Deps) nowMs() int64 { return d.Now().UnixMilli() }

// RegisterAll declares every handler set on reg.
func RegisterAll(reg *events.Registry, d Deps) {
	d.defaults()
	NewConnectionHandlers(d).Register(reg)
	NewTrackHandlers(d).Register(reg)
	NewParticipantHandlers(d).Register(reg)
	NewDataHandlers(d).Register(reg)
	NewMetadataHandlers(d).Register(reg)
}

// observe counts every event before handing it to h.
func observe(d Deps, h events.Handler) events.Handler {
	return func(ev events.Event) {
		d.Metrics.RecordEvent(string(ev.Type()))
		h(ev)
	}
}

func identityOf(p events.Participant) string {
	if p.Identity == "" {
		return "unknown"
	}
	return p.Identity
}
