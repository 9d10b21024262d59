package services

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/ports"
	"meetprobe/internal/core/state"
)

const noConsoleLogs = "No console logs captured"

// Helpers is the driver-facing action and query surface over the client and
// the store. Every method is safe to call while not joined.
type Helpers struct {
	client  *MeetingClient
	store   *state.Store
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	now     func() time.Time

	maxReceiveBandwidth atomic.Int64
}

func NewHelpers(client *MeetingClient, store *state.Store, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Helpers {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Helpers{
		client:  client,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Helpers) Client() *MeetingClient { return h.client }
func (h *Helpers) Store() *state.Store    { return h.store }

func (h *Helpers) nowMs() int64 { return h.now().UnixMilli() }

// remote finds a remote participant of the current room.
func (h *Helpers) remote(identity string) (ports.RemoteParticipant, error) {
	room := h.client.Room()
	if room == nil {
		return nil, domain.ErrNoRoom
	}
	rp, ok := room.RemoteParticipant(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrParticipantNotFound, identity)
	}
	return rp, nil
}

func videoPublications(rp ports.RemoteParticipant) []ports.RemotePublication {
	var out []ports.RemotePublication
	for _, pub := range rp.Publications() {
		if pub.Kind() == domain.TrackKindVideo {
			out = append(out, pub)
		}
	}
	return out
}

// Connection

func (h *Helpers) LastError() string {
	return h.store.Errors.Last()
}

func (h *Helpers) IsRealWebRTCConnectionVerified() bool {
	return h.store.Connection.RealWebRTCVerified()
}

func (h *Helpers) IsConnectionEstablished() bool {
	return h.store.Connection.Established()
}

// ConnectionTime returns the elapsed connect time in ms, or 0 before the
// first Connected event.
func (h *Helpers) ConnectionTime() int64 {
	ms, _ := h.store.Connection.Time()
	return ms
}

func (h *Helpers) ConsoleLogs() string {
	if logs := h.store.Console.LogsAsString(); logs != "" {
		return logs
	}
	return noConsoleLogs
}
