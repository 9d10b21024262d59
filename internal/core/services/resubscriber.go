package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/ports"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
	"meetprobe/pkg/config"
	"meetprobe/pkg/errclass"
	"meetprobe/pkg/listeners"
	"meetprobe/pkg/retry"
	"meetprobe/pkg/tracing"
)

// ResubscribeConfig bounds the repair of remote video subscriptions.
type ResubscribeConfig struct {
	Interval    time.Duration
	MaxAttempts int // per track, 0 = unlimited
	Backoff     retry.Config
	ForcedDelay time.Duration
	ManualDelay time.Duration
}

func ResubscribeConfigFrom(cfg *config.Config) ResubscribeConfig {
	return ResubscribeConfig{
		Interval:    cfg.Resubscribe.Interval,
		MaxAttempts: cfg.Resubscribe.MaxAttempts,
		Backoff: retry.Config{
			Enabled:      true,
			InitialDelay: cfg.Resubscribe.InitialDelay,
			MaxDelay:     cfg.Resubscribe.MaxDelay,
			Multiplier:   cfg.Resubscribe.Multiplier,
		},
		ForcedDelay: cfg.Resubscribe.ForcedDelay,
		ManualDelay: cfg.Resubscribe.ManualDelay,
	}
}

type trackAttempts struct {
	identity string
	count    int
	nextAt   time.Time
	blocked  bool
}

// Resubscriber re-requests remote video publications that are neither
// subscribed nor carrying a track. Attempts are counted per track and spaced
// by exponential backoff; a permission failure stops a track for good.
type Resubscriber struct {
	cfg     ResubscribeConfig
	store   *state.Store
	board   *status.Board
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu         sync.Mutex
	room       ports.Room
	timers     *listeners.Manager
	interval   listeners.Handle
	attempts   map[string]*trackAttempts
	generation uint64
}

func NewResubscriber(
	cfg ResubscribeConfig,
	store *state.Store,
	board *status.Board,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Resubscriber {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Resubscriber{
		cfg:      cfg,
		store:    store,
		board:    board,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		attempts: make(map[string]*trackAttempts),
	}
}

// Start binds the resubscriber to room and begins the periodic sweep. Timers
// are created through timers so that the owner's Cleanup cancels them.
func (r *Resubscriber) Start(room ports.Room, timers *listeners.Manager) {
	r.mu.Lock()
	r.room = room
	r.timers = timers
	r.attempts = make(map[string]*trackAttempts)
	r.mu.Unlock()

	if r.cfg.Interval <= 0 || timers == nil {
		return
	}
	h := timers.AddInterval(r.cfg.Interval, func() {
		r.Sweep(context.Background(), domain.AttemptPeriodic)
	})

	r.mu.Lock()
	r.interval = h
	r.mu.Unlock()
}

// Stop unbinds the room. Attempts still in flight settle into nothing.
func (r *Resubscriber) Stop() {
	r.mu.Lock()
	timers, h := r.timers, r.interval
	r.room = nil
	r.timers = nil
	r.interval = 0
	r.attempts = make(map[string]*trackAttempts)
	r.generation++
	r.mu.Unlock()

	if timers != nil && h != 0 {
		timers.ClearInterval(h)
	}
}

// ScheduleForced sweeps one participant after the forced delay. Used when a
// remote video track is published.
func (r *Resubscriber) ScheduleForced(identity string) {
	r.schedule(r.cfg.ForcedDelay, identity, domain.AttemptForced)
}

// ScheduleManual sweeps one participant after the manual delay. Used when a
// participant joins.
func (r *Resubscriber) ScheduleManual(identity string) {
	r.schedule(r.cfg.ManualDelay, identity, domain.AttemptManual)
}

func (r *Resubscriber) schedule(delay time.Duration, identity string, kind domain.AttemptType) {
	r.mu.Lock()
	timers := r.timers
	r.mu.Unlock()
	if timers == nil {
		return
	}
	timers.AddTimeout(delay, func() {
		r.SweepParticipant(context.Background(), identity, kind)
	})
}

// Sweep attempts every pending remote video publication and returns how many
// subscribe requests it issued.
func (r *Resubscriber) Sweep(ctx context.Context, kind domain.AttemptType) int {
	room, gen := r.current()
	if room == nil || room.ConnectionState() != domain.ConnectionConnected {
		return 0
	}
	n := 0
	for _, rp := range room.RemoteParticipants() {
		n += r.sweepParticipant(ctx, rp, kind, gen)
	}
	return n
}

func (r *Resubscriber) SweepParticipant(ctx context.Context, identity string, kind domain.AttemptType) int {
	room, gen := r.current()
	if room == nil {
		return 0
	}
	rp, ok := room.RemoteParticipant(identity)
	if !ok {
		return 0
	}
	return r.sweepParticipant(ctx, rp, kind, gen)
}

func (r *Resubscriber) sweepParticipant(ctx context.Context, rp ports.RemoteParticipant, kind domain.AttemptType, gen uint64) int {
	n := 0
	for _, pub := range rp.Publications() {
		if pub.Kind() != domain.TrackKindVideo || pub.IsSubscribed() || pub.HasTrack() {
			continue
		}
		if !r.admit(pub.SID(), rp.Identity(), kind) {
			continue
		}
		r.attempt(ctx, rp.Identity(), pub, kind, gen)
		n++
	}
	return n
}

// admit reserves an attempt for sid. Periodic sweeps also honour the backoff
// window; forced and manual attempts only count against the budget.
func (r *Resubscriber) admit(sid, identity string, kind domain.AttemptType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.attempts[sid]
	if !ok {
		rec = &trackAttempts{identity: identity}
		r.attempts[sid] = rec
	}
	if rec.blocked {
		return false
	}
	if r.cfg.MaxAttempts > 0 && rec.count >= r.cfg.MaxAttempts {
		return false
	}
	now := r.now()
	if kind == domain.AttemptPeriodic && now.Before(rec.nextAt) {
		return false
	}
	rec.nextAt = now.Add(retry.Backoff(r.cfg.Backoff, rec.count))
	rec.count++
	return true
}

func (r *Resubscriber) attempt(ctx context.Context, identity string, pub ports.RemotePublication, kind domain.AttemptType, gen uint64) {
	ctx, span := tracing.TraceSubscription(ctx, string(kind), identity, pub.SID())
	defer span.End()

	err := pub.SetSubscribed(true)
	if !r.isCurrent(gen) {
		r.logger.Debugw("Dropping subscription result after teardown", "track_sid", pub.SID(), "type", kind)
		return
	}

	r.metrics.RecordSubscriptionAttempt(string(kind), err == nil)
	if err != nil {
		tracing.RecordError(ctx, err)
		r.RecordFailure(pub.SID(), identity, err, kind)
		return
	}
	r.board.Tracef("Subscription %s requested for %s video", kind, identity)
}

// RecordFailure stores a structured subscription failure. Permission failures
// set the denied flag and block further attempts on the track.
func (r *Resubscriber) RecordFailure(sid, identity string, err error, kind domain.AttemptType) {
	msg := errclass.Message(err)
	r.store.Subscription.AddFailure(domain.SubscriptionFailure{
		TrackSID:            sid,
		ParticipantIdentity: identity,
		Error:               msg,
		Timestamp:           r.now().UnixMilli(),
		Type:                kind,
	})
	r.store.Subscription.SetLastError(msg)

	permission := errclass.IsPermission(err)
	if permission {
		r.store.Subscription.SetPermissionDenied(true)
		r.mu.Lock()
		rec, ok := r.attempts[sid]
		if !ok {
			rec = &trackAttempts{identity: identity}
			r.attempts[sid] = rec
		}
		rec.blocked = true
		r.mu.Unlock()
	}
	r.store.SyncToWindow()

	r.board.Tracef("Subscription %s failed for %s: %s", kind, identity, msg)
	r.logger.Warnw("Subscription attempt failed",
		"track_sid", sid,
		"participant", identity,
		"type", kind,
		"category", errclass.Classify(err),
		"error", msg,
	)
}

// TrackArrived clears the bookkeeping of a track that is now flowing.
func (r *Resubscriber) TrackArrived(sid string) {
	r.mu.Lock()
	delete(r.attempts, sid)
	r.mu.Unlock()
}

// ForgetParticipant drops the bookkeeping of every track of identity.
func (r *Resubscriber) ForgetParticipant(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, rec := range r.attempts {
		if rec.identity == identity {
			delete(r.attempts, sid)
		}
	}
}

// Attempts returns how many attempts were made for sid and whether it is
// blocked.
func (r *Resubscriber) Attempts(sid string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.attempts[sid]
	if !ok {
		return 0, false
	}
	return rec.count, rec.blocked
}

func (r *Resubscriber) current() (ports.Room, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room, r.generation
}

func (r *Resubscriber) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen
}
