package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
	"meetprobe/internal/core/ports"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
	"meetprobe/pkg/config"
	"meetprobe/pkg/errclass"
	"meetprobe/pkg/listeners"
	"meetprobe/pkg/retry"
	"meetprobe/pkg/tracing"
)

// ErrJoinCancelled is returned by Join when Leave ran while it was connecting.
var ErrJoinCancelled = errors.New("join cancelled")

type ClientConfig struct {
	JoinRetry      retry.Config
	ConnectTimeout time.Duration
	AutoJoinDelay  time.Duration
	PublishVideo   bool
	PublishAudio   bool
	Dynacast       bool
}

func ClientConfigFrom(cfg *config.Config) ClientConfig {
	return ClientConfig{
		JoinRetry: retry.Config{
			Enabled:      cfg.JoinRetry.MaxAttempts > 0,
			MaxAttempts:  cfg.JoinRetry.MaxAttempts,
			InitialDelay: cfg.JoinRetry.InitialDelay,
			MaxDelay:     cfg.JoinRetry.MaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		ConnectTimeout: cfg.Session.ConnectTimeout,
		AutoJoinDelay:  cfg.Session.AutoJoinDelay,
		PublishVideo:   cfg.Media.PublishVideo,
		PublishAudio:   cfg.Media.PublishAudio,
		Dynacast:       cfg.Session.Dynacast,
	}
}

// ClientDeps are the collaborators of a MeetingClient. Tokens, Emitter and
// Metrics are optional.
type ClientDeps struct {
	Connector ports.Connector
	Tokens    ports.TokenMinter
	Store     *state.Store
	Board     *status.Board
	Bus       *events.Bus
	Emitter   events.Emitter
	Registry  *events.Registry
	Metrics   ports.MetricsRecorder
	Logger    *zap.SugaredLogger
}

// MeetingClient owns the room handle and drives the join/leave lifecycle:
// idle -> connecting -> media-acquiring -> connected -> disconnected.
// The connected state is entered only when the Connected event arrives.
type MeetingClient struct {
	cfg       ClientConfig
	connector ports.Connector
	tokens    ports.TokenMinter
	store     *state.Store
	board     *status.Board
	bus       *events.Bus
	emitter   events.Emitter
	registry  *events.Registry
	resub     *Resubscriber
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu         sync.RWMutex
	state      domain.ClientState
	room       ports.Room
	params     domain.JoinParams
	timers     *listeners.Manager
	generation uint64
	simulcast  bool
	autoJoin   *listeners.Manager
}

func NewMeetingClient(cfg ClientConfig, resub *Resubscriber, deps ClientDeps) *MeetingClient {
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Emitter == nil {
		deps.Emitter = deps.Bus
	}
	if deps.Board == nil {
		deps.Board = status.NewBoard()
	}
	return &MeetingClient{
		cfg:       cfg,
		connector: deps.Connector,
		tokens:    deps.Tokens,
		store:     deps.Store,
		board:     deps.Board,
		bus:       deps.Bus,
		emitter:   deps.Emitter,
		registry:  deps.Registry,
		resub:     resub,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
		state:     domain.ClientIdle,
		simulcast: true,
		autoJoin:  listeners.NewManager(deps.Logger),
	}
}

// Join connects to the room described by sp, publishes synthetic media and
// starts the resubscription sweep. It returns once the room is joined; the
// client reports connected after the Connected event has been handled.
func (c *MeetingClient) Join(ctx context.Context, sp config.SessionParams) error {
	c.mu.Lock()
	switch c.state {
	case domain.ClientConnecting, domain.ClientMediaAcquiring, domain.ClientConnected:
		c.mu.Unlock()
		return domain.ErrAlreadyConnected
	}
	c.state = domain.ClientConnecting
	c.simulcast = sp.Simulcast
	gen := c.generation
	timers := listeners.NewManager(c.logger)
	c.timers = timers
	c.mu.Unlock()
	c.metrics.SetClientState(string(domain.ClientConnecting))

	ctx, span := tracing.TraceRoomOperation(ctx, "join", sp.RoomName, sp.ParticipantName)
	defer span.End()

	c.board.SetStep(status.StepConnecting)
	c.board.Update("Connecting to room...", domain.SeverityConnecting)
	c.board.Tracef("Joining %s as %s via %s", sp.RoomName, sp.ParticipantName, sp.LiveKitURL)
	if sp.SDKVersion != "" {
		c.board.Tracef("Requested SDK version: %s", sp.SDKVersion)
	}

	params, err := c.resolveParams(sp)
	if err != nil {
		tracing.RecordError(ctx, err)
		return c.fail(gen, err)
	}

	// Connection timing starts before the transport is touched.
	c.store.Connection.SetStartTime(c.now().UnixMilli())
	c.store.Simulcast.SetEnabled(sp.Simulcast)
	c.store.SyncToWindow()

	// Handlers go on the bus first so no event of this session is missed.
	c.registry.SetRoom(c.bus)
	c.registry.AttachAll()

	room, err := retry.RetryWithResult(ctx, c.cfg.JoinRetry, func() (ports.Room, error) {
		cctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		return c.connector.Connect(cctx, params, c.emitter)
	})
	if err != nil {
		c.registry.DetachAll()
		tracing.RecordError(ctx, err)
		return c.fail(gen, fmt.Errorf("failed to connect: %w", err))
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		room.Disconnect()
		return ErrJoinCancelled
	}
	c.room = room
	c.params = params
	if c.state == domain.ClientConnecting {
		c.state = domain.ClientMediaAcquiring
	}
	c.mu.Unlock()

	c.logger.Infow("Joined room", "room", params.RoomName, "identity", params.Identity)
	c.board.SetStep(status.StepMedia)
	c.board.Trace("Room joined, publishing media")

	c.publishMedia(ctx, room)
	c.resub.Start(room, timers)

	// The Connected event may already have been handled.
	if c.State() != domain.ClientConnected {
		c.metrics.SetClientState(string(c.State()))
	}
	return nil
}

func (c *MeetingClient) resolveParams(sp config.SessionParams) (domain.JoinParams, error) {
	params := domain.JoinParams{
		URL:             sp.LiveKitURL,
		Token:           sp.Token,
		RoomName:        sp.RoomName,
		Identity:        sp.ParticipantName,
		ParticipantName: sp.ParticipantName,
		Simulcast:       sp.Simulcast,
		SDKVersion:      sp.SDKVersion,
	}
	if c.tokens != nil && (params.Token == "" || params.Token == config.DefaultToken) {
		token, err := c.tokens.Mint(params.RoomName, params.Identity, params.ParticipantName)
		if err != nil {
			return params, fmt.Errorf("failed to mint access token: %w", err)
		}
		params.Token = token
	}
	if params.Token == "" {
		return params, fmt.Errorf("no access token for %s", params.Identity)
	}
	return params, nil
}

// publishMedia enables the synthetic camera and microphone. Failures are
// reported as MediaDevicesError events and do not abort the join.
func (c *MeetingClient) publishMedia(ctx context.Context, room ports.Room) {
	lp := room.LocalParticipant()
	if c.cfg.PublishVideo {
		if err := lp.EnableCamera(ctx, true); err != nil {
			c.emitter.Emit(events.MediaDevicesError{Err: fmt.Errorf("camera: %w", err)})
		}
	}
	if c.cfg.PublishAudio {
		if err := lp.EnableMicrophone(ctx, true); err != nil {
			c.emitter.Emit(events.MediaDevicesError{Err: fmt.Errorf("microphone: %w", err)})
		}
	}
}

func (c *MeetingClient) fail(gen uint64, err error) error {
	c.mu.Lock()
	if c.generation == gen {
		c.state = domain.ClientIdle
		c.timers = nil
	}
	c.mu.Unlock()

	msg := errclass.Message(err)
	c.store.Errors.SetLast(msg)
	c.store.SyncToWindow()
	c.metrics.SetClientState(string(domain.ClientIdle))
	c.board.SetStep(status.StepForm)
	c.board.Update("Failed to join: "+msg, domain.SeverityError)
	c.board.Tracef("Join failed (%s): %s", errclass.Classify(err), msg)
	c.logger.Errorw("Failed to join room", "error", err)
	return err
}

// MarkConnected moves a joining client to connected. Late events that arrive
// after a leave are ignored.
func (c *MeetingClient) MarkConnected() bool {
	c.mu.Lock()
	switch c.state {
	case domain.ClientConnecting, domain.ClientMediaAcquiring:
		c.state = domain.ClientConnected
	default:
		c.mu.Unlock()
		return false
	}
	name := c.params.RoomName
	c.mu.Unlock()

	c.metrics.SetClientState(string(domain.ClientConnected))
	c.board.SetStep(status.StepJoined)
	c.board.Update("Connected to "+name, domain.SeverityConnected)
	return true
}

// Leave disconnects from the room and releases every session resource.
func (c *MeetingClient) Leave(ctx context.Context) {
	c.autoJoin.Cleanup()

	c.mu.RLock()
	room, identity := c.params.RoomName, c.params.Identity
	c.mu.RUnlock()
	_, span := tracing.TraceRoomOperation(ctx, "leave", room, identity)
	defer span.End()

	c.HandleDisconnection("client initiated")
}

// HandleDisconnection tears the session down. It is safe to call more than
// once and from the Disconnected handler.
func (c *MeetingClient) HandleDisconnection(reason string) {
	c.mu.Lock()
	if c.state == domain.ClientIdle || c.state == domain.ClientDisconnected {
		c.mu.Unlock()
		return
	}
	room, timers := c.room, c.timers
	c.room = nil
	c.timers = nil
	c.generation++
	c.state = domain.ClientDisconnected
	c.mu.Unlock()

	c.resub.Stop()
	if timers != nil {
		timers.Cleanup()
	}
	c.registry.DetachAll()
	if room != nil {
		room.Disconnect()
	}

	c.store.Connection.SetEstablished(false)
	c.store.ScreenShare.SetActive(false)
	c.store.SyncToWindow()

	c.metrics.SetClientState(string(domain.ClientDisconnected))
	c.board.SetStep(status.StepForm)
	c.board.Update("Left the meeting", domain.SeverityInfo)
	c.board.Tracef("Disconnected: %s", reason)
	c.logger.Infow("Disconnected from room", "reason", reason)
}

// AutoJoin joins with sp after the configured countdown. Leave cancels a
// pending countdown.
func (c *MeetingClient) AutoJoin(ctx context.Context, sp config.SessionParams) {
	delay := c.cfg.AutoJoinDelay
	c.board.Tracef("Auto-joining %s in %s", sp.RoomName, delay)
	c.autoJoin.AddTimeout(delay, func() {
		if err := c.Join(ctx, sp); err != nil {
			c.logger.Warnw("Auto-join failed", "error", err)
		}
	})
}

func (c *MeetingClient) PendingAutoJoin() bool {
	return c.autoJoin.TimeoutCount() > 0
}

// ToggleMute flips the local microphone mute state and returns the new value.
func (c *MeetingClient) ToggleMute() (bool, error) {
	return c.toggle(domain.TrackKindAudio)
}

// ToggleCamera flips the local camera mute state and returns the new value.
func (c *MeetingClient) ToggleCamera() (bool, error) {
	return c.toggle(domain.TrackKindVideo)
}

func (c *MeetingClient) toggle(kind domain.TrackKind) (bool, error) {
	room := c.Room()
	if room == nil {
		return true, domain.ErrNoRoom
	}
	ts, ok := room.LocalParticipant().TrackState(kind)
	if !ok {
		return true, fmt.Errorf("%w: %s", domain.ErrTrackNotPublished, kind)
	}
	muted := !ts.Muted
	return muted, c.SetLocalMuted(kind, muted)
}

// SetLocalMuted mutes or unmutes a local track and reports the change as a
// mute event of the local participant.
func (c *MeetingClient) SetLocalMuted(kind domain.TrackKind, muted bool) error {
	room := c.Room()
	if room == nil {
		return domain.ErrNoRoom
	}
	lp := room.LocalParticipant()
	if err := lp.SetTrackMuted(kind, muted); err != nil {
		return err
	}
	ts, _ := lp.TrackState(kind)
	pub := events.Publication{SID: ts.SID, Kind: string(kind), Muted: muted, Subscribed: true, HasTrack: true}
	who := events.Participant{Identity: lp.Identity(), Local: true}
	if muted {
		c.emitter.Emit(events.TrackMuted{Publication: pub, Participant: who})
	} else {
		c.emitter.Emit(events.TrackUnmuted{Publication: pub, Participant: who})
	}
	return nil
}

func (c *MeetingClient) State() domain.ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Room returns the current room, or nil when not joined.
func (c *MeetingClient) Room() ports.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *MeetingClient) Params() domain.JoinParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

func (c *MeetingClient) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// IsConnected requires both the event-confirmed state and a transport that
// still reports connected.
func (c *MeetingClient) IsConnected() bool {
	c.mu.RLock()
	st, room := c.state, c.room
	c.mu.RUnlock()
	return st == domain.ClientConnected && room != nil && room.ConnectionState() == domain.ConnectionConnected
}

func (c *MeetingClient) IsInMeetingRoom() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room != nil && (c.state == domain.ClientConnected || c.state == domain.ClientMediaAcquiring)
}

// ParticipantCount counts remote participants plus the local one.
func (c *MeetingClient) ParticipantCount() int {
	room := c.Room()
	if room == nil {
		return 0
	}
	return len(room.RemoteParticipants()) + 1
}

func (c *MeetingClient) SimulcastEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulcast
}

// SetSimulcastEnabled records the preference for the next join. Published
// tracks keep their layers.
func (c *MeetingClient) SetSimulcastEnabled(v bool) {
	c.mu.Lock()
	c.simulcast = v
	c.mu.Unlock()
}

func (c *MeetingClient) DynacastEnabled() bool {
	return c.cfg.Dynacast
}

func (c *MeetingClient) Resubscriber() *Resubscriber {
	return c.resub
}

func (c *MeetingClient) Emitter() events.Emitter {
	return c.emitter
}

// Board exposes the status board the client reports progress to.
func (c *MeetingClient) Board() *status.Board {
	return c.board
}
