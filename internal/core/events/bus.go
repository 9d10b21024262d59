package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrHandlerNotFound = errors.New("handler not found")

// HandlerID identifies one On registration.
type HandlerID uint64

// Source is an event-emitting object handlers can be bound to.
type Source interface {
	On(t Type, h Handler) HandlerID
	Off(t Type, id HandlerID) error
}

// Emitter accepts events from producers such as the SDK adapter.
type Emitter interface {
	Emit(ev Event)
}

type boundHandler struct {
	id HandlerID
	h  Handler
}

// Bus delivers events to handlers in the order they were emitted. Emit may be
// called from any goroutine; Run executes handlers one at a time.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]boundHandler
	next     HandlerID

	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once

	logger *zap.SugaredLogger
}

func NewBus(queueSize int, logger *zap.SugaredLogger) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{
		handlers: make(map[Type][]boundHandler),
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (b *Bus) On(t Type, h Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handlers[t] = append(b.handlers[t], boundHandler{id: b.next, h: h})
	return b.next
}

func (b *Bus) Off(t Type, id HandlerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[t]
	for i, bh := range list {
		if bh.id == id {
			b.handlers[t] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrHandlerNotFound
}

// HandlerCount returns the number of handlers bound for t.
func (b *Bus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// Emit queues ev for Run. Events emitted after Close are dropped.
func (b *Bus) Emit(ev Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- ev:
	case <-b.done:
	}
}

// Run dispatches queued events until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case ev := <-b.queue:
			b.Dispatch(ev)
		}
	}
}

// Dispatch runs the handlers bound for ev's type on the calling goroutine.
// A panicking handler is logged and does not stop the others.
func (b *Bus) Dispatch(ev Event) {
	b.mu.RLock()
	list := append([]boundHandler(nil), b.handlers[ev.Type()]...)
	b.mu.RUnlock()

	for _, bh := range list {
		b.invoke(ev, bh.h)
	}
}

func (b *Bus) invoke(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("event handler panicked", "event", ev.Type(), "panic", r)
		}
	}()
	h(ev)
}

// Close stops Run and makes further Emit calls no-ops.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
