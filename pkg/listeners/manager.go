// Package listeners tracks event subscriptions and timers acquired by one
// consumer so that they can all be released with a single Cleanup call.
package listeners

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ID identifies a listener registered on a Target.
type ID uint64

// Func receives the payload of an event.
type Func func(payload any)

// Target is anything listeners can be attached to.
type Target interface {
	AddListener(event string, fn Func) (ID, error)
	RemoveListener(event string, id ID) error
}

// Handle identifies an interval or timeout created by a Manager.
type Handle uint64

type listenerRecord struct {
	target Target
	event  string
	id     ID
}

type timerRecord struct {
	timer  *time.Timer
	ticker *time.Ticker
	stop   chan struct{}
}

// Manager owns listeners and timers for one consumer lifetime.
type Manager struct {
	mu        sync.Mutex
	listeners []listenerRecord
	intervals map[Handle]*timerRecord
	timeouts  map[Handle]*timerRecord
	next      Handle

	logger *zap.SugaredLogger
}

func NewManager(logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		intervals: make(map[Handle]*timerRecord),
		timeouts:  make(map[Handle]*timerRecord),
		logger:    logger,
	}
}

// AddListener registers fn on target and remembers it for Cleanup.
func (m *Manager) AddListener(target Target, event string, fn Func) (ID, error) {
	if target == nil {
		return 0, fmt.Errorf("listener target is nil")
	}
	id, err := target.AddListener(event, fn)
	if err != nil {
		return 0, fmt.Errorf("failed to add %q listener: %w", event, err)
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, listenerRecord{target: target, event: event, id: id})
	m.mu.Unlock()
	return id, nil
}

// RemoveListener unregisters one listener previously added through m.
func (m *Manager) RemoveListener(target Target, event string, id ID) error {
	m.mu.Lock()
	for i, l := range m.listeners {
		if l.target == target && l.event == event && l.id == id {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return target.RemoveListener(event, id)
}

// AddInterval calls fn every d until cleared.
func (m *Manager) AddInterval(d time.Duration, fn func()) Handle {
	rec := &timerRecord{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}

	m.mu.Lock()
	m.next++
	h := m.next
	m.intervals[h] = rec
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-rec.stop:
				return
			case <-rec.ticker.C:
				if !m.intervalActive(h) {
					return
				}
				fn()
			}
		}
	}()
	return h
}

// ClearInterval stops an interval. Unknown handles are ignored.
func (m *Manager) ClearInterval(h Handle) {
	m.mu.Lock()
	rec, ok := m.intervals[h]
	delete(m.intervals, h)
	m.mu.Unlock()

	if ok {
		rec.ticker.Stop()
		close(rec.stop)
	}
}

// AddTimeout calls fn once after d unless cleared first.
func (m *Manager) AddTimeout(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	m.next++
	h := m.next
	rec := &timerRecord{}
	m.timeouts[h] = rec
	rec.timer = time.AfterFunc(d, func() {
		if m.takeTimeout(h) {
			fn()
		}
	})
	m.mu.Unlock()
	return h
}

// ClearTimeout cancels a pending timeout. Unknown handles are ignored.
func (m *Manager) ClearTimeout(h Handle) {
	m.mu.Lock()
	rec, ok := m.timeouts[h]
	delete(m.timeouts, h)
	m.mu.Unlock()

	if ok {
		rec.timer.Stop()
	}
}

// Cleanup removes every tracked listener and stops every tracked timer.
// Individual failures are logged and skipped. Safe to call repeatedly.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	listeners := m.listeners
	intervals := m.intervals
	timeouts := m.timeouts
	m.listeners = nil
	m.intervals = make(map[Handle]*timerRecord)
	m.timeouts = make(map[Handle]*timerRecord)
	m.mu.Unlock()

	for _, l := range listeners {
		m.safeRemove(l)
	}
	for _, rec := range intervals {
		rec.ticker.Stop()
		close(rec.stop)
	}
	for _, rec := range timeouts {
		rec.timer.Stop()
	}
}

func (m *Manager) safeRemove(l listenerRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warnw("listener removal panicked", "event", l.event, "panic", r)
		}
	}()
	if err := l.target.RemoveListener(l.event, l.id); err != nil {
		m.logger.Warnw("failed to remove listener", "event", l.event, "error", err)
	}
}

func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *Manager) IntervalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intervals)
}

func (m *Manager) TimeoutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timeouts)
}

func (m *Manager) intervalActive(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.intervals[h]
	return ok
}

// takeTimeout reports whether h was still pending and forgets it.
func (m *Manager) takeTimeout(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timeouts[h]; !ok {
		return false
	}
	delete(m.timeouts, h)
	return true
}
