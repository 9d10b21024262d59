package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/listeners"
)

// EventSync is the only event a Window emits; its payload is a Snapshot.
const EventSync = "sync"

// Snapshot is an immutable copy of the window bindings.
type Snapshot struct {
	Version  uint64         `json:"version"`
	Bindings map[string]any `json:"bindings"`
}

// UnmarshalJSON decodes every known binding into its typed Go value, so a
// decoded snapshot can hydrate a Store.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version  uint64                     `json:"version"`
		Bindings map[string]json.RawMessage `json:"bindings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Version = raw.Version
	s.Bindings = make(map[string]any, len(raw.Bindings))
	for name, msg := range raw.Bindings {
		v, err := decodeBinding(name, msg)
		if err != nil {
			return err
		}
		s.Bindings[name] = v
	}
	return nil
}

// Window is the flat read surface external drivers observe. It is the
// published counterpart of Store and only changes through Publish or Load.
type Window struct {
	mu       sync.RWMutex
	bindings map[string]any
	version  uint64

	lmu       sync.Mutex
	listeners map[listeners.ID]listeners.Func
	nextID    listeners.ID
}

func NewWindow() *Window {
	return &Window{
		bindings:  make(map[string]any),
		listeners: make(map[listeners.ID]listeners.Func),
	}
}

// Publish overwrites the given bindings and notifies sync listeners.
func (w *Window) Publish(values map[string]any) Snapshot {
	w.mu.Lock()
	for k, v := range values {
		w.bindings[k] = v
	}
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snap)
	return snap
}

// Load replaces all bindings with those of snap without notifying listeners.
// It is used to pre-seed the window before a store hydrates from it.
func (w *Window) Load(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bindings = make(map[string]any, len(snap.Bindings))
	for k, v := range snap.Bindings {
		w.bindings[k] = v
	}
	if snap.Version > w.version {
		w.version = snap.Version
	}
}

// Set defines a single binding, as code writing a global directly would.
func (w *Window) Set(name string, value any) {
	w.mu.Lock()
	w.bindings[name] = value
	w.mu.Unlock()
}

// Lookup reports a binding and whether it is defined.
func (w *Window) Lookup(name string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.bindings[name]
	return v, ok
}

// Get returns a defined binding or domain.ErrUnknownBinding.
func (w *Window) Get(name string) (any, error) {
	v, ok := w.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBinding, name)
	}
	return v, nil
}

func (w *Window) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *Window) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

func (w *Window) snapshotLocked() Snapshot {
	b := make(map[string]any, len(w.bindings))
	for k, v := range w.bindings {
		b[k] = v
	}
	return Snapshot{Version: w.version, Bindings: b}
}

// AddListener registers fn for EventSync.
func (w *Window) AddListener(event string, fn listeners.Func) (listeners.ID, error) {
	if event != EventSync {
		return 0, fmt.Errorf("window does not emit %q", event)
	}
	w.lmu.Lock()
	defer w.lmu.Unlock()
	w.nextID++
	w.listeners[w.nextID] = fn
	return w.nextID, nil
}

func (w *Window) RemoveListener(event string, id listeners.ID) error {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	if _, ok := w.listeners[id]; !ok || event != EventSync {
		return fmt.Errorf("no %q listener with id %d", event, id)
	}
	delete(w.listeners, id)
	return nil
}

func (w *Window) ListenerCount() int {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	return len(w.listeners)
}

func (w *Window) notify(snap Snapshot) {
	w.lmu.Lock()
	fns := make([]listeners.Func, 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
