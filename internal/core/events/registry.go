package events

import (
	"sync"

	"go.uber.org/zap"
)

type registration struct {
	eventType Type
	handler   Handler
	owner     string
	bound     []HandlerID
}

// Registry holds handler registrations independently of the source they are
// eventually attached to, so handlers can be declared before a room exists.
type Registry struct {
	mu     sync.Mutex
	source Source
	regs   []*registration

	logger *zap.SugaredLogger
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{logger: logger}
}

// SetRoom swaps the source. Existing attachments are not moved.
func (r *Registry) SetRoom(src Source) {
	r.mu.Lock()
	r.source = src
	r.mu.Unlock()
}

// Register appends a pending registration. owner labels the handler in logs.
func (r *Registry) Register(t Type, h Handler, owner string) {
	r.mu.Lock()
	r.regs = append(r.regs, &registration{eventType: t, handler: h, owner: owner})
	r.mu.Unlock()
}

// AttachAll binds every registration to the current source. Calling it twice
// without DetachAll binds every handler twice.
func (r *Registry) AttachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.source == nil {
		r.logger.Errorw("cannot attach event handlers: no room set", "handlers", len(r.regs))
		return
	}
	for _, reg := range r.regs {
		reg.bound = append(reg.bound, r.source.On(reg.eventType, reg.handler))
	}
	r.logger.Debugw("event handlers attached", "handlers", len(r.regs))
}

// DetachAll unbinds every registration from the source, tolerating failures.
func (r *Registry) DetachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
}

func (r *Registry) detachLocked() {
	for _, reg := range r.regs {
		if r.source != nil {
			for _, id := range reg.bound {
				if err := r.source.Off(reg.eventType, id); err != nil {
					r.logger.Warnw("failed to detach event handler",
						"event", reg.eventType,
						"owner", reg.owner,
						"error", err,
					)
				}
			}
		}
		reg.bound = nil
	}
}

// Clear detaches everything, forgets all registrations and drops the source.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
	r.regs = nil
	r.source = nil
}

// HandlerCount returns the number of registrations, attached or not.
func (r *Registry) HandlerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}
