// Package status keeps the human-facing progress banner and technical trace
// of the probe.
package status

import (
	"fmt"
	"sync"
	"time"

	"meetprobe/internal/core/domain"
)

const maxTraceLines = 500

// Step is a coarse join progress marker.
type Step int

const (
	StepForm Step = iota + 1
	StepConnecting
	StepMedia
	StepJoined
)

func (s Step) String() string {
	switch s {
	case StepForm:
		return "form"
	case StepConnecting:
		return "connecting"
	case StepMedia:
		return "media"
	case StepJoined:
		return "joined"
	}
	return "unknown"
}

type View struct {
	Message   string          `json:"message"`
	Severity  domain.Severity `json:"severity"`
	Step      int             `json:"step"`
	StepName  string          `json:"stepName"`
	Trace     []string        `json:"trace"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Board struct {
	mu        sync.RWMutex
	message   string
	severity  domain.Severity
	step      Step
	trace     []string
	updatedAt time.Time
	now       func() time.Time
}

func NewBoard() *Board {
	return &Board{
		message:  "Ready to join",
		severity: domain.SeverityInfo,
		step:     StepForm,
		now:      time.Now,
	}
}

func (b *Board) Update(message string, severity domain.Severity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = message
	b.severity = severity
	b.updatedAt = b.now()
}

// Trace appends a timestamped line, dropping the oldest past the cap.
func (b *Board) Trace(detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := fmt.Sprintf("[%s] %s", b.now().Format("15:04:05"), detail)
	if len(b.trace) >= maxTraceLines {
		b.trace = append(b.trace[:0:0], b.trace[len(b.trace)-maxTraceLines+1:]...)
	}
	b.trace = append(b.trace, line)
}

func (b *Board) Tracef(format string, args ...any) {
	b.Trace(fmt.Sprintf(format, args...))
}

func (b *Board) SetStep(s Step) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.step = s
}

func (b *Board) Step() Step {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.step
}

func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	trace := make([]string, len(b.trace))
	copy(trace, b.trace)
	return View{
		Message:   b.message,
		Severity:  b.severity,
		Step:      int(b.step),
		StepName:  b.step.String(),
		Trace:     trace,
		UpdatedAt: b.updatedAt,
	}
}
