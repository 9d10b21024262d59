package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meetprobe/internal/core/domain"
)

func TestBoard_UpdateAndSteps(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, StepForm, b.Step())

	b.Update("Connecting...", domain.SeverityConnecting)
	b.SetStep(StepConnecting)

	v := b.View()
	assert.Equal(t, "Connecting...", v.Message)
	assert.Equal(t, domain.SeverityConnecting, v.Severity)
	assert.Equal(t, 2, v.Step)
	assert.Equal(t, "connecting", v.StepName)
}

func TestBoard_TraceFormatAndCap(t *testing.T) {
	b := NewBoard()
	b.now = func() time.Time { return time.Date(2024, 1, 1, 9, 5, 7, 0, time.UTC) }

	b.Tracef("joined %s", "TestRoom")
	assert.Equal(t, []string{"[09:05:07] joined TestRoom"}, b.View().Trace)

	for i := 0; i < maxTraceLines+20; i++ {
		b.Trace("tick")
	}
	b.Trace("last")
	trace := b.View().Trace
	assert.Len(t, trace, maxTraceLines)
	assert.Equal(t, "[09:05:07] last", trace[len(trace)-1])
}
