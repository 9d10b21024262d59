package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"meetprobe/internal/core/ports"
)

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func TestPrometheusCollector(t *testing.T) {
	c := NewPrometheusCollectorWith(prometheus.NewRegistry())

	c.RecordEvent("connected")
	c.RecordEvent("connected")
	c.RecordSubscriptionAttempt("periodic", false)
	c.RecordSubscriptionAttempt("periodic", true)
	c.RecordDataMessage("sent", 100)
	c.RecordDataMessage("sent", 24)
	c.RecordSnapshotSync()
	c.SetClientState("connected")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.roomEventsTotal.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptionAttemptsTotal.WithLabelValues("periodic", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subscriptionAttemptsTotal.WithLabelValues("periodic", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dataMessagesTotal.WithLabelValues("sent")))
	assert.Equal(t, 124.0, testutil.ToFloat64(c.dataBytesTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshotSyncsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.clientState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.clientState.WithLabelValues("idle")))

	c.SetClientState("disconnected")
	assert.Equal(t, 0.0, testutil.ToFloat64(c.clientState.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.clientState.WithLabelValues("disconnected")))
}

func TestPrometheusCollector_Histograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollectorWith(reg)

	c.ObserveDataLatency(42)
	c.ObserveConnectionTime(300 * time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(c.dataLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(c.connectionDuration))
}

func TestHealthChecker_CheckAll(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("ok", func(context.Context) (bool, error) { return true, nil }, 0, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["ok"])
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("broken", func(context.Context) (bool, error) { return false, errors.New("redis down") }, 0, time.Second)
	h.AddCheck("false", func(context.Context) (bool, error) { return false, nil }, 0, time.Second)

	status = h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "redis down", status.Checks["broken"])
	assert.Equal(t, "check failed", status.Checks["false"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_TimeoutReachesCheck(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}, 0, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Checks["slow"], "deadline")
}

func TestHealthChecker_ConnectionCheck(t *testing.T) {
	h := NewHealthChecker()
	connected := false
	h.AddConnectionCheck(func() bool { return connected }, 0, time.Second)

	assert.False(t, h.IsReady(context.Background()))
	connected = true
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_BackgroundChecksReport(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("tick", func(context.Context) (bool, error) { return true, nil }, 5*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan string, 8)
	h.StartBackgroundChecks(ctx, func(name string, healthy bool, _ error) {
		if healthy {
			select {
			case results <- name:
			default:
			}
		}
	})

	select {
	case name := <-results:
		assert.Equal(t, "tick", name)
	case <-time.After(time.Second):
		t.Fatal("background check never ran")
	}
}
