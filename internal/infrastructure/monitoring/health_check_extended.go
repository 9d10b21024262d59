package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"meetprobe/internal/core/ports"
)

var errNotConnected = errors.New("meeting client is not connected")

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddSinkCheck pings the snapshot sink.
func (h *HealthChecker) AddSinkCheck(sink ports.SnapshotSink, interval, timeout time.Duration) {
	h.AddCheck("snapshot_sink", func(ctx context.Context) (bool, error) {
		if err := sink.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddConnectionCheck reports whether the meeting client is joined. Only
// useful for readiness of an auto-joining probe.
func (h *HealthChecker) AddConnectionCheck(connected func() bool, interval, timeout time.Duration) {
	h.AddCheck("room_connection", func(context.Context) (bool, error) {
		if !connected() {
			return false, errNotConnected
		}
		return true, nil
	}, interval, timeout)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	status := h.CheckAll(ctx)
	return status.Status == "healthy"
}
