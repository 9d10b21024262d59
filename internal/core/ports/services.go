package ports

import (
	"time"
)

// MetricsRecorder receives the probe's operational counters. A nil recorder
// is never passed around; callers use NopMetrics instead.
type MetricsRecorder interface {
	RecordEvent(eventType string)
	RecordSubscriptionAttempt(attemptType string, ok bool)
	RecordDataMessage(direction string, size int)
	ObserveDataLatency(ms int64)
	ObserveConnectionTime(d time.Duration)
	SetClientState(state string)
	RecordSnapshotSync()
}

// TokenMinter issues room access tokens when the session carries none.
type TokenMinter interface {
	Mint(roomName, identity, name string) (string, error)
}

type NopMetrics struct{}

func (NopMetrics) RecordEvent(string)                     {}
func (NopMetrics) RecordSubscriptionAttempt(string, bool) {}
func (NopMetrics) RecordDataMessage(string, int)          {}
func (NopMetrics) ObserveDataLatency(int64)               {}
func (NopMetrics) ObserveConnectionTime(time.Duration)    {}
func (NopMetrics) SetClientState(string)                  {}
func (NopMetrics) RecordSnapshotSync()                    {}
