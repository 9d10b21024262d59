package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"meetprobe/internal/core/domain"
)

var clientStates = []domain.ClientState{
	domain.ClientIdle,
	domain.ClientConnecting,
	domain.ClientMediaAcquiring,
	domain.ClientConnected,
	domain.ClientDisconnected,
}

// PrometheusCollector implements ports.MetricsRecorder.
type PrometheusCollector struct {
	// Counters
	roomEventsTotal           *prometheus.CounterVec
	subscriptionAttemptsTotal *prometheus.CounterVec
	dataMessagesTotal         *prometheus.CounterVec
	dataBytesTotal            *prometheus.CounterVec
	snapshotSyncsTotal        prometheus.Counter

	// Histograms
	dataLatency        prometheus.Histogram
	connectionDuration prometheus.Histogram

	// Gauges
	clientState *prometheus.GaugeVec
}

// NewPrometheusCollector registers on the default registry.
func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWith(prometheus.DefaultRegisterer)
}

func NewPrometheusCollectorWith(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		roomEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetprobe_room_events_total",
			Help: "Room events handled, by event type",
		}, []string{"type"}),

		subscriptionAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetprobe_subscription_attempts_total",
			Help: "Video subscription attempts, by attempt type and result",
		}, []string{"type", "result"}),

		dataMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetprobe_data_messages_total",
			Help: "Data channel messages, by direction",
		}, []string{"direction"}),

		dataBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetprobe_data_bytes_total",
			Help: "Data channel payload bytes, by direction",
		}, []string{"direction"}),

		snapshotSyncsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetprobe_snapshot_syncs_total",
			Help: "State snapshots published to the window",
		}),

		dataLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetprobe_data_latency_seconds",
			Help:    "Latency of timestamped data messages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetprobe_connection_duration_seconds",
			Help:    "Time from join start to the Connected event",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		clientState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meetprobe_client_state",
			Help: "1 for the current meeting client state, 0 otherwise",
		}, []string{"state"}),
	}
}

func (p *PrometheusCollector) RecordEvent(eventType string) {
	p.roomEventsTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) RecordSubscriptionAttempt(attemptType string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	p.subscriptionAttemptsTotal.WithLabelValues(attemptType, result).Inc()
}

func (p *PrometheusCollector) RecordDataMessage(direction string, size int) {
	p.dataMessagesTotal.WithLabelValues(direction).Inc()
	p.dataBytesTotal.WithLabelValues(direction).Add(float64(size))
}

func (p *PrometheusCollector) ObserveDataLatency(ms int64) {
	p.dataLatency.Observe((time.Duration(ms) * time.Millisecond).Seconds())
}

func (p *PrometheusCollector) ObserveConnectionTime(d time.Duration) {
	p.connectionDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) SetClientState(state string) {
	for _, s := range clientStates {
		v := 0.0
		if string(s) == state {
			v = 1
		}
		p.clientState.WithLabelValues(string(s)).Set(v)
	}
}

func (p *PrometheusCollector) RecordSnapshotSync() {
	p.snapshotSyncsTotal.Inc()
}
