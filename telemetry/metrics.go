package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the core reports. A nil *Metrics is
// valid: every method below guards against it, so packages can carry
// an optional *Metrics field and call its methods unconditionally.
type Metrics struct {
	positionsUpdated       *prometheus.CounterVec
	positionsDroppedStale  prometheus.Counter
	fanoutDeliveries       prometheus.Counter
	fanoutSubscriberFaults prometheus.Counter
	loaderCacheHits        prometheus.Counter
	loaderCacheMisses      prometheus.Counter
	loaderInflightRequests prometheus.Gauge
	loaderBreakerState     *prometheus.GaugeVec
	signatureQueueDepth    prometheus.Gauge
	signatureQueueDropped  prometheus.Counter
	loaderHFSPrefixRetries prometheus.Counter
}

// New registers every collector against reg. Passing nil registers
// against a private registry that is never scraped by anything, so
// metrics stay a no-op by default while still letting the collectors
// themselves run so unit tests can assert on them if they want to.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		positionsUpdated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "positions_updated_total",
			Help: "Position snapshots accepted by the engine, by update source.",
		}, []string{"source"}),
		positionsDroppedStale: f.NewCounter(prometheus.CounterOpts{
			Name: "positions_dropped_stale_total",
			Help: "Position updates dropped because their timestamp was not after the current snapshot's.",
		}),
		fanoutDeliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Values delivered to subscriber mailboxes.",
		}),
		fanoutSubscriberFaults: f.NewCounter(prometheus.CounterOpts{
			Name: "fanout_subscriber_faults_total",
			Help: "Subscriber callback panics caught and contained.",
		}),
		loaderCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "loader_cache_hits_total",
			Help: "Artifact resolutions served from the hot cache.",
		}),
		loaderCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "loader_cache_misses_total",
			Help: "Artifact resolutions that missed the hot cache.",
		}),
		loaderInflightRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "loader_inflight_requests",
			Help: "Remote dbserver requests currently in flight.",
		}),
		loaderBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loader_circuit_breaker_state",
			Help: "Per-player breaker state: 0=closed, 1=half-open, 2=open.",
		}, []string{"player"}),
		signatureQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "signature_queue_depth",
			Help: "Pending signature computations.",
		}),
		signatureQueueDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "signature_queue_dropped_total",
			Help: "Signature requests dropped because the queue was full.",
		}),
		loaderHFSPrefixRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "loader_hfs_prefix_retries_total",
			Help: "Archive reads retried with a \".\" path prefix after the canonical path failed.",
		}),
	}
}

func (m *Metrics) PositionUpdated(source string) {
	if m == nil {
		return
	}
	m.positionsUpdated.WithLabelValues(source).Inc()
}

func (m *Metrics) PositionDroppedStale() {
	if m == nil {
		return
	}
	m.positionsDroppedStale.Inc()
}

func (m *Metrics) FanoutDelivered() {
	if m == nil {
		return
	}
	m.fanoutDeliveries.Inc()
}

func (m *Metrics) FanoutSubscriberFault() {
	if m == nil {
		return
	}
	m.fanoutSubscriberFaults.Inc()
}

func (m *Metrics) LoaderCacheHit() {
	if m == nil {
		return
	}
	m.loaderCacheHits.Inc()
}

func (m *Metrics) LoaderCacheMiss() {
	if m == nil {
		return
	}
	m.loaderCacheMisses.Inc()
}

func (m *Metrics) LoaderInflightDelta(delta int) {
	if m == nil {
		return
	}
	m.loaderInflightRequests.Add(float64(delta))
}

func (m *Metrics) LoaderBreakerState(player string, state float64) {
	if m == nil {
		return
	}
	m.loaderBreakerState.WithLabelValues(player).Set(state)
}

func (m *Metrics) SignatureQueueDepth(n int) {
	if m == nil {
		return
	}
	m.signatureQueueDepth.Set(float64(n))
}

func (m *Metrics) SignatureQueueDropped() {
	if m == nil {
		return
	}
	m.signatureQueueDropped.Inc()
}

func (m *Metrics) LoaderHFSPrefixRetry() {
	if m == nil {
		return
	}
	m.loaderHFSPrefixRetries.Inc()
}
