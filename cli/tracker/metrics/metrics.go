package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fieldnav"

const (
	PathOnline  = "online"
	PathOffline = "offline"
)

// Metrics счетчики трекера. Нулевой указатель допустим, вызовы на нем ничего не делают.
type Metrics struct {
	routesSaved    *prometheus.CounterVec
	syncPushed     prometheus.Counter
	syncFailed     prometheus.Counter
	fetchFallbacks *prometheus.CounterVec
	partialWrites  prometheus.Counter
	sessionPoints  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		routesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_saved_total",
			Help:      "Saved routes by persistence path.",
		}, []string{"path"}),
		syncPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pushed_total",
			Help:      "Queued routes pushed to the remote store.",
		}),
		syncFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failed_total",
			Help:      "Queued routes that failed to push.",
		}),
		fetchFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_fallbacks_total",
			Help:      "Reads served from the local cache after a remote failure.",
		}, []string{"op"}),
		partialWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_writes_total",
			Help:      "Routes whose child rows failed after the parent row was written.",
		}),
		sessionPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_points",
			Help:      "Points in the current recording session.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.routesSaved, m.syncPushed, m.syncFailed, m.fetchFallbacks, m.partialWrites, m.sessionPoints)
	}
	return m
}

func (m *Metrics) RouteSaved(path string) {
	if m == nil {
		return
	}
	m.routesSaved.WithLabelValues(path).Inc()
}

func (m *Metrics) SyncPushed() {
	if m == nil {
		return
	}
	m.syncPushed.Inc()
}

func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.syncFailed.Inc()
}

func (m *Metrics) FetchFallback(op string) {
	if m == nil {
		return
	}
	m.fetchFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) PartialWrite() {
	if m == nil {
		return
	}
	m.partialWrites.Inc()
}

func (m *Metrics) SetSessionPoints(n int) {
	if m == nil {
		return
	}
	m.sessionPoints.Set(float64(n))
}
