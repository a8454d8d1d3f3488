package apiclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RefreshTotal    *prometheus.CounterVec
	RefreshWaiters  prometheus.Gauge
	ReplaysTotal    prometheus.Counter
}

// NewMetrics creates and registers the client metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "budgetwise",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "API round trips by method and status code (0 when no response arrived)",
			},
			[]string{"method", "code"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "budgetwise",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "API round trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "budgetwise",
				Subsystem: "client",
				Name:      "refresh_total",
				Help:      "Token refresh cycles by outcome",
			},
			[]string{"result"}, // success, rejected, network, timeout, malformed, no_token
		),
		RefreshWaiters: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "budgetwise",
				Subsystem: "client",
				Name:      "refresh_waiters",
				Help:      "Requests suspended on the in-flight token refresh",
			},
		),
		ReplaysTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "budgetwise",
				Subsystem: "client",
				Name:      "replays_total",
				Help:      "Requests replayed with a refreshed access token",
			},
		),
	}
}

func (m *Metrics) observeRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) incRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) setWaiters(n int) {
	if m == nil {
		return
	}
	m.RefreshWaiters.Set(float64(n))
}

func (m *Metrics) incReplay() {
	if m == nil {
		return
	}
	m.ReplaysTotal.Inc()
}
