// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the daemon's counters behind nil-safe observer
// methods, so components can be wired without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal    prometheus.Counter
	grantsTotal   prometheus.Counter
	deniesTotal   prometheus.Counter
	requestsTotal *prometheus.CounterVec
}

// New builds a Metrics with its own registry.  recordsInUse is sampled
// on scrape for the records gauge.
func New(recordsInUse func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardgate_scans_total",
			Help: "Card scans processed.",
		}),
		grantsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardgate_grants_total",
			Help: "Scans that resulted in an access grant.",
		}),
		deniesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardgate_denies_total",
			Help: "Scans that resulted in an access denial.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardgate_device_requests_total",
			Help: "Device protocol requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.scansTotal, m.grantsTotal, m.deniesTotal, m.requestsTotal)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cardgate_records_in_use",
		Help: "Occupied authorization record slots.",
	}, func() float64 { return float64(recordsInUse()) }))

	return m
}

// ScanObserved records one processed scan and its outcome.
func (m *Metrics) ScanObserved(granted bool) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	if granted {
		m.grantsTotal.Inc()
	} else {
		m.deniesTotal.Inc()
	}
}

// RequestObserved records one device protocol request by outcome
// ("ok", "bad_request", "not_found", "store_full", "oversized",
// "malformed", "timeout").
func (m *Metrics) RequestObserved(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
