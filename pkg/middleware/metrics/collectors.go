// pkg/middleware/metrics/collectors.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds one server's collectors. Each server registers its own set so
// several servers can live in one process.
type Metrics struct {
	reg   prometheus.Registerer
	gat   prometheus.Gatherer
	paths *pathOptions

	responseTime      prometheus.Histogram
	totalHttpRequests *prometheus.CounterVec
	totalHttpToUri    *prometheus.CounterVec

	registrations  *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	bytesStreamed  prometheus.Counter
	transfers      *prometheus.CounterVec
	pendingEntries prometheus.Gauge
}

// New builds the collectors and registers them with reg, which also serves
// as the gatherer behind Handler. A nil reg gets a private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg:   reg,
		gat:   reg,
		paths: defaultPathOptions(),

		responseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		}),
		totalHttpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
			[]string{"code", "method"},
		),
		totalHttpToUri: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
			[]string{"code", "uri", "method"},
		),

		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "handoff_registrations_total", Help: "file registrations by whether they replaced an entry"},
			[]string{"replaced"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "handoff_dispatches_total", Help: "dispatches by outcome"},
			[]string{"outcome"},
		),
		bytesStreamed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "handoff_streamed_bytes_total", Help: "bytes handed to response bodies"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "handoff_transfers_total", Help: "finished transfers by result"},
			[]string{"result"},
		),
		pendingEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "handoff_pending_entries", Help: "registered files not yet served"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.responseTime,
		m.totalHttpRequests,
		m.totalHttpToUri,
		m.registrations,
		m.dispatches,
		m.bytesStreamed,
		m.transfers,
		m.pendingEntries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registerer exposes the registry so embedding apps can add their own collectors.
func (m *Metrics) Registerer() prometheus.Registerer { return m.reg }
