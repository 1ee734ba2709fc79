package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the scanner's counters. A nil *Metrics is valid and records
// nothing, so wiring stays optional.
type Metrics struct {
	registry *prometheus.Registry

	LogsReceived prometheus.Counter
	DecodeErrors prometheus.Counter
	LookupMisses prometheus.Counter
	PriceUpdates prometheus.Counter
	TrackedPools prometheus.Gauge
}

// New builds the scanner metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		LogsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexscope_logs_received_total",
			Help: "Log records received from the subscription feed.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexscope_decode_errors_total",
			Help: "Log records discarded because decoding failed.",
		}),
		LookupMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexscope_lookup_misses_total",
			Help: "Log records for addresses outside the tracked pool set.",
		}),
		PriceUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexscope_price_updates_total",
			Help: "Price entries written to the cache.",
		}),
		TrackedPools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dexscope_tracked_pools",
			Help: "Number of pools in the registry.",
		}),
	}
	registry.MustRegister(m.LogsReceived, m.DecodeErrors, m.LookupMisses, m.PriceUpdates, m.TrackedPools)
	return m
}

// Handler serves the metric set over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncLogsReceived() {
	if m != nil {
		m.LogsReceived.Inc()
	}
}

func (m *Metrics) IncDecodeErrors() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) IncLookupMisses() {
	if m != nil {
		m.LookupMisses.Inc()
	}
}

func (m *Metrics) IncPriceUpdates() {
	if m != nil {
		m.PriceUpdates.Inc()
	}
}

func (m *Metrics) SetTrackedPools(n int) {
	if m != nil {
		m.TrackedPools.Set(float64(n))
	}
}
