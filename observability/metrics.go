// Package observability holds the process-wide metric registries for the
// basket daemon.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetricsRegistry records the daemon's HTTP serving activity plus a
// small set of ledger gauges.
type GatewayMetricsRegistry struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	components  prometheus.Gauge
	modules     prometheus.Gauge
	eventsTotal prometheus.Counter
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *GatewayMetricsRegistry
)

// GatewayMetrics returns the lazily-initialised gateway metrics registry.
func GatewayMetrics() *GatewayMetricsRegistry {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &GatewayMetricsRegistry{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketcore",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "basketcore",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			components: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "basketcore",
				Subsystem: "ledger",
				Name:      "components",
				Help:      "Number of components currently tracked by the basket.",
			}),
			modules: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "basketcore",
				Subsystem: "ledger",
				Name:      "modules",
				Help:      "Number of modules currently tracked by the basket.",
			}),
			eventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "basketcore",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Total ledger events observed by the daemon.",
			}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.latency,
			gatewayRegistry.components,
			gatewayRegistry.modules,
			gatewayRegistry.eventsTotal,
		)
	})
	return gatewayRegistry
}

// ObserveRequest records one served HTTP request.
func (m *GatewayMetricsRegistry) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// SetLedgerStats refreshes the ledger gauges.
func (m *GatewayMetricsRegistry) SetLedgerStats(components, modules int) {
	if m == nil {
		return
	}
	m.components.Set(float64(components))
	m.modules.Set(float64(modules))
}

// CountEvent increments the ledger event counter.
func (m *GatewayMetricsRegistry) CountEvent() {
	if m == nil {
		return
	}
	m.eventsTotal.Inc()
}
