// Package metrics exposes a Prometheus /metrics endpoint for the
// exchange and client processes: a single struct of pre-registered
// collectors, a namespace per process, and a goroutine-backed HTTP
// server for the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/xchange/pkg/telemetry/log"
)

// Metrics is the set of Prometheus collectors shared across an exchange
// or client process.
type Metrics struct {
	registry *prometheus.Registry
	logger   log.Logger

	ordersProcessed  prometheus.Counter
	tradesExecuted   prometheus.Counter
	cancelRejected   prometheus.Counter
	matchingLatency  prometheus.Histogram
	ringDepth        *prometheus.GaugeVec
	gapRecoveries    prometheus.Counter
	recoveryDuration prometheus.Histogram
}

// New constructs and registers a Metrics set under namespace ("exchange"
// or "client").
func New(namespace string, logger log.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		logger:   logger,

		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total NEW order requests dispatched by the matching engine.",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total fills produced by the matching engine.",
		}),
		cancelRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancel_rejected_total",
			Help:      "Total CANCEL_REJECTED responses.",
		}),
		matchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_latency_nanoseconds",
			Help:      "Wall time spent in Engine.dispatch per request.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		ringDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_depth",
			Help:      "Published, unread slot count for a named pkg/ring instance.",
		}, []string{"ring"}),
		gapRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marketdata_gap_recoveries_total",
			Help:      "Total completed market-data gap recoveries (RECOVERING back to LIVE).",
		}),
		recoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "marketdata_recovery_duration_seconds",
			Help:      "Wall time spent RECOVERING before returning to LIVE.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.ordersProcessed,
		m.tradesExecuted,
		m.cancelRejected,
		m.matchingLatency,
		m.ringDepth,
		m.gapRecoveries,
		m.recoveryDuration,
	)
	return m
}

// Handler returns the http.Handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr. It runs in its
// own goroutine and logs (but does not crash the process on) a server
// error.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics: server failed: %v", err)
		}
	}()
}

// RecordOrder increments the processed-order counter.
func (m *Metrics) RecordOrder() { m.ordersProcessed.Inc() }

// RecordTrade increments the trade counter.
func (m *Metrics) RecordTrade() { m.tradesExecuted.Inc() }

// RecordCancelRejected increments the CANCEL_REJECTED counter.
func (m *Metrics) RecordCancelRejected() { m.cancelRejected.Inc() }

// ObserveMatchingLatency records one dispatch's wall time.
func (m *Metrics) ObserveMatchingLatency(nanoseconds float64) {
	m.matchingLatency.Observe(nanoseconds)
}

// SetRingDepth reports a named ring's current published depth.
func (m *Metrics) SetRingDepth(name string, depth int) {
	m.ringDepth.WithLabelValues(name).Set(float64(depth))
}

// RecordGapRecovery records one LIVE->RECOVERING->LIVE cycle and its
// duration.
func (m *Metrics) RecordGapRecovery(seconds float64) {
	m.gapRecoveries.Inc()
	m.recoveryDuration.Observe(seconds)
}
