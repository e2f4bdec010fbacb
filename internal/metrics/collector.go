// Package metrics exposes engine telemetry through a dedicated Prometheus
// registry, keeping default-registry noise out of the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atirdror123/sniperbot/internal/scan"
)

// Collector owns the engine's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	instruments   *prometheus.CounterVec
	activeSignals prometheus.Gauge
	equity        prometheus.Gauge
	cycleDuration prometheus.Histogram
}

// NewCollector builds and registers all engine instruments.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_cycles_total",
			Help: "Evaluation cycles completed.",
		}),
		instruments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_instruments_total",
			Help: "Instruments processed per cycle outcome.",
		}, []string{"outcome"}),
		activeSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_active_signals",
			Help: "Signals currently in the live set.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_portfolio_equity_dollars",
			Help: "Simulated portfolio equity.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniper_cycle_duration_seconds",
			Help:    "Evaluation cycle wall time.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.cycles,
		c.instruments,
		c.activeSignals,
		c.equity,
		c.cycleDuration,
	)
	return c
}

// ObserveCycle records one completed evaluation cycle.
func (c *Collector) ObserveCycle(result scan.CycleResult) {
	c.cycles.Inc()
	c.instruments.WithLabelValues("skipped").Add(float64(result.Skipped))
	c.instruments.WithLabelValues("rejected_filter").Add(float64(result.RejectedFilter))
	c.instruments.WithLabelValues("rejected_score").Add(float64(result.RejectedScore))
	c.instruments.WithLabelValues("activated").Add(float64(len(result.Update.Activated)))
	c.instruments.WithLabelValues("expired").Add(float64(len(result.Update.Expired)))
	c.activeSignals.Set(float64(len(result.Update.Active)))
	c.cycleDuration.Observe(result.Elapsed.Seconds())
}

// SetEquity updates the portfolio equity gauge.
func (c *Collector) SetEquity(equity float64) {
	c.equity.Set(equity)
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
