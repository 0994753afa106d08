package telemetry

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmr-tortoise/allotment/internal/report"
)

const namespace = "allotment"

// Metrics holds the gauges and counters describing allocation runs.
// Each Metrics value owns its registry, so tests and repeated CLI
// invocations never collide on global registration.
type Metrics struct {
	registry *prometheus.Registry

	runs         prometheus.Counter
	participants prometheus.Gauge
	allocated    *prometheus.GaugeVec
	unresolved   prometheus.Gauge
	rescues      *prometheus.CounterVec
	capacity     *prometheus.GaugeVec
	occupancy    *prometheus.GaugeVec
}

// NewMetrics creates and registers the allocation metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of allocation runs observed.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Participants in the last run.",
		}),
		allocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allocated",
			Help:      "Participants allocated in the last run, by preference rank.",
		}, []string{"rank"}),
		unresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unresolved",
			Help:      "Participants left without an allocation in the last run.",
		}),
		rescues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescues_total",
			Help:      "Exchange rules applied, by rule and round.",
		}, []string{"rule", "round"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "option_capacity",
			Help:      "Configured places per option.",
		}, []string{"option"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "option_occupancy",
			Help:      "Places taken per option at the end of the last run.",
		}, []string{"option"}),
	}
	m.registry.MustRegister(m.runs, m.participants, m.allocated, m.unresolved, m.rescues, m.capacity, m.occupancy)
	return m
}

// Observe records the outcome of one run.
func (m *Metrics) Observe(rep *report.Report) {
	m.runs.Inc()
	m.participants.Set(float64(rep.Total))
	m.allocated.WithLabelValues("1st").Set(float64(rep.Tally.First))
	m.allocated.WithLabelValues("2nd").Set(float64(rep.Tally.Second))
	m.allocated.WithLabelValues("3rd").Set(float64(rep.Tally.Third))
	m.unresolved.Set(float64(rep.UnresolvedCount()))

	for _, e := range rep.Rescues {
		m.rescues.WithLabelValues(e.Rule, strconv.Itoa(e.Round)).Inc()
	}
	for _, o := range rep.Options {
		m.capacity.WithLabelValues(o.ID).Set(float64(o.Capacity))
		m.occupancy.WithLabelValues(o.ID).Set(float64(o.Occupancy))
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
