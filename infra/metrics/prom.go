package metrics

import (
	"github.com/kilianp07/pvopt/core/events"
	coremetrics "github.com/kilianp07/pvopt/core/metrics"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records optimization runs and ingestion stages in Prometheus metrics.
type PromSink struct {
	solves     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	objective  prometheus.Gauge
	gap        prometheus.Gauge
	columns    prometheus.Gauge
	rows       prometheus.Gauge
	deliveries *prometheus.CounterVec
	latency    prometheus.Histogram
	inFlight   prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_solves_total",
			Help: "Optimization runs by result status and solver status",
		}, []string{"status", "solver_status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optimizer_solve_duration_seconds",
			Help:    "Wall time spent solving a task",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"status"}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_last_objective",
			Help: "Objective value of the last solved task",
		}),
		gap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_last_relative_gap",
			Help: "Relative gap achieved on the last solved task",
		}),
		columns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_model_columns",
			Help: "Column count of the last built model",
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_model_rows",
			Help: "Row count of the last built model",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_deliveries_total",
			Help: "Task messages by ingestion stage",
		}, []string{"stage"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_ack_latency_seconds",
			Help:    "Time between receiving a task message and acknowledging it",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_tasks_in_flight",
			Help: "Tasks currently being optimized",
		}),
	}

	var err error
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.gap, err = register(reg, s.gap); err != nil {
		return nil, err
	}
	if s.columns, err = register(reg, s.columns); err != nil {
		return nil, err
	}
	if s.rows, err = register(reg, s.rows); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, s.deliveries); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.inFlight, err = register(reg, s.inFlight); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the run and updates the model gauges.
func (s *PromSink) RecordSolve(m coremetrics.SolveMetric) error {
	s.solves.WithLabelValues(m.Status, m.SolverStatus).Inc()
	s.duration.WithLabelValues(m.Status).Observe(m.Duration.Seconds())
	s.columns.Set(float64(m.Columns))
	s.rows.Set(float64(m.Rows))
	if m.Status == model.SolutionFound.String() {
		s.objective.Set(m.Objective)
		s.gap.Set(m.RelativeGap)
	}
	return nil
}

// RecordDelivery counts an ingestion stage and observes ack latency.
func (s *PromSink) RecordDelivery(m coremetrics.DeliveryMetric) error {
	s.deliveries.WithLabelValues(m.Stage).Inc()
	if m.Stage == string(events.StageAcked) && m.Latency > 0 {
		s.latency.Observe(m.Latency.Seconds())
	}
	return nil
}

// RecordInFlight sets the in-flight gauge.
func (s *PromSink) RecordInFlight(n int) error {
	s.inFlight.Set(float64(n))
	return nil
}
