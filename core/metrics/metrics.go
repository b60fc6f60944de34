package metrics

import "time"

// SolveMetric summarizes one optimization run.
type SolveMetric struct {
	TaskID       int64
	Status       string
	SolverStatus string
	Objective    float64
	RelativeGap  float64
	Duration     time.Duration
	Columns      int
	Rows         int
	Time         time.Time
}

// MetricsSink records optimization runs for observability purposes.
type MetricsSink interface {
	RecordSolve(m SolveMetric) error
}

// DeliveryMetric tracks a task message through the ingestion pipeline.
type DeliveryMetric struct {
	Key     string
	Stage   string
	Latency time.Duration
	Time    time.Time
}

// DeliveryRecorder records ingestion stages.
type DeliveryRecorder interface {
	RecordDelivery(m DeliveryMetric) error
}

// InFlightRecorder records how many tasks are currently being solved.
type InFlightRecorder interface {
	RecordInFlight(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveMetric) error       { return nil }
func (NopSink) RecordDelivery(DeliveryMetric) error { return nil }
func (NopSink) RecordInFlight(int) error            { return nil }
