// Package metrics defines the sink interfaces used to observe optimization
// runs and task ingestion. Sinks are built from configuration through a
// registry; several configured sinks are combined into a MultiSink.
// Concrete Prometheus and InfluxDB sinks live in infra/metrics.
package metrics
