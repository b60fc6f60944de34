// Package metrics provides the Prometheus and InfluxDB sinks registered
// with core/metrics, the Prometheus HTTP endpoint and the collector that
// forwards ingestion events from the bus to a sink.
package metrics
