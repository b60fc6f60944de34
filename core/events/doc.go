// Package events defines the events published on the service bus.
//
// Available event types:
//   - SolveEvent: an optimization finished
//   - DeliveryEvent: a task moved through an ingestion worker
package events
