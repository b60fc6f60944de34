package metrics

import (
	"context"

	"github.com/kilianp07/pvopt/core/events"
	coremetrics "github.com/kilianp07/pvopt/core/metrics"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards delivery
// events to sinks able to record them. Solve events are recorded by the
// optimizer itself and are ignored here. It stops when the context is
// canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.DeliveryRecorder)
	if !ok {
		return
	}
	sub := bus.SubscribeBuffered(64)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.DeliveryEvent); ok {
					_ = rec.RecordDelivery(coremetrics.DeliveryMetric{
						Key:     e.Key,
						Stage:   string(e.Stage),
						Latency: e.Latency,
						Time:    e.Time,
					})
				}
			}
		}
	}()
}
