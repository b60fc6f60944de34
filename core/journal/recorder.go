package journal

import (
	"context"
	"time"

	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/logger"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

// Recorder appends a record for every SolveEvent published on a bus.
type Recorder struct {
	store Store
	log   logger.Logger
	done  chan struct{}
}

// NewRecorder subscribes to bus and writes to store until ctx is done or
// the bus is closed. Wait blocks until the last record is written.
func NewRecorder(ctx context.Context, bus *eventbus.TypedBus[events.Event], store Store, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	r := &Recorder{store: store, log: log, done: make(chan struct{})}
	ch := bus.SubscribeBuffered(64)
	go func() {
		defer close(r.done)
		defer bus.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if se, ok := ev.(events.SolveEvent); ok {
					r.append(se)
				}
			}
		}
	}()
	return r
}

func (r *Recorder) append(ev events.SolveEvent) {
	// Records still go out while the service drains.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := FromEvent(ev)
	if err := r.store.Append(ctx, rec); err != nil {
		r.log.Errorf("journal: append task %d: %v", rec.TaskID, err)
	}
}

// Wait blocks until the recorder has stopped.
func (r *Recorder) Wait() { <-r.done }
