// Package ingest moves tasks from a Source through an optimizer to a
// Dispatcher. Each worker holds one admission token from a shared weighted
// semaphore from the moment it takes a task until the result is dispatched
// and the inbound message acknowledged.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/pvopt/core/model"
)

// ErrSourceClosed is returned by Source.Receive once no more deliveries will arrive.
var ErrSourceClosed = errors.New("ingest: source closed")

// Delivery is one inbound task message. Err is set when the payload could
// not be turned into a task; TaskID then holds whatever id could be read.
type Delivery struct {
	Key      string
	Task     *model.Task
	TaskID   int64
	Err      error
	Received time.Time
	// Ack acknowledges the inbound message. It may be nil.
	Ack func() error
}

// ID returns the task id of the delivery.
func (d Delivery) ID() int64 {
	if d.Task != nil {
		return d.Task.ID()
	}
	return d.TaskID
}

// Source yields deliveries. Receive blocks until a delivery is available,
// ctx is done or the source is closed.
type Source interface {
	Receive(ctx context.Context) (Delivery, error)
}

// Dispatcher sends a result back to the caller identified by key.
type Dispatcher interface {
	Dispatch(ctx context.Context, key string, res *model.Result) error
}

// Optimizer solves a task. It must always return a result.
type Optimizer interface {
	Solve(ctx context.Context, task *model.Task) *model.Result
}

// Config controls the worker pool.
type Config struct {
	// Count is the number of tasks solved concurrently.
	Count int `json:"count"`
	// RatePerSecond throttles intake across the pool. 0 disables throttling.
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Count <= 0 {
		c.Count = 1
	}
	if c.RatePerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.Count < 0 {
		return errors.New("worker.count must be >= 0")
	}
	if c.RatePerSecond < 0 {
		return errors.New("worker.rate_per_second must be >= 0")
	}
	return nil
}
