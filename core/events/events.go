package events

import (
	"context"
	"time"

	"github.com/kilianp07/pvopt/core/model"
)

// Event is implemented by every event carried on the bus.
type Event interface {
	EventKind() string
}

// SolveEvent is published once per optimized task.
type SolveEvent struct {
	// Key is the caller key of the request, when the caller provided one.
	Key          string
	TaskID       int64
	Status       model.OptimizationStatus
	SolverStatus string
	Objective    float64
	RelativeGap  float64
	ElapsedTime  float64
	Columns      int
	Rows         int
	Contracts    int
	Storages     int
	Demands      int
	Error        string
	Time         time.Time
}

func (SolveEvent) EventKind() string { return "solve" }

// Stage is the step of the ingestion pipeline a DeliveryEvent reports.
type Stage string

const (
	StageReceived   Stage = "received"
	StageDispatched Stage = "dispatched"
	StageAcked      Stage = "acked"
	StageFailed     Stage = "failed"
)

// DeliveryEvent is published by ingestion workers.
type DeliveryEvent struct {
	Key     string
	TaskID  int64
	Worker  int
	Stage   Stage
	Err     error
	Latency time.Duration
	Time    time.Time
}

func (DeliveryEvent) EventKind() string { return "delivery" }

type keyCtx struct{}

// WithKey attaches the caller key of a request to ctx.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyCtx{}, key)
}

// KeyFrom returns the caller key attached by WithKey, or "".
func KeyFrom(ctx context.Context) string {
	k, _ := ctx.Value(keyCtx{}).(string)
	return k
}
