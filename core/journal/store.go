// Package journal keeps a summary of every optimization run and answers
// time-range queries over it.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/pvopt/core/events"
)

// Record summarizes one optimization run.
type Record struct {
	ID             string    `json:"id"`
	TaskID         int64     `json:"task_id"`
	Key            string    `json:"key,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	SolverStatus   string    `json:"solver_status,omitempty"`
	Objective      float64   `json:"objective"`
	RelativeGap    float64   `json:"relative_gap"`
	ElapsedTime    float64   `json:"elapsed_time"`
	Error          string    `json:"error,omitempty"`
	Contracts      int       `json:"contracts"`
	Storages       int       `json:"storages"`
	MovableDemands int       `json:"movable_demands"`
	Variables      int       `json:"variables"`
	Constraints    int       `json:"constraints"`
}

// FromEvent builds a record with a fresh id from a solve event.
func FromEvent(ev events.SolveEvent) Record {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		ID:             uuid.NewString(),
		TaskID:         ev.TaskID,
		Key:            ev.Key,
		Timestamp:      ts.UTC(),
		Status:         ev.Status.String(),
		SolverStatus:   ev.SolverStatus,
		Objective:      ev.Objective,
		RelativeGap:    ev.RelativeGap,
		ElapsedTime:    ev.ElapsedTime,
		Error:          ev.Error,
		Contracts:      ev.Contracts,
		Storages:       ev.Storages,
		MovableDemands: ev.Demands,
		Variables:      ev.Columns,
		Constraints:    ev.Rows,
	}
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	TaskID *int64
	Status string
	// Limit keeps the most recent records when positive.
	Limit int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.TaskID != nil && r.TaskID != *q.TaskID {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
