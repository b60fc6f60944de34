// Package optimizer turns a Task into a mixed-integer linear program, runs
// it on a solver obtained from a factory and decodes the solution into a
// Result. One solver instance serves exactly one task and is always freed.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/logger"
	"github.com/kilianp07/pvopt/core/metrics"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/monitoring"
	"github.com/kilianp07/pvopt/core/solver"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

// Optimizer solves tasks. It holds no per-task state and is safe for
// concurrent use.
type Optimizer struct {
	cfg       Config
	newSolver solver.Factory
	log       logger.Logger
	sink      metrics.MetricsSink
	monitor   monitoring.Monitor
	bus       eventbus.Publisher[events.Event]
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the sink receiving one SolveMetric per task.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithMonitor sets the monitor receiving build and solve failures. Without
// it failures go to the global monitor.
func WithMonitor(m monitoring.Monitor) Option {
	return func(o *Optimizer) { o.monitor = m }
}

// WithBus publishes a SolveEvent per task on the bus.
func WithBus(b eventbus.Publisher[events.Event]) Option {
	return func(o *Optimizer) { o.bus = b }
}

// New returns an Optimizer creating one solver per task through newSolver.
func New(cfg Config, newSolver solver.Factory, opts ...Option) *Optimizer {
	cfg.SetDefaults()
	o := &Optimizer{
		cfg:       cfg,
		newSolver: newSolver,
		log:       logger.NopLogger{},
		sink:      metrics.NopSink{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the facts reported once a task is done.
type run struct {
	columns      int
	rows         int
	solverStatus string
}

// Solve builds, solves and decodes task. It never fails: every error,
// including a panic in the solver, yields a SolutionNotFound result that
// carries the reason.
func (o *Optimizer) Solve(ctx context.Context, task *model.Task) (res *model.Result) {
	if task == nil {
		return model.NotFound(0, "no task to optimize")
	}
	began := time.Now()
	var r run
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("optimizer panic: %v", p)
			o.capture(err, task.ID())
			res = model.NotFound(task.ID(), err.Error())
		}
		o.report(events.KeyFrom(ctx), task, res, r, time.Since(began))
	}()

	res, err := o.solve(ctx, task, &r)
	if err != nil {
		o.capture(err, task.ID())
		return model.NotFound(task.ID(), err.Error())
	}
	return res
}

func (o *Optimizer) solve(ctx context.Context, task *model.Task, r *run) (*model.Result, error) {
	if o.newSolver == nil {
		return nil, errors.New("no solver factory configured")
	}
	s, err := o.newSolver()
	if err != nil {
		return nil, fmt.Errorf("create solver: %w", err)
	}
	defer func() {
		if err := s.Free(); err != nil {
			o.log.Warnf("task %d: free solver: %v", task.ID(), err)
		}
	}()

	o.log.Infof("building model for task %d", task.ID())
	b := newBuilder(task, s)
	err = b.allocate()
	r.columns = b.columns
	if err != nil {
		return nil, fmt.Errorf("allocate variables: %w", err)
	}
	err = b.constrain()
	r.rows = b.rows
	if err != nil {
		return nil, fmt.Errorf("add constraints: %w", err)
	}
	if err := b.objective(); err != nil {
		return nil, fmt.Errorf("set objective: %w", err)
	}

	timeout := o.cfg.timeout(task.TimeoutSeconds())
	gap := o.cfg.relativeGap(task.RelativeGap())
	s.SetTimeout(timeout)
	s.SetRelativeGap(gap)
	o.log.Debugw("solving", map[string]any{
		"task_id": task.ID(),
		"columns": r.columns,
		"rows":    r.rows,
		"timeout": timeout,
		"gap":     gap,
	})

	status, err := s.Solve(ctx)
	r.solverStatus = status.String()
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	if !status.HasSolution() {
		msg := fmt.Sprintf("solution could not be found: solver status %s", status)
		o.log.Warnf("task %d: %s", task.ID(), msg)
		return model.NotFound(task.ID(), msg), nil
	}

	sol, err := s.Solution()
	if err != nil {
		return nil, fmt.Errorf("read solution: %w", err)
	}
	res, err := b.decode(sol, o.cfg.NumericalZero)
	if err != nil {
		return nil, fmt.Errorf("decode solution: %w", err)
	}
	if res.ObjectiveValue, err = s.ObjectiveValue(); err != nil {
		return nil, fmt.Errorf("read objective: %w", err)
	}
	if res.RelativeGap, err = s.SolutionRelativeGap(); err != nil {
		return nil, fmt.Errorf("read relative gap: %w", err)
	}
	if res.ElapsedTime, err = s.SolutionElapsedTime(); err != nil {
		return nil, fmt.Errorf("read elapsed time: %w", err)
	}
	o.log.Infof("solution found for task %d (%s)", task.ID(), status)
	o.log.Debugw("solution", map[string]any{
		"task_id":      task.ID(),
		"objective":    res.ObjectiveValue,
		"relative_gap": res.RelativeGap,
		"elapsed":      res.ElapsedTime,
	})
	return res, nil
}

func (o *Optimizer) capture(err error, taskID int64) {
	o.log.Errorf("task %d: %v", taskID, err)
	tags := map[string]string{"task_id": strconv.FormatInt(taskID, 10), "module": "optimizer"}
	if o.monitor != nil {
		o.monitor.CaptureException(err, tags)
		return
	}
	monitoring.CaptureException(err, tags)
}

func (o *Optimizer) report(key string, task *model.Task, res *model.Result, r run, took time.Duration) {
	now := time.Now()
	if err := o.sink.RecordSolve(metrics.SolveMetric{
		TaskID:       task.ID(),
		Status:       res.Status.String(),
		SolverStatus: r.solverStatus,
		Objective:    res.ObjectiveValue,
		RelativeGap:  res.RelativeGap,
		Duration:     took,
		Columns:      r.columns,
		Rows:         r.rows,
		Time:         now,
	}); err != nil {
		o.log.Warnf("task %d: record metrics: %v", task.ID(), err)
	}
	if o.bus != nil {
		o.bus.Publish(events.SolveEvent{
			Key:          key,
			TaskID:       task.ID(),
			Status:       res.Status,
			SolverStatus: r.solverStatus,
			Objective:    res.ObjectiveValue,
			RelativeGap:  res.RelativeGap,
			ElapsedTime:  res.ElapsedTime,
			Columns:      r.columns,
			Rows:         r.rows,
			Contracts:    len(task.Contracts()),
			Storages:     len(task.Storages()),
			Demands:      len(task.MovableDemands()),
			Error:        res.ErrorMessage,
			Time:         now,
		})
	}
}
