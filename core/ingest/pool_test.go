package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/ingest"
	"github.com/kilianp07/pvopt/core/logger"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

type chanSource struct{ ch chan ingest.Delivery }

func (s chanSource) Receive(ctx context.Context) (ingest.Delivery, error) {
	select {
	case <-ctx.Done():
		return ingest.Delivery{}, ctx.Err()
	case d, ok := <-s.ch:
		if !ok {
			return ingest.Delivery{}, ingest.ErrSourceClosed
		}
		return d, nil
	}
}

// slowOptimizer records the peak number of concurrent Solve calls.
type slowOptimizer struct {
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
}

func (o *slowOptimizer) Solve(_ context.Context, task *model.Task) *model.Result {
	o.calls.Add(1)
	n := o.active.Add(1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(o.delay)
	o.active.Add(-1)
	return &model.Result{ID: task.ID(), Status: model.SolutionFound}
}

type recordingDispatcher struct {
	mu      sync.Mutex
	results map[string][]*model.Result
	order   []string
	fail    map[string]bool
}

func newDispatcher() *recordingDispatcher {
	return &recordingDispatcher{results: map[string][]*model.Result{}, fail: map[string]bool{}}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, key string, res *model.Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[key] {
		return errors.New("broker unavailable")
	}
	d.results[key] = append(d.results[key], res)
	d.order = append(d.order, "dispatch:"+key)
	return nil
}

func (d *recordingDispatcher) ack(key string, acked *atomic.Int32) func() error {
	return func() error {
		d.mu.Lock()
		d.order = append(d.order, "ack:"+key)
		d.mu.Unlock()
		acked.Add(1)
		return nil
	}
}

func testTask(t *testing.T, id int64) *model.Task {
	t.Helper()
	task, err := model.NewTask(model.TaskParams{ID: id, Intervals: model.NewProfile(1)})
	require.NoError(t, err)
	return task
}

func runPool(t *testing.T, p *ingest.Pool) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPoolDispatchesEachTaskOnceAndAcksAfter(t *testing.T) {
	src := chanSource{ch: make(chan ingest.Delivery, 10)}
	disp := newDispatcher()
	var acked atomic.Int32
	for i := 1; i <= 5; i++ {
		key := string(rune('a' + i))
		src.ch <- ingest.Delivery{Key: key, Task: testTask(t, int64(i)), Ack: disp.ack(key, &acked)}
	}
	close(src.ch)

	p := ingest.NewPool(ingest.Config{Count: 2}, src, &slowOptimizer{}, disp)
	waitRun(t, runPool(t, p))

	assert.Equal(t, int32(5), acked.Load())
	require.Len(t, disp.results, 5)
	for key, rs := range disp.results {
		assert.Len(t, rs, 1, key)
	}
	seen := map[string]bool{}
	for _, step := range disp.order {
		if len(step) > 4 && step[:4] == "ack:" {
			assert.True(t, seen[step[4:]], "ack before dispatch for %s", step[4:])
			continue
		}
		seen[step[len("dispatch:"):]] = true
	}
}

func TestPoolDoesNotAckWhenDispatchFails(t *testing.T) {
	src := chanSource{ch: make(chan ingest.Delivery, 2)}
	disp := newDispatcher()
	disp.fail["lost"] = true
	var acked atomic.Int32
	src.ch <- ingest.Delivery{Key: "lost", Task: testTask(t, 1), Ack: disp.ack("lost", &acked)}
	src.ch <- ingest.Delivery{Key: "kept", Task: testTask(t, 2), Ack: disp.ack("kept", &acked)}
	close(src.ch)

	bus := eventbus.NewTyped[events.Event]()
	ch := bus.SubscribeBuffered(32)
	p := ingest.NewPool(ingest.Config{Count: 1}, src, &slowOptimizer{}, disp, ingest.WithBus(bus))
	waitRun(t, runPool(t, p))

	assert.Equal(t, int32(1), acked.Load())
	assert.NotContains(t, disp.results, "lost")

	stages := map[string][]events.Stage{}
	for len(ch) > 0 {
		ev := (<-ch).(events.DeliveryEvent)
		stages[ev.Key] = append(stages[ev.Key], ev.Stage)
	}
	assert.Equal(t, []events.Stage{events.StageReceived, events.StageFailed}, stages["lost"])
	assert.Equal(t, []events.Stage{events.StageReceived, events.StageDispatched, events.StageAcked}, stages["kept"])
}

func TestPoolAnswersUndecodableMessages(t *testing.T) {
	src := chanSource{ch: make(chan ingest.Delivery, 1)}
	disp := newDispatcher()
	opt := &slowOptimizer{}
	src.ch <- ingest.Delivery{Key: "bad", TaskID: 9, Err: errors.New("invalid json")}
	close(src.ch)

	waitRun(t, runPool(t, ingest.NewPool(ingest.Config{}, src, opt, disp)))

	require.Len(t, disp.results["bad"], 1)
	res := disp.results["bad"][0]
	assert.Equal(t, int64(9), res.ID)
	assert.Equal(t, model.SolutionNotFound, res.Status)
	assert.Equal(t, "invalid json", res.ErrorMessage)
	assert.Zero(t, opt.calls.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	src := chanSource{ch: make(chan ingest.Delivery, 12)}
	for i := 0; i < 12; i++ {
		src.ch <- ingest.Delivery{Key: string(rune('a' + i)), Task: testTask(t, int64(i))}
	}
	close(src.ch)
	opt := &slowOptimizer{delay: 20 * time.Millisecond}

	waitRun(t, runPool(t, ingest.NewPool(ingest.Config{Count: 3}, src, opt, newDispatcher())))

	assert.Equal(t, int32(12), opt.calls.Load())
	assert.LessOrEqual(t, opt.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, opt.peak.Load(), int32(2))
}

func TestPoolSolveSharesAdmission(t *testing.T) {
	opt := &slowOptimizer{delay: 50 * time.Millisecond}
	p := ingest.NewPool(ingest.Config{Count: 1}, chanSource{ch: make(chan ingest.Delivery)}, opt, newDispatcher())

	go func() { _, _ = p.Solve(context.Background(), testTask(t, 1)) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := p.Solve(ctx, testTask(t, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := p.Solve(context.Background(), testTask(t, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.ID)
	assert.Equal(t, 0, p.InFlight())
}

func TestPoolStopsOnCancel(t *testing.T) {
	p := ingest.NewPool(ingest.Config{Count: 4}, chanSource{ch: make(chan ingest.Delivery)}, &slowOptimizer{}, newDispatcher())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	waitRun(t, done)
}

func TestPoolRequiresCollaborators(t *testing.T) {
	p := ingest.NewPool(ingest.Config{}, nil, &slowOptimizer{}, newDispatcher())
	assert.Error(t, p.Run(context.Background()))
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c ingest.Config
	c.SetDefaults()
	assert.Equal(t, 1, c.Count)
	assert.Zero(t, c.Burst)

	c = ingest.Config{RatePerSecond: 5}
	c.SetDefaults()
	assert.Equal(t, 1, c.Burst)

	assert.Error(t, ingest.Config{Count: -1}.Validate())
	assert.Error(t, ingest.Config{RatePerSecond: -1}.Validate())
	assert.NoError(t, ingest.Config{Count: 2, RatePerSecond: 1}.Validate())
}

type failingSource struct{ calls atomic.Int32 }

func (s *failingSource) Receive(context.Context) (ingest.Delivery, error) {
	s.calls.Add(1)
	return ingest.Delivery{}, errors.New("connection reset")
}

type recordingLogger struct {
	logger.NopLogger
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

type brokenGauge struct{}

func (brokenGauge) RecordInFlight(int) error { return errors.New("sink down") }

func TestPoolBacksOffWhenReceiveFails(t *testing.T) {
	src := &failingSource{}
	log := &recordingLogger{}
	p := ingest.NewPool(ingest.Config{Count: 1}, src, &slowOptimizer{}, newDispatcher(),
		ingest.WithLogger(log), ingest.WithReceiveBackoff(20*time.Millisecond, 40*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	waitRun(t, done)

	calls := src.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(2))
	assert.LessOrEqual(t, calls, int32(12), "receive retried without pause")
	log.mu.Lock()
	defer log.mu.Unlock()
	require.NotEmpty(t, log.errors)
	assert.Contains(t, log.errors[0], "connection reset")
	assert.Contains(t, log.errors[0], "retry in 20ms")
}

func TestPoolWarnsWhenInFlightCannotBeRecorded(t *testing.T) {
	log := &recordingLogger{}
	p := ingest.NewPool(ingest.Config{Count: 1}, chanSource{ch: make(chan ingest.Delivery)}, &slowOptimizer{}, newDispatcher(),
		ingest.WithLogger(log), ingest.WithInFlight(brokenGauge{}))

	res, err := p.Solve(context.Background(), testTask(t, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.ID)

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.warns, 2)
	for _, w := range log.warns {
		assert.Contains(t, w, "sink down")
	}
}
