package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/logger"
	"github.com/kilianp07/pvopt/core/metrics"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

// Pool runs Config.Count workers over one Source.
type Pool struct {
	cfg      Config
	src      Source
	opt      Optimizer
	disp     Dispatcher
	tokens   *semaphore.Weighted
	limiter  *rate.Limiter
	log      logger.Logger
	bus      eventbus.Publisher[events.Event]
	inFlight metrics.InFlightRecorder
	active   atomic.Int64
	backoff  backoff
}

// backoff bounds the pause between failed receives: it starts at first and
// doubles up to limit.
type backoff struct {
	first, limit time.Duration
}

func (b backoff) next(prev time.Duration) time.Duration {
	if prev <= 0 {
		return b.first
	}
	if prev*2 > b.limit {
		return b.limit
	}
	return prev * 2
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithBus publishes a DeliveryEvent per stage.
func WithBus(b eventbus.Publisher[events.Event]) Option {
	return func(p *Pool) { p.bus = b }
}

// WithInFlight reports the number of tasks being solved.
func WithInFlight(r metrics.InFlightRecorder) Option {
	return func(p *Pool) { p.inFlight = r }
}

// WithReceiveBackoff sets the pause after a failed receive. It starts at
// first and doubles up to limit while the source keeps failing.
func WithReceiveBackoff(first, limit time.Duration) Option {
	return func(p *Pool) {
		if first > 0 && limit >= first {
			p.backoff = backoff{first: first, limit: limit}
		}
	}
}

// NewPool returns a pool reading from src, solving with opt and answering through disp.
func NewPool(cfg Config, src Source, opt Optimizer, disp Dispatcher, opts ...Option) *Pool {
	cfg.SetDefaults()
	p := &Pool{
		cfg:     cfg,
		src:     src,
		opt:     opt,
		disp:    disp,
		tokens:  semaphore.NewWeighted(int64(cfg.Count)),
		log:     logger.NopLogger{},
		backoff: backoff{first: 100 * time.Millisecond, limit: 5 * time.Second},
	}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run starts the workers and blocks until ctx is done or the source is
// closed. Tasks already taken are finished before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	if p.src == nil || p.opt == nil || p.disp == nil {
		return errors.New("ingest: source, optimizer and dispatcher are required")
	}
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

// Solve runs one task outside the source under the same admission tokens
// as the workers. It blocks until a token is free or ctx is done.
func (p *Pool) Solve(ctx context.Context, task *model.Task) (*model.Result, error) {
	if err := p.tokens.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission: %w", err)
	}
	defer p.tokens.Release(1)
	return p.solve(ctx, task), nil
}

// InFlight returns the number of tasks currently being solved.
func (p *Pool) InFlight() int { return int(p.active.Load()) }

func (p *Pool) work(ctx context.Context, id int) {
	var pause time.Duration
	for {
		if err := p.tokens.Acquire(ctx, 1); err != nil {
			return
		}
		d, err := p.next(ctx)
		if err != nil {
			p.tokens.Release(1)
			if errors.Is(err, ErrSourceClosed) || ctx.Err() != nil {
				return
			}
			pause = p.backoff.next(pause)
			p.log.Errorf("worker %d: receive: %v (retry in %s)", id, err, pause)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
			continue
		}
		pause = 0
		p.handle(ctx, id, d)
		p.tokens.Release(1)
	}
}

func (p *Pool) next(ctx context.Context) (Delivery, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Delivery{}, err
		}
	}
	return p.src.Receive(ctx)
}

func (p *Pool) handle(ctx context.Context, id int, d Delivery) {
	if d.Received.IsZero() {
		d.Received = time.Now()
	}
	p.publish(d, id, events.StageReceived, nil)

	var res *model.Result
	if d.Err != nil {
		p.log.Warnf("worker %d: message %s: %v", id, d.Key, d.Err)
		res = model.NotFound(d.ID(), d.Err.Error())
	} else {
		res = p.solve(events.WithKey(ctx, d.Key), d.Task)
	}

	// Dispatch is not bound to ctx so a finished result is not lost on shutdown.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.disp.Dispatch(dctx, d.Key, res); err != nil {
		p.log.Errorf("worker %d: dispatch %s: %v", id, d.Key, err)
		p.publish(d, id, events.StageFailed, err)
		return
	}
	p.publish(d, id, events.StageDispatched, nil)

	if d.Ack != nil {
		if err := d.Ack(); err != nil {
			p.log.Errorf("worker %d: ack %s: %v", id, d.Key, err)
			p.publish(d, id, events.StageFailed, err)
			return
		}
	}
	p.publish(d, id, events.StageAcked, nil)
}

func (p *Pool) solve(ctx context.Context, task *model.Task) *model.Result {
	p.track(p.active.Add(1))
	defer func() { p.track(p.active.Add(-1)) }()
	return p.opt.Solve(ctx, task)
}

func (p *Pool) track(n int64) {
	if p.inFlight == nil {
		return
	}
	if err := p.inFlight.RecordInFlight(int(n)); err != nil {
		p.log.Warnf("record in-flight tasks: %v", err)
	}
}

func (p *Pool) publish(d Delivery, worker int, stage events.Stage, err error) {
	if p.bus == nil {
		return
	}
	now := time.Now()
	p.bus.Publish(events.DeliveryEvent{
		Key:     d.Key,
		TaskID:  d.ID(),
		Worker:  worker,
		Stage:   stage,
		Err:     err,
		Latency: now.Sub(d.Received),
		Time:    now,
	})
}
