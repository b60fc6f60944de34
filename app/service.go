// Package app wires the configured components into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	solveapi "github.com/kilianp07/pvopt/api/solve"
	"github.com/kilianp07/pvopt/config"
	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/ingest"
	"github.com/kilianp07/pvopt/core/journal"
	coremetrics "github.com/kilianp07/pvopt/core/metrics"
	coremon "github.com/kilianp07/pvopt/core/monitoring"
	"github.com/kilianp07/pvopt/core/optimizer"
	"github.com/kilianp07/pvopt/core/solver"
	"github.com/kilianp07/pvopt/infra/logger"
	"github.com/kilianp07/pvopt/infra/metrics"
	_ "github.com/kilianp07/pvopt/infra/milp"
	"github.com/kilianp07/pvopt/infra/monitoring"
	"github.com/kilianp07/pvopt/infra/mqtt"
	"github.com/kilianp07/pvopt/internal/eventbus"
)

// Service runs the ingestion pool over MQTT and the optional HTTP API.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	bus       *eventbus.TypedBus[events.Event]
	sink      coremetrics.MetricsSink
	store     journal.Store
	monitor   coremon.Monitor
	Optimizer *optimizer.Optimizer
	Pool      *ingest.Pool
	client    *mqtt.PahoClient
	recorder  *journal.Recorder
}

// Components holds what both the service and one-shot solves need.
type Components struct {
	Log       logger.Logger
	Bus       *eventbus.TypedBus[events.Event]
	Sink      coremetrics.MetricsSink
	Monitor   coremon.Monitor
	Optimizer *optimizer.Optimizer
}

// Build sets the log level, installs the monitor and creates the optimizer
// with its solver engine, metrics sink and event bus.
func Build(cfg *config.Config) (*Components, error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	newSolver, err := solver.NewFactory(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver %s: %w", cfg.Solver.Type, err)
	}
	bus := eventbus.NewTyped[events.Event]()
	opt := optimizer.New(cfg.Optimizer, newSolver,
		optimizer.WithLogger(logger.New("optimizer")),
		optimizer.WithMetrics(sink),
		optimizer.WithMonitor(mon),
		optimizer.WithBus(bus),
	)
	return &Components{Log: logger.New("service"), Bus: bus, Sink: sink, Monitor: mon, Optimizer: opt}, nil
}

// New creates a Service from the configuration. At least one of the MQTT
// broker and the HTTP address must be configured.
func New(cfg *config.Config) (*Service, error) {
	if cfg.MQTT.Broker == "" && cfg.HTTP.Address == "" {
		return nil, errors.New("nothing to serve: configure mqtt.broker or http.address")
	}
	c, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	svc := &Service{
		cfg:       cfg,
		log:       c.Log,
		bus:       c.Bus,
		sink:      c.Sink,
		store:     store,
		monitor:   c.Monitor,
		Optimizer: c.Optimizer,
	}

	var (
		src  ingest.Source
		disp ingest.Dispatcher
	)
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		src, disp = client, client
	}
	opts := []ingest.Option{ingest.WithLogger(logger.New("ingest")), ingest.WithBus(c.Bus)}
	if r, ok := c.Sink.(coremetrics.InFlightRecorder); ok {
		opts = append(opts, ingest.WithInFlight(r))
	}
	svc.Pool = ingest.NewPool(cfg.Worker, src, c.Optimizer, disp, opts...)
	return svc, nil
}

// Run starts every configured component and blocks until ctx is cancelled
// or a component fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.recorder = journal.NewRecorder(ctx, s.bus, s.store, logger.New("journal"))
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	var (
		wg   sync.WaitGroup
		once sync.Once
		ferr error
	)
	fail := func(err error) {
		once.Do(func() { ferr = err })
		cancel()
	}
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("%s: %v", name, err)
				fail(fmt.Errorf("%s: %w", name, err))
			}
		}()
	}

	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		start("prom server", func(ctx context.Context) error { return metrics.StartPromServer(ctx, port) })
	}
	if s.cfg.HTTP.Address != "" {
		start("http api", s.serveHTTP)
	}
	if s.client != nil {
		start("ingest", s.Pool.Run)
	}
	s.log.Infof("service started (%d workers)", s.cfg.Worker.Count)

	<-ctx.Done()
	wg.Wait()
	return ferr
}

func (s *Service) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Address,
		Handler:           solveapi.NewHandler(s.Pool, s.store, s.cfg.HTTP.Token, logger.New("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("http api listening on %s", s.cfg.HTTP.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	s.bus.Close()
	if s.recorder != nil {
		s.recorder.Wait()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.monitor.Flush(2 * time.Second)
	return s.store.Close()
}
