package recwriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daqline/recwriter/internal/app"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
)

// MetricsSnapshot aggregates the writer's counters. Rate fields reset
// on every read; Total fields cover the writer's lifetime.
type MetricsSnapshot = app.MetricsSnapshot

// Writer is the record write pipeline. It receives composite records
// from a source channel, persists them through the configured backend
// with bounded retry, tracks per-trigger sequence completion and emits
// completion tokens downstream.
//
// A Writer moves through runs: Start begins one, Stop drains and ends
// it, Reset returns to idle so a new configuration or backend may be
// installed. All methods are safe for concurrent use, though record
// processing itself happens on a single internal goroutine.
type Writer struct {
	mu        sync.Mutex
	cfg       Config
	opts      options
	lifecycle *app.Lifecycle
	metrics   *app.Metrics
	logger    log.Logger

	// run-scoped, valid between Start and Stop
	worker     *app.Worker
	cancel     context.CancelFunc
	done       chan struct{}
	runNumber  uint32
	pluginsUp  []Plugin
	runStorage bool
}

// New validates the configuration, wires the pipeline and announces the
// writer's presence downstream with a sentinel token (run 0, trigger 0).
// The sentinel is best effort; a consumer that is not yet listening does
// not fail construction.
func New(ctx context.Context, cfg Config, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == nil {
		return nil, fmt.Errorf("%w: record source is required", record.ErrInvalidConfig)
	}
	if o.sink == nil {
		return nil, fmt.Errorf("%w: token sink is required", record.ErrInvalidConfig)
	}

	w := &Writer{
		cfg:       cfg,
		opts:      o,
		metrics:   app.NewMetrics(),
		logger:    o.logger,
		lifecycle: app.NewLifecycle(o.logger, stateBridge{handler: o.eventHandler}),
	}

	emitter := app.NewTokenEmitter(o.sink, cfg.TokenDestination, cfg.TokenSendTimeout, o.logger)
	emitter.AnnounceSentinel(ctx)

	w.logger.Info("writer configured",
		log.String("destination", cfg.TokenDestination),
		log.Int("prescale", cfg.Prescale),
	)
	return w, nil
}

// Start begins a run. It prepares the backend for the run, transitions
// to Running and launches the worker loop. Fails with ErrAlreadyRunning
// if a run is in progress and ErrNoBackend if storage is enabled with
// no backend installed. A failed backend preparation leaves the writer
// idle.
func (w *Writer) Start(ctx context.Context, params RunParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lifecycle.CanStart() {
		return record.ErrAlreadyRunning
	}
	if params.StorageEnabled && w.opts.backend == nil {
		return record.ErrNoBackend
	}

	reason := fmt.Sprintf("start run %d", params.RunNumber)
	if err := w.lifecycle.TransitionTo(app.StatePreparing, reason); err != nil {
		return err
	}

	worker := app.NewWorker(
		app.WorkerConfig{
			ReceiveTimeout:    w.cfg.ReceiveTimeout,
			TokenSendTimeout:  w.cfg.TokenSendTimeout,
			Prescale:          w.cfg.Prescale,
			MinRetryWait:      w.cfg.MinRetryWait,
			MaxRetryWait:      w.cfg.MaxRetryWait,
			RetryGrowthFactor: w.cfg.RetryGrowthFactor,
			TokenDestination:  w.cfg.TokenDestination,
			StorageEnabled:    params.StorageEnabled,
			ProgressInterval:  w.cfg.ProgressInterval,
		},
		params.RunNumber,
		w.opts.source,
		w.opts.backend,
		w.opts.sink,
		w.metrics,
		w.logger,
	)

	if err := worker.Prepare(ctx); err != nil {
		w.lifecycle.TransitionTo(app.StateIdle, "prepare failed") //nolint:errcheck
		return err
	}

	w.startPlugins(ctx)

	if err := w.lifecycle.TransitionTo(app.StateRunning, reason); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.worker = worker
	w.cancel = cancel
	w.done = done
	w.runNumber = params.RunNumber
	w.runStorage = params.StorageEnabled

	go func() {
		defer close(done)
		worker.Run(runCtx)
	}()

	w.logger.Info("run started",
		log.Uint32("run", params.RunNumber),
		log.Bool("storage_enabled", params.StorageEnabled),
	)
	return nil
}

// Stop drains and ends the current run. The worker is signalled to
// stop, its current blocking call unwinds within the receive timeout,
// and the backend's run teardown executes. Fails with ErrNotRunning if
// no run is in progress and ErrShutdownTimeout if the worker does not
// drain within the configured shutdown timeout. A timed-out Stop leaves
// the writer draining; calling Stop again resumes the wait and, once
// the worker has drained, completes the teardown.
func (w *Writer) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lifecycle.CanStop() {
		return record.ErrNotRunning
	}
	if w.lifecycle.State() == app.StateRunning {
		if err := w.lifecycle.TransitionTo(app.StateDraining, "stop requested"); err != nil {
			return err
		}
	}

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(w.cfg.ShutdownTimeout):
		w.logger.Error("worker did not drain in time",
			log.Uint32("run", w.runNumber),
			log.Duration("timeout", w.cfg.ShutdownTimeout),
		)
		return record.ErrShutdownTimeout
	}

	w.worker.Finish(ctx)
	w.stopPlugins(ctx)

	if err := w.lifecycle.TransitionTo(app.StateStopped, "run drained"); err != nil {
		return err
	}

	w.logger.Info("run stopped", log.Uint32("run", w.runNumber))
	w.worker = nil
	w.cancel = nil
	w.done = nil
	return nil
}

// Reset releases the backend and returns the writer to idle so a fresh
// configuration may be installed. Only valid after a run has stopped;
// fails with ErrNotStopped otherwise.
func (w *Writer) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lifecycle.State() != app.StateStopped {
		return record.ErrNotStopped
	}
	if w.opts.backend != nil {
		if err := w.opts.backend.Close(); err != nil {
			w.logger.Error("backend close failed", log.Err(err))
		}
	}
	return w.lifecycle.TransitionTo(app.StateIdle, "reset")
}

// State returns the writer's current lifecycle state.
func (w *Writer) State() State {
	return w.lifecycle.State()
}

// Metrics returns the writer's counters. Per-interval fields reset on
// every call; lifetime totals do not.
func (w *Writer) Metrics() MetricsSnapshot {
	return w.metrics.Snapshot()
}

// Tuning returns the currently configured retry and prescale settings.
func (w *Writer) Tuning() Tuning {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Tuning{
		Prescale:          w.cfg.Prescale,
		MinRetryWait:      w.cfg.MinRetryWait,
		MaxRetryWait:      w.cfg.MaxRetryWait,
		RetryGrowthFactor: w.cfg.RetryGrowthFactor,
	}
}

// UpdateTuning adjusts the retry and prescale settings. The change
// takes effect on the next Start; a run in progress keeps the tuning
// it started with.
func (w *Writer) UpdateTuning(t Tuning) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.Prescale >= 1 {
		w.cfg.Prescale = t.Prescale
	}
	if t.MinRetryWait >= time.Microsecond {
		w.cfg.MinRetryWait = t.MinRetryWait
	}
	if t.MaxRetryWait >= w.cfg.MinRetryWait {
		w.cfg.MaxRetryWait = t.MaxRetryWait
	}
	if t.RetryGrowthFactor >= 1 {
		w.cfg.RetryGrowthFactor = t.RetryGrowthFactor
	}
	w.logger.Info("tuning updated",
		log.Int("prescale", w.cfg.Prescale),
		log.Duration("min_retry_wait", w.cfg.MinRetryWait),
		log.Duration("max_retry_wait", w.cfg.MaxRetryWait),
		log.Float64("retry_growth_factor", w.cfg.RetryGrowthFactor),
	)
}

func (w *Writer) startPlugins(ctx context.Context) {
	cfg := PluginConfig{
		TokenDestination: w.cfg.TokenDestination,
		Logger:           w.logger,
		Writer:           w,
	}
	for _, p := range w.opts.plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			w.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
			continue
		}
		w.pluginsUp = append(w.pluginsUp, p)
	}
}

func (w *Writer) stopPlugins(ctx context.Context) {
	for i := len(w.pluginsUp) - 1; i >= 0; i-- {
		p := w.pluginsUp[i]
		if err := p.Shutdown(ctx); err != nil {
			w.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
		}
	}
	w.pluginsUp = nil
}
