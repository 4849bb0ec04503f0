package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daqline/recwriter/pkg/backoff"
	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

// WorkerConfig holds the tuning knobs for one run of the worker loop.
type WorkerConfig struct {
	// ReceiveTimeout bounds each blocking receive from the input
	// channel. A timeout is not an error; the loop checks for
	// cancellation and tries again, so this also bounds shutdown
	// latency.
	ReceiveTimeout time.Duration

	// TokenSendTimeout bounds each completion token send attempt.
	TokenSendTimeout time.Duration

	// Prescale persists one record in every Prescale received; values
	// at or below 1 persist everything.
	Prescale int

	// MinRetryWait and MaxRetryWait bound the write retry backoff.
	MinRetryWait time.Duration
	MaxRetryWait time.Duration

	// RetryGrowthFactor multiplies the wait after each retryable
	// failure.
	RetryGrowthFactor float64

	// TokenDestination names the consumer completion tokens are
	// addressed to.
	TokenDestination string

	// StorageEnabled gates persistence for the run. When false every
	// record is skipped and the backend's per-run hooks are not
	// invoked.
	StorageEnabled bool

	// ProgressInterval logs a progress line every N received records.
	// Zero disables progress reporting.
	ProgressInterval int
}

// Worker owns the cancellable receive/track/write/emit cycle for a
// single run. Create one per run with NewWorker, then call Prepare,
// Run and Finish in order.
type Worker struct {
	cfg       WorkerConfig
	source    channel.RecordSource
	backend   storage.Backend
	engine    *writeEngine
	emitter   *TokenEmitter
	tracker   *sequenceTracker
	metrics   *Metrics
	logger    log.Logger
	runNumber uint32

	// received counts records seen by this run only. The prescale
	// predicate and progress reporting key off this, not the lifetime
	// metric, so the first record of every run is always persisted.
	received uint64
}

// NewWorker wires the pipeline components for one run.
func NewWorker(
	cfg WorkerConfig,
	runNumber uint32,
	source channel.RecordSource,
	backend storage.Backend,
	sink channel.TokenSink,
	metrics *Metrics,
	logger log.Logger,
) *Worker {
	policy := backoff.New(cfg.MinRetryWait, cfg.MaxRetryWait, cfg.RetryGrowthFactor)
	return &Worker{
		cfg:       cfg,
		source:    source,
		backend:   backend,
		engine:    newWriteEngine(backend, policy, cfg.Prescale, cfg.StorageEnabled, metrics, logger),
		emitter:   NewTokenEmitter(sink, cfg.TokenDestination, cfg.TokenSendTimeout, logger),
		tracker:   newSequenceTracker(),
		metrics:   metrics,
		logger:    logger,
		runNumber: runNumber,
	}
}

// Prepare runs the backend's run-scoped setup. A failure here is fatal
// to starting the run. Skipped entirely when storage is disabled.
func (w *Worker) Prepare(ctx context.Context) error {
	if !w.cfg.StorageEnabled {
		return nil
	}
	if w.backend == nil {
		return record.ErrNoBackend
	}
	if err := w.backend.PrepareForRun(ctx, w.runNumber); err != nil {
		return fmt.Errorf("prepare for run %d: %w", w.runNumber, err)
	}
	return nil
}

// Run executes the receive/track/write/emit loop until ctx is
// cancelled. Per-record failures are isolated to that record; only
// cancellation stops the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker running",
		log.Uint32("run", w.runNumber),
		log.Int("prescale", w.cfg.Prescale),
		log.Bool("storage_enabled", w.cfg.StorageEnabled),
	)

	for {
		if ctx.Err() != nil {
			break
		}

		rec, err := w.source.Receive(ctx, w.cfg.ReceiveTimeout)
		if err != nil {
			if errors.Is(err, channel.ErrTimeoutExpired) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("receive failed", log.Err(err))
			continue
		}

		w.processRecord(ctx, rec)
	}

	w.logger.Info("worker exiting",
		log.Uint32("run", w.runNumber),
		log.Uint64("records_received", w.received),
		log.Int("incomplete_groups", w.tracker.Pending()),
	)
}

func (w *Worker) processRecord(ctx context.Context, rec record.Record) {
	w.metrics.RecordReceived()
	w.received++
	received := w.received

	if w.cfg.ProgressInterval > 0 && received%uint64(w.cfg.ProgressInterval) == 0 {
		w.logger.Info("progress",
			log.Uint64("trigger", rec.TriggerNumber),
			log.Uint64("records_received", received),
		)
	}

	// A record from a foreign run is dropped outright: no tracker
	// entry, no write, no token.
	if rec.RunNumber != w.runNumber {
		w.engine.MaybeWrite(ctx, rec, w.runNumber, received)
		return
	}

	complete := w.tracker.Observe(rec.TriggerNumber, rec.MaxSequenceNumber)

	w.engine.MaybeWrite(ctx, rec, w.runNumber, received)

	if complete {
		w.emitter.Announce(ctx, rec.RunNumber, rec.TriggerNumber)
	}
}

// Finish runs the backend's run-scoped teardown. Failures are reported
// but not fatal since the run is already ending. Skipped when storage
// is disabled.
func (w *Worker) Finish(ctx context.Context) {
	if !w.cfg.StorageEnabled || w.backend == nil {
		return
	}
	if err := w.backend.FinishWithRun(ctx, w.runNumber); err != nil {
		w.logger.Error("finish with run failed",
			log.Uint32("run", w.runNumber),
			log.Err(err),
		)
	}
}
