package app

import (
	"context"
	"time"

	"github.com/daqline/recwriter/pkg/backoff"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

// WriteOutcome is the result of a write attempt for one record.
type WriteOutcome int

const (
	// OutcomeSkipped means the record was not persisted: prescale said
	// no, storage is disabled, or the run number did not match.
	OutcomeSkipped WriteOutcome = iota

	// OutcomeWritten means the backend accepted the record.
	OutcomeWritten

	// OutcomeAbandoned means the record was given up on after a fatal
	// backend failure or cancellation mid-retry.
	OutcomeAbandoned
)

// String returns a human-readable representation of the outcome.
func (o WriteOutcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "Skipped"
	case OutcomeWritten:
		return "Written"
	case OutcomeAbandoned:
		return "Abandoned"
	default:
		return "Unknown"
	}
}

// writeEngine applies the prescale policy and drives retryable writes
// through the backoff policy against the storage backend. Owned by the
// single worker goroutine; no locking.
type writeEngine struct {
	backend        storage.Backend
	policy         *backoff.Policy
	prescale       uint64
	storageEnabled bool
	metrics        *Metrics
	logger         log.Logger
}

func newWriteEngine(
	backend storage.Backend,
	policy *backoff.Policy,
	prescale int,
	storageEnabled bool,
	metrics *Metrics,
	logger log.Logger,
) *writeEngine {
	if prescale < 1 {
		prescale = 1
	}
	return &writeEngine{
		backend:        backend,
		policy:         policy,
		prescale:       uint64(prescale),
		storageEnabled: storageEnabled,
		metrics:        metrics,
		logger:         logger,
	}
}

// shouldPersist applies the prescale predicate to the run-scoped
// received count. The comparison against 1 rather than 0 guarantees the
// very first record of a run is always persisted.
func (e *writeEngine) shouldPersist(received uint64) bool {
	return e.prescale <= 1 || received%e.prescale == 1
}

// MaybeWrite persists the record if the run number matches, storage is
// enabled and the prescale predicate selects it. Retryable backend
// failures are retried with backoff until success or cancellation; any
// other failure abandons the record.
func (e *writeEngine) MaybeWrite(ctx context.Context, rec record.Record, runNumber uint32, received uint64) WriteOutcome {
	if rec.RunNumber != runNumber {
		e.logger.Error("record run number does not match active run",
			log.Uint32("active_run", runNumber),
			log.String("record", rec.ID()),
			log.Err(record.ErrRunMismatch),
		)
		return OutcomeSkipped
	}
	if !e.storageEnabled || !e.shouldPersist(received) {
		return OutcomeSkipped
	}

	e.policy.Reset()
	for {
		if ctx.Err() != nil {
			return OutcomeAbandoned
		}

		start := time.Now()
		err := e.backend.Write(ctx, rec)
		if err == nil {
			elapsed := time.Since(start)
			e.metrics.RecordWritten(rec.TotalSizeBytes, elapsed)
			e.logger.Debug("record written",
				log.String("record", rec.ID()),
				log.Duration("elapsed", elapsed),
			)
			return OutcomeWritten
		}

		if !storage.IsRetryable(err) {
			e.logger.Error("abandoning record after fatal storage failure",
				log.String("record", rec.ID()),
				log.Err(err),
			)
			return OutcomeAbandoned
		}

		wait := e.policy.Next()
		e.logger.Warn("retryable storage failure, will retry",
			log.String("record", rec.ID()),
			log.Duration("wait", wait),
			log.Err(err),
		)
		if !sleepContext(ctx, wait) {
			return OutcomeAbandoned
		}
	}
}

// sleepContext waits for d, returning false when ctx is done first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
