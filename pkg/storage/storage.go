package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/daqline/recwriter/pkg/record"
)

// Backend is a pluggable sink for records.
//
// Write failures carry an explicit classification: wrap transient
// failures with [Retryable] so the write engine retries them with
// backoff; any other error abandons the record without retry.
//
// The pipeline invokes PrepareForRun once before the first record of a
// run and FinishWithRun once when the run ends. A PrepareForRun failure
// is fatal to starting the run; a FinishWithRun failure is only reported.
type Backend interface {
	// Write persists one record.
	Write(ctx context.Context, rec record.Record) error

	// PrepareForRun performs run-scoped setup (open files, create
	// tables, allocate prefixes) before any record of the run arrives.
	PrepareForRun(ctx context.Context, runNumber uint32) error

	// FinishWithRun flushes and releases run-scoped resources.
	FinishWithRun(ctx context.Context, runNumber uint32) error

	// Close releases the backend entirely. Called on writer reset so a
	// fresh configuration can install a different backend.
	Close() error
}

// RetryableError marks a backend write failure as transient. The write
// engine retries such failures with backoff until success or
// cancellation.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable storage error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a transient storage failure. Returns nil when
// err is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
