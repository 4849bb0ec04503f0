package record

import "errors"

// Domain errors for the write pipeline. These are returned by the public
// API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start is called on a running writer.
	ErrAlreadyRunning = errors.New("recwriter: already running")

	// ErrNotRunning is returned when Stop is called on a writer that is
	// not running.
	ErrNotRunning = errors.New("recwriter: not running")

	// ErrNotStopped is returned when Reset is called before the writer
	// has stopped.
	ErrNotStopped = errors.New("recwriter: not stopped")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("recwriter: invalid configuration")

	// ErrNoBackend is returned when a run is started without a storage
	// backend installed. A likely cause is a skipped configure step.
	ErrNoBackend = errors.New("recwriter: no storage backend configured")

	// ErrRunMismatch indicates a record whose run number differed from
	// the active run. The record is dropped without a write or a token.
	ErrRunMismatch = errors.New("recwriter: record run number does not match active run")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("recwriter: shutdown timeout")
)
