package recwriter

import (
	"fmt"
	"time"

	"github.com/daqline/recwriter/pkg/record"
)

// Config holds the pipeline configuration. Use DefaultConfig for
// sensible defaults; zero or out-of-range retry values are corrected by
// Validate rather than rejected.
type Config struct {
	// Prescale persists one record in every Prescale received. The
	// first record of a run always persists. Values at or below 1
	// persist everything.
	Prescale int

	// MinRetryWait is the initial wait after a retryable storage
	// failure. Corrected to at least one microsecond.
	MinRetryWait time.Duration

	// MaxRetryWait caps the retry wait.
	MaxRetryWait time.Duration

	// RetryGrowthFactor multiplies the wait after each retryable
	// failure. Corrected to at least 1.
	RetryGrowthFactor float64

	// TokenDestination names the consumer completion tokens are
	// addressed to. Required.
	TokenDestination string

	// ReceiveTimeout bounds each blocking receive from the input
	// channel and therefore shutdown latency.
	ReceiveTimeout time.Duration

	// TokenSendTimeout bounds each completion token send attempt.
	TokenSendTimeout time.Duration

	// ProgressInterval logs a progress line every N received records.
	// Zero disables progress reporting.
	ProgressInterval int

	// ShutdownTimeout is the maximum time Stop waits for the worker to
	// drain.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values. TokenDestination
// must still be set before use.
func DefaultConfig() Config {
	return Config{
		Prescale:          1,
		MinRetryWait:      time.Millisecond,
		MaxRetryWait:      time.Second,
		RetryGrowthFactor: 2,
		ReceiveTimeout:    10 * time.Millisecond,
		TokenSendTimeout:  100 * time.Millisecond,
		ProgressInterval:  1000,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Validate checks the configuration and corrects out-of-range tuning
// values to their documented minimums.
func (c *Config) Validate() error {
	if c.TokenDestination == "" {
		return fmt.Errorf("%w: token destination is required", record.ErrInvalidConfig)
	}
	if c.Prescale < 1 {
		c.Prescale = 1
	}
	if c.MinRetryWait < time.Microsecond {
		c.MinRetryWait = time.Microsecond
	}
	if c.MaxRetryWait < c.MinRetryWait {
		c.MaxRetryWait = c.MinRetryWait
	}
	if c.RetryGrowthFactor < 1 {
		c.RetryGrowthFactor = 1
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 10 * time.Millisecond
	}
	if c.TokenSendTimeout <= 0 {
		c.TokenSendTimeout = 100 * time.Millisecond
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return nil
}

// RunParams carries the run-scoped parameters passed to Start.
type RunParams struct {
	// RunNumber identifies the run; records from any other run are
	// dropped.
	RunNumber uint32

	// StorageEnabled gates persistence for this run. When false the
	// pipeline still tracks completion and emits tokens, but nothing
	// is written and the backend's per-run hooks are not invoked.
	StorageEnabled bool
}

// Tuning is the subset of Config that may be adjusted between runs,
// for example by the configwatcher plugin.
type Tuning struct {
	Prescale          int
	MinRetryWait      time.Duration
	MaxRetryWait      time.Duration
	RetryGrowthFactor float64
}
