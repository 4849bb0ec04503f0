// Package channel defines the typed channel interfaces connecting the
// write pipeline to its producer and its token consumer, plus in-memory
// implementations backed by Go channels.
//
// Receive timing out is not an error condition for the worker loop; it
// simply checks for cancellation and tries again. A send timing out is a
// transient failure the token emitter retries.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/daqline/recwriter/pkg/record"
)

// ErrTimeoutExpired is returned by Receive when no record arrives within
// the timeout. Benign; callers loop and try again.
var ErrTimeoutExpired = errors.New("channel: receive timeout expired")

// ErrSendTimeout is returned by Send when the consumer does not accept
// the token within the timeout. Transient; callers retry.
var ErrSendTimeout = errors.New("channel: send timeout expired")

// ErrClosed is returned when the channel has been closed.
var ErrClosed = errors.New("channel: closed")

// RecordSource is the typed pull interface the worker receives records
// from.
type RecordSource interface {
	// Receive blocks until a record arrives, the timeout expires
	// (ErrTimeoutExpired), or ctx is done (ctx.Err()).
	Receive(ctx context.Context, timeout time.Duration) (record.Record, error)
}

// TokenSink is the typed push interface completion tokens are sent on.
type TokenSink interface {
	// Send delivers the token, failing with ErrSendTimeout when the
	// consumer applies backpressure for longer than the timeout.
	Send(ctx context.Context, tok record.CompletionToken, timeout time.Duration) error

	// Close releases the sink.
	Close() error
}
