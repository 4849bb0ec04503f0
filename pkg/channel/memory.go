package channel

import (
	"context"
	"time"

	"github.com/daqline/recwriter/pkg/record"
)

// MemSource is a RecordSource backed by a buffered Go channel. The
// producer side pushes records with Push; the pipeline pulls them with
// Receive. FIFO order follows from the channel.
type MemSource struct {
	ch chan record.Record
}

// NewMemSource creates a source with the given buffer capacity.
func NewMemSource(capacity int) *MemSource {
	return &MemSource{ch: make(chan record.Record, capacity)}
}

// Push enqueues a record, blocking until there is buffer space or ctx is
// done.
func (s *MemSource) Push(ctx context.Context, rec record.Record) error {
	select {
	case s.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements RecordSource.
func (s *MemSource) Receive(ctx context.Context, timeout time.Duration) (record.Record, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rec := <-s.ch:
		return rec, nil
	case <-timer.C:
		return record.Record{}, ErrTimeoutExpired
	case <-ctx.Done():
		return record.Record{}, ctx.Err()
	}
}

// Len returns the number of records currently buffered.
func (s *MemSource) Len() int {
	return len(s.ch)
}

// MemSink is a TokenSink backed by a buffered Go channel. Tokens are
// consumed by reading from Tokens.
type MemSink struct {
	ch chan record.CompletionToken
}

// NewMemSink creates a sink with the given buffer capacity.
func NewMemSink(capacity int) *MemSink {
	return &MemSink{ch: make(chan record.CompletionToken, capacity)}
}

// Send implements TokenSink. A full buffer past the timeout reports
// ErrSendTimeout.
func (s *MemSink) Send(ctx context.Context, tok record.CompletionToken, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- tok:
		return nil
	case <-timer.C:
		return ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements TokenSink.
func (s *MemSink) Close() error {
	return nil
}

// Tokens exposes the consumer side of the sink.
func (s *MemSink) Tokens() <-chan record.CompletionToken {
	return s.ch
}

// Len returns the number of tokens currently buffered.
func (s *MemSink) Len() int {
	return len(s.ch)
}
