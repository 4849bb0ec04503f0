package app

import (
	"context"
	"time"

	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
)

// TokenEmitter sends completion tokens to the configured destination.
// Sends use a bounded per-attempt timeout; transient failures are
// retried immediately, without backoff, until success or cancellation.
type TokenEmitter struct {
	sink        channel.TokenSink
	destination string
	timeout     time.Duration
	logger      log.Logger
}

func NewTokenEmitter(sink channel.TokenSink, destination string, timeout time.Duration, logger log.Logger) *TokenEmitter {
	return &TokenEmitter{
		sink:        sink,
		destination: destination,
		timeout:     timeout,
		logger:      logger,
	}
}

// Announce sends a completion token for the trigger number, retrying
// until success. Cancellation mid-retry drops the token and reports
// false; undelivered tokens are not queued.
func (e *TokenEmitter) Announce(ctx context.Context, runNumber uint32, triggerNumber uint64) bool {
	tok := record.CompletionToken{
		RunNumber:     runNumber,
		TriggerNumber: triggerNumber,
		Destination:   e.destination,
	}
	return e.send(ctx, tok, 0)
}

// sentinelAttempts bounds the configure-time presence announcement so
// configuration cannot hang forever on a dead consumer.
const sentinelAttempts = 5

// AnnounceSentinel sends the configure-time presence token (run 0,
// trigger 0). Best effort: gives up silently after a small fixed number
// of attempts.
func (e *TokenEmitter) AnnounceSentinel(ctx context.Context) bool {
	return e.send(ctx, record.SentinelToken(e.destination), sentinelAttempts)
}

// send attempts delivery until success, cancellation, or maxAttempts
// (zero means unbounded).
func (e *TokenEmitter) send(ctx context.Context, tok record.CompletionToken, maxAttempts int) bool {
	attempts := 0
	for {
		if ctx.Err() != nil {
			e.logger.Warn("dropping completion token on cancellation",
				log.Uint32("run", tok.RunNumber),
				log.Uint64("trigger", tok.TriggerNumber),
			)
			return false
		}

		err := e.sink.Send(ctx, tok, e.timeout)
		if err == nil {
			return true
		}
		attempts++

		e.logger.Warn("completion token send failed, retrying",
			log.Uint32("run", tok.RunNumber),
			log.Uint64("trigger", tok.TriggerNumber),
			log.Int("attempts", attempts),
			log.Err(err),
		)
		if maxAttempts > 0 && attempts >= maxAttempts {
			e.logger.Warn("giving up on token after bounded attempts",
				log.Uint32("run", tok.RunNumber),
				log.Uint64("trigger", tok.TriggerNumber),
				log.Int("attempts", attempts),
			)
			return false
		}
	}
}
