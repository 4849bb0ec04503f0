// Package redischannel delivers completion tokens over Redis pub/sub.
//
// Each token is published as JSON to a channel derived from the token's
// destination, letting downstream consumers subscribe per destination.
package redischannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/record"
)

// DefaultChannelPrefix is prepended to the token destination to form
// the pub/sub channel name.
const DefaultChannelPrefix = "recwriter:tokens:"

// Config configures the Redis token sink.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// ChannelPrefix overrides DefaultChannelPrefix.
	ChannelPrefix string
}

// Sink publishes completion tokens via Redis PUBLISH.
type Sink struct {
	prefix string
	client *goredis.Client
}

// New creates a Redis token sink from the given config.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("redischannel: URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redischannel: invalid URL: %w", err)
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = DefaultChannelPrefix
	}
	return &Sink{
		prefix: cfg.ChannelPrefix,
		client: goredis.NewClient(opts),
	}, nil
}

// ChannelFor returns the pub/sub channel a destination's tokens are
// published on.
func (s *Sink) ChannelFor(destination string) string {
	return s.prefix + destination
}

// Send publishes the token as JSON within the given timeout. A failed
// publish is returned to the caller; the write pipeline owns the retry
// decision.
func (s *Sink) Send(ctx context.Context, tok record.CompletionToken, timeout time.Duration) error {
	body, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("redischannel: marshal token: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.client.Publish(publishCtx, s.ChannelFor(tok.Destination), body).Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return channel.ErrSendTimeout
		}
		return fmt.Errorf("redischannel: publish: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ channel.TokenSink = (*Sink)(nil)
