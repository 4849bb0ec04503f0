package recwriter

import (
	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/storage"
)

// Option configures optional behavior of a Writer.
type Option func(*options)

type options struct {
	logger       log.Logger
	backend      storage.Backend
	source       channel.RecordSource
	sink         channel.TokenSink
	eventHandler EventHandler
	plugins      []Plugin
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger. The default discards all output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBackend installs the storage backend records are persisted to.
// Required for runs with storage enabled.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithSource sets the input channel records are received from.
func WithSource(source channel.RecordSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithTokenSink sets the output channel completion tokens are sent on.
func WithTokenSink(sink channel.TokenSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithEventHandler registers a handler for writer events. Handlers are
// called synchronously and should return quickly.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin, initialized on Start in registration
// order and shut down in reverse order on Stop.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
