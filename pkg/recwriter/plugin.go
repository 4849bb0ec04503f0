package recwriter

import (
	"context"

	"github.com/daqline/recwriter/pkg/log"
)

// Plugin extends a Writer with auxiliary behavior (config watching,
// housekeeping). Plugins run alongside the pipeline, not inside it.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize starts the plugin. Called on Writer.Start; the ctx is
	// cancelled when the run stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin. Called on Writer.Stop in reverse
	// registration order.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to each plugin at initialization.
type PluginConfig struct {
	// TokenDestination is the configured token consumer name.
	TokenDestination string

	// Logger is the writer's logger.
	Logger log.Logger

	// Writer is the owning writer, for plugins that adjust tuning
	// between runs.
	Writer *Writer
}

// EventHandler receives notifications about writer state changes.
type EventHandler interface {
	// OnStateChange is called on every lifecycle transition.
	OnStateChange(previous, current State, reason string)
}
