// Package recwriter provides a reliable write pipeline for composite
// multi-part records: receive, persist with bounded retry, and announce
// completion downstream.
//
// This root package re-exports the public surface from pkg/recwriter so
// callers can depend on the module path directly.
//
// Example usage:
//
//	cfg := recwriter.DefaultConfig()
//	cfg.TokenDestination = "readout"
//	w, err := recwriter.New(ctx, cfg,
//	    recwriter.WithSource(source),
//	    recwriter.WithTokenSink(sink),
//	    recwriter.WithBackend(backend),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Start(ctx, recwriter.RunParams{RunNumber: 7, StorageEnabled: true}); err != nil {
//	    log.Fatal(err)
//	}
package recwriter

import (
	"context"

	"github.com/daqline/recwriter/pkg/recwriter"
)

// Config holds the pipeline configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = recwriter.Config

// RunParams carries the run-scoped parameters passed to Start.
type RunParams = recwriter.RunParams

// Tuning is the subset of Config adjustable between runs.
type Tuning = recwriter.Tuning

// Writer is the record write pipeline.
type Writer = recwriter.Writer

// Option configures optional behavior of a Writer.
type Option = recwriter.Option

// State is the writer's lifecycle state.
type State = recwriter.State

// MetricsSnapshot aggregates the writer's counters.
type MetricsSnapshot = recwriter.MetricsSnapshot

// Plugin extends a Writer with auxiliary behavior.
type Plugin = recwriter.Plugin

// PluginConfig is handed to each plugin at initialization.
type PluginConfig = recwriter.PluginConfig

// EventHandler receives notifications about writer state changes.
type EventHandler = recwriter.EventHandler

// Lifecycle states, in the order a run moves through them.
const (
	StateIdle      = recwriter.StateIdle
	StatePreparing = recwriter.StatePreparing
	StateRunning   = recwriter.StateRunning
	StateDraining  = recwriter.StateDraining
	StateStopped   = recwriter.StateStopped
)

// New validates the configuration, wires the pipeline and announces the
// writer's presence downstream.
func New(ctx context.Context, cfg Config, opts ...Option) (*Writer, error) {
	return recwriter.New(ctx, cfg, opts...)
}

// DefaultConfig returns a Config with default values. TokenDestination
// must still be set before use.
func DefaultConfig() Config {
	return recwriter.DefaultConfig()
}

// WithLogger sets a custom logger.
var WithLogger = recwriter.WithLogger

// WithBackend installs the storage backend records are persisted to.
var WithBackend = recwriter.WithBackend

// WithSource sets the input channel records are received from.
var WithSource = recwriter.WithSource

// WithTokenSink sets the output channel completion tokens are sent on.
var WithTokenSink = recwriter.WithTokenSink

// WithEventHandler registers a handler for writer events.
var WithEventHandler = recwriter.WithEventHandler

// WithPlugin registers a plugin.
var WithPlugin = recwriter.WithPlugin

// Run executes a complete run: construct a writer, start the run, block
// until ctx is cancelled, then drain and release the backend. Intended
// for callers that want the whole lifecycle behind one call; use New
// directly for finer control.
func Run(ctx context.Context, cfg Config, params RunParams, opts ...Option) error {
	w, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	if err := w.Start(ctx, params); err != nil {
		return err
	}

	<-ctx.Done()

	// Stop with a fresh context; the run context is already cancelled.
	if err := w.Stop(context.Background()); err != nil {
		return err
	}
	return w.Reset()
}
