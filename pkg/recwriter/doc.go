// Package recwriter provides an embeddable, reliable record write
// pipeline.
//
// The writer consumes multi-part records from an input channel, persists
// them through a pluggable storage backend with bounded exponential
// backoff on transient failures, and announces a completion token
// downstream once a record group is fully processed. A prescale factor
// selects what fraction of records actually persist.
//
// # Basic usage
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
//	if err := w.Start(ctx, recwriter.RunParams{RunNumber: 1, StorageEnabled: true}); err != nil {
//	    log.Fatal(err)
//	}
//	// ... run until shutdown ...
//	if err := w.Stop(ctx); err != nil {
//	    log.Printf("stop: %v", err)
//	}
//	w.Reset() // release the backend before the next configuration
//
// # Lifecycle
//
// A writer moves through Idle, Preparing, Running, Draining and Stopped.
// Start prepares the backend for the run and launches the single worker
// goroutine; Stop cancels it, drains, and finishes the run with the
// backend; Reset releases the backend so a fresh configuration can
// install a different one.
package recwriter
