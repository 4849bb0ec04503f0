// Package app contains the write pipeline core: the worker loop, the
// write engine with its retry policy, the per-trigger sequence
// completion tracker, the token emitter and the run lifecycle state
// machine.
//
// A single worker goroutine executes the entire receive/track/write/emit
// sequence, so the tracker table and the retry state need no locking.
// The only state shared across goroutines is the metrics counters
// (atomics) and the cancellation context.
package app
