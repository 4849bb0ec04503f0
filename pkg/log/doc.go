// Package log defines the structured logging facade used throughout
// recwriter.
//
// The pipeline core logs through the [Logger] interface so that embedding
// applications can plug in their own logging backend. A zerolog-backed
// implementation is provided via [NewZerologAdapter]; [NewNoopLogger]
// discards everything and is the default when no logger is configured.
package log
