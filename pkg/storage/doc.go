// Package storage defines the contract between the write pipeline and
// pluggable storage backends.
//
// A [Backend] persists records and participates in run-scoped lifecycle
// hooks. Backends classify write failures: a [RetryableError] tells the
// write engine to retry with backoff, any other error abandons the record.
//
// Concrete backends live in sub-packages (filestore, pebblestore,
// sqlitestore, s3store). This package also provides [TrashCan], which
// discards everything, and [Memory], an in-memory backend for tests and
// demos.
package storage
