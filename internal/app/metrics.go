package app

import (
	"sync/atomic"
	"time"
)

// Metrics holds the pipeline counters. The worker goroutine increments
// them while a reporting goroutine may snapshot them concurrently, so
// every counter is atomic. Deltas use read-reset semantics: each
// snapshot returns the change since the previous snapshot and clears it,
// layered over monotonic lifetime totals.
type Metrics struct {
	recordsReceived    atomic.Uint64
	recordsReceivedTot atomic.Uint64
	recordsWritten     atomic.Uint64
	recordsWrittenTot  atomic.Uint64
	bytesOutput        atomic.Uint64
	bytesOutputTot     atomic.Uint64
	writeTime          atomic.Int64
	writeTimeTot       atomic.Int64
}

// MetricsSnapshot is a point-in-time view of the counters. The delta
// fields cover the interval since the previous snapshot.
type MetricsSnapshot struct {
	RecordsReceived      uint64
	RecordsReceivedTotal uint64
	RecordsWritten       uint64
	RecordsWrittenTotal  uint64
	BytesOutput          uint64
	BytesOutputTotal     uint64
	WriteTime            time.Duration
	WriteTimeTotal       time.Duration
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordReceived counts one record pulled off the input channel.
func (m *Metrics) RecordReceived() {
	m.recordsReceived.Add(1)
	m.recordsReceivedTot.Add(1)
}

// RecordWritten counts one successful backend write.
func (m *Metrics) RecordWritten(bytes uint64, elapsed time.Duration) {
	m.recordsWritten.Add(1)
	m.recordsWrittenTot.Add(1)
	m.bytesOutput.Add(bytes)
	m.bytesOutputTot.Add(bytes)
	m.writeTime.Add(int64(elapsed))
	m.writeTimeTot.Add(int64(elapsed))
}

// ReceivedTotal returns the lifetime count of received records. The
// write engine's prescale predicate works off this value.
func (m *Metrics) ReceivedTotal() uint64 {
	return m.recordsReceivedTot.Load()
}

// Snapshot returns the current counters, clearing the delta fields.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RecordsReceived:      m.recordsReceived.Swap(0),
		RecordsReceivedTotal: m.recordsReceivedTot.Load(),
		RecordsWritten:       m.recordsWritten.Swap(0),
		RecordsWrittenTotal:  m.recordsWrittenTot.Load(),
		BytesOutput:          m.bytesOutput.Swap(0),
		BytesOutputTotal:     m.bytesOutputTot.Load(),
		WriteTime:            time.Duration(m.writeTime.Swap(0)),
		WriteTimeTotal:       time.Duration(m.writeTimeTot.Load()),
	}
}
