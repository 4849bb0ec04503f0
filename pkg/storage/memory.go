package storage

import (
	"context"
	"sync"

	"github.com/daqline/recwriter/pkg/record"
)

// Memory keeps written records in memory, grouped by run number.
// Intended for tests and demos; records are lost on Close.
type Memory struct {
	mu       sync.Mutex
	runs     map[uint32][]record.Record
	prepared map[uint32]bool
	finished map[uint32]bool
	closed   bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		runs:     make(map[uint32][]record.Record),
		prepared: make(map[uint32]bool),
		finished: make(map[uint32]bool),
	}
}

// Write stores the record under its run number.
func (m *Memory) Write(_ context.Context, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[rec.RunNumber] = append(m.runs[rec.RunNumber], rec)
	return nil
}

// PrepareForRun marks the run as prepared.
func (m *Memory) PrepareForRun(_ context.Context, runNumber uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepared[runNumber] = true
	return nil
}

// FinishWithRun marks the run as finished.
func (m *Memory) FinishWithRun(_ context.Context, runNumber uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[runNumber] = true
	return nil
}

// Close drops all stored records.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make(map[uint32][]record.Record)
	m.closed = true
	return nil
}

// Records returns a copy of the records written for the given run.
func (m *Memory) Records(runNumber uint32) []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, len(m.runs[runNumber]))
	copy(out, m.runs[runNumber])
	return out
}

// Prepared reports whether PrepareForRun was called for the run.
func (m *Memory) Prepared(runNumber uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepared[runNumber]
}

// Finished reports whether FinishWithRun was called for the run.
func (m *Memory) Finished(runNumber uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished[runNumber]
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
