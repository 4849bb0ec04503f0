// Package pebblestore persists records in an embedded Pebble database.
// Keys order records by run, trigger and sequence number so a run can
// be scanned back in acquisition order.
package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

// FsyncMode defines durability behavior for record writes.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on every record write.
	FsyncModeAlways
	// FsyncModeNever leaves WAL syncing to Pebble's own policies,
	// trading durability latency for throughput.
	FsyncModeNever
)

// Options configures the Pebble-backed store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// Store writes records into a Pebble database, one key per record.
type Store struct {
	db        *pebble.DB
	writeSync bool
}

// Open creates or opens the store at the configured directory.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", opts.DataDir, err)
	}
	return &Store{
		db:        db,
		writeSync: opts.Fsync == FsyncModeAlways,
	}, nil
}

// recordKey is run (4 bytes) | trigger (8 bytes) | sequence (2 bytes),
// big endian throughout so lexicographic key order matches acquisition
// order.
func recordKey(run uint32, trigger uint64, seq uint16) []byte {
	key := make([]byte, 14)
	binary.BigEndian.PutUint32(key[0:4], run)
	binary.BigEndian.PutUint64(key[4:12], trigger)
	binary.BigEndian.PutUint16(key[12:14], seq)
	return key
}

func runBounds(run uint32) (lower, upper []byte) {
	lower = make([]byte, 4)
	binary.BigEndian.PutUint32(lower, run)
	upper = make([]byte, 4)
	binary.BigEndian.PutUint32(upper, run+1)
	return lower, upper
}

// Write stores the record's payload under its composite key. Commit
// failures are reported retryable.
func (s *Store) Write(_ context.Context, rec record.Record) error {
	opt := pebble.NoSync
	if s.writeSync {
		opt = pebble.Sync
	}
	key := recordKey(rec.RunNumber, rec.TriggerNumber, rec.SequenceNumber)
	if err := s.db.Set(key, rec.Payload, opt); err != nil {
		return storage.Retryable(fmt.Errorf("pebblestore: set: %w", err))
	}
	return nil
}

// PrepareForRun verifies no records for the run exist yet; runs are
// never silently overwritten.
func (s *Store) PrepareForRun(_ context.Context, runNumber uint32) error {
	lower, upper := runBounds(runNumber)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("pebblestore: iterate run %d: %w", runNumber, err)
	}
	defer iter.Close() //nolint:errcheck

	if iter.First() {
		return fmt.Errorf("pebblestore: run %d already holds records", runNumber)
	}
	return nil
}

// FinishWithRun flushes the run's writes to stable storage.
func (s *Store) FinishWithRun(_ context.Context, runNumber uint32) error {
	if err := s.db.Flush(); err != nil {
		return fmt.Errorf("pebblestore: flush run %d: %w", runNumber, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadRun returns all records of a run in acquisition order. The
// payload is the only field recoverable from the value; key fields are
// decoded from the key itself.
func (s *Store) ReadRun(runNumber uint32) ([]record.Record, error) {
	lower, upper := runBounds(runNumber)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: iterate run %d: %w", runNumber, err)
	}
	defer iter.Close() //nolint:errcheck

	var recs []record.Record
	for valid := iter.First(); valid; valid = iter.Next() {
		key := iter.Key()
		if len(key) != 14 {
			return nil, fmt.Errorf("pebblestore: malformed key of length %d", len(key))
		}
		payload := append([]byte(nil), iter.Value()...)
		recs = append(recs, record.Record{
			RunNumber:      binary.BigEndian.Uint32(key[0:4]),
			TriggerNumber:  binary.BigEndian.Uint64(key[4:12]),
			SequenceNumber: binary.BigEndian.Uint16(key[12:14]),
			Payload:        payload,
			TotalSizeBytes: uint64(len(payload)),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebblestore: iterate run %d: %w", runNumber, err)
	}
	return recs, nil
}
