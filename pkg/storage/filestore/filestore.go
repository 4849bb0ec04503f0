// Package filestore persists records as length-prefixed msgpack frames
// in one file per run. The on-disk layout is a 4-byte big-endian payload
// length followed by the msgpack-encoded record, repeated.
package filestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

const lengthPrefixSize = 4

// MaxFrameSize bounds a single encoded record. Oversized records are
// rejected outright rather than retried.
const MaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned for records whose encoded form exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("filestore: encoded record exceeds frame limit")

type frame struct {
	Run         uint32 `msgpack:"run"`
	Trigger     uint64 `msgpack:"trigger"`
	Sequence    uint16 `msgpack:"seq"`
	MaxSequence uint16 `msgpack:"max_seq"`
	Payload     []byte `msgpack:"payload"`
}

// Option configures a Store.
type Option func(*Store)

// WithFileMode sets the permission bits for created run files.
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		s.fileMode = mode
	}
}

// WithSyncOnFinish forces an fsync before the run file is closed.
func WithSyncOnFinish(sync bool) Option {
	return func(s *Store) {
		s.syncOnFinish = sync
	}
}

// Store writes run files under a base directory.
type Store struct {
	dir          string
	fileMode     os.FileMode
	syncOnFinish bool

	mu    sync.Mutex
	files map[uint32]*os.File
}

// New creates a file-backed store rooted at dir. The directory is
// created on the first PrepareForRun.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:          dir,
		fileMode:     0o644,
		syncOnFinish: true,
		files:        make(map[uint32]*os.File),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPath returns the path of the run's data file.
func (s *Store) RunPath(runNumber uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("run%06d.dat", runNumber))
}

// PrepareForRun creates the run's data file. An existing file for the
// same run number is an error; runs are never silently overwritten.
func (s *Store) PrepareForRun(_ context.Context, runNumber uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[runNumber]; ok {
		return fmt.Errorf("filestore: run %d already prepared", runNumber)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create directory: %w", err)
	}

	path := s.RunPath(runNumber)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		return fmt.Errorf("filestore: open %s: %w", path, err)
	}
	s.files[runNumber] = f
	return nil
}

// Write appends the record as one frame to its run file. I/O failures
// are reported retryable; transient conditions like a briefly full
// volume may clear between attempts.
func (s *Store) Write(_ context.Context, rec record.Record) error {
	s.mu.Lock()
	f, ok := s.files[rec.RunNumber]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("filestore: run %d not prepared", rec.RunNumber)
	}

	payload, err := msgpack.Marshal(frame{
		Run:         rec.RunNumber,
		Trigger:     rec.TriggerNumber,
		Sequence:    rec.SequenceNumber,
		MaxSequence: rec.MaxSequenceNumber,
		Payload:     rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("filestore: encode record: %w", err)
	}
	if len(payload) > MaxFrameSize-lengthPrefixSize {
		return ErrFrameTooLarge
	}

	var lengthBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	if _, err := f.Write(lengthBuf[:]); err != nil {
		return storage.Retryable(fmt.Errorf("filestore: write length prefix: %w", err))
	}
	if _, err := f.Write(payload); err != nil {
		return storage.Retryable(fmt.Errorf("filestore: write payload: %w", err))
	}
	return nil
}

// FinishWithRun flushes and closes the run's data file.
func (s *Store) FinishWithRun(_ context.Context, runNumber uint32) error {
	s.mu.Lock()
	f, ok := s.files[runNumber]
	delete(s.files, runNumber)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("filestore: run %d not prepared", runNumber)
	}

	if s.syncOnFinish {
		if err := f.Sync(); err != nil {
			f.Close() //nolint:errcheck
			return fmt.Errorf("filestore: sync run %d: %w", runNumber, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: close run %d: %w", runNumber, err)
	}
	return nil
}

// Close closes any run files still open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for run, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("filestore: close run %d: %w", run, err)
		}
		delete(s.files, run)
	}
	return firstErr
}

// ReadRun decodes all records from a finished run file, in write order.
func ReadRun(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var recs []record.Record
	for {
		var lengthBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(f, lengthBuf[:]); err != nil {
			if err == io.EOF {
				return recs, nil
			}
			return nil, fmt.Errorf("filestore: read length prefix: %w", err)
		}

		size := binary.BigEndian.Uint32(lengthBuf[:])
		if size > MaxFrameSize-lengthPrefixSize {
			return nil, ErrFrameTooLarge
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, fmt.Errorf("filestore: read payload: %w", err)
		}

		var fr frame
		if err := msgpack.Unmarshal(payload, &fr); err != nil {
			return nil, fmt.Errorf("filestore: decode frame: %w", err)
		}
		recs = append(recs, record.Record{
			RunNumber:         fr.Run,
			TriggerNumber:     fr.Trigger,
			SequenceNumber:    fr.Sequence,
			MaxSequenceNumber: fr.MaxSequence,
			Payload:           fr.Payload,
			TotalSizeBytes:    uint64(len(fr.Payload)),
		})
	}
}
