// Package sqlitestore persists records in a SQLite database, one row
// per record fragment. Suited to modest-rate deployments that want a
// queryable archive rather than raw run files.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store writes records to a SQLite database.
// Uses WAL mode so readers can follow a run while it is being written.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// the schema. Idempotent; safe to call on an existing database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("sqlitestore: connect: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between the writer and the run bookkeeping.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("sqlitestore: apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Write inserts the record. A duplicate identity (same run, trigger and
// sequence) is a hard failure; lock contention is retryable.
func (s *Store) Write(ctx context.Context, rec record.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (run_number, trigger_number, sequence_number, max_sequence, payload)
		VALUES (?, ?, ?, ?, ?)
	`, rec.RunNumber, rec.TriggerNumber, rec.SequenceNumber, rec.MaxSequenceNumber, rec.Payload)
	if err != nil {
		if isBusy(err) {
			return storage.Retryable(fmt.Errorf("sqlitestore: insert record: %w", err))
		}
		return fmt.Errorf("sqlitestore: insert record: %w", err)
	}
	return nil
}

// isBusy reports whether the error is SQLite lock contention.
func isBusy(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// PrepareForRun registers the run. A run number already present in the
// runs table is an error; runs are never silently resumed.
func (s *Store) PrepareForRun(ctx context.Context, runNumber uint32) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (run_number) VALUES (?)`, runNumber)
	if err != nil {
		return fmt.Errorf("sqlitestore: register run %d: %w", runNumber, err)
	}
	return nil
}

// FinishWithRun marks the run finished.
func (s *Store) FinishWithRun(ctx context.Context, runNumber uint32) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE run_number = ?
	`, runNumber)
	if err != nil {
		return fmt.Errorf("sqlitestore: finish run %d: %w", runNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: finish run %d: %w", runNumber, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlitestore: run %d was never prepared", runNumber)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CountRecords returns the number of rows stored for a run.
func (s *Store) CountRecords(ctx context.Context, runNumber uint32) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE run_number = ?`, runNumber).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count run %d: %w", runNumber, err)
	}
	return n, nil
}

// ReadRun returns all records of a run ordered by trigger and sequence.
func (s *Store) ReadRun(ctx context.Context, runNumber uint32) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_number, trigger_number, sequence_number, max_sequence, payload
		FROM records
		WHERE run_number = ?
		ORDER BY trigger_number, sequence_number
	`, runNumber)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: read run %d: %w", runNumber, err)
	}
	defer rows.Close() //nolint:errcheck

	var recs []record.Record
	for rows.Next() {
		var rec record.Record
		if err := rows.Scan(&rec.RunNumber, &rec.TriggerNumber, &rec.SequenceNumber, &rec.MaxSequenceNumber, &rec.Payload); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan record: %w", err)
		}
		rec.TotalSizeBytes = uint64(len(rec.Payload))
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: read run %d: %w", runNumber, err)
	}
	return recs, nil
}
