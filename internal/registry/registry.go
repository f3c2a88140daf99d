// Package registry implements the Recording Registry (C5): the relational
// store of RecordingMetadata rows backing the Control API's recording
// endpoints. Grounded on the original Rust database.rs's
// create/update_completed/get/list/delete surface, and on this codebase's
// lineage's sqlite-store idiom (pragma-based schema versioning, a plain
// *sql.DB wrapped by a small struct) rather than a full ORM.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// Status is a RecordingMetadata row's lifecycle status.
type Status string

const (
	StatusRecording Status = "RECORDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Recording is one row of the recordings table.
type Recording struct {
	ID              string
	FileName        string
	FilePath        string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds *int64
	FileSizeBytes   *int64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const schemaVersion = 1

// Registry is a SQLite-backed Recording Registry. A generic relational
// table would do just as well; SQLite is the pure-Go driver
// this module's dependency set settles on (no cgo toolchain required),
// matching this codebase's lineage's own sqlite-store packages.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and runs
// the startup migration.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, streamerrors.NewDatabaseError("failed to open recording registry database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: avoid concurrent-writer lock errors

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, streamerrors.NewMigrationError("failed to migrate recording registry schema", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	var current int
	if err := r.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		duration_seconds INTEGER,
		file_size_bytes INTEGER,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_start_time ON recordings(start_time DESC);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Ping reports whether the database connection is alive, satisfying the
// internal/health.Pinger interface consumed by /api/v1/health.
func (r *Registry) Ping() error { return r.db.Ping() }

// Create inserts a new RECORDING row.
func (r *Registry) Create(id, fileName, filePath string, startTime time.Time) (*Recording, error) {
	now := startTime
	_, err := r.db.Exec(
		`INSERT INTO recordings (id, file_name, file_path, start_time, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, fileName, filePath, now.Format(time.RFC3339Nano), string(StatusRecording),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, streamerrors.NewDatabaseError("failed to create recording row", err)
	}
	return r.Get(id)
}

// UpdateCompleted marks a recording COMPLETED with its final duration and
// size.
func (r *Registry) UpdateCompleted(id string, endTime time.Time, durationSeconds, fileSizeBytes int64) (*Recording, error) {
	return r.updateFinal(id, StatusCompleted, endTime, durationSeconds, fileSizeBytes)
}

// UpdateFailed marks a recording FAILED — the outcome for the "detach
// bus-wait timed out and the file is empty" case. Not part of the
// original five-method CRUD interface, but required to express that
// decision.
func (r *Registry) UpdateFailed(id string, endTime time.Time, durationSeconds, fileSizeBytes int64) (*Recording, error) {
	return r.updateFinal(id, StatusFailed, endTime, durationSeconds, fileSizeBytes)
}

func (r *Registry) updateFinal(id string, status Status, endTime time.Time, durationSeconds, fileSizeBytes int64) (*Recording, error) {
	res, err := r.db.Exec(
		`UPDATE recordings SET end_time = ?, duration_seconds = ?, file_size_bytes = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		endTime.Format(time.RFC3339Nano), durationSeconds, fileSizeBytes, string(status),
		time.Now().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return nil, streamerrors.NewDatabaseError("failed to update recording row", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, streamerrors.NewRecordingNotFoundError(id)
	}
	return r.Get(id)
}

// Get fetches one recording by id.
func (r *Registry) Get(id string) (*Recording, error) {
	row := r.db.QueryRow(
		`SELECT id, file_name, file_path, start_time, end_time, duration_seconds, file_size_bytes, status, created_at, updated_at
		 FROM recordings WHERE id = ?`, id,
	)
	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, streamerrors.NewRecordingNotFoundError(id)
	}
	if err != nil {
		return nil, streamerrors.NewDatabaseError("failed to fetch recording row", err)
	}
	return rec, nil
}

// List returns every recording, most recently started first.
func (r *Registry) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, file_name, file_path, start_time, end_time, duration_seconds, file_size_bytes, status, created_at, updated_at
		 FROM recordings ORDER BY start_time DESC`,
	)
	if err != nil {
		return nil, streamerrors.NewDatabaseError("failed to list recordings", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, streamerrors.NewDatabaseError("failed to scan recording row", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a recording row. It does not remove the file on disk;
// that's the Control API's responsibility if desired.
func (r *Registry) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return streamerrors.NewDatabaseError("failed to delete recording row", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return streamerrors.NewRecordingNotFoundError(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	var rec Recording
	var start, created, updated string
	var end, status string
	var duration, size sql.NullInt64
	var endNull sql.NullString

	if err := s.Scan(&rec.ID, &rec.FileName, &rec.FilePath, &start, &endNull,
		&duration, &size, &status, &created, &updated); err != nil {
		return nil, err
	}

	rec.StartTime, _ = time.Parse(time.RFC3339Nano, start)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	rec.Status = Status(status)

	if endNull.Valid {
		end = endNull.String
		t, _ := time.Parse(time.RFC3339Nano, end)
		rec.EndTime = &t
	}
	if duration.Valid {
		rec.DurationSeconds = &duration.Int64
	}
	if size.Valid {
		rec.FileSizeBytes = &size.Int64
	}
	return &rec, nil
}
