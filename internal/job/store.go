package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a write-behind durability journal for the Job table. It is never
// read on the hot path: the in-memory Table (table.go) is the single source
// of truth for a running process. Store exists so a daemon restart can
// recover job history instead of losing it, and so GET /status can still
// answer for a job that predates the current process.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at dbPath, applying
// the embedded schema if the database is new.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts a Job's current state into the journal.
func (s *Store) Save(ctx context.Context, j *Job) error {
	if j == nil {
		return errors.New("job is nil")
	}
	configJSON, err := json.Marshal(j.Config)
	if err != nil {
		return fmt.Errorf("marshal config snapshot: %w", err)
	}
	logJSON, err := json.Marshal(j.Log)
	if err != nil {
		return fmt.Errorf("marshal log ring: %w", err)
	}
	clipsJSON, err := json.Marshal(j.Clips)
	if err != nil {
		return fmt.Errorf("marshal clips: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO jobs (
            id, source_id, status, progress, message, error_kind, config_json,
            log_json, clips_json, cancelled, last_activity, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            progress = excluded.progress,
            message = excluded.message,
            error_kind = excluded.error_kind,
            config_json = excluded.config_json,
            log_json = excluded.log_json,
            clips_json = excluded.clips_json,
            cancelled = excluded.cancelled,
            last_activity = excluded.last_activity,
            updated_at = excluded.updated_at
    `,
		j.ID, j.SourceID, string(j.Status), j.Progress, j.Message, j.ErrorKind,
		string(configJSON), string(logJSON), string(clipsJSON), boolToInt(j.Cancelled),
		j.LastActivity.Format(time.RFC3339Nano), j.CreatedAt.Format(time.RFC3339Nano),
		j.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// Load reads one journaled Job by id, or (nil, nil) if it does not exist.
func (s *Store) Load(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return j, nil
}

// LoadAll reads every journaled Job, ordered by creation time. Used once at
// daemon startup to repopulate the in-memory Table.
func (s *Store) LoadAll(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load all jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Delete removes a Job's journal row. Called by cleanup.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

const jobColumns = `id, source_id, status, progress, message, error_kind, config_json,
    log_json, clips_json, cancelled, last_activity, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		j                                       Job
		status                                  string
		message, errorKind                      sql.NullString
		configJSON, logJSON, clipsJSON           sql.NullString
		cancelled                                int
		lastActivity, createdAt, updatedAt       string
	)
	if err := row.Scan(
		&j.ID, &j.SourceID, &status, &j.Progress, &message, &errorKind, &configJSON,
		&logJSON, &clipsJSON, &cancelled, &lastActivity, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	j.Status = Status(status)
	j.Message = message.String
	j.ErrorKind = errorKind.String
	j.Cancelled = cancelled != 0

	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &j.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config snapshot: %w", err)
		}
	}
	if logJSON.Valid && logJSON.String != "" {
		if err := json.Unmarshal([]byte(logJSON.String), &j.Log); err != nil {
			return nil, fmt.Errorf("unmarshal log ring: %w", err)
		}
	}
	if clipsJSON.Valid && clipsJSON.String != "" {
		if err := json.Unmarshal([]byte(clipsJSON.String), &j.Clips); err != nil {
			return nil, fmt.Errorf("unmarshal clips: %w", err)
		}
	}

	var err error
	if j.LastActivity, err = time.Parse(time.RFC3339Nano, lastActivity); err != nil {
		return nil, fmt.Errorf("parse last_activity: %w", err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
