// Package jobs keeps the local history of collection runs in SQLite.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/paths"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// ErrNotFound is returned when no job has the requested id.
var ErrNotFound = errors.New("job not found")

// InterruptedMessage marks runs left running by a process that went away.
const InterruptedMessage = "interrupted"

const currentSchemaVersion = 2

// maxRunAge bounds a single collection run. A row still running after this
// long is interrupted whether or not its owner process is alive.
const maxRunAge = 6 * time.Hour

// Store is the job history. Several processes may share one database; each
// run row carries the pid of the process that started it.
type Store struct {
	db  *sql.DB
	bus *bus.Bus
	now func() time.Time
	pid int
}

// Counts summarises job states.
type Counts struct {
	Running   int
	Completed int
	Failed    int
}

// Open opens (creating if needed) the history database at path. b may be nil.
func Open(path string, b *bus.Bus) (*Store, error) {
	if err := paths.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, bus: b, now: time.Now, pid: os.Getpid()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	n, err := s.markInterrupted()
	if err != nil {
		db.Close()
		return nil, err
	}
	if n > 0 {
		L_warn("jobs: marked stale runs as failed", "count", n)
	}

	L_debug("jobs: store opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version); err != nil {
		version = 0
	}
	if version >= currentSchemaVersion {
		return nil
	}

	migrations := []func(*sql.DB) error{
		migrateV1,
		migrateV2,
	}
	for i := version; i < len(migrations); i++ {
		if err := migrations[i](s.db); err != nil {
			return fmt.Errorf("migration v%d failed: %w", i+1, err)
		}
		L_debug("jobs: applied migration", "version", i+1)
	}
	return nil
}

func migrateV1(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);
	INSERT INTO schema_version (version, applied_at) VALUES (1, ?);

	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`, time.Now().Unix())
	return err
}

func migrateV2(db *sql.DB) error {
	_, err := db.Exec(`
	ALTER TABLE jobs ADD COLUMN owner_pid INTEGER NOT NULL DEFAULT 0;
	INSERT INTO schema_version (version, applied_at) VALUES (2, ?);
	`, time.Now().Unix())
	return err
}

// markInterrupted fails running rows whose owner process is gone, along with
// rows older than maxRunAge. Runs owned by live processes are left alone.
func (s *Store) markInterrupted() (int64, error) {
	rows, err := s.db.Query(`SELECT id, owner_pid, started_at FROM jobs WHERE status = ?`, types.JobRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to query running jobs: %w", err)
	}
	cutoff := s.now().Add(-maxRunAge).UnixMilli()
	var orphaned []int64
	for rows.Next() {
		var id, started int64
		var pid int
		if err := rows.Scan(&id, &pid, &started); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan running job: %w", err)
		}
		if started < cutoff || !processAlive(pid) {
			orphaned = append(orphaned, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to query running jobs: %w", err)
	}
	rows.Close()

	var n int64
	finished := s.now().UnixMilli()
	for _, id := range orphaned {
		res, err := s.db.Exec(
			`UPDATE jobs SET status = ?, progress = 0, message = ?, finished_at = ? WHERE id = ? AND status = ?`,
			types.JobFailed, InterruptedMessage, finished, id, types.JobRunning)
		if err != nil {
			return n, fmt.Errorf("failed to mark job %d interrupted: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return n, err
		}
		n += affected
	}
	return n, nil
}

// Start records a new running job.
func (s *Store) Start(ctx context.Context, name, source string) (types.JobRecord, error) {
	started := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (name, status, progress, source, started_at, owner_pid) VALUES (?, ?, 0, ?, ?, ?)`,
		name, types.JobRunning, source, started.UnixMilli(), s.pid)
	if err != nil {
		return types.JobRecord{}, fmt.Errorf("failed to insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.JobRecord{}, err
	}

	rec := types.JobRecord{
		ID:        id,
		Name:      name,
		Status:    types.JobRunning,
		Source:    source,
		StartedAt: time.UnixMilli(started.UnixMilli()),
	}
	s.publish(rec)
	return rec, nil
}

// Finish moves a job to completed (progress 100) or failed (progress 0).
func (s *Store) Finish(ctx context.Context, id int64, status types.JobStatus, message string) (types.JobRecord, error) {
	if status != types.JobCompleted && status != types.JobFailed {
		return types.JobRecord{}, fmt.Errorf("cannot finish job with status %q", status)
	}
	progress := 0
	if status == types.JobCompleted {
		progress = 100
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = ?, message = ?, finished_at = ? WHERE id = ?`,
		status, progress, message, s.now().UnixMilli(), id)
	if err != nil {
		return types.JobRecord{}, fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.JobRecord{}, ErrNotFound
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return types.JobRecord{}, err
	}
	s.publish(rec)
	return rec, nil
}

// Get returns one job.
func (s *Store) Get(ctx context.Context, id int64) (types.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, selectJobs+` WHERE id = ?`, id)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.JobRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns up to limit jobs, newest first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]types.JobRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectJobs+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []types.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts returns running jobs plus completed and failed ones started since since.
func (s *Store) Counts(ctx context.Context, since time.Time) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? AND started_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? AND started_at >= ? THEN 1 ELSE 0 END), 0)
		FROM jobs`,
		types.JobRunning,
		types.JobCompleted, since.UnixMilli(),
		types.JobFailed, since.UnixMilli(),
	).Scan(&c.Running, &c.Completed, &c.Failed)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs: %w", err)
	}
	return c, nil
}

func (s *Store) publish(rec types.JobRecord) {
	if s.bus != nil {
		s.bus.Publish(bus.TopicJobsChanged, rec)
	}
}

const selectJobs = `SELECT id, name, status, progress, message, source, started_at, finished_at FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (types.JobRecord, error) {
	var (
		rec      types.JobRecord
		status   string
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &status, &rec.Progress, &rec.Message, &rec.Source, &started, &finished); err != nil {
		return types.JobRecord{}, err
	}
	rec.Status = types.JobStatus(status)
	if !rec.Status.Valid() {
		return types.JobRecord{}, fmt.Errorf("job %d has unknown status %q", rec.ID, status)
	}
	rec.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		rec.FinishedAt = &t
	}
	return rec, nil
}
