// Package journal persists classified batches to SQLite so watch activity
// can be inspected after the fact. One process writes at a time; readers
// may attach concurrently thanks to WAL mode.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/vigilfs/vigil/internal/watch"
)

// ErrLocked is returned when another process already owns the journal.
var ErrLocked = errors.New("journal locked by another process")

// ErrReadOnly is returned when a write is attempted on a read-only journal.
var ErrReadOnly = errors.New("journal opened read-only")

// Entry is one recorded batch.
type Entry struct {
	ID         int64
	RecordedAt time.Time
	Category   watch.Category
	Paths      []string
}

// CategoryStats aggregates recorded batches for one category.
type CategoryStats struct {
	Category string
	Batches  int64
	Paths    int64
}

// Stats summarizes everything the journal holds.
type Stats struct {
	Batches     int64
	Paths       int64
	First       time.Time
	Last        time.Time
	PerCategory []CategoryStats
}

// Journal is a SQLite-backed batch log.
type Journal struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	lock     *fileLock
	readOnly bool
	closed   bool
}

// validateIntegrity checks an existing journal before opening it for
// writing. Returns nil when the file is absent or healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens the journal at path for writing, creating it if needed.
// An empty path opens an in-memory journal for testing.
// A corrupted journal is cleared and recreated.
func Open(path string) (*Journal, error) {
	j := &Journal{path: path}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		j.lock = newFileLock(path)
		acquired, err := j.lock.tryLock()
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("journal corrupted, clearing",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				_ = j.lock.unlock()
				return nil, fmt.Errorf("journal corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if j.lock != nil {
			_ = j.lock.unlock()
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if j.lock != nil {
				_ = j.lock.unlock()
			}
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	j.db = db
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		if j.lock != nil {
			_ = j.lock.unlock()
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

// OpenReadOnly opens an existing journal for inspection. It takes no lock,
// so it works while a watch session is still writing.
func OpenReadOnly(path string) (*Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Journal{db: db, path: path, readOnly: true}, nil
}

// initSchema creates the journal tables.
func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per delivered batch. recorded_at is unix nanoseconds.
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at INTEGER NOT NULL,
		category TEXT NOT NULL,
		path_count INTEGER NOT NULL
	);

	-- Batch membership, ordered as delivered.
	CREATE TABLE IF NOT EXISTS batch_paths (
		batch_id INTEGER NOT NULL REFERENCES batches(id),
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_batches_category ON batches(category);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Record appends one batch to the journal.
func (j *Journal) Record(ctx context.Context, b watch.Batch) error {
	if len(b.Paths) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal is closed")
	}
	if j.readOnly {
		return ErrReadOnly
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches(recorded_at, category, path_count) VALUES (?, ?, ?)`,
		time.Now().UnixNano(), b.Category.String(), len(b.Paths))
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read batch id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batch_paths(batch_id, position, path) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare path statement: %w", err)
	}
	defer stmt.Close()

	for i, path := range b.Paths {
		if _, err := stmt.ExecContext(ctx, batchID, i, path); err != nil {
			return fmt.Errorf("failed to insert path: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Tail returns the most recent batches, newest first, with their paths in
// delivery order.
func (j *Journal) Tail(ctx context.Context, limit int) ([]Entry, error) {
	return j.tail(ctx, "", limit)
}

// TailCategory is Tail restricted to one category.
func (j *Journal) TailCategory(ctx context.Context, cat watch.Category, limit int) ([]Entry, error) {
	return j.tail(ctx, cat.String(), limit)
}

func (j *Journal) tail(ctx context.Context, category string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	query := `
		SELECT b.id, b.recorded_at, b.category, p.path
		FROM batches b
		JOIN batch_paths p ON p.batch_id = b.id
		WHERE b.id IN (SELECT id FROM batches %s ORDER BY id DESC LIMIT ?)
		ORDER BY b.id DESC, p.position ASC`
	args := []any{limit}
	if category == "" {
		query = fmt.Sprintf(query, "")
	} else {
		query = fmt.Sprintf(query, "WHERE category = ?")
		args = []any{category, limit}
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id       int64
			at       int64
			category string
			path     string
		)
		if err := rows.Scan(&id, &at, &category, &path); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if len(entries) == 0 || entries[len(entries)-1].ID != id {
			cat, err := watch.ParseCategory(category)
			if err != nil {
				return nil, fmt.Errorf("journal holds unknown category %q", category)
			}
			entries = append(entries, Entry{
				ID:         id,
				RecordedAt: time.Unix(0, at),
				Category:   cat,
			})
		}
		last := &entries[len(entries)-1]
		last.Paths = append(last.Paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	return entries, nil
}

// Stats aggregates the journal's contents.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return Stats{}, fmt.Errorf("journal is closed")
	}

	var s Stats
	var first, last int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(path_count), 0),
		       COALESCE(MIN(recorded_at), 0), COALESCE(MAX(recorded_at), 0)
		FROM batches`).Scan(&s.Batches, &s.Paths, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate journal: %w", err)
	}
	if first > 0 {
		s.First = time.Unix(0, first)
	}
	if last > 0 {
		s.Last = time.Unix(0, last)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT category, COUNT(*), SUM(path_count)
		FROM batches GROUP BY category ORDER BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cs CategoryStats
		if err := rows.Scan(&cs.Category, &cs.Batches, &cs.Paths); err != nil {
			return Stats{}, fmt.Errorf("failed to scan category row: %w", err)
		}
		s.PerCategory = append(s.PerCategory, cs)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to read categories: %w", err)
	}

	return s, nil
}

// Path returns the journal file location. Empty for in-memory journals.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database and releases the writer lock.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	err := j.db.Close()
	if j.lock != nil {
		if unlockErr := j.lock.unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}
