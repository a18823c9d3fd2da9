package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"floatshelf/internal/domain"
)

// defaultRecentLimit caps Recent queries that pass no explicit limit.
const defaultRecentLimit = 50

// SQLiteStore implements domain.RunHistory using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ domain.RunHistory = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. Parent directories are created so a fresh prefs dir
// works on first run.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id        TEXT PRIMARY KEY,
			time      TEXT NOT NULL,
			shelf     TEXT NOT NULL,
			button_id TEXT NOT NULL,
			label     TEXT NOT NULL,
			kind      TEXT NOT NULL,
			ok        INTEGER NOT NULL,
			output    TEXT NOT NULL DEFAULT '',
			error     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(time);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append records one button run.
func (s *SQLiteStore) Append(_ context.Context, rec domain.RunRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, time, shelf, button_id, label, kind, ok, output, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Time.UTC().Format(time.RFC3339Nano), rec.Shelf, rec.ButtonID,
		rec.Label, string(rec.Kind), rec.OK, rec.Output, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, most recent first. A non-positive limit
// falls back to the default cap.
func (s *SQLiteStore) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.Query(
		"SELECT id, time, shelf, button_id, label, kind, ok, output, error FROM runs ORDER BY time DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Prune deletes everything but the newest keep runs, returning how many rows
// were removed.
func (s *SQLiteStore) Prune(_ context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(
		"DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY time DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartPruneLoop trims the table back to keep rows every interval until the
// context is cancelled.
func (s *SQLiteStore) StartPruneLoop(ctx context.Context, interval time.Duration, keep int, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Prune(ctx, keep)
				if err != nil {
					logger.Warn("history prune failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("history pruned", "removed", removed, "keep", keep)
				}
			}
		}
	}()
}

func scanRun(rows *sql.Rows) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var kind, timeStr string
	if err := rows.Scan(&rec.ID, &timeStr, &rec.Shelf, &rec.ButtonID, &rec.Label, &kind, &rec.OK, &rec.Output, &rec.Error); err != nil {
		return rec, err
	}
	rec.Kind = domain.ScriptKind(kind)
	rec.Time, _ = time.Parse(time.RFC3339Nano, timeStr)
	return rec, nil
}
