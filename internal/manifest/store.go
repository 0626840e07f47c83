// Package manifest keeps a SQLite record of import runs: one row per run,
// per written document and per localized asset. It is a report; the
// importer never consults it to decide what to fetch.
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one import run and its final counts.
type Run struct {
	ID              string
	Base            string
	Started         time.Time
	Finished        time.Time
	Topics          int
	Written         int
	Unchanged       int
	Skipped         int
	Pages           int
	AssetsLocalized int
	AssetsFailed    int
	Aborted         bool
}

// Document is one written post.
type Document struct {
	TopicID     int
	Slug        string
	Path        string
	Fingerprint string
	Unchanged   bool
}

// AssetStatus is the outcome recorded for an image reference.
type AssetStatus string

const (
	AssetLocalized AssetStatus = "localized"
	AssetKept      AssetStatus = "kept"
)

// Asset is one image reference handled while importing a topic.
type Asset struct {
	TopicID   int
	Source    string
	Reference string
	Status    AssetStatus
}

// Store is a SQLite-backed manifest.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the manifest at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER,
		topics INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		assets_localized INTEGER NOT NULL DEFAULT 0,
		assets_failed INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		topic_id INTEGER NOT NULL,
		slug TEXT NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT,
		unchanged INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		topic_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		reference TEXT NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
	CREATE INDEX IF NOT EXISTS idx_assets_run ON assets(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts the run row.
func (s *Store) BeginRun(ctx context.Context, runID, base string, started time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, base, started) VALUES (?, ?, ?)",
		runID, base, started.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordDocument adds a written document to a run.
func (s *Store) RecordDocument(ctx context.Context, runID string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (run_id, topic_id, slug, path, fingerprint, unchanged) VALUES (?, ?, ?, ?, ?, ?)",
		runID, doc.TopicID, doc.Slug, doc.Path, doc.Fingerprint, doc.Unchanged,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// RecordAsset adds an image outcome to a run.
func (s *Store) RecordAsset(ctx context.Context, runID string, a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO assets (run_id, topic_id, source, reference, status) VALUES (?, ?, ?, ?, ?)",
		runID, a.TopicID, a.Source, a.Reference, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished = ?, topics = ?, written = ?, unchanged = ?, skipped = ?, pages = ?,
			assets_localized = ?, assets_failed = ?, aborted = ? WHERE id = ?`,
		run.Finished.UnixMilli(), run.Topics, run.Written, run.Unchanged, run.Skipped, run.Pages,
		run.AssetsLocalized, run.AssetsFailed, run.Aborted, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, at most limit (0 = all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, base, started, finished, topics, written, unchanged, skipped, pages,
		assets_localized, assets_failed, aborted FROM runs ORDER BY started DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Base, &started, &finished, &r.Topics, &r.Written, &r.Unchanged,
			&r.Skipped, &r.Pages, &r.AssetsLocalized, &r.AssetsFailed, &r.Aborted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		if finished.Valid {
			r.Finished = time.UnixMilli(finished.Int64)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Documents returns the documents recorded for runID in insertion order.
func (s *Store) Documents(ctx context.Context, runID string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT topic_id, slug, path, fingerprint, unchanged FROM documents WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []Document
	for rows.Next() {
		var d Document
		var fp sql.NullString
		if err := rows.Scan(&d.TopicID, &d.Slug, &d.Path, &fp, &d.Unchanged); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Fingerprint = fp.String
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}

// AssetCounts returns the number of asset rows per status for runID.
func (s *Store) AssetCounts(ctx context.Context, runID string) (map[AssetStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM assets WHERE run_id = ? GROUP BY status", runID)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[AssetStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan asset count: %w", err)
		}
		counts[AssetStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return counts, nil
}
