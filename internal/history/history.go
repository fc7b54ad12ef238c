// Package history keeps a local audit log of queries and upload batches
// in SQLite. Entries record what ran, where, and how it went; question
// text is stored only as a hash. The log is capped: inserts trim the
// oldest rows past the configured limit.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	lexerrors "github.com/studiolex/lexstore/internal/errors"
)

const (
	// DefaultMaxEntries caps the audit log. Old rows are deleted FIFO.
	DefaultMaxEntries = 200

	defaultRecentLimit = 20
)

// Entry kinds.
const (
	KindQuery  = "query"
	KindUpload = "upload"
)

// Entry is one recorded operation. Query entries fill QuestionHash,
// TokensUsed and CitationCount; upload entries fill the Files* counts and
// TotalBytes. The zero values of the other side stay zero.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StoreName  string    `json:"store_name"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMs int64     `json:"duration_ms"`

	QuestionHash  string `json:"question_hash,omitempty"`
	TokensUsed    int    `json:"tokens_used,omitempty"`
	CitationCount int    `json:"citation_count,omitempty"`

	FilesSucceeded int   `json:"files_succeeded,omitempty"`
	FilesFailed    int   `json:"files_failed,omitempty"`
	FilesSkipped   int   `json:"files_skipped,omitempty"`
	TotalBytes     int64 `json:"total_bytes,omitempty"`
}

// Totals summarizes the whole log for status reporting.
type Totals struct {
	Queries       int64 `json:"queries"`
	Uploads       int64 `json:"uploads"`
	FilesUploaded int64 `json:"files_uploaded"`
}

// Config controls where the log lives and how many rows it keeps.
type Config struct {
	Path       string
	MaxEntries int
}

// DefaultPath returns ~/.lexstore/history.db, falling back to the system
// temp directory when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lexstore", "history.db")
	}
	return filepath.Join(home, ".lexstore", "history.db")
}

// HashQuestion returns the stored fingerprint of a question: first 16 hex
// chars of its SHA-256. Enough to correlate repeats without keeping the
// text itself.
func HashQuestion(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Store is the SQLite-backed audit log.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open opens (creating if needed) the history database. An empty
// cfg.Path opens an in-memory database, which is useful in tests.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}

	var dsn string
	if cfg.Path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, lexerrors.New(lexerrors.ErrCodeHistory,
				"cannot create history directory", err).
				WithDetail("path", cfg.Path)
		}
		dsn = cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeHistory, "cannot open history database", err).
			WithDetail("path", cfg.Path)
	}

	// Single writer: history is low-traffic and SQLite lock contention is
	// not worth handling.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, lexerrors.New(lexerrors.ErrCodeHistory, "cannot configure history database", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, cfg: cfg, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	// created_at is unix milliseconds: integer round-trips identically
	// through every SQLite driver, TIMESTAMP affinity does not.
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		store_name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		question_hash TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		citation_count INTEGER NOT NULL DEFAULT 0,
		files_succeeded INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		files_skipped INTEGER NOT NULL DEFAULT 0,
		total_bytes INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_events_store ON events(store_name);
	`
	if _, err := db.Exec(schema); err != nil {
		return lexerrors.New(lexerrors.ErrCodeHistory, "cannot create history schema", err)
	}
	return nil
}

// RecordQuery appends a query entry and trims the log to its cap.
func (s *Store) RecordQuery(ctx context.Context, storeName, questionHash string, tokensUsed, citations int, latency time.Duration) error {
	entry := Entry{
		ID:            uuid.NewString(),
		Kind:          KindQuery,
		StoreName:     storeName,
		CreatedAt:     time.Now(),
		DurationMs:    latency.Milliseconds(),
		QuestionHash:  questionHash,
		TokensUsed:    tokensUsed,
		CitationCount: citations,
	}
	return s.insert(ctx, entry)
}

// RecordUpload appends an upload-batch entry and trims the log to its cap.
func (s *Store) RecordUpload(ctx context.Context, storeName string, succeeded, failed, skipped int, totalBytes int64, latency time.Duration) error {
	entry := Entry{
		ID:             uuid.NewString(),
		Kind:           KindUpload,
		StoreName:      storeName,
		CreatedAt:      time.Now(),
		DurationMs:     latency.Milliseconds(),
		FilesSucceeded: succeeded,
		FilesFailed:    failed,
		FilesSkipped:   skipped,
		TotalBytes:     totalBytes,
	}
	return s.insert(ctx, entry)
}

func (s *Store) insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, kind, store_name, created_at, duration_ms,
			question_hash, tokens_used, citation_count,
			files_succeeded, files_failed, files_skipped, total_bytes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, e.StoreName, e.CreatedAt.UnixMilli(), e.DurationMs,
		e.QuestionHash, e.TokensUsed, e.CitationCount,
		e.FilesSucceeded, e.FilesFailed, e.FilesSkipped, e.TotalBytes)
	if err != nil {
		return lexerrors.New(lexerrors.ErrCodeHistory, "cannot record history entry", err).
			WithDetail("kind", e.Kind)
	}

	// Trim oldest rows past the cap. rowid follows insertion order, so
	// this keeps the newest MaxEntries.
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE rowid NOT IN (
			SELECT rowid FROM events
			ORDER BY rowid DESC
			LIMIT ?
		)
	`, s.cfg.MaxEntries)
	if err != nil {
		return lexerrors.New(lexerrors.ErrCodeHistory, "cannot trim history", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first. A non-positive
// limit returns a default page.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, store_name, created_at, duration_ms,
		       question_hash, tokens_used, citation_count,
		       files_succeeded, files_failed, files_skipped, total_bytes
		FROM events
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeHistory, "cannot read history", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.StoreName, &createdMs, &e.DurationMs,
			&e.QuestionHash, &e.TokensUsed, &e.CitationCount,
			&e.FilesSucceeded, &e.FilesFailed, &e.FilesSkipped, &e.TotalBytes); err != nil {
			return nil, lexerrors.New(lexerrors.ErrCodeHistory, "cannot scan history entry", err)
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeHistory, "cannot read history", err)
	}
	return entries, nil
}

// Totals reports aggregate counts across the whole log.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN kind = ? THEN 1 END),
			COUNT(CASE WHEN kind = ? THEN 1 END),
			COALESCE(SUM(files_succeeded), 0)
		FROM events
	`, KindQuery, KindUpload).Scan(&t.Queries, &t.Uploads, &t.FilesUploaded)
	if err != nil {
		return Totals{}, lexerrors.New(lexerrors.ErrCodeHistory, "cannot read history totals", err)
	}
	return t, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
