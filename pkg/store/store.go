// Package store persists saved transcripts in SQLite. Every operation is
// scoped to the authenticated subject: one subject can never read, list or
// delete another subject's rows. The schema is managed by embedded goose
// migrations; the driver is modernc.org/sqlite (pure Go).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
)

const (
	// Driver is the database/sql driver name registered by modernc.org/sqlite.
	Driver = "sqlite"

	// DefaultListLimit applies when a caller passes a non-positive limit.
	DefaultListLimit = 20

	// MaxListLimit caps a single page.
	MaxListLimit = 100
)

// SavedTranscript is one persisted transcript row.
type SavedTranscript struct {
	ID        int64  `db:"id" json:"id"`
	Subject   string `db:"subject" json:"-"`
	VideoID   string `db:"video_id" json:"video_id"`
	VideoURL  string `db:"video_url" json:"video_url"`
	Title     string `db:"title" json:"title"`
	Language  string `db:"language" json:"language"`
	Format    string `db:"format" json:"format"`
	Content   string `db:"content" json:"content"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

// SaveParams carries the fields for a Save upsert.
type SaveParams struct {
	Subject  string
	VideoID  string
	VideoURL string
	Title    string
	Language string
	Format   string
	Content  string
}

// Metrics is the slice of the metrics provider the store records into. Nil
// disables recording.
type Metrics interface {
	RecordStoreOperation(ctx context.Context, operation, status string, duration time.Duration)
}

// Config configures a Store.
type Config struct {
	// Path of the database file; ":memory:" keeps everything in process.
	Path string

	// Logger for migrations and slow-path diagnostics.
	Logger logging.Logger

	// Metrics records operation durations when set.
	Metrics Metrics
}

// Store is the saved-transcript repository.
type Store struct {
	db      *sqlx.DB
	logger  logging.Logger
	metrics Metrics
}

// Open opens (creating if necessary) the database at config.Path, applies
// pragmas and runs migrations.
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.Path == "" {
		return nil, mcperrors.ServerInitError("store requires a database path", nil)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("component", "Store"))

	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, mcperrors.ServerInitError("create database directory", err)
		}
	}

	db, err := sqlx.Open(Driver, config.Path)
	if err != nil {
		return nil, mcperrors.ServerInitError("open database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, mcperrors.ServerInitError(fmt.Sprintf("pragma %q", pragma), err)
		}
	}

	if err := Migrate(ctx, db.DB, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger, metrics: config.Metrics}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mcperrors.StoreFailure("ping", err)
	}
	return nil
}

// Save inserts or replaces the subject's transcript for (video, language).
// A second save of the same video+language overwrites content, title, format
// and URL while keeping the row id and creation time.
func (s *Store) Save(ctx context.Context, params SaveParams) (*SavedTranscript, error) {
	started := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_transcripts (subject, video_id, video_url, title, language, format, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject, video_id, language) DO UPDATE SET
			video_url  = excluded.video_url,
			title      = excluded.title,
			format     = excluded.format,
			content    = excluded.content,
			updated_at = datetime('now')`,
		params.Subject, params.VideoID, params.VideoURL, params.Title,
		params.Language, params.Format, params.Content,
	)
	if err != nil {
		s.observe(ctx, "save", started, err)
		return nil, mcperrors.StoreFailure("save", err)
	}

	var row SavedTranscript
	err = s.db.GetContext(ctx, &row, `
		SELECT id, subject, video_id, video_url, title, language, format, content, created_at, updated_at
		FROM saved_transcripts
		WHERE subject = ? AND video_id = ? AND language = ?`,
		params.Subject, params.VideoID, params.Language,
	)
	if err != nil {
		s.observe(ctx, "save", started, err)
		return nil, mcperrors.StoreFailure("save", err)
	}

	s.observe(ctx, "save", started, nil)
	return &row, nil
}

// List returns the subject's saved transcripts, newest first.
func (s *Store) List(ctx context.Context, subject string, limit, offset int) ([]SavedTranscript, error) {
	started := time.Now()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var rows []SavedTranscript
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, subject, video_id, video_url, title, language, format, content, created_at, updated_at
		FROM saved_transcripts
		WHERE subject = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		subject, limit, offset,
	)
	if err != nil {
		s.observe(ctx, "list", started, err)
		return nil, mcperrors.StoreFailure("list", err)
	}

	s.observe(ctx, "list", started, nil)
	return rows, nil
}

// Get loads one saved transcript by id, scoped to the subject.
func (s *Store) Get(ctx context.Context, subject string, id int64) (*SavedTranscript, error) {
	started := time.Now()

	var row SavedTranscript
	err := s.db.GetContext(ctx, &row, `
		SELECT id, subject, video_id, video_url, title, language, format, content, created_at, updated_at
		FROM saved_transcripts
		WHERE subject = ? AND id = ?`,
		subject, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe(ctx, "get", started, err)
		return nil, mcperrors.StoreNotFound("saved transcript", strconv.FormatInt(id, 10))
	}
	if err != nil {
		s.observe(ctx, "get", started, err)
		return nil, mcperrors.StoreFailure("get", err)
	}

	s.observe(ctx, "get", started, nil)
	return &row, nil
}

// Delete removes one saved transcript by id, scoped to the subject.
func (s *Store) Delete(ctx context.Context, subject string, id int64) error {
	started := time.Now()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_transcripts WHERE subject = ? AND id = ?`,
		subject, id,
	)
	if err != nil {
		s.observe(ctx, "delete", started, err)
		return mcperrors.StoreFailure("delete", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.observe(ctx, "delete", started, err)
		return mcperrors.StoreFailure("delete", err)
	}
	if affected == 0 {
		s.observe(ctx, "delete", started, sql.ErrNoRows)
		return mcperrors.StoreNotFound("saved transcript", strconv.FormatInt(id, 10))
	}

	s.observe(ctx, "delete", started, nil)
	return nil
}

// Count returns the subject's total number of saved transcripts.
func (s *Store) Count(ctx context.Context, subject string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM saved_transcripts WHERE subject = ?`, subject)
	if err != nil {
		return 0, mcperrors.StoreFailure("count", err)
	}
	return n, nil
}

func (s *Store) observe(ctx context.Context, operation string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.metrics.RecordStoreOperation(ctx, operation, status, time.Since(started))
}
