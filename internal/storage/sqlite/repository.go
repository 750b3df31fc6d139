package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"xhs-scout/internal/observability"
	"xhs-scout/internal/storage"
)

// CurrentSchemaVersion - последняя версия схемы (PRAGMA user_version).
const CurrentSchemaVersion = 1

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

// NewRepository открывает (и при необходимости создаёт) файл базы dsn.
func NewRepository(dsn string, commandTimeoutMS int, logger *observability.Logger) (*Repository, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}

	path := dsn
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	} else {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Один писатель
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{
		db:             db,
		commandTimeout: time.Duration(commandTimeoutMS) * time.Millisecond,
		logger:         logger,
	}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS notes (
		  url           TEXT PRIMARY KEY,
		  title         TEXT NOT NULL,
		  author        TEXT NOT NULL,
		  body          TEXT NOT NULL,
		  published_raw TEXT,
		  published_on  TEXT,
		  domain_tags   TEXT,
		  keywords      TEXT,
		  checksum      TEXT NOT NULL,
		  created_at    INTEGER NOT NULL,
		  updated_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS search_runs (
		  run_id     TEXT PRIMARY KEY,
		  operation  TEXT NOT NULL,
		  query      TEXT NOT NULL,
		  domain     TEXT,
		  checksum   TEXT NOT NULL,
		  started_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS search_results (
		  run_id TEXT NOT NULL REFERENCES search_runs(run_id),
		  rank   INTEGER NOT NULL,
		  round  INTEGER NOT NULL,
		  query  TEXT,
		  title  TEXT,
		  url    TEXT NOT NULL,
		  author TEXT,
		  score  REAL NOT NULL,
		  PRIMARY KEY (run_id, rank)
		);

		CREATE INDEX IF NOT EXISTS idx_search_results_url ON search_results(url);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", CurrentSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}
	return nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.commandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.commandTimeout)
}

// UpsertNote сохраняет заметку; неизменённая контрольная сумма - ни вставки, ни обновления.
func (r *Repository) UpsertNote(ctx context.Context, note *storage.NoteRecord) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback", "error", rbErr.Error())
			}
		}
	}()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT checksum FROM notes WHERE url = ?`, note.CanonicalURL).Scan(&existing)
	now := time.Now().UTC().Unix()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (url, title, author, body, published_raw, published_on, domain_tags, keywords, checksum, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			note.CanonicalURL, note.Title, note.Author, note.Body, note.PublishedRaw, publishedOn(note.PublishedOn),
			strings.Join(note.DomainTags, ","), strings.Join(note.Keywords, ","), note.CheckSum, now, now,
		)
		if err != nil {
			return false, false, fmt.Errorf("failed to insert note: %w", err)
		}
		isNew = true
	case err != nil:
		return false, false, fmt.Errorf("failed to query database: %w", err)
	case existing == note.CheckSum:
		// Контент не изменился
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE notes SET title = ?, author = ?, body = ?, published_raw = ?, published_on = ?,
			       domain_tags = ?, keywords = ?, checksum = ?, updated_at = ?
			WHERE url = ?`,
			note.Title, note.Author, note.Body, note.PublishedRaw, publishedOn(note.PublishedOn),
			strings.Join(note.DomainTags, ","), strings.Join(note.Keywords, ","), note.CheckSum, now,
			note.CanonicalURL,
		)
		if err != nil {
			return false, false, fmt.Errorf("failed to update note: %w", err)
		}
		isUpdated = true
	}

	if err = tx.Commit(); err != nil {
		return false, false, fmt.Errorf("failed to commit: %w", err)
	}
	return isNew, isUpdated, nil
}

// SaveRun сохраняет поиск и его результаты одной транзакцией
func (r *Repository) SaveRun(ctx context.Context, run *storage.SearchRun) (err error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback", "error", rbErr.Error())
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO search_runs (run_id, operation, query, domain, checksum, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Operation, run.Query, run.Domain, run.CheckSum, run.StartedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range run.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO search_results (run_id, rank, round, query, title, url, author, score) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, res.Rank, res.Round, res.Query, res.Title, res.URL, res.Author, res.Score,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result %d: %w", res.Rank, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetNoteCount получает количество заметок
func (r *Repository) GetNoteCount(ctx context.Context) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func publishedOn(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
