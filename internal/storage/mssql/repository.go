package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"xhs-scout/internal/observability"
	"xhs-scout/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeoutMS int, logger *observability.Logger) (*Repository, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{
		db:             db,
		commandTimeout: time.Duration(commandTimeoutMS) * time.Millisecond,
		logger:         logger,
	}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// ensureSchema создаёт таблицы архива, если их нет
func (r *Repository) ensureSchema(ctx context.Context) error {
	schema := `
		IF OBJECT_ID(N'TblNotes', N'U') IS NULL
		CREATE TABLE TblNotes (
			[URL]          NVARCHAR(450) NOT NULL PRIMARY KEY,
			[Title]        NVARCHAR(400) NOT NULL,
			[Author]       NVARCHAR(200) NOT NULL,
			[Body]         NVARCHAR(MAX) NOT NULL,
			[PublishedRaw] NVARCHAR(100) NULL,
			[PublishedOn]  DATE NULL,
			[DomainTags]   NVARCHAR(400) NULL,
			[Keywords]     NVARCHAR(MAX) NULL,
			[CheckSum]     CHAR(64) NOT NULL,
			[UpdatedAt]    DATETIME2 NOT NULL
		);

		IF OBJECT_ID(N'TblSearchRuns', N'U') IS NULL
		CREATE TABLE TblSearchRuns (
			[RunID]     UNIQUEIDENTIFIER NOT NULL PRIMARY KEY,
			[Operation] NVARCHAR(50) NOT NULL,
			[Query]     NVARCHAR(400) NOT NULL,
			[Domain]    NVARCHAR(50) NULL,
			[CheckSum]  CHAR(64) NOT NULL,
			[StartedAt] DATETIME2 NOT NULL
		);

		IF OBJECT_ID(N'TblSearchResults', N'U') IS NULL
		CREATE TABLE TblSearchResults (
			[RunID]  UNIQUEIDENTIFIER NOT NULL REFERENCES TblSearchRuns([RunID]),
			[Rank]   INT NOT NULL,
			[Round]  INT NOT NULL,
			[Query]  NVARCHAR(400) NULL,
			[Title]  NVARCHAR(400) NULL,
			[URL]    NVARCHAR(1000) NOT NULL,
			[Author] NVARCHAR(200) NULL,
			[Score]  FLOAT NOT NULL,
			PRIMARY KEY ([RunID], [Rank])
		);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpsertNote сохраняет или обновляет заметку
func (r *Repository) UpsertNote(ctx context.Context, note *storage.NoteRecord) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	// MERGE statement для MS SQL; совпадение с той же суммой не трогаем
	query := `
		MERGE INTO TblNotes AS target
		USING (SELECT @URL AS URL) AS source
		ON target.[URL] = source.URL
		WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
			UPDATE SET
				[Title] = @Title,
				[Author] = @Author,
				[Body] = @Body,
				[PublishedRaw] = @PublishedRaw,
				[PublishedOn] = @PublishedOn,
				[DomainTags] = @DomainTags,
				[Keywords] = @Keywords,
				[CheckSum] = @CheckSum,
				[UpdatedAt] = SYSUTCDATETIME()
		WHEN NOT MATCHED THEN
			INSERT ([URL], [Title], [Author], [Body], [PublishedRaw], [PublishedOn], [DomainTags], [Keywords], [CheckSum], [UpdatedAt])
			VALUES (@URL, @Title, @Author, @Body, @PublishedRaw, @PublishedOn, @DomainTags, @Keywords, @CheckSum, SYSUTCDATETIME())
		OUTPUT $action;
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var publishedOn sql.NullTime
	if !note.PublishedOn.IsZero() {
		publishedOn = sql.NullTime{Time: note.PublishedOn, Valid: true}
	}

	var action string
	err = stmt.QueryRowContext(ctx,
		sql.Named("URL", note.CanonicalURL),
		sql.Named("Title", note.Title),
		sql.Named("Author", note.Author),
		sql.Named("Body", note.Body),
		sql.Named("PublishedRaw", note.PublishedRaw),
		sql.Named("PublishedOn", publishedOn),
		sql.Named("DomainTags", strings.Join(note.DomainTags, ",")),
		sql.Named("Keywords", strings.Join(note.Keywords, ",")),
		sql.Named("CheckSum", note.CheckSum),
	).Scan(&action)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Контент не изменился
		return false, false, nil
	case err != nil:
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	case action == "INSERT":
		return true, false, nil
	default:
		return false, true, nil
	}
}

// SaveRun сохраняет поиск и его результаты
func (r *Repository) SaveRun(ctx context.Context, run *storage.SearchRun) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
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
		`INSERT INTO TblSearchRuns ([RunID], [Operation], [Query], [Domain], [CheckSum], [StartedAt])
		 VALUES (@RunID, @Operation, @Query, @Domain, @CheckSum, @StartedAt)`,
		sql.Named("RunID", run.RunID),
		sql.Named("Operation", run.Operation),
		sql.Named("Query", run.Query),
		sql.Named("Domain", run.Domain),
		sql.Named("CheckSum", run.CheckSum),
		sql.Named("StartedAt", run.StartedAt.UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range run.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO TblSearchResults ([RunID], [Rank], [Round], [Query], [Title], [URL], [Author], [Score])
			 VALUES (@RunID, @Rank, @Round, @Query, @Title, @URL, @Author, @Score)`,
			sql.Named("RunID", run.RunID),
			sql.Named("Rank", res.Rank),
			sql.Named("Round", res.Round),
			sql.Named("Query", res.Query),
			sql.Named("Title", res.Title),
			sql.Named("URL", res.URL),
			sql.Named("Author", res.Author),
			sql.Named("Score", res.Score),
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
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM TblNotes`).Scan(&count); err != nil {
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
