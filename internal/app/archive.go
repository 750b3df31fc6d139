package app

import (
	"context"
	"fmt"
	"time"

	"xhs-scout/internal/config"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/storage"
	"xhs-scout/internal/storage/mssql"
	"xhs-scout/internal/storage/sqlite"
)

// OpenRepository открывает архив по storage.driver. Пустой драйвер - архива нет.
func OpenRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "":
		return nil, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.Storage.DSN, cfg.Storage.CommandTimeoutMS, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.Storage.CommandTimeoutMS, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// archiveNote пишет заметку в архив. Ошибки архива не влияют на ответ.
func (s *Service) archiveNote(ctx context.Context, note *extract.Note) {
	if s.repo == nil {
		return
	}

	var published time.Time
	if note.PublishedAt != extract.Unknown {
		if t, err := s.dates.Parse(note.PublishedAt); err == nil {
			published = t
		} else {
			s.logger.Debug("Publish date not parsed", "url", note.URL, "raw", note.PublishedAt)
		}
	}

	rec := &storage.NoteRecord{
		CanonicalURL: note.URL,
		Title:        note.Title,
		Author:       note.Author,
		Body:         note.Body,
		PublishedRaw: note.PublishedAt,
		PublishedOn:  published,
		DomainTags:   note.DomainTags,
		Keywords:     note.Keywords,
		CheckSum:     s.checksum.GenerateNoteHash(note.URL, note.Title, note.Author, note.Body, published),
	}

	isNew, isUpdated, err := s.repo.UpsertNote(ctx, rec)
	if err != nil {
		s.logger.Error("Failed to archive note", "url", note.URL, "error", err.Error())
		return
	}
	s.logger.Debug("Note archived", "url", note.URL, "new", isNew, "updated", isUpdated)
}

func (s *Service) archiveRun(ctx context.Context, report *SearchReport, domain string) {
	if s.repo == nil {
		return
	}

	run := &storage.SearchRun{
		RunID:     report.RunID,
		Operation: report.Operation,
		Query:     report.Query,
		Domain:    domain,
		StartedAt: report.StartedAt,
	}
	urls := make([]string, 0, len(report.Results))
	for i, r := range report.Results {
		urls = append(urls, r.URL)
		run.Results = append(run.Results, storage.RunResult{
			Rank:   i + 1,
			Round:  r.Round + 1,
			Query:  r.Query,
			Title:  r.Title,
			URL:    r.URL,
			Author: r.Author,
			Score:  r.Score,
		})
	}
	run.CheckSum = s.checksum.GenerateRunHash(report.Query, urls)

	if err := s.repo.SaveRun(ctx, run); err != nil {
		s.logger.Error("Failed to archive search run", "run_id", run.RunID, "error", err.Error())
	}
}
