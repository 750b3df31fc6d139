// Package app собирает движок из компонентов и отдаёт операции,
// которые затем публикуются через MCP и CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/browser"
	"xhs-scout/internal/checksum"
	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/export"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/normalize"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/poster"
	"xhs-scout/internal/search"
	"xhs-scout/internal/session"
	"xhs-scout/internal/storage"
)

const codeOK = "OK"

// Deps - внешние зависимости сервиса. Repository может быть nil.
type Deps struct {
	Config     *config.Config
	Selectors  *config.Selectors
	Dictionary *analysis.Dictionary
	Driver     browser.Driver
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Repository storage.Repository
	Now        func() time.Time
}

type Service struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	repo    storage.Repository
	now     func() time.Time

	session    *session.Manager
	content    *extract.ContentExtractor
	comments   *extract.CommentExtractor
	poster     *poster.Poster
	planner    *search.Planner
	executor   *search.Executor
	pacer      *browser.Pacer
	exporter   *export.Writer
	normalizer *normalize.Normalizer
	dates      *extract.DateParser
	checksum   *checksum.Generator
}

func NewService(d Deps) *Service {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Selectors == nil {
		d.Selectors = config.DefaultSelectors()
	}
	if d.Dictionary == nil {
		d.Dictionary = analysis.DefaultDictionary()
	}
	if d.Logger == nil {
		d.Logger = observability.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	cfg, sel := d.Config, d.Selectors
	observer := d.Metrics.ObserveStrategy
	mgr := session.NewManager(d.Driver, session.OptionsFromConfig(cfg, sel), d.Logger.With("component", "session"), d.Metrics)
	loader := extract.NewLoader(cfg, sel, d.Logger)

	return &Service{
		cfg:     cfg,
		logger:  d.Logger,
		metrics: d.Metrics,
		repo:    d.Repository,
		now:     d.Now,

		session:    mgr,
		content:    extract.NewContentExtractor(mgr, loader, sel, d.Dictionary, d.Logger.With("component", "content"), observer),
		comments:   extract.NewCommentExtractor(cfg, mgr, loader, sel, d.Logger.With("component", "comments"), observer),
		poster:     poster.New(cfg, mgr, loader, sel, d.Logger.With("component", "poster"), observer),
		planner:    search.NewPlanner(d.Dictionary),
		executor:   search.NewExecutor(cfg, mgr, sel, d.Logger.With("component", "search"), observer),
		pacer:      browser.NewPacer(cfg.GetRoundDelay()),
		exporter:   export.NewWriter(cfg.Export.DataDir, d.Now),
		normalizer: normalize.NewNormalizer(cfg),
		dates:      extract.NewDateParser(d.Now),
		checksum:   checksum.NewGenerator(),
	}
}

// Session нужен транспорту для подписки на прогресс логина.
func (s *Service) Session() *session.Manager {
	return s.session
}

func (s *Service) observe(op string, err error) {
	code := codeOK
	if err != nil {
		code = string(errs.CodeOf(err))
	}
	s.metrics.Operations.WithLabelValues(op, code).Inc()
}

// Login открывает браузер и ждёт ручного входа.
func (s *Service) Login(ctx context.Context) (result session.LoginResult, err error) {
	defer func() { s.observe(OpLogin, err) }()
	return s.session.Login(ctx)
}

// ResetLogin закрывает браузер; следующая операция запустит его заново.
func (s *Service) ResetLogin(ctx context.Context) (err error) {
	defer func() { s.observe(OpResetLogin, err) }()
	return s.session.Reset(ctx)
}

func (s *Service) Status(ctx context.Context) Status {
	st := Status{Status: s.session.Status(), Archive: s.cfg.Storage.Driver}
	if s.repo == nil {
		return st
	}
	count, err := s.repo.GetNoteCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to count archived notes", "error", err.Error())
		st.ArchiveError = err.Error()
		return st
	}
	st.ArchivedNotes = count
	return st
}

// SearchNotes - один раунд поиска по ключевому слову; порядок выдачи сохраняется.
func (s *Service) SearchNotes(ctx context.Context, keyword string, limit int) (report *SearchReport, err error) {
	defer func() { s.observe(OpSearch, err) }()

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errs.NewInvalidRequest("keyword is empty")
	}
	if limit <= 0 {
		limit = s.cfg.Search.DefaultLimit
	}

	report = s.newReport(OpSearch, keyword)
	cards, err := s.executor.RunRound(ctx, keyword, limit)
	s.metrics.SearchRounds.Inc()
	if err != nil {
		return nil, err
	}
	s.metrics.SearchResults.Add(float64(len(cards)))

	report.Rounds = []RoundSummary{{Round: 1, Query: keyword, Quota: limit, Found: len(cards)}}
	report.Results = make([]search.RankedResult, 0, len(cards))
	for _, c := range cards {
		report.Results = append(report.Results, search.RankedResult{Card: c})
	}

	s.exportCSV(report)
	s.archiveRun(ctx, report, "")
	s.logger.Info("Search completed", "keyword", keyword, "results", len(report.Results), "run_id", report.RunID)
	return report, nil
}

// SmartSearchNotes планирует запросы по задаче, выполняет раунды и ранжирует выдачу.
func (s *Service) SmartSearchNotes(ctx context.Context, task string, limit int) (report *SearchReport, err error) {
	defer func() { s.observe(OpSmartSearch, err) }()

	if limit <= 0 {
		limit = s.cfg.Search.DefaultLimit
	}
	report, err = s.runSmart(ctx, OpSmartSearch, task, limit)
	if err != nil {
		return nil, err
	}

	s.exportCSV(report)
	s.exportJSON(report, OpSmartReport, report)
	s.archiveRun(ctx, report, report.Intent.Domain)
	return report, nil
}

// DeepSearchAndAnalyze - умный поиск плюс извлечение каждой найденной заметки.
func (s *Service) DeepSearchAndAnalyze(ctx context.Context, task string, analyze bool, limit int) (deep *DeepReport, err error) {
	defer func() { s.observe(OpDeepSearch, err) }()

	if limit <= 0 {
		limit = s.cfg.Search.DeepLimit
	}
	report, err := s.runSmart(ctx, OpDeepSearch, task, limit)
	if err != nil {
		return nil, err
	}
	deep = &DeepReport{SearchReport: report, Analyzed: analyze}

	if analyze {
		if err := s.analyzeResults(ctx, deep); err != nil {
			return nil, err
		}
	}

	s.exportCSV(report)
	s.exportJSON(report, OpDeepReport, deep)
	s.archiveRun(ctx, report, report.Intent.Domain)
	return deep, nil
}

func (s *Service) runSmart(ctx context.Context, op, task string, limit int) (*SearchReport, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, errs.NewInvalidRequest("task is empty")
	}

	intent := s.planner.Plan(task)
	report := s.newReport(op, task)
	report.Intent = &intent

	s.logger.Info("Search plan ready",
		"task", task,
		"domain", intent.Domain,
		"queries", len(intent.Queries),
		"priority", intent.Priority,
	)

	var (
		rounds   [][]search.Card
		firstErr error
	)
	for i, query := range intent.Queries {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		quota := search.RoundQuota(limit, i)
		summary := RoundSummary{Round: i + 1, Query: query, Quota: quota}

		cards, err := s.executor.RunRound(ctx, query, quota)
		s.metrics.SearchRounds.Inc()
		if err != nil {
			if errs.Is(err, errs.ErrNotAuthenticated) || ctx.Err() != nil {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			summary.Error = err.Error()
			report.Rounds = append(report.Rounds, summary)
			s.logger.Warn("Search round failed", "round", i+1, "query", query, "error", err.Error())
			continue
		}

		for j := range cards {
			cards[j].Round = i
		}
		s.metrics.SearchResults.Add(float64(len(cards)))
		summary.Found = len(cards)
		report.Rounds = append(report.Rounds, summary)
		rounds = append(rounds, cards)
	}

	if len(rounds) == 0 && firstErr != nil {
		return nil, firstErr
	}

	report.Results = search.Aggregate(rounds, intent, limit)
	s.logger.Info("Smart search completed",
		"task", task,
		"rounds", len(report.Rounds),
		"results", len(report.Results),
		"run_id", report.RunID,
	)
	return report, nil
}

func (s *Service) analyzeResults(ctx context.Context, deep *DeepReport) error {
	domains := newCounter()
	keywords := newCounter()

	for i, r := range deep.Results {
		insight := NoteInsight{Rank: i + 1, URL: r.URL, Title: r.Title, Author: r.Author}

		note, err := s.content.Extract(ctx, r.URL)
		if err != nil {
			if errs.Is(err, errs.ErrNotAuthenticated) || ctx.Err() != nil {
				return err
			}
			insight.Error = err.Error()
			deep.Notes = append(deep.Notes, insight)
			s.logger.Warn("Note analysis failed", "url", r.URL, "error", err.Error())
			continue
		}

		if note.Title != extract.Unknown {
			insight.Title = note.Title
		}
		if note.Author != extract.Unknown {
			insight.Author = note.Author
		}
		insight.DomainTags = note.DomainTags
		insight.Keywords = note.Keywords
		if note.HasBody() {
			insight.Preview = s.normalizer.TruncatePreview(note.Body)
		}
		deep.Notes = append(deep.Notes, insight)

		domains.add(note.DomainTags...)
		keywords.add(note.Keywords...)
		s.archiveNote(ctx, note)
	}

	deep.DomainCounts = domains.top(0)
	deep.TopKeywords = keywords.top(deepKeywordsTop)
	return nil
}

// GetNoteContent извлекает заметку по ссылке.
func (s *Service) GetNoteContent(ctx context.Context, rawURL string) (note *extract.Note, err error) {
	defer func() { s.observe(OpNoteContent, err) }()

	note, err = s.content.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	s.archiveNote(ctx, note)
	return note, nil
}

// AnalyzeNote извлекает заметку и возвращает её домены и ключевые слова.
func (s *Service) AnalyzeNote(ctx context.Context, rawURL string) (a *Analysis, err error) {
	defer func() { s.observe(OpAnalyzeNote, err) }()

	note, err := s.content.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	s.archiveNote(ctx, note)

	keywords := note.Keywords
	if len(keywords) > analysisKeywords {
		keywords = keywords[:analysisKeywords]
	}
	a = &Analysis{Note: note, Domains: note.DomainTags, Keywords: keywords}
	if note.HasBody() {
		a.Preview = s.normalizer.TruncatePreview(note.Body)
	}
	return a, nil
}

// GetNoteComments возвращает комментарии заметки, не больше comments.max_comments.
func (s *Service) GetNoteComments(ctx context.Context, rawURL string) (comments []extract.Comment, err error) {
	defer func() { s.observe(OpNoteComments, err) }()
	return s.comments.Extract(ctx, rawURL, 0)
}

// PostSmartComment готовит подсказки для комментария. Ничего не публикует.
func (s *Service) PostSmartComment(ctx context.Context, rawURL, commentType string) (sc *SmartComment, err error) {
	defer func() { s.observe(OpSmartComment, err) }()

	note, err := s.content.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	title := note.Title
	if title == extract.Unknown {
		title = ""
	}
	return &SmartComment{
		URL:      note.URL,
		Title:    note.Title,
		Author:   note.Author,
		Guidance: analysis.BuildGuidance(analysis.ParseCommentType(commentType), title, note.DomainTags, note.Keywords),
	}, nil
}

// PostComment публикует комментарий и подтверждает отправку.
func (s *Service) PostComment(ctx context.Context, rawURL, text string) (err error) {
	defer func() { s.observe(OpPostComment, err) }()

	err = s.poster.Post(ctx, rawURL, text)
	result := "confirmed"
	if err != nil {
		result = string(errs.CodeOf(err))
	}
	s.metrics.CommentsPosted.WithLabelValues(result).Inc()
	return err
}

// Close закрывает браузер, архив и сохраняет снимок метрик.
func (s *Service) Close() error {
	var errList []error
	if err := s.session.Close(); err != nil {
		errList = append(errList, err)
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errList = append(errList, fmt.Errorf("failed to close repository: %w", err))
		}
	}
	if err := s.metrics.WriteTextfile(s.cfg.Observability.MetricsPath); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

func (s *Service) newReport(op, query string) *SearchReport {
	return &SearchReport{
		RunID:     uuid.NewString(),
		Operation: op,
		Query:     query,
		Rounds:    []RoundSummary{},
		Results:   []search.RankedResult{},
		StartedAt: s.now(),
	}
}

// Файлы выгрузки - побочный результат: ошибка записи только логируется.
func (s *Service) exportCSV(report *SearchReport) {
	path, err := s.exporter.WriteCSV(report.Operation, report.Query, report.Results)
	if err != nil {
		s.logger.Error("Failed to write CSV", "operation", report.Operation, "error", err.Error())
		return
	}
	report.Files = append(report.Files, path)
}

func (s *Service) exportJSON(report *SearchReport, op string, v any) {
	path, err := s.exporter.WriteJSON(op, report.Query, v)
	if err != nil {
		s.logger.Error("Failed to write JSON report", "operation", op, "error", err.Error())
		return
	}
	report.Files = append(report.Files, path)
}
