// Package extract превращает страницу заметки в структурированные Note и Comment.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/dom"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/normalize"
	"xhs-scout/internal/observability"
)

// PageSource выдаёт авторизованную страницу; реализуется session.Manager.
type PageSource interface {
	Acquire(ctx context.Context) (browser.Page, func(), error)
}

// Loader открывает страницу заметки и проверяет маркеры ошибок площадки.
// Общий шаг для извлечения контента, комментариев и публикации.
type Loader struct {
	sel         *config.Selectors
	waitTimeout time.Duration
	backoff     browser.Backoff
	logger      *observability.Logger
}

func NewLoader(cfg *config.Config, sel *config.Selectors, logger *observability.Logger) *Loader {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Loader{
		sel:         sel,
		waitTimeout: cfg.GetWaitTimeout(),
		backoff:     browser.NewBackoff(cfg),
		logger:      logger,
	}
}

// Backoff - параметры опроса для ожиданий после действий на странице.
func (l *Loader) Backoff() browser.Backoff {
	return l.backoff
}

// WaitTimeout - верхняя граница ожидания DOM-маркера.
func (l *Loader) WaitTimeout() time.Duration {
	return l.waitTimeout
}

// Open переходит на нормализованный url, ждёт маркер заметки и проверяет
// маркеры ошибок. Возвращает нормализованный url.
func (l *Loader) Open(ctx context.Context, page browser.Page, rawURL string) (string, error) {
	target := normalize.NoteURL(rawURL)
	if target == "" {
		return "", errs.NewInvalidRequest("note url is empty")
	}

	if err := page.Navigate(ctx, target); err != nil {
		return target, err
	}

	found, err := browser.WaitAny(ctx, page, l.sel.NoteReady, l.waitTimeout, l.backoff)
	if err != nil {
		return target, err
	}
	if !found {
		l.logger.Debug("Note marker not found before timeout", "url", target)
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return target, errs.NewExtractionFailed("failed to snapshot page", err)
	}
	doc, err := dom.Parse(raw)
	if err != nil {
		return target, errs.NewExtractionFailed("failed to parse page", err)
	}
	if marker, ok := ErrorMarker(doc, l.sel.ErrorMarkers); ok {
		return target, errs.NewContentNotFound(target, marker)
	}
	return target, nil
}

// Snapshot возвращает разобранный снимок текущего DOM.
func (l *Loader) Snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, errs.NewExtractionFailed("failed to snapshot page", err)
	}
	doc, err := dom.Parse(raw)
	if err != nil {
		return nil, errs.NewExtractionFailed("failed to parse page", err)
	}
	return doc, nil
}

// ErrorMarker ищет в тексте страницы маркер удалённой/недоступной заметки.
func ErrorMarker(doc *goquery.Document, markers []string) (string, bool) {
	text := doc.Find("body").Text()
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return m, true
		}
	}
	return "", false
}
