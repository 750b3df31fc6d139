package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/dom"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/normalize"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/resolve"
)

const (
	maxTitleRunes = 100
	minTitleRunes = 2
)

var permalink = regexp.MustCompile(`/(?:explore|discovery/item)/[0-9A-Za-z]+`)

// cardScope - ссылка на заметку и её ближайший контейнер карточки.
type cardScope struct {
	anchor    *goquery.Selection
	container *goquery.Selection
}

type Executor struct {
	pages       extract.PageSource
	sel         *config.Selectors
	baseURL     string
	searchPath  string
	scrolls     int
	step        int
	settle      time.Duration
	waitTimeout time.Duration
	backoff     browser.Backoff
	logger      *observability.Logger

	cards  *resolve.Chain[*goquery.Selection, []*goquery.Selection]
	title  *resolve.Chain[*cardScope, string]
	author *resolve.Chain[*goquery.Selection, string]
}

func NewExecutor(cfg *config.Config, pages extract.PageSource, sel *config.Selectors, logger *observability.Logger, observer resolve.Observer) *Executor {
	if logger == nil {
		logger = observability.Nop()
	}
	e := &Executor{
		pages:       pages,
		sel:         sel,
		baseURL:     strings.TrimRight(cfg.Platform.BaseURL, "/"),
		searchPath:  cfg.Platform.SearchPath,
		scrolls:     cfg.Search.Scrolls,
		step:        cfg.Search.ScrollStepPX,
		settle:      cfg.GetScrollSettleDelay(),
		waitTimeout: cfg.GetWaitTimeout(),
		backoff:     browser.NewBackoff(cfg),
		logger:      logger,
		cards:       resolve.New("search-cards", anchorStrategies(sel)...),
		title:       resolve.New("search-title", titleStrategies(sel)...),
		author:      resolve.New("search-author", dom.TextStrategies("search-author", sel.SearchAuthor, 1)...),
	}
	if observer != nil {
		e.cards = e.cards.WithObserver(observer)
		e.title = e.title.WithObserver(observer)
		e.author = e.author.WithObserver(observer)
	}
	return e
}

// SearchURL - адрес страницы выдачи для запроса.
func (e *Executor) SearchURL(query string) string {
	return e.baseURL + e.searchPath + "?keyword=" + url.QueryEscape(query)
}

// RunRound выполняет один поисковый запрос и возвращает не больше limit карточек.
// Пауза между раундами - забота вызывающего.
func (e *Executor) RunRound(ctx context.Context, query string, limit int) ([]Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.NewInvalidRequest("search query is empty")
	}

	page, release, err := e.pages.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	target := e.SearchURL(query)
	if err := page.Navigate(ctx, target); err != nil {
		return nil, err
	}
	found, err := browser.WaitAny(ctx, page, e.sel.SearchReady, e.waitTimeout, e.backoff)
	if err != nil {
		return nil, err
	}
	if !found {
		e.logger.Debug("Search results marker not found before timeout", "query", query)
	}
	if err := e.scroll(ctx, page); err != nil {
		return nil, err
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, errs.NewExtractionFailed("failed to snapshot search page", err)
	}
	doc, err := dom.Parse(raw)
	if err != nil {
		return nil, errs.NewExtractionFailed("failed to parse search page", err)
	}

	cards := e.Parse(ctx, doc, query, limit)
	e.logger.Info("Search round completed", "query", query, "cards", len(cards), "limit", limit)
	return cards, nil
}

// scroll подгружает выдачу, пока растёт число ссылок на заметки.
func (e *Executor) scroll(ctx context.Context, page browser.Page) error {
	anchors := strings.Join(e.sel.SearchCards, ", ")
	for i := 0; i < e.scrolls; i++ {
		before, err := page.Count(ctx, anchors)
		if err != nil {
			e.logger.Warn("Failed to count search cards", "error", err)
			return nil
		}
		if err := page.ScrollBy(ctx, e.step); err != nil {
			e.logger.Warn("Scroll failed", "iteration", i+1, "error", err)
			return nil
		}
		grew, err := browser.WaitFor(ctx, e.settle, e.backoff, func(ctx context.Context) (bool, error) {
			n, err := page.Count(ctx, anchors)
			return n > before, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if !grew {
			return nil
		}
	}
	return nil
}

// Parse разбирает карточки выдачи из снимка; url уникальны в пределах раунда.
func (e *Executor) Parse(ctx context.Context, doc *goquery.Document, query string, limit int) []Card {
	m, ok := e.cards.Resolve(ctx, doc.Selection)
	if !ok {
		return []Card{}
	}

	seen := map[string]bool{}
	cards := make([]Card, 0, len(m.Value))
	for _, anchor := range m.Value {
		if limit > 0 && len(cards) >= limit {
			break
		}
		href, _ := anchor.Attr("href")
		link := normalize.Absolute(e.baseURL, href)
		key := Key(link)
		if link == "" || seen[key] {
			continue
		}
		seen[key] = true

		container := anchor.Closest(e.sel.SearchCardContainer)
		if container.Length() == 0 {
			container = anchor.Parent()
		}
		scope := &cardScope{anchor: anchor, container: container}

		cards = append(cards, Card{
			Title:  normalize.Clip(e.title.ResolveOr(ctx, scope, extract.Unknown), maxTitleRunes),
			URL:    link,
			Author: e.author.ResolveOr(ctx, container, extract.Unknown),
			Query:  query,
		})
	}
	return cards
}

func anchorStrategies(sel *config.Selectors) []resolve.Strategy[*goquery.Selection, []*goquery.Selection] {
	nonEmpty := func(a []*goquery.Selection) bool { return len(a) > 0 }

	var out []resolve.Strategy[*goquery.Selection, []*goquery.Selection]
	for i, s := range sel.SearchCards {
		s := s
		out = append(out, resolve.Strategy[*goquery.Selection, []*goquery.Selection]{
			Name:     "search-cards:" + s,
			Priority: i,
			Locate: func(_ context.Context, scope *goquery.Selection) ([]*goquery.Selection, bool) {
				a := permalinks(scope.Find(s))
				return a, len(a) > 0
			},
			Valid: nonEmpty,
		})
	}
	out = append(out, resolve.Strategy[*goquery.Selection, []*goquery.Selection]{
		Name:     "search-cards:permalink",
		Priority: len(sel.SearchCards),
		Locate: func(_ context.Context, scope *goquery.Selection) ([]*goquery.Selection, bool) {
			a := permalinks(scope.Find("a[href]"))
			return a, len(a) > 0
		},
		Valid: nonEmpty,
	})
	return out
}

// permalinks оставляет только ссылки на страницы заметок.
func permalinks(s *goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	s.Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && permalink.MatchString(href) {
			out = append(out, a)
		}
	})
	return out
}

func titleStrategies(sel *config.Selectors) []resolve.Strategy[*cardScope, string] {
	qualifying := func(s string) bool {
		return normalize.RuneLen(s) >= minTitleRunes && !numeric(s)
	}

	var out []resolve.Strategy[*cardScope, string]
	for i, s := range sel.SearchTitle {
		s := s
		out = append(out, resolve.Strategy[*cardScope, string]{
			Name:     "search-title:" + s,
			Priority: i,
			Locate: func(_ context.Context, scope *cardScope) (string, bool) {
				return dom.FirstText(scope.anchor, s)
			},
			Valid: qualifying,
		})
	}
	var named []string
	for _, s := range sel.SearchTitle {
		if strings.Contains(s, "title") {
			named = append(named, s)
		}
	}
	out = append(out, resolve.Strategy[*cardScope, string]{
		Name:     "search-title:container",
		Priority: len(sel.SearchTitle),
		Locate: func(_ context.Context, scope *cardScope) (string, bool) {
			for _, s := range named {
				if text, ok := dom.FirstText(scope.container, s); ok && qualifying(text) {
					return text, true
				}
			}
			return "", false
		},
		Valid: qualifying,
	})
	out = append(out, resolve.Strategy[*cardScope, string]{
		Name:     "search-title:longest-text",
		Priority: len(sel.SearchTitle) + 1,
		Locate: func(_ context.Context, scope *cardScope) (string, bool) {
			best := ""
			scope.container.Find("span, div, p, a").Each(func(_ int, el *goquery.Selection) {
				if el.Children().Length() > 0 {
					return
				}
				text := dom.VisibleText(el)
				if qualifying(text) && normalize.RuneLen(text) > normalize.RuneLen(best) {
					best = text
				}
			})
			return best, best != ""
		},
		Valid: qualifying,
	})
	return out
}

// numeric - счётчики лайков вида "123" или "1.2万".
func numeric(s string) bool {
	s = strings.TrimSuffix(strings.TrimSuffix(s, "万"), "w")
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return false
		}
	}
	return true
}
