package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	readability "github.com/go-shiori/go-readability"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/config"
	"xhs-scout/internal/dom"
	"xhs-scout/internal/normalize"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/resolve"
)

// Плейсхолдеры полей, которые не удалось извлечь.
const (
	Unknown     = "unknown"
	Unavailable = "unavailable"
)

// Пороговые длины тела заметки по стратегиям (в символах).
const (
	preciseMinRunes     = 50
	structuralMinRunes  = 20
	heuristicMinRunes   = 100
	heuristicMaxRunes   = 10000
	readabilityMinRunes = 100
	maxKeywords         = 20
)

type Note struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	PublishedAt string            `json:"published_at"`
	Body        string            `json:"body"`
	DomainTags  []string          `json:"domain_tags"`
	Keywords    []string          `json:"keywords"`
	Sources     map[string]string `json:"sources,omitempty"`
}

// HasBody - тело извлечено, а не заглушка.
func (n *Note) HasBody() bool {
	return n.Body != Unavailable
}

// bodyScope - снимок с помеченными зонами и его копия без них.
type bodyScope struct {
	doc   *goquery.Document
	clean *goquery.Selection
	url   *url.URL
}

type ContentExtractor struct {
	pages  PageSource
	loader *Loader
	sel    *config.Selectors
	dict   *analysis.Dictionary
	logger *observability.Logger

	title     *resolve.Chain[*goquery.Selection, string]
	author    *resolve.Chain[*goquery.Selection, string]
	published *resolve.Chain[*goquery.Selection, string]
	body      *resolve.Chain[*bodyScope, string]
}

func NewContentExtractor(pages PageSource, loader *Loader, sel *config.Selectors, dict *analysis.Dictionary, logger *observability.Logger, observer resolve.Observer) *ContentExtractor {
	if logger == nil {
		logger = observability.Nop()
	}
	titleStrategies := append(dom.TextStrategies("title", sel.Title, 1), metaTitleStrategy(len(sel.Title)))
	e := &ContentExtractor{
		pages:     pages,
		loader:    loader,
		sel:       sel,
		dict:      dict,
		logger:    logger,
		title:     resolve.New("title", titleStrategies...),
		author:    resolve.New("author", dom.TextStrategies("author", sel.Author, 1)...),
		published: resolve.New("published_at", dom.TextStrategies("published_at", sel.PublishTime, 1)...),
		body:      resolve.New("body", bodyStrategies(sel)...),
	}
	if observer != nil {
		e.title = e.title.WithObserver(observer)
		e.author = e.author.WithObserver(observer)
		e.published = e.published.WithObserver(observer)
		e.body = e.body.WithObserver(observer)
	}
	return e
}

// Extract открывает заметку и возвращает структурированный Note.
// Ошибки - только для страницы целиком; поля деградируют до заглушек.
func (e *ContentExtractor) Extract(ctx context.Context, rawURL string) (*Note, error) {
	page, release, err := e.pages.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	target, err := e.loader.Open(ctx, page, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := e.loader.Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	note := e.Parse(ctx, target, doc)
	e.logger.Info("Note extracted",
		"url", note.URL,
		"title", normalize.Clip(note.Title, 30),
		"body_strategy", note.Sources["body"],
		"domains", strings.Join(note.DomainTags, ","),
	)
	return note, nil
}

// Parse извлекает поля из снимка. Зоны комментариев помечаются до любых стратегий.
func (e *ContentExtractor) Parse(ctx context.Context, pageURL string, doc *goquery.Document) *Note {
	dom.TagExclusions(doc, e.sel.CommentZones, "comment")

	note := &Note{URL: pageURL, Sources: map[string]string{}}
	note.Title = resolveField(ctx, e.title, doc.Selection, "title", note.Sources)
	note.Author = resolveField(ctx, e.author, doc.Selection, "author", note.Sources)
	note.PublishedAt = resolveField(ctx, e.published, doc.Selection, "published_at", note.Sources)

	u, _ := url.Parse(pageURL)
	scope := &bodyScope{doc: doc, clean: dom.WithoutExclusions(doc), url: u}
	note.Body = Unavailable
	if m, ok := e.body.Resolve(ctx, scope); ok {
		note.Body = m.Value
		note.Sources["body"] = m.Strategy
	}

	var parts []string
	if note.Title != Unknown {
		parts = append(parts, note.Title)
	}
	if note.HasBody() {
		parts = append(parts, note.Body)
	}
	text := strings.Join(parts, " ")
	note.DomainTags = e.dict.DomainTags(text)
	note.Keywords = e.dict.ExtractKeywords(text, maxKeywords)
	return note
}

func resolveField(ctx context.Context, chain *resolve.Chain[*goquery.Selection, string], scope *goquery.Selection, field string, sources map[string]string) string {
	if m, ok := chain.Resolve(ctx, scope); ok {
		sources[field] = m.Strategy
		return m.Value
	}
	return Unknown
}

func metaTitleStrategy(priority int) resolve.Strategy[*goquery.Selection, string] {
	return resolve.Strategy[*goquery.Selection, string]{
		Name:     "title:og-meta",
		Priority: priority,
		Locate: func(_ context.Context, scope *goquery.Selection) (string, bool) {
			content, ok := scope.Find(`meta[name="og:title"], meta[property="og:title"]`).First().Attr("content")
			if !ok {
				return "", false
			}
			title := strings.TrimSpace(strings.TrimSuffix(normalize.Text(content), "- 小红书"))
			return title, title != ""
		},
	}
}

func bodyStrategies(sel *config.Selectors) []resolve.Strategy[*bodyScope, string] {
	var out []resolve.Strategy[*bodyScope, string]

	// (a) точные селекторы
	for i, s := range sel.BodyPrecise {
		s := s
		out = append(out, resolve.Strategy[*bodyScope, string]{
			Name:     "body-precise:" + s,
			Priority: i,
			Locate: func(_ context.Context, scope *bodyScope) (string, bool) {
				return dom.FirstText(scope.doc.Selection, s)
			},
			Valid: dom.MinRunes(preciseMinRunes),
		})
	}

	// (b) структурный XPath по снимку без зон исключения
	for i, expr := range sel.BodyXPath {
		expr := expr
		out = append(out, resolve.Strategy[*bodyScope, string]{
			Name:     "body-xpath:" + expr,
			Priority: 100 + i,
			Locate: func(_ context.Context, scope *bodyScope) (string, bool) {
				if len(scope.clean.Nodes) == 0 {
					return "", false
				}
				nodes, err := htmlquery.QueryAll(scope.clean.Nodes[0], expr)
				if err != nil {
					return "", false
				}
				for _, n := range nodes {
					if text := normalize.Text(htmlquery.InnerText(n)); text != "" {
						return text, true
					}
				}
				return "", false
			},
			Valid: dom.MinRunes(structuralMinRunes),
		})
	}

	// (c) самый длинный подходящий блок
	blocks := sel.BodyBlocks
	out = append(out, resolve.Strategy[*bodyScope, string]{
		Name:     "body-longest-block",
		Priority: 200,
		Locate: func(_ context.Context, scope *bodyScope) (string, bool) {
			best := ""
			for _, s := range blocks {
				scope.doc.Find(s).Each(func(_ int, block *goquery.Selection) {
					if dom.Excluded(block) {
						return
					}
					text := dom.VisibleText(block)
					n := normalize.RuneLen(text)
					if n > heuristicMinRunes && n < heuristicMaxRunes && n > normalize.RuneLen(best) {
						best = text
					}
				})
			}
			return best, best != ""
		},
		Valid: func(text string) bool {
			n := normalize.RuneLen(text)
			return n > heuristicMinRunes && n < heuristicMaxRunes
		},
	})

	// (d) readability как последний шанс
	out = append(out, resolve.Strategy[*bodyScope, string]{
		Name:     "body-readability",
		Priority: 300,
		Locate: func(_ context.Context, scope *bodyScope) (string, bool) {
			raw := dom.HTML(scope.clean)
			if raw == "" {
				return "", false
			}
			article, err := readability.FromReader(strings.NewReader(raw), scope.url)
			if err != nil {
				return "", false
			}
			text := normalize.Text(article.TextContent)
			return text, text != ""
		},
		Valid: dom.MinRunes(readabilityMinRunes),
	})

	return out
}
