package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/dom"
	"xhs-scout/internal/normalize"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/resolve"
)

const (
	maxCommentScrolls = 10
	minCommentRunes   = 2
	loadMoreControls  = "button, a, span"
)

type Comment struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type CommentExtractor struct {
	pages      PageSource
	loader     *Loader
	sel        *config.Selectors
	scrolls    int
	settle     time.Duration
	maxDefault int
	logger     *observability.Logger

	cards   *resolve.Chain[*goquery.Selection, *goquery.Selection]
	author  *resolve.Chain[*goquery.Selection, string]
	content *resolve.Chain[*goquery.Selection, string]
	time    *resolve.Chain[*goquery.Selection, string]
}

func NewCommentExtractor(cfg *config.Config, pages PageSource, loader *Loader, sel *config.Selectors, logger *observability.Logger, observer resolve.Observer) *CommentExtractor {
	if logger == nil {
		logger = observability.Nop()
	}
	scrolls := cfg.Comments.Scrolls
	if scrolls > maxCommentScrolls {
		scrolls = maxCommentScrolls
	}

	authorStrategies := append(dom.TextStrategies("comment-author", sel.CommentAuthor, 1),
		resolve.Strategy[*goquery.Selection, string]{
			Name:     "comment-author:user-link",
			Priority: len(sel.CommentAuthor),
			Locate: func(_ context.Context, card *goquery.Selection) (string, bool) {
				return dom.FirstText(card, sel.CommentUserLink)
			},
		})
	contentStrategies := append(dom.TextStrategies("comment-content", sel.CommentContent, 1),
		remainderStrategy(sel, len(sel.CommentContent)))

	c := &CommentExtractor{
		pages:      pages,
		loader:     loader,
		sel:        sel,
		scrolls:    scrolls,
		settle:     cfg.GetScrollSettleDelay(),
		maxDefault: cfg.Comments.MaxComments,
		logger:     logger,
		cards:      resolve.New("comment-cards", cardStrategies(sel)...),
		author:     resolve.New("comment-author", authorStrategies...),
		content:    resolve.New("comment-content", contentStrategies...),
		time:       resolve.New("comment-time", dom.TextStrategies("comment-time", sel.CommentTime, 1)...),
	}
	if observer != nil {
		c.cards = c.cards.WithObserver(observer)
		c.author = c.author.WithObserver(observer)
		c.content = c.content.WithObserver(observer)
		c.time = c.time.WithObserver(observer)
	}
	return c
}

// Extract открывает заметку, подгружает комментарии скроллом и разбирает карточки.
// maxComments <= 0 - значение из конфига.
func (c *CommentExtractor) Extract(ctx context.Context, rawURL string, maxComments int) ([]Comment, error) {
	if maxComments <= 0 {
		maxComments = c.maxDefault
	}
	page, release, err := c.pages.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	target, err := c.loader.Open(ctx, page, rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.loadMore(ctx, page); err != nil {
		return nil, err
	}

	doc, err := c.loader.Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	comments := c.Parse(ctx, doc, maxComments)
	c.logger.Info("Comments extracted", "url", target, "count", len(comments))
	return comments, nil
}

// loadMore скроллит вниз, жмёт "показать ещё" и ждёт роста числа карточек.
// Останавливается, когда новые карточки перестают появляться.
func (c *CommentExtractor) loadMore(ctx context.Context, page browser.Page) error {
	cardSel := strings.Join(c.sel.CommentCards, ", ")
	for i := 0; i < c.scrolls; i++ {
		before, err := page.Count(ctx, cardSel)
		if err != nil {
			c.logger.Warn("Failed to count comment cards", "error", err)
			return nil
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			c.logger.Warn("Scroll failed", "iteration", i+1, "error", err)
			return nil
		}
		if _, err := page.ClickByText(ctx, loadMoreControls, c.sel.LoadMoreWords, browser.MatchContains); err != nil {
			c.logger.Debug("Load-more click failed", "error", err)
		}

		grew, err := browser.WaitFor(ctx, c.settle, c.loader.Backoff(), func(ctx context.Context) (bool, error) {
			n, err := page.Count(ctx, cardSel)
			return n > before, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("Waiting for comments failed", "error", err)
			return nil
		}
		if !grew {
			c.logger.Debug("No new comments after scroll", "iteration", i+1, "cards", before)
			return nil
		}
	}
	return nil
}

// Parse разбирает карточки комментариев из снимка в порядке документа.
func (c *CommentExtractor) Parse(ctx context.Context, doc *goquery.Document, maxComments int) []Comment {
	m, ok := c.cards.Resolve(ctx, doc.Selection)
	if !ok {
		return []Comment{}
	}
	c.logger.Debug("Comment cards resolved", "chain", c.cards.Name(), "strategy", m.Strategy, "cards", m.Value.Length())

	out := make([]Comment, 0, maxComments)
	m.Value.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		comment := Comment{
			Author:    c.author.ResolveOr(ctx, card, Unknown),
			Content:   c.content.ResolveOr(ctx, card, ""),
			Timestamp: c.time.ResolveOr(ctx, card, Unknown),
		}
		if keepComment(comment) {
			out = append(out, comment)
		}
		return maxComments <= 0 || len(out) < maxComments
	})
	return out
}

func keepComment(c Comment) bool {
	if c.Author == Unknown || c.Author == "" {
		return false
	}
	if normalize.RuneLen(c.Content) <= minCommentRunes {
		return false
	}
	return c.Content != c.Author
}

func cardStrategies(sel *config.Selectors) []resolve.Strategy[*goquery.Selection, *goquery.Selection] {
	nonEmpty := func(s *goquery.Selection) bool { return s != nil && s.Length() > 0 }

	var out []resolve.Strategy[*goquery.Selection, *goquery.Selection]
	for i, s := range sel.CommentCards {
		s := s
		out = append(out, resolve.Strategy[*goquery.Selection, *goquery.Selection]{
			Name:     "comment-cards:" + s,
			Priority: i,
			Locate: func(_ context.Context, scope *goquery.Selection) (*goquery.Selection, bool) {
				found := scope.Find(s)
				return found, found.Length() > 0
			},
			Valid: nonEmpty,
		})
	}

	userLink := sel.CommentUserLink
	out = append(out, resolve.Strategy[*goquery.Selection, *goquery.Selection]{
		Name:     "comment-cards:user-link",
		Priority: len(sel.CommentCards),
		Locate: func(_ context.Context, scope *goquery.Selection) (*goquery.Selection, bool) {
			cards := cardsByUserLink(scope, userLink)
			return cards, cards.Length() > 0
		},
		Valid: nonEmpty,
	})
	return out
}

// cardsByUserLink поднимается от ссылки на профиль до ближайшего предка,
// в котором кроме имени есть ещё текст. Такой предок считается карточкой.
func cardsByUserLink(scope *goquery.Selection, userLink string) *goquery.Selection {
	if userLink == "" {
		return scope.FindNodes()
	}
	var nodes []*html.Node
	seen := map[*html.Node]bool{}
	scope.Find(userLink).Each(func(_ int, link *goquery.Selection) {
		name := normalize.RuneLen(dom.VisibleText(link))
		card := link.Parent()
		for card.Length() > 0 && !card.Is("body, html") {
			if normalize.RuneLen(dom.VisibleText(card)) > name+minCommentRunes {
				break
			}
			card = card.Parent()
		}
		if card.Length() == 0 || card.Is("body, html") {
			return
		}
		node := card.Nodes[0]
		if !seen[node] {
			seen[node] = true
			nodes = append(nodes, node)
		}
	})
	return scope.FindNodes(nodes...)
}

// remainderStrategy - текст карточки без ссылки на автора и времени.
func remainderStrategy(sel *config.Selectors, priority int) resolve.Strategy[*goquery.Selection, string] {
	strip := append([]string{}, sel.CommentTime...)
	if sel.CommentUserLink != "" {
		strip = append(strip, sel.CommentUserLink)
	}
	return resolve.Strategy[*goquery.Selection, string]{
		Name:     "comment-content:card-remainder",
		Priority: priority,
		Locate: func(_ context.Context, card *goquery.Selection) (string, bool) {
			clone := card.Clone()
			for _, s := range strip {
				clone.Find(s).Remove()
			}
			text := dom.VisibleText(clone)
			return text, text != ""
		},
	}
}
