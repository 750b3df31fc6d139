// Package poster публикует комментарий под заметкой и подтверждает отправку.
package poster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/resolve"
)

type submitScope struct {
	page  browser.Page
	input browser.Element
}

type Poster struct {
	pages   extract.PageSource
	loader  *extract.Loader
	confirm time.Duration
	logger  *observability.Logger

	input  *resolve.Chain[browser.Page, browser.Element]
	submit *resolve.Chain[*submitScope, string]
}

func New(cfg *config.Config, pages extract.PageSource, loader *extract.Loader, sel *config.Selectors, logger *observability.Logger, observer resolve.Observer) *Poster {
	if logger == nil {
		logger = observability.Nop()
	}
	p := &Poster{
		pages:   pages,
		loader:  loader,
		confirm: cfg.GetConfirmTimeout(),
		logger:  logger,
	}
	p.input = resolve.New("comment-input", inputStrategies(sel)...)
	p.submit = resolve.New("comment-submit", p.submitStrategies(sel)...)
	if observer != nil {
		p.input = p.input.WithObserver(observer)
		p.submit = p.submit.WithObserver(observer)
	}
	return p
}

// Post вводит text в поле комментария и пробует способы отправки,
// пока один из них не подтвердится очисткой поля.
func (p *Poster) Post(ctx context.Context, rawURL, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errs.NewInvalidRequest("comment text is empty")
	}

	page, release, err := p.pages.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	target, err := p.loader.Open(ctx, page, rawURL)
	if err != nil {
		return err
	}
	if err := page.ScrollToBottom(ctx); err != nil {
		p.logger.Debug("Scroll to comments failed", "url", target, "error", err)
	}

	m, ok := p.input.Resolve(ctx, page)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.logger.Warn("Comment input not found", "url", target, "chain", p.input.Name())
		return errs.NewInputLocatorNotFound(target)
	}
	input := m.Value

	if err := input.ScrollIntoView(ctx); err != nil {
		p.logger.Debug("Scroll into view failed", "error", err)
	}
	if err := input.Click(ctx); err != nil {
		p.logger.Debug("Click on comment input failed", "error", err)
	}
	if err := input.Input(ctx, text); err != nil {
		return fmt.Errorf("failed to type comment: %w", err)
	}

	sm, ok := p.submit.Resolve(ctx, &submitScope{page: page, input: input})
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.logger.Warn("Comment submit unconfirmed", "url", target, "chain", p.submit.Name(), "input_strategy", m.Strategy)
		return errs.NewSubmitUnconfirmed(target)
	}

	p.logger.Info("Comment posted",
		"url", target,
		"input_strategy", m.Strategy,
		"submit_strategy", sm.Strategy,
		"length", len([]rune(text)),
	)
	return nil
}

func inputStrategies(sel *config.Selectors) []resolve.Strategy[browser.Page, browser.Element] {
	var out []resolve.Strategy[browser.Page, browser.Element]
	for i, s := range sel.CommentInput {
		s := s
		out = append(out, resolve.Strategy[browser.Page, browser.Element]{
			Name:     "comment-input:" + s,
			Priority: i,
			Locate: func(ctx context.Context, page browser.Page) (browser.Element, bool) {
				el, ok, err := page.Query(ctx, s)
				return el, ok && err == nil
			},
		})
	}

	hints := sel.EditableHints
	out = append(out, resolve.Strategy[browser.Page, browser.Element]{
		Name:     "comment-input:editable",
		Priority: len(sel.CommentInput),
		Locate: func(ctx context.Context, page browser.Page) (browser.Element, bool) {
			el, ok, err := page.FocusEditable(ctx, hints)
			return el, ok && err == nil
		},
	})
	return out
}

func (p *Poster) submitStrategies(sel *config.Selectors) []resolve.Strategy[*submitScope, string] {
	buttons := sel.SubmitButtons
	words := sel.SubmitWords

	return []resolve.Strategy[*submitScope, string]{
		{
			Name:     "submit:button",
			Priority: 0,
			Locate: func(ctx context.Context, s *submitScope) (string, bool) {
				for _, b := range buttons {
					el, ok, err := s.page.Query(ctx, b)
					if err != nil || !ok {
						continue
					}
					if err := el.Click(ctx); err != nil {
						p.logger.Debug("Submit button click failed", "selector", b, "error", err)
						continue
					}
					return b, p.confirmed(ctx, s.input)
				}
				return "", false
			},
		},
		{
			Name:     "submit:enter",
			Priority: 1,
			Locate: func(ctx context.Context, s *submitScope) (string, bool) {
				if err := s.input.PressEnter(ctx); err != nil {
					p.logger.Debug("Enter key failed", "error", err)
					return "", false
				}
				return "enter", p.confirmed(ctx, s.input)
			},
		},
		{
			Name:     "submit:script-click",
			Priority: 2,
			Locate: func(ctx context.Context, s *submitScope) (string, bool) {
				clicked, err := s.page.ClickByText(ctx, "button", words, browser.MatchContains)
				if err != nil || !clicked {
					return "", false
				}
				return "script", p.confirmed(ctx, s.input)
			},
		},
	}
}

// confirmed ждёт, пока поле ввода не очистится.
func (p *Poster) confirmed(ctx context.Context, input browser.Element) bool {
	ok, err := browser.WaitFor(ctx, p.confirm, p.loader.Backoff(), func(ctx context.Context) (bool, error) {
		v, err := input.Value(ctx)
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(v) == "", nil
	})
	if err != nil {
		p.logger.Debug("Submit confirmation failed", "error", err)
		return false
	}
	return ok
}
