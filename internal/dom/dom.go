// Package dom работает со снимками DOM: зоны исключения, видимый текст
// и стратегии поиска по селекторам для цепочек resolve.
package dom

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"xhs-scout/internal/normalize"
	"xhs-scout/internal/resolve"
)

// ExclusionAttr помечает зону, текст которой не может попасть в поля заметки.
const ExclusionAttr = "data-xhs-exclusion"

// Parse строит goquery-документ из снимка страницы.
func Parse(raw string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// TagExclusions помечает все совпадения селекторов как зону zone.
// Возвращает число помеченных узлов.
func TagExclusions(doc *goquery.Document, selectors []string, zone string) int {
	tagged := 0
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if _, ok := s.Attr(ExclusionAttr); !ok {
				s.SetAttr(ExclusionAttr, zone)
				tagged++
			}
		})
	}
	return tagged
}

// Excluded - узел сам в зоне исключения или внутри неё.
func Excluded(s *goquery.Selection) bool {
	return s.Closest("["+ExclusionAttr+"]").Length() > 0
}

// WithoutExclusions - копия документа без помеченных зон.
func WithoutExclusions(doc *goquery.Document) *goquery.Selection {
	clone := doc.Selection.Clone()
	clone.Find("[" + ExclusionAttr + "]").Remove()
	return clone
}

// HTML рендерит выборку (для документа - целиком).
func HTML(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	if s.Nodes[0].Type == html.DocumentNode {
		raw, _ := s.Html()
		return raw
	}
	raw, _ := goquery.OuterHtml(s)
	return raw
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "section": true,
	"article": true, "h1": true, "h2": true, "h3": true,
}

// VisibleText - нормализованный текст выборки без зон исключения, script и style.
func VisibleText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeVisible(&b, n)
	}
	return normalize.Text(b.String())
}

func writeVisible(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
			return
		}
		for _, a := range n.Attr {
			if a.Key == ExclusionAttr {
				return
			}
		}
		if blockTags[n.Data] {
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisible(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte(' ')
	}
}

// FirstText - видимый текст первого совпадения вне зон исключения.
func FirstText(scope *goquery.Selection, selector string) (string, bool) {
	var found string
	scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if Excluded(s) {
			return true
		}
		if text := VisibleText(s); text != "" {
			found = text
			return false
		}
		return true
	})
	return found, found != ""
}

// TextStrategies - по одной стратегии на селектор, приоритет = позиция в списке.
// minRunes > 0 отбрасывает слишком короткие находки.
func TextStrategies(prefix string, selectors []string, minRunes int) []resolve.Strategy[*goquery.Selection, string] {
	out := make([]resolve.Strategy[*goquery.Selection, string], 0, len(selectors))
	for i, sel := range selectors {
		sel := sel
		out = append(out, resolve.Strategy[*goquery.Selection, string]{
			Name:     prefix + ":" + sel,
			Priority: i,
			Locate: func(_ context.Context, scope *goquery.Selection) (string, bool) {
				return FirstText(scope, sel)
			},
			Valid: MinRunes(minRunes),
		})
	}
	return out
}

// MinRunes - предикат длины в символах.
func MinRunes(n int) func(string) bool {
	return func(s string) bool {
		return normalize.RuneLen(s) >= n && s != ""
	}
}
