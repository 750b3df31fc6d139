// Package browsertest содержит фейковую страницу на goquery для тестов движка.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"xhs-scout/internal/browser"
)

const blankHTML = "<html><head></head><body></body></html>"

// FakePage отдаёт заранее заданный HTML по url и записывает действия.
type FakePage struct {
	mu sync.Mutex

	Routes      map[string]string
	NavigateErr map[string]error

	// Хуки вызываются без удержания мьютекса.
	OnClick    func(p *FakePage, el *FakeElement)
	OnEnter    func(p *FakePage, el *FakeElement)
	OnScroll   func(p *FakePage)
	OnNavigate func(p *FakePage, url string)

	current string
	doc     *goquery.Document
	values  map[*html.Node]string

	Navigations []string
	Clicks      []string
	Typed       []string
	Enters      int
	Scrolls     int
	Closed      bool
}

// NewFakePage создаёт страницу с маршрутами url -> html.
func NewFakePage(routes map[string]string) *FakePage {
	if routes == nil {
		routes = map[string]string{}
	}
	p := &FakePage{
		Routes:      routes,
		NavigateErr: map[string]error{},
		values:      map[*html.Node]string{},
	}
	p.setDoc(blankHTML)
	return p
}

func (p *FakePage) setDoc(raw string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(blankHTML))
	}
	p.doc = doc
	p.values = map[*html.Node]string{}
}

// SetHTML подменяет DOM текущей страницы (и маршрут текущего url).
func (p *FakePage) SetHTML(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != "" {
		p.Routes[p.current] = raw
	}
	p.setDoc(raw)
}

// Append добавляет HTML в конец элемента selector (подгрузка при скролле).
func (p *FakePage) Append(selector, raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).First().AppendHtml(raw)
}

// CurrentURL - последний успешно открытый url.
func (p *FakePage) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// ClearInputs очищает все поля ввода (имитация успешной отправки).
func (p *FakePage) ClearInputs() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = map[*html.Node]string{}
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	if err := p.NavigateErr[url]; err != nil {
		p.mu.Unlock()
		return err
	}
	raw, ok := p.Routes[url]
	if !ok {
		raw = blankHTML
	}
	p.current = url
	p.setDoc(raw)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *FakePage) Query(ctx context.Context, selector string) (browser.Element, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return &FakeElement{page: p, sel: sel}, true, nil
}

func (p *FakePage) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector).Length(), nil
}

func (p *FakePage) ScrollBy(ctx context.Context, dy int) error {
	return p.scroll()
}

func (p *FakePage) ScrollToBottom(ctx context.Context) error {
	return p.scroll()
}

func (p *FakePage) scroll() error {
	p.mu.Lock()
	p.Scrolls++
	hook := p.OnScroll
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *FakePage) ClickByText(ctx context.Context, selector string, words []string, mode browser.MatchMode) (bool, error) {
	p.mu.Lock()
	var target *goquery.Selection
	p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		for _, w := range words {
			if (mode == browser.MatchExact && text == w) || (mode == browser.MatchContains && strings.Contains(text, w)) {
				target = s
				return false
			}
		}
		return true
	})
	p.mu.Unlock()

	if target == nil {
		return false, nil
	}
	el := &FakeElement{page: p, sel: target}
	return true, el.Click(ctx)
}

func (p *FakePage) FocusEditable(ctx context.Context, hints []string) (browser.Element, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found *goquery.Selection
	p.doc.Find(`textarea, input, [contenteditable="true"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		placeholder, _ := s.Attr("placeholder")
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		probe := strings.ToLower(placeholder + " " + class + " " + id)
		for _, h := range hints {
			if strings.Contains(probe, strings.ToLower(h)) {
				found = s
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, false, nil
	}
	return &FakeElement{page: p, sel: found}, true, nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// FakeElement - элемент снимка FakePage.
type FakeElement struct {
	page *FakePage
	sel  *goquery.Selection
}

// Is сообщает, подходит ли элемент под CSS-селектор.
func (e *FakeElement) Is(selector string) bool {
	return e.sel.Is(selector)
}

// TextContent - текст элемента без контекста.
func (e *FakeElement) TextContent() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *FakeElement) describe() string {
	name := goquery.NodeName(e.sel)
	if class, ok := e.sel.Attr("class"); ok && class != "" {
		return fmt.Sprintf("%s.%s", name, strings.ReplaceAll(class, " ", "."))
	}
	if text := e.TextContent(); text != "" {
		return fmt.Sprintf("%s(%s)", name, text)
	}
	return name
}

func (e *FakeElement) Click(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	p.Clicks = append(p.Clicks, e.describe())
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, e)
	}
	return nil
}

func (e *FakeElement) Input(ctx context.Context, text string) error {
	if len(e.sel.Nodes) == 0 {
		return errors.New("detached element")
	}
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[e.sel.Nodes[0]] = text
	p.Typed = append(p.Typed, text)
	return nil
}

func (e *FakeElement) PressEnter(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	p.Enters++
	hook := p.OnEnter
	p.mu.Unlock()
	if hook != nil {
		hook(p, e)
	}
	return nil
}

func (e *FakeElement) Value(ctx context.Context) (string, error) {
	if len(e.sel.Nodes) == 0 {
		return "", nil
	}
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[e.sel.Nodes[0]], nil
}

func (e *FakeElement) ScrollIntoView(ctx context.Context) error {
	return nil
}

// Driver выдаёт одну и ту же FakePage при каждом Open.
type Driver struct {
	mu    sync.Mutex
	Page  *FakePage
	Err   error
	Opens int
}

func (d *Driver) Open(ctx context.Context) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opens++
	if d.Err != nil {
		return nil, d.Err
	}
	d.Page.mu.Lock()
	d.Page.Closed = false
	d.Page.mu.Unlock()
	return d.Page, nil
}

// OpenCount - сколько раз запускался браузер.
func (d *Driver) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Opens
}
