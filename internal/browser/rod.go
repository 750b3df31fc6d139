package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
)

// RodDriver запускает Chrome с постоянным user-data каталогом.
// Каталог переживает процесс: повторный запуск восстанавливает логин.
type RodDriver struct {
	cfg *config.Config
}

func NewRodDriver(cfg *config.Config) *RodDriver {
	return &RodDriver{cfg: cfg}
}

// Open запускает браузер и открывает вкладку. ctx ограничивает только запуск,
// таймауты страницы задаются на каждую операцию.
func (d *RodDriver) Open(ctx context.Context) (Page, error) {
	if err := os.MkdirAll(d.cfg.Browser.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}

	l := launcher.New().
		UserDataDir(d.cfg.Browser.ProfileDir).
		Headless(d.cfg.Browser.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("no-first-run")).
		Set(flags.Flag("no-default-browser-check"))
	if d.cfg.Browser.ChromePath != "" {
		l = l.Bin(d.cfg.Browser.ChromePath)
	}

	l = l.Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	rp := &rodPage{
		launcher:   l,
		browser:    browser,
		navTimeout: d.cfg.GetNavigationTimeout(),
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = rp.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	rp.page = page

	if ua := d.cfg.Browser.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			_ = rp.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	if w, h := d.cfg.Browser.ViewportWidth, d.cfg.Browser.ViewportHeight; w > 0 && h > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             w,
			Height:            h,
			DeviceScaleFactor: 1,
		}); err != nil {
			_ = rp.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return rp, nil
}

type rodPage struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	tp := p.page.Context(ctx).Timeout(p.navTimeout)
	defer tp.CancelTimeout()

	if err := tp.Navigate(url); err != nil {
		return navigationError(url, err)
	}
	if err := tp.WaitLoad(); err != nil {
		return navigationError(url, err)
	}
	return nil
}

func navigationError(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.NewNavigationTimeout(url, err)
	}
	return fmt.Errorf("failed to navigate to %s: %w", url, err)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to snapshot DOM: %w", err)
	}
	return html, nil
}

func (p *rodPage) Query(ctx context.Context, selector string) (Element, bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if !has {
		return nil, false, nil
	}
	return &rodElement{el: el}, true, nil
}

func (p *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	return len(els), nil
}

func (p *rodPage) ScrollBy(ctx context.Context, dy int) error {
	_, err := p.page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

const clickByTextJS = `(selector, words, exact) => {
	for (const el of document.querySelectorAll(selector)) {
		const text = (el.innerText || el.textContent || '').trim();
		if (!text) continue;
		const hit = words.some(w => exact ? text === w : text.includes(w));
		if (hit) { el.click(); return true; }
	}
	return false;
}`

func (p *rodPage) ClickByText(ctx context.Context, selector string, words []string, mode MatchMode) (bool, error) {
	res, err := p.page.Context(ctx).Eval(clickByTextJS, selector, words, mode == MatchExact)
	if err != nil {
		return false, fmt.Errorf("failed to click by text: %w", err)
	}
	return res.Value.Bool(), nil
}

const focusEditableJS = `(hints) => {
	document.querySelectorAll('[data-xhs-focus]').forEach(el => el.removeAttribute('data-xhs-focus'));
	const nodes = document.querySelectorAll('textarea, input, [contenteditable="true"]');
	for (const el of nodes) {
		const probe = [el.placeholder || '', el.className || '', el.id || ''].join(' ').toLowerCase();
		if (hints.some(h => probe.includes(h.toLowerCase()))) {
			el.setAttribute('data-xhs-focus', '1');
			el.focus();
			return true;
		}
	}
	return false;
}`

func (p *rodPage) FocusEditable(ctx context.Context, hints []string) (Element, bool, error) {
	res, err := p.page.Context(ctx).Eval(focusEditableJS, hints)
	if err != nil {
		return nil, false, fmt.Errorf("failed to focus editable: %w", err)
	}
	if !res.Value.Bool() {
		return nil, false, nil
	}
	return p.Query(ctx, `[data-xhs-focus="1"]`)
}

// Close закрывает браузер и добивает процесс, чтобы освободить профиль
// до следующего запуска. Cleanup не вызываем: он удаляет каталог профиля.
func (p *rodPage) Close() error {
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	if p.launcher != nil {
		p.launcher.Kill()
	}
	p.browser = nil
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Input(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func (e *rodElement) PressEnter(ctx context.Context) error {
	return e.el.Context(ctx).Type(input.Enter)
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.value !== undefined ? this.value : this.innerText`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}
