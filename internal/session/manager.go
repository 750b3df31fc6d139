// Package session владеет единственной браузерной сессией процесса:
// запуск постоянного профиля, определение логина и сериализация работы со страницей.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/observability"
)

type State int

const (
	Uninitialized State = iota
	Launching
	AwaitingLogin
	Authenticated
	Invalidated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Launching:
		return "launching"
	case AwaitingLogin:
		return "awaiting_login"
	case Authenticated:
		return "authenticated"
	case Invalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options - параметры сессии.
type Options struct {
	ProfileDir     string
	HomeURL        string
	LoginSelectors []string
	LoginWords     []string
	LoginTimeout   time.Duration
	PollInterval   time.Duration
	ProgressEvery  time.Duration
}

// OptionsFromConfig собирает Options из конфига и селекторов.
func OptionsFromConfig(cfg *config.Config, sel *config.Selectors) Options {
	return Options{
		ProfileDir:     cfg.Browser.ProfileDir,
		HomeURL:        cfg.Platform.BaseURL,
		LoginSelectors: sel.LoginAffordance,
		LoginWords:     cfg.Login.Words,
		LoginTimeout:   cfg.GetLoginTimeout(),
		PollInterval:   cfg.GetLoginPollInterval(),
		ProgressEvery:  cfg.GetLoginProgressEvery(),
	}
}

// Status - снимок состояния для отчётов.
type Status struct {
	State        State
	ProfileDir   string
	LastActivity time.Time
}

// Progress сообщается во время ожидания ручного логина.
type Progress struct {
	Elapsed   time.Duration
	Remaining time.Duration
}

// LoginOutcome - исход успешного Login.
type LoginOutcome string

const (
	AlreadyAuthenticated LoginOutcome = "already_authenticated"
	LoggedIn             LoginOutcome = "logged_in"
)

type LoginResult struct {
	Outcome LoginOutcome
	Waited  time.Duration
}

// Manager - конечный автомат сессии. Все операции со страницей
// выполняются под одним семафором: одна сессия, одна вкладка.
type Manager struct {
	driver  browser.Driver
	opts    Options
	logger  *observability.Logger
	metrics *observability.Metrics

	sem chan struct{}

	mu           sync.Mutex
	state        State
	page         browser.Page
	lastActivity time.Time
	onProgress   func(Progress)
}

func NewManager(driver browser.Driver, opts Options, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	if len(opts.LoginWords) == 0 {
		opts.LoginWords = []string{"登录"}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 30 * time.Second
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Manager{
		driver:  driver,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		sem:     make(chan struct{}, 1),
	}
}

// SetProgressFunc задаёт обработчик прогресса ожидания логина.
func (m *Manager) SetProgressFunc(fn func(Progress)) {
	m.mu.Lock()
	m.onProgress = fn
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, ProfileDir: m.opts.ProfileDir, LastActivity: m.lastActivity}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) lock(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) unlock() {
	<-m.sem
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Debug("Session transition", "from", prev.String(), "to", s.String())
		if m.metrics != nil {
			m.metrics.SessionTransitions.WithLabelValues(s.String()).Inc()
		}
	}
}

func (m *Manager) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// EnsureSession запускает браузер при необходимости и проверяет логин.
// Ошибка возвращается только если браузер не удалось запустить.
func (m *Manager) EnsureSession(ctx context.Context) (bool, error) {
	if err := m.lock(ctx); err != nil {
		return false, err
	}
	defer m.unlock()
	return m.ensureLocked(ctx)
}

func (m *Manager) ensureLocked(ctx context.Context) (bool, error) {
	switch m.State() {
	case Authenticated:
		return true, nil
	case Uninitialized, Invalidated:
		m.setState(Launching)
		page, err := m.driver.Open(ctx)
		if err != nil {
			m.setState(Uninitialized)
			return false, fmt.Errorf("failed to launch browser session: %w", err)
		}
		m.mu.Lock()
		m.page = page
		m.mu.Unlock()
		m.logger.Info("Browser session launched", "profile_dir", m.opts.ProfileDir)
	}

	if m.probe(ctx) {
		m.setState(Authenticated)
		m.touch()
		return true, nil
	}
	m.setState(AwaitingLogin)
	return false, nil
}

// probe открывает главную и ищет кнопку входа. Любая ошибка - "не залогинен".
func (m *Manager) probe(ctx context.Context) bool {
	page := m.currentPage()
	if page == nil {
		return false
	}
	if err := page.Navigate(ctx, m.opts.HomeURL); err != nil {
		m.logger.Warn("Login probe navigation failed", "url", m.opts.HomeURL, "error", err.Error())
		return false
	}
	present, err := m.loginAffordancePresent(ctx, page)
	if err != nil {
		m.logger.Warn("Login probe snapshot failed", "error", err.Error())
		return false
	}
	return !present
}

func (m *Manager) currentPage() browser.Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

func (m *Manager) loginAffordancePresent(ctx context.Context, page browser.Page) (bool, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return false, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return HasLoginAffordance(doc, m.opts.LoginSelectors, m.opts.LoginWords), nil
}

// HasLoginAffordance ищет кнопку входа: по селекторам или по точному тексту.
func HasLoginAffordance(doc *goquery.Document, selectors, words []string) bool {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	found := false
	doc.Find("button, a, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		for _, w := range words {
			if text == w {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Login ждёт ручного входа пользователя. Если сессия уже авторизована -
// возвращает AlreadyAuthenticated без действий.
func (m *Manager) Login(ctx context.Context) (LoginResult, error) {
	if err := m.lock(ctx); err != nil {
		return LoginResult{}, err
	}
	defer m.unlock()

	ready, err := m.ensureLocked(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if ready {
		return LoginResult{Outcome: AlreadyAuthenticated}, nil
	}

	page := m.currentPage()
	if clicked := m.clickLogin(ctx, page); !clicked {
		m.logger.Warn("Login affordance not clickable, waiting for manual login anyway")
	}

	m.logger.Info("Waiting for manual login",
		"timeout", m.opts.LoginTimeout.String(),
		"poll_interval", m.opts.PollInterval.String(),
	)

	start := time.Now()
	lastNotice := start
	for {
		present, err := m.loginAffordancePresent(ctx, page)
		if err == nil && !present {
			m.setState(Authenticated)
			m.touch()
			waited := time.Since(start)
			m.logger.Info("Login completed", "waited", waited.String())
			return LoginResult{Outcome: LoggedIn, Waited: waited}, nil
		}
		if err != nil {
			m.logger.Debug("Login poll snapshot failed", "error", err.Error())
		}

		elapsed := time.Since(start)
		if elapsed >= m.opts.LoginTimeout {
			m.logger.Warn("Login timed out", "waited", elapsed.String())
			return LoginResult{}, errs.NewLoginTimedOut(m.opts.LoginTimeout.String())
		}
		if time.Since(lastNotice) >= m.opts.ProgressEvery {
			lastNotice = time.Now()
			m.reportProgress(Progress{Elapsed: elapsed, Remaining: m.opts.LoginTimeout - elapsed})
		}

		if err := browser.Sleep(ctx, m.opts.PollInterval); err != nil {
			return LoginResult{}, err
		}
	}
}

func (m *Manager) clickLogin(ctx context.Context, page browser.Page) bool {
	for _, sel := range m.opts.LoginSelectors {
		el, ok, err := page.Query(ctx, sel)
		if err != nil || !ok {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return true
		}
	}
	clicked, err := page.ClickByText(ctx, "button, a, span, div", m.opts.LoginWords, browser.MatchExact)
	return err == nil && clicked
}

func (m *Manager) reportProgress(p Progress) {
	m.logger.Info("Still waiting for login",
		"elapsed", p.Elapsed.Round(time.Second).String(),
		"remaining", p.Remaining.Round(time.Second).String(),
	)
	m.mu.Lock()
	fn := m.onProgress
	m.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Reset закрывает браузер из любого состояния. Профиль на диске остаётся.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	return m.resetLocked()
}

func (m *Manager) resetLocked() error {
	m.setState(Invalidated)

	m.mu.Lock()
	page := m.page
	m.page = nil
	m.mu.Unlock()

	var closeErr error
	if page != nil {
		if err := page.Close(); err != nil {
			m.logger.Error("Failed to close browser", "error", err.Error())
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
	}

	m.setState(Uninitialized)
	m.logger.Info("Session reset", "profile_dir", m.opts.ProfileDir)
	return closeErr
}

// Close освобождает браузер при завершении процесса.
func (m *Manager) Close() error {
	if err := m.lock(context.Background()); err != nil {
		return err
	}
	defer m.unlock()
	if m.currentPage() == nil {
		return nil
	}
	return m.resetLocked()
}

// Acquire - единственный способ получить страницу. Возвращает
// NOT_AUTHENTICATED, если сессия не авторизована. release обязателен.
func (m *Manager) Acquire(ctx context.Context) (browser.Page, func(), error) {
	if err := m.lock(ctx); err != nil {
		return nil, nil, err
	}

	ready, err := m.ensureLocked(ctx)
	if err != nil {
		m.unlock()
		return nil, nil, err
	}
	if !ready {
		m.unlock()
		return nil, nil, errs.NewNotAuthenticated()
	}

	m.touch()
	var once sync.Once
	release := func() {
		once.Do(func() {
			m.touch()
			m.unlock()
		})
	}
	return m.currentPage(), release, nil
}
