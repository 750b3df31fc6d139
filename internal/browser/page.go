// Package browser описывает минимальные возможности браузера, нужные движку:
// навигация, снимок DOM, поиск элементов, клики и ввод.
package browser

import "context"

// MatchMode задаёт сравнение текста элемента со словами.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
)

// Page - одна вкладка авторизованной сессии.
type Page interface {
	// Navigate открывает url и ждёт загрузки документа.
	Navigate(ctx context.Context, url string) error
	// HTML возвращает снимок текущего DOM.
	HTML(ctx context.Context) (string, error)
	// Query ищет первый элемент по CSS-селектору без ожидания.
	Query(ctx context.Context, selector string) (Element, bool, error)
	Count(ctx context.Context, selector string) (int, error)
	ScrollBy(ctx context.Context, dy int) error
	ScrollToBottom(ctx context.Context) error
	// ClickByText кликает первый элемент selector, чей текст совпадает с одним из words.
	ClickByText(ctx context.Context, selector string, words []string, mode MatchMode) (bool, error)
	// FocusEditable ищет редактируемый элемент, у которого placeholder, class или id
	// содержит одну из подсказок, и фокусирует его.
	FocusEditable(ctx context.Context, hints []string) (Element, bool, error)
	Close() error
}

// Element - элемент страницы.
type Element interface {
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
	PressEnter(ctx context.Context) error
	// Value - текущее значение поля ввода (или текст contenteditable).
	Value(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context) error
}

// Driver запускает браузер с постоянным профилем и отдаёт рабочую вкладку.
type Driver interface {
	Open(ctx context.Context) (Page, error)
}
