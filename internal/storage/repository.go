package storage

import (
	"context"
	"time"
)

// NoteRecord представляет извлечённую заметку для архива
type NoteRecord struct {
	CanonicalURL string
	Title        string
	Author       string
	Body         string
	PublishedRaw string    // Дата как на странице
	PublishedOn  time.Time // Нулевая, если дату не удалось разобрать
	DomainTags   []string
	Keywords     []string
	CheckSum     string // SHA256 контента (64 hex-символа)
}

// SearchRun - один вызов поиска и его ранжированная выдача
type SearchRun struct {
	RunID     string
	Operation string // search, smart_search, deep_search
	Query     string // Ключевое слово или задача
	Domain    string
	StartedAt time.Time
	CheckSum  string
	Results   []RunResult
}

type RunResult struct {
	Rank   int
	Round  int
	Query  string
	Title  string
	URL    string
	Author string
	Score  float64
}

// Repository интерфейс архива. Данные только пишутся и никогда не
// используются для ответа на запросы.
type Repository interface {
	// UpsertNote сохраняет или обновляет заметку, возвращает (isNew, isUpdated, error)
	UpsertNote(ctx context.Context, note *NoteRecord) (isNew bool, isUpdated bool, err error)

	// SaveRun сохраняет поиск вместе с результатами
	SaveRun(ctx context.Context, run *SearchRun) error

	// GetNoteCount получает количество заметок в архиве
	GetNoteCount(ctx context.Context) (int, error)

	Close() error
}
