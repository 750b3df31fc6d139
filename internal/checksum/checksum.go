package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateNoteHash генерирует SHA256 хеш заметки
// Формула: SHA256(url|title|author|body|date_iso)
func (g *Generator) GenerateNoteHash(url, title, author, body string, date time.Time) string {
	// Нулевая дата - пустая строка, иначе ISO без времени
	dateISO := ""
	if !date.IsZero() {
		dateISO = date.UTC().Format("2006-01-02")
	}

	content := strings.Join([]string{url, title, author, body, dateISO}, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// VerifyNoteHash проверяет соответствие хеша
func (g *Generator) VerifyNoteHash(expectedHash, url, title, author, body string, date time.Time) bool {
	return g.GenerateNoteHash(url, title, author, body, date) == expectedHash
}

// GenerateRunHash - отпечаток выдачи: запрос и упорядоченный список url.
// Одинаковая выдача по одному запросу даёт одинаковый хеш.
func (g *Generator) GenerateRunHash(query string, urls []string) string {
	content := query + "|" + strings.Join(urls, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
