// Package export сохраняет результаты поиска в data-каталог: CSV для таблиц
// и JSON для отчётов.
package export

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"xhs-scout/internal/search"
)

const (
	prefixRunes     = 10
	timestampLayout = "20060102_150405"
)

// utf8BOM нужен, чтобы Excel открыл CSV как UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"rank", "title", "author", "url", "round", "query", "score"}

type Writer struct {
	dataDir string
	now     func() time.Time
}

func NewWriter(dataDir string, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{dataDir: dataDir, now: now}
}

// FileName - {operation}_{первые 10 символов запроса}_{время}.{ext}
func (w *Writer) FileName(operation, query, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", operation, prefix(query), w.now().Format(timestampLayout), ext)
}

// WriteCSV пишет ранжированную выдачу, одна строка на результат.
func (w *Writer) WriteCSV(operation, query string, results []search.RankedResult) (string, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, r := range results {
		row := []string{
			strconv.Itoa(i + 1),
			r.Title,
			r.Author,
			r.URL,
			strconv.Itoa(r.Round + 1),
			r.Query,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return w.write(w.FileName(operation, query, "csv"), buf.Bytes())
}

// WriteJSON пишет отчёт с отступами, без экранирования не-ASCII.
func (w *Writer) WriteJSON(operation, query string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return w.write(w.FileName(operation, query, "json"), buf.Bytes())
}

// write - запись через временный файл и переименование.
func (w *Writer) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(w.dataDir, name)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	return path, nil
}

func prefix(query string) string {
	runes := []rune(strings.TrimSpace(query))
	if len(runes) > prefixRunes {
		runes = runes[:prefixRunes]
	}
	out := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, string(runes))
	if out == "" {
		return "query"
	}
	return out
}
