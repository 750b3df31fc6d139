package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"xhs-scout/internal/config"
)

// CanonicalHost - хост, на который приводятся все ссылки площадки.
const CanonicalHost = "www.xiaohongshu.com"

var spaces = regexp.MustCompile(`\s+`)

type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// CleanText приводит текст к одной строке по правилам конфига.
func (n *Normalizer) CleanText(text string) string {
	if n.cfg.Normalize.TrimNBSP {
		// Заменяем NBSP (\u00A0) на обычный пробел
		text = strings.ReplaceAll(text, "\u00a0", " ")
	}
	if n.cfg.Normalize.CollapseSpaces {
		text = spaces.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(text)
}

// TruncatePreview обрезает текст до maxPreviewChars символов (рун).
func (n *Normalizer) TruncatePreview(text string) string {
	return Truncate(text, n.cfg.Normalize.MaxPreviewChars)
}

// Text - CleanText с настройками по умолчанию.
func Text(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// RuneLen - длина в символах, а не байтах.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate обрезает до max рун; по возможности режет по последнему пробелу.
func Truncate(text string, max int) string {
	if max <= 0 || RuneLen(text) <= max {
		return text
	}
	runes := []rune(text)
	truncated := string(runes[:max-1])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > len(truncated)/2 {
		return truncated[:lastSpace] + "…"
	}
	return truncated + "…"
}

// Clip обрезает до max рун без многоточия.
func Clip(text string, max int) string {
	if max <= 0 || RuneLen(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}

// NoteURL нормализует ссылку на заметку: обрезает пробелы и ведущий @,
// принудительно https, приводит хост к www.xiaohongshu.com, убирает якорь.
// Параметры запроса сохраняются (xsec_token нужен площадке).
func NoteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "@")
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return NormalizeURL(raw)
	}
	u.Scheme = "https"
	if host := strings.ToLower(u.Host); host == "xiaohongshu.com" || host == CanonicalHost {
		u.Host = CanonicalHost
	}
	u.Fragment = ""
	return u.String()
}

// Absolute превращает относительную ссылку выдачи в абсолютную на base.
func Absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return NoteURL(href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return NoteURL(b.ResolveReference(ref).String())
}

// NormalizeURL нормализует URL (убирает якори)
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}
