package app

import (
	"sort"
	"time"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/search"
	"xhs-scout/internal/session"
)

// Имена операций: метки метрик и префиксы файлов выгрузки.
const (
	OpLogin        = "login"
	OpResetLogin   = "reset_login"
	OpSearch       = "search_results"
	OpSmartSearch  = "smart_search"
	OpSmartReport  = "smart_search_report"
	OpDeepSearch   = "deep_search"
	OpDeepReport   = "deep_analysis"
	OpNoteContent  = "note_content"
	OpAnalyzeNote  = "analyze_note"
	OpNoteComments = "note_comments"
	OpSmartComment = "smart_comment"
	OpPostComment  = "post_comment"
)

const (
	previewRunes     = 200
	deepKeywordsTop  = 10
	analysisKeywords = 20
)

// Status - состояние сессии и архива.
type Status struct {
	session.Status
	Archive       string `json:"archive"`
	ArchivedNotes int    `json:"archived_notes"`
	ArchiveError  string `json:"archive_error,omitempty"`
}

type RoundSummary struct {
	Round int    `json:"round"`
	Query string `json:"query"`
	Quota int    `json:"quota"`
	Found int    `json:"found"`
	Error string `json:"error,omitempty"`
}

// SearchReport - итог одного вызова поиска.
type SearchReport struct {
	RunID     string                `json:"run_id"`
	Operation string                `json:"operation"`
	Query     string                `json:"query"`
	Intent    *search.Intent        `json:"intent,omitempty"`
	Rounds    []RoundSummary        `json:"rounds"`
	Results   []search.RankedResult `json:"results"`
	StartedAt time.Time             `json:"started_at"`
	Files     []string              `json:"-"`
}

// NoteInsight - разбор одной заметки из выдачи глубокого поиска.
type NoteInsight struct {
	Rank       int      `json:"rank"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	DomainTags []string `json:"domain_tags,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Preview    string   `json:"preview,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Count - частота значения.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type DeepReport struct {
	*SearchReport
	Analyzed     bool          `json:"analyzed"`
	Notes        []NoteInsight `json:"notes,omitempty"`
	DomainCounts []Count       `json:"domain_counts,omitempty"`
	TopKeywords  []Count       `json:"top_keywords,omitempty"`
}

// Analysis - заметка и её тематическая разметка.
type Analysis struct {
	Note     *extract.Note `json:"note"`
	Domains  []string      `json:"domains"`
	Keywords []string      `json:"keywords"`
	Preview  string        `json:"preview"`
}

// SmartComment - сведения о заметке и шаблоны комментария. Ничего не публикует.
type SmartComment struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Author   string            `json:"author"`
	Guidance analysis.Guidance `json:"guidance"`
}

// counter считает частоты с сохранением порядка первого появления.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(values ...string) {
	for _, v := range values {
		if _, ok := c.counts[v]; !ok {
			c.order = append(c.order, v)
		}
		c.counts[v]++
	}
}

// top - по убыванию частоты, при равенстве - по первому появлению.
func (c *counter) top(n int) []Count {
	out := make([]Count, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, Count{Value: v, Count: c.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
