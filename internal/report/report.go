// Package report превращает результаты операций в текст для MCP и CLI.
// Форматирование происходит только здесь.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"xhs-scout/internal/app"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/session"
)

const (
	titleWidth = 40
	urlWidth   = 60
)

// explanations - что делать пользователю при каждом коде ошибки.
var explanations = map[errs.Code]string{
	errs.ErrNotAuthenticated:     "The browser session is not logged in. Run the login tool and finish the login in the opened window.",
	errs.ErrNavigationTimeout:    "The page did not load in time. Check the network connection and try again.",
	errs.ErrContentNotFound:      "The platform reports that this note is missing, deleted or private.",
	errs.ErrExtractionFailed:     "The page loaded but its content could not be read.",
	errs.ErrInputLocatorNotFound: "No comment box was found on the note page. The note may have comments disabled.",
	errs.ErrSubmitUnconfirmed:    "The comment was typed but no submit method was confirmed. Check the note manually before retrying.",
	errs.ErrLoginTimedOut:        "Login was not completed in time. Run the login tool again.",
	errs.ErrInvalidRequest:       "The request is missing a required value.",
	errs.ErrInternal:             "Unexpected internal error. See the service log for details.",
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// Error - код, пояснение и исходное сообщение.
func Error(err error) string {
	code := errs.CodeOf(err)
	var b strings.Builder
	fmt.Fprintf(&b, "Error [%s]: %s\n", code, explanations[code])
	if errs.Is(err, errs.ErrContentNotFound) {
		if marker := markerOf(err); marker != "" {
			fmt.Fprintf(&b, "Page says: %s\n", marker)
		}
	}
	if errs.IsRetryable(err) {
		b.WriteString("This error is retryable.\n")
	}
	fmt.Fprintf(&b, "Details: %v", err)
	return b.String()
}

func markerOf(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Marker
	}
	return ""
}

func Login(res session.LoginResult) string {
	if res.Outcome == session.AlreadyAuthenticated {
		return "Already logged in. The session is ready."
	}
	return fmt.Sprintf("Login completed after %s. The session is saved in the browser profile.", res.Waited.Round(time.Second))
}

func ResetLogin() string {
	return "Browser session closed. The next operation starts a new browser with the saved profile; run login if it asks."
}

func Status(st app.Status) string {
	t := newTable()
	t.AppendHeader(table.Row{"State", "Profile", "Last activity", "Archive"})
	last := "-"
	if !st.LastActivity.IsZero() {
		last = st.LastActivity.Format("2006-01-02 15:04:05")
	}
	archive := "off"
	switch {
	case st.Archive == "":
	case st.ArchiveError != "":
		archive = fmt.Sprintf("%s (error: %s)", st.Archive, st.ArchiveError)
	default:
		archive = fmt.Sprintf("%s, %d notes", st.Archive, st.ArchivedNotes)
	}
	t.AppendRow(table.Row{st.State.String(), st.ProfileDir, last, archive})
	return t.Render()
}

func resultsTable(r *app.SearchReport, withScore bool) string {
	t := newTable()
	header := table.Row{"#", "Title", "Author", "URL"}
	if withScore {
		header = append(header, "Round", "Score")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: titleWidth},
		{Name: "URL", WidthMax: urlWidth},
	})
	for i, res := range r.Results {
		row := table.Row{i + 1, res.Title, res.Author, res.URL}
		if withScore {
			row = append(row, res.Round+1, strconv.FormatFloat(res.Score, 'f', -1, 64))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func files(b *strings.Builder, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(b, "Saved: %s\n", p)
	}
}

// Search - выдача простого поиска.
func Search(r *app.SearchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search %q: %d results\n", r.Query, len(r.Results))
	if len(r.Results) == 0 {
		b.WriteString("No notes found. Try another keyword.\n")
	} else {
		b.WriteString(resultsTable(r, false))
		b.WriteString("\n")
	}
	files(&b, r.Files)
	return strings.TrimRight(b.String(), "\n")
}

func roundsTable(rounds []app.RoundSummary) string {
	t := newTable()
	t.AppendHeader(table.Row{"Round", "Query", "Quota", "Found", "Error"})
	for _, rs := range rounds {
		t.AppendRow(table.Row{rs.Round, rs.Query, rs.Quota, rs.Found, rs.Error})
	}
	return t.Render()
}

func plan(b *strings.Builder, r *app.SearchReport) {
	fmt.Fprintf(b, "Task: %s\n", r.Query)
	if r.Intent == nil {
		return
	}
	fmt.Fprintf(b, "Domain: %s  Priority: %s\n", r.Intent.Domain, r.Intent.Priority)
	fmt.Fprintf(b, "Core keywords: %s\n", strings.Join(r.Intent.CoreKeywords, ", "))
	if len(r.Intent.ExtendedKeywords) > 0 {
		fmt.Fprintf(b, "Extended keywords: %s\n", strings.Join(r.Intent.ExtendedKeywords, ", "))
	}
}

// SmartSearch - план, раунды и ранжированная выдача.
func SmartSearch(r *app.SearchReport) string {
	var b strings.Builder
	plan(&b, r)
	b.WriteString(roundsTable(r.Rounds))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Ranked results: %d\n", len(r.Results))
	if len(r.Results) > 0 {
		b.WriteString(resultsTable(r, true))
		b.WriteString("\n")
	}
	files(&b, r.Files)
	return strings.TrimRight(b.String(), "\n")
}

func counts(title string, cs []app.Count) string {
	t := newTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Value", "Notes"})
	for _, c := range cs {
		t.AppendRow(table.Row{c.Value, c.Count})
	}
	return t.Render()
}

// Deep - умный поиск плюс разбор каждой заметки.
func Deep(d *app.DeepReport) string {
	var b strings.Builder
	plan(&b, d.SearchReport)
	b.WriteString(roundsTable(d.Rounds))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Ranked results: %d\n", len(d.Results))
	if len(d.Results) > 0 {
		b.WriteString(resultsTable(d.SearchReport, true))
		b.WriteString("\n")
	}

	if d.Analyzed {
		t := newTable()
		t.SetTitle("Notes")
		t.AppendHeader(table.Row{"#", "Title", "Domains", "Keywords", "Status"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Title", WidthMax: titleWidth},
			{Name: "Keywords", WidthMax: titleWidth},
		})
		for _, n := range d.Notes {
			status := "ok"
			if n.Error != "" {
				status = n.Error
			}
			t.AppendRow(table.Row{n.Rank, n.Title, strings.Join(n.DomainTags, ", "), strings.Join(n.Keywords, ", "), status})
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
		if len(d.DomainCounts) > 0 {
			b.WriteString(counts("Domains", d.DomainCounts))
			b.WriteString("\n")
		}
		if len(d.TopKeywords) > 0 {
			b.WriteString(counts("Top keywords", d.TopKeywords))
			b.WriteString("\n")
		}
	}
	files(&b, d.Files)
	return strings.TrimRight(b.String(), "\n")
}

// Note - поля заметки и тело целиком.
func Note(n *extract.Note) string {
	t := newTable()
	t.AppendRows([]table.Row{
		{"URL", n.URL},
		{"Title", n.Title},
		{"Author", n.Author},
		{"Published", n.PublishedAt},
		{"Domains", strings.Join(n.DomainTags, ", ")},
	})
	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(n.Body)
	return b.String()
}

func Analysis(a *app.Analysis) string {
	t := newTable()
	t.AppendRows([]table.Row{
		{"URL", a.Note.URL},
		{"Title", a.Note.Title},
		{"Author", a.Note.Author},
		{"Domains", strings.Join(a.Domains, ", ")},
		{"Keywords", strings.Join(a.Keywords, ", ")},
	})
	var b strings.Builder
	b.WriteString(t.Render())
	if a.Preview != "" {
		b.WriteString("\n\nPreview: ")
		b.WriteString(a.Preview)
	}
	return b.String()
}

func Comments(rawURL string, cs []extract.Comment) string {
	if len(cs) == 0 {
		return fmt.Sprintf("No comments found on %s", rawURL)
	}
	t := newTable()
	t.SetTitle(fmt.Sprintf("%d comments", len(cs)))
	t.AppendHeader(table.Row{"#", "Author", "Comment", "Time"})
	t.SetColumnConfigs([]table.ColumnConfig{{Name: "Comment", WidthMax: urlWidth}})
	for i, c := range cs {
		t.AppendRow(table.Row{i + 1, c.Author, c.Content, c.Timestamp})
	}
	return t.Render()
}

// SmartComment - подсказки; публикация - отдельная операция.
func SmartComment(sc *app.SmartComment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Note: %s (%s)\n", sc.Title, sc.Author)
	fmt.Fprintf(&b, "Comment type: %s\n", sc.Guidance.Type)
	if len(sc.Guidance.Domains) > 0 {
		fmt.Fprintf(&b, "Domains: %s\n", strings.Join(sc.Guidance.Domains, ", "))
	}
	if len(sc.Guidance.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(sc.Guidance.Keywords, ", "))
	}
	b.WriteString("Suggestions:\n")
	for i, s := range sc.Guidance.Suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	fmt.Fprintf(&b, "Nothing was posted. Use post_xiaohongshu_comment with your final text for %s", sc.URL)
	return b.String()
}

func Posted(rawURL, text string) string {
	return fmt.Sprintf("Comment posted to %s: %s", rawURL, text)
}
