package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/app"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
	"xhs-scout/internal/search"
	"xhs-scout/internal/session"
)

func TestErrorIncludesCodeAndExplanation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "not authenticated",
			err:      errs.NewNotAuthenticated(),
			contains: []string{"[NOT_AUTHENTICATED]", "Run the login tool"},
		},
		{
			name:     "content marker",
			err:      fmt.Errorf("extract: %w", errs.NewContentNotFound("https://www.xiaohongshu.com/explore/x", "内容已被删除")),
			contains: []string{"[CONTENT_NOT_FOUND]", "Page says: 内容已被删除"},
		},
		{
			name:     "retryable login timeout",
			err:      errs.NewLoginTimedOut("5m0s"),
			contains: []string{"[LOGIN_TIMED_OUT]", "retryable"},
		},
		{
			name:     "untyped",
			err:      fmt.Errorf("boom"),
			contains: []string{"[INTERNAL]", "Details: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Error(tt.err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestEveryCodeHasExplanation(t *testing.T) {
	codes := []errs.Code{
		errs.ErrNotAuthenticated, errs.ErrNavigationTimeout, errs.ErrContentNotFound,
		errs.ErrExtractionFailed, errs.ErrInputLocatorNotFound, errs.ErrSubmitUnconfirmed,
		errs.ErrLoginTimedOut, errs.ErrInvalidRequest, errs.ErrInternal,
	}
	for _, c := range codes {
		assert.NotEmpty(t, explanations[c], "missing explanation for %s", c)
	}
}

func TestLogin(t *testing.T) {
	assert.Contains(t, Login(session.LoginResult{Outcome: session.AlreadyAuthenticated}), "Already logged in")
	assert.Contains(t, Login(session.LoginResult{Outcome: session.LoggedIn, Waited: 42 * time.Second}), "42s")
}

func TestStatus(t *testing.T) {
	out := Status(app.Status{
		Status:        session.Status{State: session.Authenticated, ProfileDir: "browser_data"},
		Archive:       "sqlite",
		ArchivedNotes: 3,
	})
	assert.Contains(t, out, "browser_data")
	assert.Contains(t, out, "sqlite, 3 notes")

	assert.Contains(t, Status(app.Status{}), "off")
	assert.Contains(t, Status(app.Status{Archive: "mssql", ArchiveError: "login failed"}), "mssql (error: login failed)")
}

func sampleReport() *app.SearchReport {
	return &app.SearchReport{
		RunID: "run-1",
		Query: "我想了解护肤技巧",
		Intent: &search.Intent{
			Domain:       "美妆",
			CoreKeywords: []string{"护肤"},
			Priority:     search.PriorityMedium,
		},
		Rounds: []app.RoundSummary{
			{Round: 1, Query: "美妆 护肤", Quota: 10, Found: 1},
			{Round: 2, Query: "护肤", Quota: 5, Error: "NAVIGATION_TIMEOUT: navigation timed out"},
		},
		Results: []search.RankedResult{
			{Card: search.Card{Title: "秋冬护肤保湿心得分享", URL: "https://www.xiaohongshu.com/explore/a", Author: "小美"}, Score: 18},
		},
		Files: []string{"data/smart_search_x.csv"},
	}
}

func TestSmartSearch(t *testing.T) {
	out := SmartSearch(sampleReport())

	for _, s := range []string{"Domain: 美妆", "Core keywords: 护肤", "美妆 护肤", "NAVIGATION_TIMEOUT", "秋冬护肤保湿心得分享", "18", "Saved: data/smart_search_x.csv"} {
		assert.Contains(t, out, s)
	}
}

func TestSearchWithoutResults(t *testing.T) {
	out := Search(&app.SearchReport{Query: "面霜"})
	assert.Contains(t, out, `Search "面霜": 0 results`)
	assert.Contains(t, out, "No notes found")
}

func TestDeep(t *testing.T) {
	d := &app.DeepReport{
		SearchReport: sampleReport(),
		Analyzed:     true,
		Notes: []app.NoteInsight{
			{Rank: 1, Title: "测试标题", DomainTags: []string{"美妆"}, Keywords: []string{"护肤"}},
			{Rank: 2, Title: "bbb", Error: "CONTENT_NOT_FOUND: page reports missing content"},
		},
		DomainCounts: []app.Count{{Value: "美妆", Count: 1}},
		TopKeywords:  []app.Count{{Value: "护肤", Count: 1}},
	}

	out := Deep(d)
	for _, s := range []string{"Notes", "测试标题", "CONTENT_NOT_FOUND", "Domains", "Top keywords"} {
		assert.Contains(t, out, s)
	}
}

func TestNoteRendersBodyOnce(t *testing.T) {
	n := &extract.Note{
		URL:         "https://www.xiaohongshu.com/explore/abc123",
		Title:       "测试标题",
		Author:      "测试用户",
		PublishedAt: extract.Unknown,
		Body:        "正文内容",
		DomainTags:  []string{analysis.GeneralDomain},
	}

	out := Note(n)
	assert.Contains(t, out, "测试标题")
	assert.Equal(t, 1, strings.Count(out, "正文内容"))
	assert.True(t, strings.HasSuffix(out, "正文内容"))
}

func TestComments(t *testing.T) {
	assert.Contains(t, Comments("u", nil), "No comments found")

	out := Comments("u", []extract.Comment{{Author: "评论者乙", Content: "请问用的什么面霜呀", Timestamp: extract.Unknown}})
	assert.Contains(t, out, "1 comments")
	assert.Contains(t, out, "评论者乙")
}

func TestSmartComment(t *testing.T) {
	sc := &app.SmartComment{
		URL:      "https://www.xiaohongshu.com/explore/abc123",
		Title:    "测试标题",
		Author:   "测试用户",
		Guidance: analysis.BuildGuidance(analysis.CommentQuestion, "测试标题", []string{"美妆"}, []string{"护肤"}),
	}

	out := SmartComment(sc)
	assert.Contains(t, out, "Comment type: 提问")
	assert.Contains(t, out, "1. 请问护肤具体怎么操作呢？")
	assert.Contains(t, out, "Nothing was posted")
}
