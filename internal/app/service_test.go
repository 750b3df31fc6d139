package app

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/browser/browsertest"
	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/search"
	"xhs-scout/internal/session"
	"xhs-scout/internal/storage/sqlite"
)

const (
	homeURL      = "https://www.xiaohongshu.com"
	noteURL      = "https://www.xiaohongshu.com/explore/abc123"
	loggedInDOM  = `<html><body><div class="side-bar"><a class="user">我</a><span>发现</span></div></body></html>`
	loggedOutDOM = `<html><body><div class="side-bar"><button class="reds-button">登录</button></div></body></html>`
	deletedDOM   = `<html><body><div class="note-container"><p>内容已被删除</p></div></body></html>`
)

const noteBody = "今天分享一下我的护肤心得，坚持早晚清洁和保湿，皮肤状态明显变好了。秋冬季节一定要注意补水，面霜和精华都不能少，防晒也要每天坚持。"

const noteDOM = `<html><head><title>测试标题 - 小红书</title></head><body>
<div class="note-container">
  <div id="detail-title">测试标题</div>
  <div class="author-info"><span class="name">测试用户</span></div>
  <div id="detail-desc"><span class="note-text">` + noteBody + `</span></div>
  <span class="date">2024-10-18</span>
  <div class="comment-input"><textarea placeholder="说点什么..."></textarea><button class="send-btn">发送</button></div>
  <div class="comments-container">
    <div class="comment-item">
      <a href="/user/profile/u1" class="username">评论者甲</a>
      <span class="content">测试标题 评论区独有的文字</span>
      <span class="time">昨天</span>
    </div>
    <div class="comment-item">
      <a href="/user/profile/u2" class="username">评论者乙</a>
      <span class="content">请问用的什么面霜呀</span>
    </div>
  </div>
</div>
</body></html>`

const resultsDOM = `<html><body><div class="feeds-page">
<section class="note-item">
  <a class="cover" href="/explore/bbb222"></a>
  <div class="footer"><div class="desc">平价面霜推荐清单</div><span class="name">阿花</span></div>
</section>
<section class="note-item">
  <a class="cover" href="/explore/abc123?xsec_token=t1"><img src="x.jpg"></a>
  <div class="footer">
    <a class="title" href="/explore/abc123?xsec_token=t1"><span>秋冬护肤保湿心得分享</span></a>
    <div class="author-wrapper"><a href="/user/profile/u1"><span class="name">小美</span></a></div>
  </div>
</section>
</div></body></html>`

var fixedNow = time.Date(2024, 10, 18, 9, 5, 7, 0, time.UTC)

type fixture struct {
	svc     *Service
	page    *browsertest.FakePage
	driver  *browsertest.Driver
	metrics *observability.Metrics
	cfg     *config.Config
	repo    *sqlite.Repository
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Browser.ProfileDir = t.TempDir()
	cfg.Browser.WaitTimeoutMS = 30
	cfg.Browser.ScrollSettleDelayMS = 10
	cfg.Backoff.MinMS = 2
	cfg.Backoff.MaxMS = 5
	cfg.Search.Scrolls = 0
	cfg.Search.RoundDelayMS = 0
	cfg.Comments.Scrolls = 0
	cfg.Poster.ConfirmTimeoutMS = 30
	cfg.Export.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func searchURL(cfg *config.Config, query string) string {
	return cfg.Platform.BaseURL + cfg.Platform.SearchPath + "?keyword=" + url.QueryEscape(query)
}

func newFixture(t *testing.T, home string) *fixture {
	t.Helper()
	cfg := testConfig(t)
	cfg.Storage.Driver = "sqlite"

	repo, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "archive.db"), 5000, nil)
	require.NoError(t, err)

	page := browsertest.NewFakePage(map[string]string{
		homeURL: home,
		noteURL: noteDOM,
	})
	page.Routes[noteURL+"?xsec_token=t1"] = noteDOM
	page.Routes[homeURL+"/explore/bbb222"] = deletedDOM
	driver := &browsertest.Driver{Page: page}
	metrics := observability.NewMetrics()

	svc := NewService(Deps{
		Config:     cfg,
		Driver:     driver,
		Metrics:    metrics,
		Repository: repo,
		Now:        func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { svc.Close() })
	return &fixture{svc: svc, page: page, driver: driver, metrics: metrics, cfg: cfg, repo: repo}
}

func (f *fixture) routeSearch(query, html string) {
	f.page.Routes[searchURL(f.cfg, query)] = html
}

func TestGetNoteContentEndToEnd(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	ctx := context.Background()

	note, err := f.svc.GetNoteContent(ctx, "https://xiaohongshu.com/explore/abc123")
	require.NoError(t, err)

	assert.Equal(t, noteURL, note.URL)
	assert.Equal(t, "测试标题", note.Title)
	assert.Equal(t, "测试用户", note.Author)
	assert.Equal(t, noteBody, note.Body)
	assert.NotContains(t, note.Body, "评论区独有")
	assert.Equal(t, 1, f.driver.OpenCount())

	count, err := f.repo.GetNoteCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues(OpNoteContent, codeOK)))

	st := f.svc.Status(ctx)
	assert.Equal(t, session.Authenticated, st.State)
	assert.Equal(t, "sqlite", st.Archive)
	assert.Equal(t, 1, st.ArchivedNotes)
	assert.Empty(t, st.ArchiveError)
}

func TestStatusWithoutArchive(t *testing.T) {
	svc := NewService(Deps{Config: testConfig(t), Driver: &browsertest.Driver{Page: browsertest.NewFakePage(nil)}})
	t.Cleanup(func() { svc.Close() })

	st := svc.Status(context.Background())
	assert.Equal(t, session.Uninitialized, st.State)
	assert.Empty(t, st.Archive)
	assert.Zero(t, st.ArchivedNotes)
}

func TestOperationsRequireLogin(t *testing.T) {
	f := newFixture(t, loggedOutDOM)
	ctx := context.Background()

	_, err := f.svc.GetNoteContent(ctx, noteURL)
	assert.True(t, errs.Is(err, errs.ErrNotAuthenticated))

	_, err = f.svc.SearchNotes(ctx, "护肤", 5)
	assert.True(t, errs.Is(err, errs.ErrNotAuthenticated))

	err = f.svc.PostComment(ctx, noteURL, "写得真好")
	assert.True(t, errs.Is(err, errs.ErrNotAuthenticated))

	assert.Equal(t, session.AwaitingLogin, f.svc.Status(ctx).State)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues(OpNoteContent, string(errs.ErrNotAuthenticated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommentsPosted.WithLabelValues(string(errs.ErrNotAuthenticated))))
}

func TestLoginWhenAuthenticatedIsNoop(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Login(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.AlreadyAuthenticated, res.Outcome)
	}
	assert.Equal(t, 1, f.driver.OpenCount())
}

func TestResetLoginRelaunchesBrowser(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	ctx := context.Background()

	_, err := f.svc.GetNoteContent(ctx, noteURL)
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetLogin(ctx))
	assert.Equal(t, session.Uninitialized, f.svc.Status(ctx).State)

	_, err = f.svc.GetNoteContent(ctx, noteURL)
	require.NoError(t, err)
	assert.Equal(t, 2, f.driver.OpenCount())
	assert.Equal(t, session.Authenticated, f.svc.Status(ctx).State)
}

func TestSearchNotesKeepsPageOrder(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	f.routeSearch("面霜", resultsDOM)

	report, err := f.svc.SearchNotes(context.Background(), "  面霜 ", 0)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "平价面霜推荐清单", report.Results[0].Title)
	assert.Equal(t, 0.0, report.Results[0].Score)
	assert.Equal(t, []RoundSummary{{Round: 1, Query: "面霜", Quota: 10, Found: 2}}, report.Rounds)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Files, 1)
	assert.Equal(t, filepath.Join(f.cfg.Export.DataDir, "search_results_面霜_20241018_090507.csv"), report.Files[0])
	assert.FileExists(t, report.Files[0])
}

func TestSearchNotesRejectsEmptyKeyword(t *testing.T) {
	f := newFixture(t, loggedInDOM)

	_, err := f.svc.SearchNotes(context.Background(), "   ", 10)
	assert.True(t, errs.Is(err, errs.ErrInvalidRequest))
	assert.Equal(t, 0, f.driver.OpenCount())
}

func TestSmartSearchRanksAndWritesReport(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	task := "我想了解护肤技巧"
	intent := search.NewPlanner(analysis.DefaultDictionary()).Plan(task)
	for _, q := range intent.Queries {
		f.routeSearch(q, resultsDOM)
	}

	report, err := f.svc.SmartSearchNotes(context.Background(), task, 10)
	require.NoError(t, err)

	require.NotNil(t, report.Intent)
	assert.Equal(t, "美妆", report.Intent.Domain)
	assert.Len(t, report.Rounds, len(intent.Queries))
	require.Len(t, report.Results, 2)
	assert.Equal(t, "秋冬护肤保湿心得分享", report.Results[0].Title)
	assert.Greater(t, report.Results[0].Score, report.Results[1].Score)
	assert.Equal(t, 0, report.Results[0].Round)

	require.Len(t, report.Files, 2)
	assert.True(t, strings.HasSuffix(report.Files[0], ".csv"))
	raw, err := os.ReadFile(report.Files[1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"run_id", "intent", "rounds", "results"} {
		assert.Contains(t, decoded, key)
	}
	assert.Contains(t, filepath.Base(report.Files[1]), OpSmartReport)
}

func TestSmartSearchContinuesAfterFailedRound(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	task := "我想了解护肤技巧"
	intent := search.NewPlanner(nil).Plan(task)
	require.Greater(t, len(intent.Queries), 1)

	f.page.NavigateErr[searchURL(f.cfg, intent.Queries[0])] = errs.NewNavigationTimeout("search", context.DeadlineExceeded)
	f.routeSearch(intent.Queries[1], resultsDOM)

	report, err := f.svc.SmartSearchNotes(context.Background(), task, 10)
	require.NoError(t, err)
	assert.Contains(t, report.Rounds[0].Error, string(errs.ErrNavigationTimeout))
	assert.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Results[0].Round)
}

func TestDeepSearchAnalyzesEachResult(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	task := "我想了解护肤技巧"
	for _, q := range search.NewPlanner(nil).Plan(task).Queries {
		f.routeSearch(q, resultsDOM)
	}

	deep, err := f.svc.DeepSearchAndAnalyze(context.Background(), task, true, 0)
	require.NoError(t, err)

	require.Len(t, deep.Notes, 2)
	assert.Equal(t, "测试标题", deep.Notes[0].Title)
	assert.Equal(t, []string{"美妆"}, deep.Notes[0].DomainTags)
	assert.NotEmpty(t, deep.Notes[0].Preview)
	assert.Contains(t, deep.Notes[1].Error, string(errs.ErrContentNotFound))
	assert.Equal(t, []Count{{Value: "美妆", Count: 1}}, deep.DomainCounts)
	assert.NotEmpty(t, deep.TopKeywords)

	require.Len(t, deep.Files, 2)
	assert.Contains(t, filepath.Base(deep.Files[1]), OpDeepReport)
}

func TestDeepSearchWithoutAnalysis(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	task := "我想了解护肤技巧"
	for _, q := range search.NewPlanner(nil).Plan(task).Queries {
		f.routeSearch(q, resultsDOM)
	}

	deep, err := f.svc.DeepSearchAndAnalyze(context.Background(), task, false, 1)
	require.NoError(t, err)
	assert.False(t, deep.Analyzed)
	assert.Empty(t, deep.Notes)
	assert.Len(t, deep.Results, 1)
}

func TestAnalyzeNote(t *testing.T) {
	f := newFixture(t, loggedInDOM)

	a, err := f.svc.AnalyzeNote(context.Background(), noteURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"美妆"}, a.Domains)
	assert.Contains(t, a.Keywords, "护肤")
	assert.LessOrEqual(t, len(a.Keywords), analysisKeywords)
	assert.Equal(t, noteBody, a.Preview)
}

func TestGetNoteComments(t *testing.T) {
	f := newFixture(t, loggedInDOM)

	comments, err := f.svc.GetNoteComments(context.Background(), noteURL)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "评论者乙", comments[1].Author)
	assert.Equal(t, "请问用的什么面霜呀", comments[1].Content)
}

func TestPostSmartCommentBuildsGuidance(t *testing.T) {
	f := newFixture(t, loggedInDOM)

	sc, err := f.svc.PostSmartComment(context.Background(), noteURL, "提问")
	require.NoError(t, err)
	assert.Equal(t, "测试标题", sc.Title)
	assert.Equal(t, analysis.CommentQuestion, sc.Guidance.Type)
	assert.NotEmpty(t, sc.Guidance.Suggestions)
	assert.Empty(t, f.page.Typed, "guidance must not type anything")
}

func TestPostCommentConfirmed(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	f.page.OnClick = func(p *browsertest.FakePage, el *browsertest.FakeElement) {
		if el.Is(".send-btn") {
			p.ClearInputs()
		}
	}

	require.NoError(t, f.svc.PostComment(context.Background(), noteURL, "写得真好"))
	assert.Equal(t, []string{"写得真好"}, f.page.Typed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommentsPosted.WithLabelValues("confirmed")))
}

func TestPostCommentUnconfirmed(t *testing.T) {
	f := newFixture(t, loggedInDOM)
	f.page.Routes[noteURL] = strings.Replace(noteDOM, `<button class="send-btn">发送</button>`, "", 1)

	err := f.svc.PostComment(context.Background(), noteURL, "写得真好")
	assert.True(t, errs.Is(err, errs.ErrSubmitUnconfirmed))
}

func TestCounterTopIsStable(t *testing.T) {
	c := newCounter()
	c.add("b", "a", "a", "c", "b")
	assert.Equal(t, []Count{{"b", 2}, {"a", 2}, {"c", 1}}, c.top(0))
	assert.Equal(t, []Count{{"b", 2}}, c.top(1))
}

func TestOpenRepository(t *testing.T) {
	cfg := config.Default()

	repo, err := OpenRepository(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, repo)

	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "x.db")
	repo, err = OpenRepository(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.NoError(t, repo.Close())

	cfg.Storage.Driver = "oracle"
	_, err = OpenRepository(cfg, nil)
	assert.Error(t, err)
}
