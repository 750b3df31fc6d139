package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/browser"
	"xhs-scout/internal/browser/browsertest"
	"xhs-scout/internal/config"
	"xhs-scout/internal/errs"
	"xhs-scout/internal/extract"
)

func TestPlanSkincareTask(t *testing.T) {
	intent := NewPlanner(nil).Plan("我想了解护肤技巧")

	assert.Equal(t, "美妆", intent.Domain)
	assert.Contains(t, intent.CoreKeywords, "护肤")
	assert.Equal(t, "护肤", intent.CoreKeywords[0])
	assert.GreaterOrEqual(t, len(intent.Queries), 1)
	assert.LessOrEqual(t, len(intent.Queries), 5)
	assert.Contains(t, intent.Queries, "美妆 护肤")
	assert.LessOrEqual(t, len(intent.ExtendedKeywords), 8)
	assert.Equal(t, PriorityMedium, intent.Priority)
}

func TestPlanGeneralDomain(t *testing.T) {
	intent := NewPlanner(nil).Plan("  周末 城市 散步  ")

	assert.Equal(t, analysis.GeneralDomain, intent.Domain)
	assert.Equal(t, []string{"周末", "城市", "散步"}, intent.CoreKeywords)
	assert.Empty(t, intent.ExtendedKeywords)
	assert.Equal(t, []string{"周末 城市 散步"}, intent.Queries)
	assert.Equal(t, PriorityHigh, intent.Priority)
}

func TestPlanLatinTaskFallsBackToTask(t *testing.T) {
	intent := NewPlanner(nil).Plan("weekend ideas")

	assert.Equal(t, []string{"weekend ideas"}, intent.CoreKeywords)
	assert.Equal(t, []string{"weekend ideas"}, intent.Queries)
}

func TestPlanQueriesAreUnique(t *testing.T) {
	intent := NewPlanner(nil).Plan("口红")

	seen := map[string]bool{}
	for _, q := range intent.Queries {
		assert.False(t, seen[q], "duplicate query %q", q)
		seen[q] = true
	}
	assert.NotContains(t, intent.Queries, "口红 口红")
}

func TestPlanDuplicateExtendedQueryKeepsSlot(t *testing.T) {
	intent := NewPlanner(nil).Plan("衣服怎么选")

	assert.Equal(t, []string{
		"衣服 衣服怎么选",
		"穿搭 衣服",
		"搭配 衣服",
		"时尚 衣服",
		"风格 衣服",
	}, intent.Queries)
}

func TestRoundQuota(t *testing.T) {
	tests := []struct {
		limit, round, expected int
	}{
		{10, 0, 10},
		{10, 1, 5},
		{10, 2, 3},
		{2, 4, 1},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := RoundQuota(tt.limit, tt.round); got != tt.expected {
			t.Errorf("RoundQuota(%d, %d) = %d, want %d", tt.limit, tt.round, got, tt.expected)
		}
	}
}

func TestAggregateKeepsFirstSeen(t *testing.T) {
	intent := Intent{CoreKeywords: []string{"护肤"}}
	rounds := [][]Card{
		{{Title: "护肤", URL: "https://www.xiaohongshu.com/explore/a?xsec_token=1", Round: 0, Query: "q1"}},
		{
			{Title: "护肤 重复的卡片标题很长很长", URL: "https://www.xiaohongshu.com/explore/a?xsec_token=2", Round: 1, Query: "q2"},
			{Title: "其他", URL: "https://www.xiaohongshu.com/explore/b", Round: 1, Query: "q2"},
		},
	}

	results := Aggregate(rounds, intent, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "q1", results[0].Query)
	assert.Equal(t, 0, results[0].Round)
	assert.Equal(t, "护肤", results[0].Title)
}

func TestAggregateStableTies(t *testing.T) {
	intent := Intent{CoreKeywords: []string{"面霜"}}
	rounds := [][]Card{
		{
			{Title: "第一张", URL: "https://www.xiaohongshu.com/explore/1"},
			{Title: "面霜", URL: "https://www.xiaohongshu.com/explore/2"},
			{Title: "第三张", URL: "https://www.xiaohongshu.com/explore/3"},
		},
		{{Title: "第四张", URL: "https://www.xiaohongshu.com/explore/4", Round: 1}},
	}

	results := Aggregate(rounds, intent, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "面霜", results[0].Title)
	assert.Equal(t, "第一张", results[1].Title)
	assert.Equal(t, "第三张", results[2].Title)
}

func TestScore(t *testing.T) {
	intent := Intent{
		CoreKeywords:     []string{"护肤", "技巧"},
		ExtendedKeywords: []string{"护肤", "保湿", "面膜"},
	}

	tests := []struct {
		title    string
		expected float64
	}{
		{"护肤", 10 + 5},
		{"护肤技巧", 20 + 5},
		{"秋冬护肤保湿技巧大全分享", 10 + 10 + 5 + 5 + 3},
		{"面膜", 5},
		{"无关", 0},
		{"这是一个非常非常长的标题用来测试超过五十个字符时的加分规则是否只加一分而不是三分呢对吧朋友们大家好呀谢谢", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Score(tt.title, intent), tt.title)
	}
}

func TestScoreMatchedDomainKeywordCountsTwice(t *testing.T) {
	intent := NewPlanner(nil).Plan("我想了解护肤技巧")
	require.Contains(t, intent.CoreKeywords, "护肤")
	require.Contains(t, intent.ExtendedKeywords, "护肤")

	assert.Equal(t, float64(15), Score("护肤", intent))
	assert.Equal(t, float64(10), Score("口红粉底", intent))
}

type staticSource struct {
	page browser.Page
	err  error
}

func (s staticSource) Acquire(ctx context.Context) (browser.Page, func(), error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.page, func() {}, nil
}

const resultsDOM = `<html><body><div class="feeds-page">
<section class="note-item">
  <a class="cover" href="/explore/aaa111?xsec_token=t1"><img src="x.jpg"></a>
  <div class="footer">
    <a class="title" href="/explore/aaa111?xsec_token=t1"><span>秋冬护肤保湿心得分享</span></a>
    <div class="author-wrapper"><a href="/user/profile/u1"><span class="name">小美</span></a><span class="count">1.2万</span></div>
  </div>
</section>
<section class="note-item">
  <a class="cover" href="/explore/bbb222"></a>
  <div class="footer"><div class="desc">平价面霜推荐清单</div><span class="name">阿花</span></div>
</section>
<section class="note-item">
  <a class="cover" href="/explore/aaa111?xsec_token=t2"></a>
</section>
<a href="/user/profile/u9">不是笔记</a>
</div></body></html>`

func newExecutor(t *testing.T, sel *config.Selectors, src extract.PageSource) *Executor {
	t.Helper()
	cfg := config.Default()
	cfg.Browser.WaitTimeoutMS = 20
	cfg.Browser.ScrollSettleDelayMS = 10
	cfg.Backoff.MinMS = 2
	cfg.Backoff.MaxMS = 5
	return NewExecutor(cfg, src, sel, nil, nil)
}

func TestRunRoundParsesCards(t *testing.T) {
	page := browsertest.NewFakePage(nil)
	e := newExecutor(t, config.DefaultSelectors(), staticSource{page: page})
	page.Routes[e.SearchURL("护肤 技巧")] = resultsDOM

	cards, err := e.RunRound(context.Background(), "护肤 技巧", 10)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, Card{
		Title:  "秋冬护肤保湿心得分享",
		URL:    "https://www.xiaohongshu.com/explore/aaa111?xsec_token=t1",
		Author: "小美",
		Query:  "护肤 技巧",
	}, cards[0])
	assert.Equal(t, "平价面霜推荐清单", cards[1].Title)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/bbb222", cards[1].URL)
	assert.Equal(t, "阿花", cards[1].Author)

	assert.Equal(t, []string{"https://www.xiaohongshu.com/search_result?keyword=%E6%8A%A4%E8%82%A4+%E6%8A%80%E5%B7%A7"}, page.Navigations)
	assert.Equal(t, 1, page.Scrolls)
}

func TestRunRoundRespectsLimit(t *testing.T) {
	page := browsertest.NewFakePage(nil)
	e := newExecutor(t, config.DefaultSelectors(), staticSource{page: page})
	page.Routes[e.SearchURL("护肤")] = resultsDOM

	cards, err := e.RunRound(context.Background(), "护肤", 1)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestRunRoundPermalinkFallback(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.SearchCards = []string{".legacy-card a"}
	page := browsertest.NewFakePage(nil)
	e := newExecutor(t, sel, staticSource{page: page})
	page.Routes[e.SearchURL("护肤")] = strings.ReplaceAll(resultsDOM, "/explore/bbb222", "/discovery/item/bbb222")

	cards, err := e.RunRound(context.Background(), "护肤", 10)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "https://www.xiaohongshu.com/discovery/item/bbb222", cards[1].URL)
}

func TestRunRoundErrors(t *testing.T) {
	e := newExecutor(t, config.DefaultSelectors(), staticSource{err: errs.NewNotAuthenticated()})

	_, err := e.RunRound(context.Background(), "护肤", 10)
	assert.True(t, errs.Is(err, errs.ErrNotAuthenticated))

	_, err = e.RunRound(context.Background(), "  ", 10)
	assert.True(t, errs.Is(err, errs.ErrInvalidRequest))
}
