package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDomainFirstDomainWins(t *testing.T) {
	d := DefaultDictionary()

	tests := []struct {
		text    string
		domain  string
		keyword string
		ok      bool
	}{
		{"我想了解护肤技巧", "美妆", "护肤", true},
		{"周末去哪里旅行", "旅行", "旅行", true},
		{"用 claude 写代码", "AI", "Claude", true},
		{"减肥食谱推荐", "美食", "食谱", true},
		{"随便看看", GeneralDomain, "", false},
	}
	for _, tt := range tests {
		domain, kw, ok := d.MatchDomain(tt.text)
		assert.Equal(t, tt.domain, domain, tt.text)
		assert.Equal(t, tt.keyword, kw, tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
	}
}

func TestDomainTagsDefaultsToGeneral(t *testing.T) {
	d := DefaultDictionary()
	assert.Equal(t, []string{GeneralDomain}, d.DomainTags("今天天气不错"))
	assert.Equal(t, []string{"美妆", "健身"}, d.DomainTags("健身后的护肤步骤"))
}

func TestExtractKeywordsUniqueAndCapped(t *testing.T) {
	d := DefaultDictionary()

	kws := d.ExtractKeywords("护肤 护肤 面膜 GPT 使用心得 GPT", 20)
	assert.Equal(t, []string{"护肤", "面膜", "GPT", "使用心得"}, kws)

	long := strings.Repeat("词语", 1) + " " + strings.Join([]string{
		"一一", "二二", "三三", "四四", "五五", "六六", "七七", "八八", "九九", "十十",
		"aa", "bb", "cc", "dd", "ee", "ff", "gg", "hh", "ii", "jj", "kk", "ll",
	}, " ")
	assert.Len(t, d.ExtractKeywords(long, 20), 20)
}

func TestHanTokens(t *testing.T) {
	assert.Equal(t, []string{"我想了解护肤技巧"}, HanTokens("我想了解护肤技巧"))
	assert.Equal(t, []string{"口红", "推荐"}, HanTokens("口红 a 推荐 的"))
	assert.Empty(t, HanTokens("hello 的"))
}

func TestOrderedSet(t *testing.T) {
	s := NewOrderedSet()
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("b"))
	assert.False(t, s.Add("  "))
	assert.Equal(t, []string{"b", "a"}, s.Items())
	assert.Equal(t, []string{"b"}, s.Head(1))
	assert.Equal(t, 2, s.Len())
}

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domains:
  - name: 宠物
    keywords: [猫咪, 狗狗]
`), 0o644))

	d, err := LoadDictionary(path)
	require.NoError(t, err)
	domain, _, ok := d.MatchDomain("我家猫咪")
	assert.True(t, ok)
	assert.Equal(t, "宠物", domain)

	def, err := LoadDictionary("")
	require.NoError(t, err)
	assert.Len(t, def.Domains, 9)
}

func TestLoadDictionaryRejectsEmptyDomain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domains:\n  - name: x\n"), 0o644))
	_, err := LoadDictionary(path)
	assert.Error(t, err)
}

func TestBuildGuidance(t *testing.T) {
	g := BuildGuidance(ParseCommentType("提问"), "口红试色", []string{"美妆"}, []string{"口红", "试色"})
	assert.Equal(t, CommentQuestion, g.Type)
	assert.Equal(t, "请问口红具体怎么操作呢？", g.Suggestions[0])

	g = BuildGuidance(ParseCommentType("unknown"), "口红试色", nil, nil)
	assert.Equal(t, CommentPraise, g.Type)
	assert.Contains(t, g.Suggestions[0], "口红试色")

	g = BuildGuidance(CommentPromote, "t", []string{GeneralDomain}, nil)
	assert.Contains(t, g.Suggestions[0], "这个话题")
}
