package normalize

import (
	"strings"
	"testing"

	"xhs-scout/internal/config"
)

func TestTruncatePreview(t *testing.T) {
	cfg := &config.Config{
		Normalize: config.NormalizeConfig{
			MaxPreviewChars: 20,
		},
	}

	normalizer := NewNormalizer(cfg)

	input := "这是一段很长很长的笔记正文，需要在预览中被截断显示才行"
	result := normalizer.TruncatePreview(input)

	if RuneLen(result) > 20 {
		t.Errorf("TruncatePreview result too long: %d > 20", RuneLen(result))
	}

	if !strings.HasSuffix(result, "…") {
		t.Errorf("TruncatePreview should end with …")
	}

	short := "短文本"
	if got := normalizer.TruncatePreview(short); got != short {
		t.Errorf("TruncatePreview(%q) = %q", short, got)
	}
}

func TestCleanText(t *testing.T) {
	cfg := &config.Config{
		Normalize: config.NormalizeConfig{
			TrimNBSP:       true,
			CollapseSpaces: true,
		},
	}

	normalizer := NewNormalizer(cfg)

	input := "  标题  正文 \n\n 第二行  "
	expected := "标题 正文 第二行"
	if got := normalizer.CleanText(input); got != expected {
		t.Errorf("CleanText() = %q, want %q", got, expected)
	}
}

func TestNoteURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://xiaohongshu.com/explore/abc123", "https://www.xiaohongshu.com/explore/abc123"},
		{"  @http://www.xiaohongshu.com/explore/abc123  ", "https://www.xiaohongshu.com/explore/abc123"},
		{"xiaohongshu.com/explore/abc123", "https://www.xiaohongshu.com/explore/abc123"},
		{"https://www.xiaohongshu.com/explore/abc?xsec_token=T1&xsec_source=pc#comments", "https://www.xiaohongshu.com/explore/abc?xsec_token=T1&xsec_source=pc"},
		{"https://xhslink.com/a/b", "https://xhslink.com/a/b"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NoteURL(tt.input); got != tt.expected {
			t.Errorf("NoteURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestAbsolute(t *testing.T) {
	base := "https://www.xiaohongshu.com/search_result?keyword=x"
	tests := []struct {
		href     string
		expected string
	}{
		{"/explore/66aa", "https://www.xiaohongshu.com/explore/66aa"},
		{"//www.xiaohongshu.com/discovery/item/1", "https://www.xiaohongshu.com/discovery/item/1"},
		{"https://xiaohongshu.com/explore/2", "https://www.xiaohongshu.com/explore/2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Absolute(base, tt.href); got != tt.expected {
			t.Errorf("Absolute(%q) = %q, want %q", tt.href, got, tt.expected)
		}
	}
}

func TestClip(t *testing.T) {
	if got := Clip("一二三四五", 3); got != "一二三" {
		t.Errorf("Clip = %q", got)
	}
	if got := Clip("abc", 10); got != "abc" {
		t.Errorf("Clip = %q", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/page#anchor", "https://example.com/page"},
		{"  https://example.com  ", "https://example.com"},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
