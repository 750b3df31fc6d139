package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhs-scout/internal/search"
)

var fixedNow = func() time.Time { return time.Date(2024, 10, 18, 9, 5, 7, 0, time.UTC) }

func TestFileName(t *testing.T) {
	w := NewWriter("data", fixedNow)

	assert.Equal(t, "search_results_护肤_20241018_090507.csv", w.FileName("search_results", "护肤", "csv"))
	assert.Equal(t, "smart_search_我想了解护肤技巧推荐_20241018_090507.json", w.FileName("smart_search", "我想了解护肤技巧推荐一下", "json"))
	assert.Equal(t, "search_results_a_b_20241018_090507.csv", w.FileName("search_results", "a/b", "csv"))
	assert.Equal(t, "search_results_query_20241018_090507.csv", w.FileName("search_results", "  ", "csv"))
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, fixedNow)

	results := []search.RankedResult{
		{Card: search.Card{Title: "护肤, 心得", URL: "https://www.xiaohongshu.com/explore/a", Author: "甲", Round: 0, Query: "护肤"}, Score: 13},
		{Card: search.Card{Title: "面霜", URL: "https://www.xiaohongshu.com/explore/b", Author: "乙", Round: 1, Query: "美妆 护肤"}, Score: 0},
	}
	path, err := w.WriteCSV("search_results", "护肤", results)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "search_results_护肤_20241018_090507.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(raw[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1", "护肤, 心得", "甲", "https://www.xiaohongshu.com/explore/a", "1", "护肤", "13"}, rows[1])
	assert.Equal(t, "2", rows[2][4])
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "nested"), fixedNow)

	path, err := w.WriteJSON("deep_analysis", "护肤", map[string]any{"task": "护肤<>"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "护肤<>")

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "护肤<>", decoded["task"])

	leftovers, err := filepath.Glob(filepath.Join(dir, "nested", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
