package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhs-scout/internal/storage"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "archive", "xhs.db"), 5000, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertNoteLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	note := &storage.NoteRecord{
		CanonicalURL: "https://www.xiaohongshu.com/explore/abc123",
		Title:        "测试标题",
		Author:       "小明",
		Body:         "笔记正文",
		PublishedRaw: "10-18",
		PublishedOn:  time.Date(2024, 10, 18, 0, 0, 0, 0, time.UTC),
		DomainTags:   []string{"美妆"},
		Keywords:     []string{"护肤", "保湿"},
		CheckSum:     "hash-1",
	}

	isNew, isUpdated, err := repo.UpsertNote(ctx, note)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.False(t, isUpdated)

	isNew, isUpdated, err = repo.UpsertNote(ctx, note)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.False(t, isUpdated)

	note.Body = "更新后的正文"
	note.CheckSum = "hash-2"
	isNew, isUpdated, err = repo.UpsertNote(ctx, note)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, isUpdated)

	count, err := repo.GetNoteCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var body string
	require.NoError(t, repo.db.QueryRow(`SELECT body FROM notes WHERE url = ?`, note.CanonicalURL).Scan(&body))
	assert.Equal(t, "更新后的正文", body)
}

func TestUpsertNoteWithoutDate(t *testing.T) {
	repo := newRepo(t)

	_, _, err := repo.UpsertNote(context.Background(), &storage.NoteRecord{
		CanonicalURL: "https://www.xiaohongshu.com/explore/nodate",
		Title:        "unknown",
		Author:       "unknown",
		Body:         "unavailable",
		CheckSum:     "h",
	})
	require.NoError(t, err)

	var published *string
	require.NoError(t, repo.db.QueryRow(`SELECT published_on FROM notes`).Scan(&published))
	assert.Nil(t, published)
}

func TestSaveRun(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	run := &storage.SearchRun{
		RunID:     "run-1",
		Operation: "smart_search",
		Query:     "我想了解护肤技巧",
		Domain:    "美妆",
		StartedAt: time.Now(),
		CheckSum:  "abc",
		Results: []storage.RunResult{
			{Rank: 1, Round: 0, Query: "护肤", Title: "护肤心得", URL: "https://www.xiaohongshu.com/explore/a", Author: "甲", Score: 13},
			{Rank: 2, Round: 1, Query: "美妆 护肤", Title: "面霜", URL: "https://www.xiaohongshu.com/explore/b", Author: "乙", Score: 0},
		},
	}
	require.NoError(t, repo.SaveRun(ctx, run))

	var n int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM search_results WHERE run_id = ?`, "run-1").Scan(&n))
	assert.Equal(t, 2, n)

	// Повторный run_id - ошибка, результаты не дублируются
	require.Error(t, repo.SaveRun(ctx, run))
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM search_results`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xhs.db")
	first, err := NewRepository(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewRepository(path, 0, nil)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("PRAGMA user_version;").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}
