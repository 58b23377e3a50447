package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
)

func record(id, role, text, ts string) string {
	return `{"uuid":"` + id + `","type":"` + role + `","message":{"role":"` + role + `","content":"` + text + `"},"timestamp":"` + ts + `"}`
}

func seed(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.OpenDB(filepath.Join(t.TempDir(), "ccsum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	now := time.Now()
	write := func(rel string, mod time.Time, lines ...string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	write("-work-app/s1.jsonl", now.Add(-time.Hour),
		record("u1", "user", "fix the flaky cache test", "2025-01-02T10:00:00Z"),
		record("a1", "assistant", "cache fixed", "2025-01-02T10:01:00Z"),
		record("u2", "user", "also bump the cache version", "2025-01-02T10:02:00Z"),
	)
	write("-work-lib/s2.jsonl", now,
		record("u1", "user", "写一个缓存测试", "2025-01-03T10:00:00Z"),
		record("u2", "user", "run go vet on ./internal/...", "2025-01-03T10:05:00Z"),
	)

	_, err = index.Refresh(context.Background(), db, root)
	require.NoError(t, err)
	return db
}

func TestSearch_FTS(t *testing.T) {
	db := seed(t)

	results, err := Search(db, Options{Query: "cache"})
	require.NoError(t, err)
	require.Len(t, results, 1, "one result per session")
	require.Equal(t, "s1", results[0].SessionID)
	require.Contains(t, results[0].Snippet, ">>>cache<<<")
	require.Equal(t, "fix the flaky cache test", results[0].FirstPrompt)

	// assistant text is not indexed
	results, err = Search(db, Options{Query: "fixed"})
	require.NoError(t, err)
	require.Empty(t, results)

	// punctuation is quoted, not parsed as FTS syntax
	results, err = Search(db, Options{Query: "./internal/..."})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].Turn)
}

func TestSearch_CJK(t *testing.T) {
	db := seed(t)

	results, err := Search(db, Options{Query: "缓存"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "s2", results[0].SessionID)
	require.Equal(t, "写一个>>>缓存<<<测试", results[0].Snippet)
}

func TestSearch_Filters(t *testing.T) {
	db := seed(t)

	results, err := Search(db, Options{Query: "cache", Project: "-work-lib"})
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = Search(db, Options{Query: ""})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestList(t *testing.T) {
	db := seed(t)

	results, err := List(db, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "s2", results[0].SessionID)
	require.Equal(t, "写一个缓存测试", results[0].Snippet)
}

func TestMakeSnippet(t *testing.T) {
	require.Equal(t, "...bc >>>Needle<<< de...", makeSnippet("abc Needle def", "needle", 3))
	require.Equal(t, "short", makeSnippet("short", "missing", 10))
	require.Equal(t, "abcd...", makeSnippet("abcdef", "zz", 2))
}

func TestFTSQuery(t *testing.T) {
	require.Equal(t, `"cache" OR "db"`, ftsQuery("cache OR db"))
	require.Equal(t, `"say" """hi"""`, ftsQuery(`say "hi"`))
}
