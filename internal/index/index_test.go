package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	recU1 = `{"uuid":"u1","type":"user","cwd":"/work/app","gitBranch":"main","message":{"role":"user","content":"refactor the parser"},"timestamp":"2025-01-02T10:00:00Z"}`
	recA1 = `{"uuid":"a1","type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"done"}]},"timestamp":"2025-01-02T10:01:00Z"}`
	recU2 = `{"uuid":"u2","type":"user","message":{"role":"user","content":"now add 日本語 tests"},"timestamp":"2025-01-02T10:05:00Z"}`
)

func writeLog(t *testing.T, path string, mod time.Time, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "catalog", "ccsum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRefresh(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	now := time.Now().Truncate(time.Second)

	first := filepath.Join(root, "-work-app", "abc123.jsonl")
	second := filepath.Join(root, "-work-lib", "def456.jsonl")
	writeLog(t, first, now.Add(-time.Hour), recU1, recA1, recU2)
	writeLog(t, second, now, recU1)
	writeLog(t, filepath.Join(root, "-work-lib", "empty.jsonl"), now, "garbage")

	stats, err := Refresh(context.Background(), db, root)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Scanned)
	require.Equal(t, 2, stats.Updated)
	require.Equal(t, 1, stats.Empty)

	s, err := db.GetSession("abc123")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "-work-app", s.Project)
	require.Equal(t, "/work/app", s.Cwd)
	require.Equal(t, "main", s.GitBranch)
	require.Equal(t, "2025-01-02T10:00:00Z", s.StartedAt)
	require.Equal(t, 3, s.MessageCount)
	require.Equal(t, 2, s.TurnCount)
	require.Equal(t, "refactor the parser", s.FirstPrompt)

	prompts, err := db.GetPrompts("abc123")
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	require.Equal(t, 1, prompts[0].Turn)
	require.Equal(t, "u1", prompts[0].MessageID)
	require.Equal(t, 1, prompts[0].LineNumber)
	require.Equal(t, 3, prompts[1].LineNumber)

	// unchanged files are skipped
	stats, err = Refresh(context.Background(), db, root)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Skipped)
	require.Equal(t, 0, stats.Updated)

	// a grown file is re-indexed, a removed one pruned
	writeLog(t, first, now, recU1, recA1)
	require.NoError(t, os.Remove(second))
	stats, err = Refresh(context.Background(), db, root)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)
	require.Equal(t, 1, stats.Pruned)

	n, err := db.SessionCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = db.PromptCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRefresh_FailedReindexKeepsRows(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	now := time.Now().Truncate(time.Second)
	path := filepath.Join(root, "-work-app", "abc123.jsonl")
	writeLog(t, path, now.Add(-time.Hour), recU1, recA1)

	_, err := Refresh(context.Background(), db, root)
	require.NoError(t, err)

	_, err = db.Raw().Exec(`CREATE TRIGGER reject_prompts BEFORE INSERT ON prompts
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	writeLog(t, path, now, recU1, recA1, recU2)
	stats, err := Refresh(context.Background(), db, root)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Errors)
	require.Equal(t, 0, stats.Pruned)

	s, err := db.GetSession("abc123")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, 1, s.TurnCount)
	n, err := db.PromptCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRefresh_ParsesChangedFilesInParallel(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	now := time.Now().Truncate(time.Second)
	for i, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		writeLog(t, filepath.Join(root, "-p", id+".jsonl"), now.Add(-time.Duration(i)*time.Minute), recU1, recA1)
	}
	writeLog(t, filepath.Join(root, "-p", "bad.jsonl"), now, "not json")

	prev := refreshConcurrency
	refreshConcurrency = 3
	defer func() { refreshConcurrency = prev }()

	stats, err := Refresh(context.Background(), db, root)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Updated)
	require.Equal(t, 1, stats.Empty)
	require.Equal(t, 0, stats.Errors)

	n, err := db.SessionCount()
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestResolveAndList(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	now := time.Now()
	writeLog(t, filepath.Join(root, "-a", "abc111.jsonl"), now.Add(-2*time.Hour), recU1)
	writeLog(t, filepath.Join(root, "-a", "abc222.jsonl"), now, recU1)
	writeLog(t, filepath.Join(root, "-b", "xyz.jsonl"), now.Add(-time.Hour), recU1)

	_, err := Refresh(context.Background(), db, root)
	require.NoError(t, err)

	s, err := db.ResolveSession("abc")
	require.NoError(t, err)
	require.Equal(t, "abc222", s.SessionID)

	s, err = db.ResolveSession("abc111")
	require.NoError(t, err)
	require.Equal(t, "abc111", s.SessionID)

	s, err = db.ResolveSession("a_c")
	require.NoError(t, err)
	require.Nil(t, s)

	all, err := db.ListSessions(ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "abc222", all[0].SessionID)

	onlyA, err := db.ListSessions(ListOptions{Project: "-a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)

	p, err := db.GetPrompt("xyz", 1)
	require.NoError(t, err)
	require.Equal(t, "refactor the parser", p.Text)
	p, err = db.GetPrompt("xyz", 9)
	require.NoError(t, err)
	require.Nil(t, p)
}
