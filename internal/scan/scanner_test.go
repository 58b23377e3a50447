package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, path string, mod time.Time, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestProjectDirName(t *testing.T) {
	require.Equal(t, "-home-user-projects-my-app", ProjectDirName("/home/user/projects/my-app"))
}

func TestProjectDir_Fallback(t *testing.T) {
	root := t.TempDir()
	require.Equal(t, filepath.Join(root, "-home-me-my.app"), ProjectDir(root, "/home/me/my.app"))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "-home-me-my-app"), 0o755))
	require.Equal(t, filepath.Join(root, "-home-me-my-app"), ProjectDir(root, "/home/me/my.app"))
}

func TestFindSessions(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ProjectDirName("/work/app"))
	now := time.Now()

	writeLog(t, filepath.Join(dir, "old.jsonl"), now.Add(-2*time.Hour), "")
	writeLog(t, filepath.Join(dir, "new.jsonl"), now, "")
	writeLog(t, filepath.Join(dir, "notes.txt"), now, "")
	writeLog(t, filepath.Join(dir, "sessions-index.jsonl"), now, "")

	files, err := FindSessions(root, "/work/app")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "new", files[0].SessionID)
	require.Equal(t, "old", files[1].SessionID)

	none, err := FindSessions(root, "/work/other")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestScanRoot_SkipsSubagents(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeLog(t, filepath.Join(root, "-a", "s1.jsonl"), now, "")
	writeLog(t, filepath.Join(root, "-b", "s2.jsonl"), now, "")
	writeLog(t, filepath.Join(root, "-b", "s2", "subagents", "agent-1.jsonl"), now, "")

	files, err := ScanRoot(root)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		require.NotContains(t, f.Path, "subagents")
	}

	files, err = ScanRoot(filepath.Join(root, "missing"))
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestFindByID(t *testing.T) {
	now := time.Now()
	files := []SessionFile{
		{SessionID: "abc123", ModTime: now.Add(-time.Hour)},
		{SessionID: "abc999", ModTime: now},
		{SessionID: "abc", ModTime: now.Add(-2 * time.Hour)},
	}

	f, err := FindByID(files, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", f.SessionID, "exact match wins over prefix")

	f, err = FindByID(files, "abc1")
	require.NoError(t, err)
	require.Equal(t, "abc123", f.SessionID)

	f, err = FindByID(files[:2], "ab")
	require.NoError(t, err)
	require.Equal(t, "abc999", f.SessionID, "most recent prefix match")

	_, err = FindByID(files, "zzz")
	require.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLog(t, path, time.Now(), `{"uuid":"m","type":"user","isMeta":true,"message":{"role":"user","content":"caveat"},"timestamp":"2025-01-02T10:00:00Z"}
{"uuid":"c","type":"user","message":{"role":"user","content":"<command-name>/init</command-name>"},"timestamp":"2025-01-02T10:00:01Z"}
{"uuid":"u","type":"user","cwd":"/work/app","gitBranch":"dev","message":{"role":"user","content":"  add a\n  search   command "},"timestamp":"2025-01-02T10:00:02Z"}
{"uuid":"a","type":"assistant","message":{"role":"assistant","content":"ok"},"timestamp":"2025-01-02T10:05:00Z"}
not json
`)

	md, err := ReadMetadata(SessionFile{Path: path, SessionID: "sess"})
	require.NoError(t, err)
	require.Equal(t, "sess", md.SessionID)
	require.Equal(t, 4, md.MessageCount)
	require.Equal(t, 1, md.Skipped)
	require.Equal(t, "add a search command", md.FirstPrompt)
	require.Equal(t, "/work/app", md.Cwd)
	require.Equal(t, "dev", md.GitBranch)
	require.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), md.Start.UTC())
	require.Equal(t, time.Date(2025, 1, 2, 10, 5, 0, 0, time.UTC), md.End.UTC())
}

func TestReadMetadata_FirstPromptSkipsCategorizedNoise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sess.jsonl")
	writeLog(t, path, time.Now(), `{"uuid":"s","type":"user","isCompactSummary":true,"message":{"role":"user","content":"Summary of the earlier conversation"},"timestamp":"2025-01-02T10:00:00Z"}
{"uuid":"t","type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu1","name":"Task","input":{"prompt":"scan the repo"}}]},"timestamp":"2025-01-02T10:00:01Z"}
{"uuid":"e","type":"user","message":{"role":"user","content":"scan the repo"},"timestamp":"2025-01-02T10:00:02Z"}
{"uuid":"u","type":"user","message":{"role":"user","content":"now fix it"},"timestamp":"2025-01-02T10:00:03Z"}
`)

	md, err := ReadMetadata(SessionFile{Path: path, SessionID: "sess"})
	require.NoError(t, err)
	require.Equal(t, "now fix it", md.FirstPrompt)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "a b c", Preview(" a\n\tb  c ", 10))
	require.Equal(t, "abc...", Preview("abcdef", 3))
	require.Equal(t, "abc", Preview("abc", 3))
}
