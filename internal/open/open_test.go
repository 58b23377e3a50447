package open

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

func TestEditorCommand(t *testing.T) {
	cases := []struct {
		editor string
		want   []string
	}{
		{"vim", []string{"vim", "+12", "/tmp/s.jsonl"}},
		{"/usr/bin/nvim", []string{"/usr/bin/nvim", "+12", "/tmp/s.jsonl"}},
		{"code -w", []string{"code", "-w", "--goto", "/tmp/s.jsonl:12"}},
		{"less", []string{"less", "+12", "/tmp/s.jsonl"}},
		{"gedit", []string{"gedit", "/tmp/s.jsonl"}},
	}
	for _, c := range cases {
		cmd := EditorCommand(c.editor, "/tmp/s.jsonl", 12)
		require.Equal(t, c.want, cmd.Args, c.editor)
	}
}

func TestLineOf(t *testing.T) {
	db, err := index.OpenDB(filepath.Join(t.TempDir(), "ccsum.db"))
	require.NoError(t, err)
	defer db.Close()

	root := t.TempDir()
	path := filepath.Join(root, "-p", "sess.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`{"uuid":"m","type":"user","isMeta":true,"message":{"role":"user","content":"caveat"},"timestamp":"2025-01-02T09:59:00Z"}`,
		`{"uuid":"u1","type":"user","message":{"role":"user","content":"first"},"timestamp":"2025-01-02T10:00:00Z"}`,
		`{"uuid":"a1","type":"assistant","message":{"role":"assistant","content":"ok"},"timestamp":"2025-01-02T10:01:00Z"}`,
		`{"uuid":"u2","type":"user","message":{"role":"user","content":"second"},"timestamp":"2025-01-02T10:02:00Z"}`,
	}, "\n")), 0o644))
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now()))

	_, err = index.Refresh(context.Background(), db, root)
	require.NoError(t, err)

	line, err := LineOf(db, "sess", 0)
	require.NoError(t, err)
	require.Equal(t, 1, line)

	line, err = LineOf(db, "sess", 2)
	require.NoError(t, err)
	require.Equal(t, 4, line)

	_, err = LineOf(db, "sess", 3)
	require.Error(t, err)
}
