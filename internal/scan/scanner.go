package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionFile is one JSONL log on disk.
type SessionFile struct {
	Path      string
	SessionID string
	Project   string // encoded project directory name
	ModTime   time.Time
	Size      int64
}

// ProjectDirName encodes a project path the way the CLI names its log
// directories: every "/" becomes "-".
func ProjectDirName(projectPath string) string {
	return strings.ReplaceAll(projectPath, "/", "-")
}

// ProjectDir returns the log directory of projectPath under claudeRoot.
// Newer clients also replace "." and "_"; that spelling is used when the
// plain one does not exist.
func ProjectDir(claudeRoot, projectPath string) string {
	plain := filepath.Join(claudeRoot, ProjectDirName(projectPath))
	if _, err := os.Stat(plain); err == nil {
		return plain
	}
	alt := strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(projectPath)
	altDir := filepath.Join(claudeRoot, alt)
	if _, err := os.Stat(altDir); err == nil {
		return altDir
	}
	return plain
}

// FindSessions lists the session files of one project, most recently
// modified first. A project without logs yields an empty list.
func FindSessions(claudeRoot, projectPath string) ([]SessionFile, error) {
	if abs, err := filepath.Abs(projectPath); err == nil {
		projectPath = abs
	}
	dir := ProjectDir(claudeRoot, projectPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read project dir %s", dir)
	}

	var files []SessionFile
	for _, e := range entries {
		if e.IsDir() || !isSessionLog(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, newSessionFile(filepath.Join(dir, e.Name()), info))
	}
	SortByRecency(files)
	return files, nil
}

// ScanRoot walks every project under root. subagents/ directories are
// skipped; their transcripts belong to the parent session.
func ScanRoot(root string) ([]SessionFile, error) {
	var files []SessionFile
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSessionLog(filepath.Base(path)) {
			return nil
		}
		files = append(files, newSessionFile(path, info))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "scan %s", root)
	}
	return files, nil
}

// FindByID resolves id against files: an exact session id first, then the
// most recent file whose id starts with it.
func FindByID(files []SessionFile, id string) (SessionFile, error) {
	if id == "" {
		return SessionFile{}, errors.Wrap(ErrSessionNotFound, "empty session id")
	}
	for _, f := range files {
		if f.SessionID == id {
			return f, nil
		}
	}

	var best *SessionFile
	for i := range files {
		if !strings.HasPrefix(files[i].SessionID, id) {
			continue
		}
		if best == nil || files[i].ModTime.After(best.ModTime) {
			best = &files[i]
		}
	}
	if best == nil {
		return SessionFile{}, errors.Wrapf(ErrSessionNotFound, "%q", id)
	}
	return *best, nil
}

// SortByRecency orders files by modification time, newest first.
func SortByRecency(files []SessionFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
}

func isSessionLog(name string) bool {
	return filepath.Ext(name) == ".jsonl" && !strings.Contains(name, "sessions-index")
}

func newSessionFile(path string, info os.FileInfo) SessionFile {
	return SessionFile{
		Path:      path,
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Project:   filepath.Base(filepath.Dir(path)),
		ModTime:   info.ModTime(),
		Size:      info.Size(),
	}
}
