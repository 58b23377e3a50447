package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/Zuo-Peng/cc-summarize/internal/fingerprint"
)

// Failure records a summarization attempt that did not produce a payload.
// Failures live apart from entries so a later run can retry them.
type Failure struct {
	Fingerprint     string    `json:"fingerprint"`
	Mode            string    `json:"mode"`
	Error           string    `json:"error"`
	Attempts        int       `json:"attempts"`
	FailedAt        time.Time `json:"failed_at"`
	SourceSessionID string    `json:"source_session_id"`
}

type Stats struct {
	Dir      string
	Entries  int
	Failures int
	Bytes    int64
	ByMode   map[string]int
	Oldest   time.Time
	Newest   time.Time
}

// PutFailure records a failed attempt for fingerprint, bumping the attempt
// count of an earlier record.
func (s *Store) PutFailure(fp string, meta Meta, cause error) (*Failure, error) {
	if !fingerprint.Valid(fp) {
		return nil, errors.Wrapf(ErrInvalidFingerprint, "%q", fp)
	}
	if err := s.ensure(); err != nil {
		return nil, err
	}

	path := s.entryPath(errorsDir, fp)
	f := &Failure{Fingerprint: fp, Mode: meta.Mode, SourceSessionID: meta.SessionID}
	if prev, err := s.readFailure(path); err == nil {
		f.Attempts = prev.Attempts
	}
	f.Attempts++
	f.FailedAt = s.now().UTC()
	if cause != nil {
		f.Error = cause.Error()
	}

	if err := s.writeAtomic(path, f, true); err != nil {
		return nil, s.markUnavailable(err)
	}
	return f, nil
}

// Failed lists failure records, optionally limited to one session, newest
// first.
func (s *Store) Failed(sessionID string) ([]Failure, error) {
	var out []Failure
	err := s.walk(errorsDir, func(path string, _ os.FileInfo) error {
		f, err := s.readFailure(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping unreadable failure record")
			return nil
		}
		if sessionID == "" || f.SourceSessionID == sessionID {
			out = append(out, *f)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	return out, err
}

// ClearFailed removes failure records of sessionID, or all when empty.
func (s *Store) ClearFailed(sessionID string) (int, error) {
	return s.remove(errorsDir, sessionID, func(path string) (string, error) {
		f, err := s.readFailure(path)
		if err != nil {
			return "", err
		}
		return f.SourceSessionID, nil
	})
}

// Clear removes summary entries of sessionID, or every entry when empty.
// Failure records of the same scope go with them.
func (s *Store) Clear(sessionID string) (int, error) {
	n, err := s.remove(summariesDir, sessionID, func(path string) (string, error) {
		e, err := s.read(path)
		if err != nil {
			return "", err
		}
		return e.SourceSessionID, nil
	})
	if err != nil {
		return n, err
	}
	if _, err := s.ClearFailed(sessionID); err != nil {
		return n, err
	}
	return n, nil
}

func (s *Store) Stats() (Stats, error) {
	st := Stats{Dir: s.dir, ByMode: map[string]int{}}
	err := s.walk(summariesDir, func(path string, info os.FileInfo) error {
		st.Entries++
		st.Bytes += info.Size()
		e, err := s.read(path)
		if err != nil {
			return nil
		}
		st.ByMode[e.Mode]++
		if st.Oldest.IsZero() || e.CreatedAt.Before(st.Oldest) {
			st.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(st.Newest) {
			st.Newest = e.CreatedAt
		}
		return nil
	})
	if err != nil {
		return st, err
	}
	err = s.walk(errorsDir, func(_ string, info os.FileInfo) error {
		st.Failures++
		st.Bytes += info.Size()
		return nil
	})
	return st, err
}

// remove deletes files of kind whose owning session, as reported by owner,
// matches sessionID. Unreadable files are removed only when clearing all.
func (s *Store) remove(kind, sessionID string, owner func(path string) (string, error)) (int, error) {
	if !s.Available() {
		return 0, ErrUnavailable
	}
	removed := 0
	err := s.walk(kind, func(path string, _ os.FileInfo) error {
		if sessionID != "" {
			sid, err := owner(path)
			if err != nil || sid != sessionID {
				return nil
			}
		}
		if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path)
		}
		removed++
		return nil
	})
	return removed, err
}

// walk calls fn for every entry file of kind. A missing directory is empty.
func (s *Store) walk(kind string, fn func(path string, info os.FileInfo) error) error {
	dir := filepath.Join(s.dir, kind)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "list %s", dir)
	}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entryExt) {
			continue
		}
		if err := fn(filepath.Join(dir, name), info); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) readFailure(path string) (*Failure, error) {
	var f Failure
	if err := s.readJSON(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
