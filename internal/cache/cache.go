package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/Zuo-Peng/cc-summarize/internal/fingerprint"
)

const (
	summariesDir = "summaries"
	errorsDir    = "errors"
	entryExt     = ".json"
)

var (
	// ErrUnavailable is returned once the cache directory could not be
	// created or written. Reads then behave as misses.
	ErrUnavailable = errors.New("cache unavailable")

	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

// Entry is one stored summary. Entries are immutable once written.
type Entry struct {
	Fingerprint     string          `json:"fingerprint"`
	Mode            string          `json:"mode"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
	SourceSessionID string          `json:"source_session_id"`
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	return errors.Wrap(json.Unmarshal(e.Payload, v), "decode cache payload")
}

// Meta describes where a payload came from.
type Meta struct {
	Mode      string
	SessionID string
}

// Store is a directory of content-addressed summary entries. It is safe for
// concurrent use, and several processes may share one directory.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time

	mu          sync.Mutex
	unavailable bool
	ready       bool
}

func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir, now: time.Now}
}

func (s *Store) Dir() string {
	return s.dir
}

// Available reports whether the store has not given up on its directory.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unavailable
}

// Get returns the entry for fingerprint. Missing, unreadable and corrupt
// entries are all reported as a miss.
func (s *Store) Get(fp string) (*Entry, bool) {
	if !fingerprint.Valid(fp) || !s.Available() {
		return nil, false
	}

	path := s.entryPath(summariesDir, fp)
	entry, err := s.read(path)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			log.Debug().Err(err).Str("fingerprint", fp).Msg("cache entry unreadable, treating as miss")
			s.discard(path)
		}
		return nil, false
	}
	if entry.Fingerprint != fp {
		log.Debug().Str("fingerprint", fp).Str("stored", entry.Fingerprint).Msg("cache entry fingerprint mismatch")
		s.discard(path)
		return nil, false
	}
	return entry, true
}

// discard removes an entry that can never be a hit so the next Put can
// take its place.
func (s *Store) discard(path string) {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("path", path).Msg("remove bad cache entry")
	}
}

// Put stores payload under fingerprint unless an entry already exists, in
// which case the stored entry is returned unchanged.
func (s *Store) Put(fp string, payload any, meta Meta) (*Entry, error) {
	if !fingerprint.Valid(fp) {
		return nil, errors.Wrapf(ErrInvalidFingerprint, "%q", fp)
	}
	if existing, ok := s.Get(fp); ok {
		return existing, nil
	}
	if err := s.ensure(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode cache payload")
	}
	entry := &Entry{
		Fingerprint:     fp,
		Mode:            meta.Mode,
		Payload:         raw,
		CreatedAt:       s.now().UTC(),
		SourceSessionID: meta.SessionID,
	}

	path := s.entryPath(summariesDir, fp)
	if err := s.writeAtomic(path, entry, false); err != nil {
		return nil, s.markUnavailable(err)
	}
	// a concurrent writer may have won the rename; report what is on disk
	if stored, err := s.read(path); err == nil {
		return stored, nil
	}
	return entry, nil
}

func (s *Store) entryPath(kind, fp string) string {
	return filepath.Join(s.dir, kind, fp+entryExt)
}

func (s *Store) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	if s.ready {
		return nil
	}
	for _, sub := range []string{summariesDir, errorsDir} {
		if err := s.fs.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
			s.unavailable = true
			log.Warn().Err(err).Str("dir", s.dir).Msg("summary cache disabled")
			return errors.Wrapf(ErrUnavailable, "create %s: %v", s.dir, err)
		}
	}
	s.ready = true
	return nil
}

func (s *Store) markUnavailable(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unavailable {
		s.unavailable = true
		log.Warn().Err(cause).Str("dir", s.dir).Msg("summary cache disabled")
	}
	return errors.Wrapf(ErrUnavailable, "%v", cause)
}

func (s *Store) read(path string) (*Entry, error) {
	var e Entry
	if err := s.readJSON(path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) readJSON(path string, v any) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return errors.Wrap(err, "read cache file")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// writeAtomic writes v as JSON to a temp file next to path and renames it
// into place. With replace unset an existing path is left alone.
func (s *Store) writeAtomic(path string, v any, replace bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode cache entry")
	}

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(s.fs, dir, "."+strings.TrimSuffix(filepath.Base(path), entryExt)+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp file")
	}

	if !replace {
		if ok, _ := afero.Exists(s.fs, path); ok {
			cleanup()
			return nil
		}
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrap(err, "rename cache entry")
	}
	return nil
}
