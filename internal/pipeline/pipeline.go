// Package pipeline wires the session stages together: session files are
// parsed, merged without duplicates, categorized and grouped into turns.
package pipeline

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/cc-summarize/internal/category"
	"github.com/Zuo-Peng/cc-summarize/internal/dedupe"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
	"github.com/Zuo-Peng/cc-summarize/internal/since"
	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

var (
	ErrNoSessions = errors.New("no sessions found")
	ErrNoMessages = errors.New("no parsable messages")
)

type Options struct {
	EmitOrphan bool
	// Window keeps turns that start inside it. Turns without a timestamp
	// are always kept.
	Window since.Window
	// Concurrency bounds LoadBatch; values below 1 mean one at a time.
	Concurrency int
}

// FileDiagnostics reports what the parser skipped in one file.
type FileDiagnostics struct {
	Path     string
	Lines    int
	Messages int
	Skipped  []parse.Diagnostic
}

type Diagnostics struct {
	Lines            int
	Skipped          int
	DroppedByID      int
	DroppedByContent int
	PerFile          []FileDiagnostics
}

// Session is the result of one pipeline run over one or more files.
type Session struct {
	ID          string
	Files       []scan.SessionFile
	Messages    []parse.Message // deduplicated, categorized, ordered
	Turns       []turn.Turn
	Excluded    []parse.Message
	Unattached  []parse.Message
	Diagnostics Diagnostics
}

// Load runs the pipeline over files and merges them into one session.
func Load(ctx context.Context, files []scan.SessionFile, opts Options) (*Session, error) {
	if len(files) == 0 {
		return nil, ErrNoSessions
	}

	s := &Session{ID: sessionID(files), Files: files}
	sources := make([]dedupe.Source, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := parse.ParseFile(f.Path, f.SessionID)
		if err != nil {
			return nil, errors.Wrapf(err, "session %s", f.SessionID)
		}
		s.Diagnostics.Lines += res.Lines
		s.Diagnostics.Skipped += res.Skipped()
		s.Diagnostics.PerFile = append(s.Diagnostics.PerFile, FileDiagnostics{
			Path:     f.Path,
			Lines:    res.Lines,
			Messages: len(res.Messages),
			Skipped:  res.Diagnostics,
		})
		sources = append(sources, dedupe.Source{Path: f.Path, ModTime: f.ModTime, Messages: res.Messages})
	}

	msgs, stats := dedupe.Dedupe(sources)
	s.Diagnostics.DroppedByID = stats.DroppedByID
	s.Diagnostics.DroppedByContent = stats.DroppedByContent
	if len(msgs) == 0 {
		return nil, errors.Wrapf(ErrNoMessages, "%d file(s), %d line(s) skipped", len(files), s.Diagnostics.Skipped)
	}

	s.Messages = category.Categorize(msgs)
	grouped := turn.Group(s.Messages, turn.Options{EmitOrphan: opts.EmitOrphan})
	s.Turns = filterTurns(grouped.Turns, opts.Window)
	s.Excluded = filterMessages(grouped.Excluded, opts.Window)
	s.Unattached = filterMessages(grouped.Unattached, opts.Window)

	log.Debug().
		Str("session", s.ID).
		Int("files", len(files)).
		Int("messages", len(s.Messages)).
		Int("turns", len(s.Turns)).
		Int("skipped", s.Diagnostics.Skipped).
		Int("dropped_id", stats.DroppedByID).
		Int("dropped_content", stats.DroppedByContent).
		Msg("session loaded")
	return s, nil
}

// BatchResult is the outcome for one file of LoadBatch.
type BatchResult struct {
	File    scan.SessionFile
	Session *Session
	Err     error
}

// LoadBatch loads every file as its own session. A failing file is reported
// in its result and does not affect the others. Results keep input order.
func LoadBatch(ctx context.Context, files []scan.SessionFile, opts Options) []BatchResult {
	results := make([]BatchResult, len(files))
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, f := range files {
		results[i].File = f
		g.Go(func() error {
			sess, err := Load(ctx, []scan.SessionFile{f}, opts)
			switch {
			case errors.Is(err, ErrNoMessages):
				log.Debug().Str("path", f.Path).Msg("no messages in session")
			case err != nil:
				log.Warn().Err(err).Str("path", f.Path).Msg("load session")
			}
			results[i].Session = sess
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SelectFiles keeps the files modified inside w.
func SelectFiles(files []scan.SessionFile, w since.Window) []scan.SessionFile {
	if w.IsZero() {
		return files
	}
	var out []scan.SessionFile
	for _, f := range files {
		if w.Contains(f.ModTime) {
			out = append(out, f)
		}
	}
	return out
}

// Extract returns the messages whose category is in cats, in session order.
// Messages with nothing to show or outside the time filter are left out.
func (s *Session) Extract(cats map[parse.Category]bool) []parse.Message {
	kept := s.keptIDs()
	var out []parse.Message
	for _, m := range s.Messages {
		if !cats[m.Category] || m.Body() == "" || !kept[m.ID] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Prompt is the initiating message of a turn. Turn numbers start at 1 and
// skip the orphan turn.
type Prompt struct {
	Turn    int
	Message parse.Message
}

// Prompts lists the initiating messages of the session's turns.
func (s *Session) Prompts() []Prompt {
	var out []Prompt
	for i := range s.Turns {
		t := &s.Turns[i]
		if t.Orphan() {
			continue
		}
		out = append(out, Prompt{Turn: len(out) + 1, Message: *t.Initiating})
	}
	return out
}

func (s *Session) keptIDs() map[string]bool {
	kept := make(map[string]bool, len(s.Messages))
	for i := range s.Turns {
		for _, m := range s.Turns[i].Messages() {
			kept[m.ID] = true
		}
	}
	for _, list := range [][]parse.Message{s.Excluded, s.Unattached} {
		for _, m := range list {
			kept[m.ID] = true
		}
	}
	return kept
}

func filterTurns(turns []turn.Turn, w since.Window) []turn.Turn {
	if w.IsZero() {
		return turns
	}
	var out []turn.Turn
	for _, t := range turns {
		start, ok := t.Start()
		if !ok || w.Contains(start) {
			out = append(out, t)
		}
	}
	return out
}

func filterMessages(msgs []parse.Message, w since.Window) []parse.Message {
	if w.IsZero() {
		return msgs
	}
	var out []parse.Message
	for _, m := range msgs {
		if w.Contains(m.Timestamp) {
			out = append(out, m)
		}
	}
	return out
}

func sessionID(files []scan.SessionFile) string {
	if len(files) == 1 {
		return files[0].SessionID
	}
	return fmt.Sprintf("merged-%d-sessions", len(files))
}
