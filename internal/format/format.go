// Package format renders loaded sessions, either as extracted messages or
// as per-turn summaries.
package format

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

const (
	Auto     = "auto"
	Plain    = "plain"
	Markdown = "markdown"
	JSONL    = "jsonl"
	Terminal = "terminal"
)

// Names lists the accepted --format values.
var Names = []string{Auto, Terminal, Markdown, JSONL, Plain}

const DefaultSeparator = "────────────────────────"

type Options struct {
	// Categories selects the messages written when no summaries are given.
	// Empty means user prompts only.
	Categories map[parse.Category]bool
	Metadata   bool   // timestamps, durations and token counts
	Verbose    bool   // full session ids
	Separator  string // plain only
	Width      int    // terminal wrap width, 0 = 80
	Style      string // glamour style for terminal summaries, "" = dark
}

// Formatter writes a session. With results nil the session's messages are
// written, filtered by Options.Categories; otherwise results[i] is the
// summary of s.Turns[i].
type Formatter interface {
	Format(w io.Writer, s *pipeline.Session, results []summarize.Result, opts Options) error
}

// New returns the formatter called name. Auto must be resolved first.
func New(name string) (Formatter, error) {
	switch name {
	case Plain:
		return PlainFormatter{}, nil
	case Markdown:
		return MarkdownFormatter{}, nil
	case JSONL:
		return JSONLFormatter{}, nil
	case Terminal:
		return TerminalFormatter{}, nil
	}
	return nil, errors.Errorf("unknown format %q (want one of %s)", name, strings.Join(Names, ", "))
}

// Resolve picks the concrete format for name. Auto and --plain fall back to
// plain output when stdout is not a terminal or NO_COLOR is set.
func Resolve(name string, forcePlain, isTTY bool) string {
	if forcePlain {
		return Plain
	}
	if name == "" || name == Auto {
		if !isTTY || os.Getenv("NO_COLOR") != "" {
			return Plain
		}
		return Terminal
	}
	return name
}

// turnView pairs a turn with its number and optional summary. Number is 0
// for the orphan turn.
type turnView struct {
	Number int
	Turn   *turn.Turn
	Result *summarize.Result
}

func turnViews(s *pipeline.Session, results []summarize.Result) ([]turnView, error) {
	if results != nil && len(results) != len(s.Turns) {
		return nil, errors.Errorf("got %d summaries for %d turns", len(results), len(s.Turns))
	}
	views := make([]turnView, 0, len(s.Turns))
	n := 0
	for i := range s.Turns {
		v := turnView{Turn: &s.Turns[i]}
		if !v.Turn.Orphan() {
			n++
			v.Number = n
		}
		if results != nil {
			v.Result = &results[i]
		}
		views = append(views, v)
	}
	return views, nil
}

func selected(opts Options) map[parse.Category]bool {
	if len(opts.Categories) == 0 {
		return map[parse.Category]bool{parse.CategoryUser: true}
	}
	return opts.Categories
}

var hookTags = strings.NewReplacer("<session-start-hook>", "", "</session-start-hook>", "")

// promptText is the displayable text of an initiating message.
func promptText(t *turn.Turn) string {
	if t.Orphan() {
		return ""
	}
	return strings.TrimSpace(hookTags.Replace(t.Initiating.Text()))
}

func messageText(m *parse.Message) string {
	return strings.TrimSpace(hookTags.Replace(m.Body()))
}

func categoryLabel(c parse.Category) string {
	switch c {
	case parse.CategorySessionSummary:
		return "SUMMARY"
	default:
		return strings.ToUpper(string(c))
	}
}

func shortID(id string, verbose bool) string {
	if verbose || len(id) <= 8 || strings.HasPrefix(id, "merged-") {
		return id
	}
	return id[:8]
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// turnMeta renders start time, duration and token use of a turn.
func turnMeta(v turnView) []string {
	var parts []string
	if start, ok := v.Turn.Start(); ok {
		parts = append(parts, formatTime(start))
	}
	if d, ok := v.Turn.Duration(); ok {
		parts = append(parts, d.Round(time.Second).String())
	}
	if n, ok := v.Turn.Tokens(); ok {
		parts = append(parts, humanize.Comma(int64(n))+" tokens")
	}
	return parts
}

func summaryText(r *summarize.Result) string {
	if r.Err != nil {
		return ""
	}
	return strings.TrimSpace(r.Summary)
}
