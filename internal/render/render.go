package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	HitTurn int    // prompt to mark, 0 = none
	Context int    // prompts before/after the hit, <0 = all
	Width   int    // wrap width (0 = no wrap)
	Query   string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// HighlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func HighlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	var filtered []string
	for _, t := range strings.Fields(query) {
		if !fts5Operators[t] {
			filtered = append(filtered, strings.Trim(t, `"`))
		}
	}
	for _, term := range filtered {
		if term == "" {
			continue
		}
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			end := pos + len(term)
			if end > len(text) {
				break
			}
			replacement := colorBoldRed + text[pos:end] + colorReset
			text = text[:pos] + replacement + text[end:]
			i = pos + len(replacement)
		}
	}
	return text
}

// IndentLines prepends each line of text with the given prefix.
func IndentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// WrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func WrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// Wrap applies WrapLine to every line of text.
func Wrap(text string, maxWidth int) string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		out = append(out, WrapLine(l, maxWidth)...)
	}
	return strings.Join(out, "\n")
}

// RenderPrompts renders the indexed prompts of a session and returns the
// content, the 0-based line number of the hit prompt header (-1 if no hit),
// and any error.
func RenderPrompts(db *index.DB, sessionID string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}

	session, err := db.GetSession(sessionID)
	if err != nil {
		return "", -1, err
	}
	if session == nil {
		return "", -1, errors.Errorf("session not found: %s", sessionID)
	}

	prompts, err := db.GetPrompts(sessionID)
	if err != nil {
		return "", -1, err
	}
	if len(prompts) == 0 {
		return "(no prompts)", -1, nil
	}

	start, end := window(prompts, opts)

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + strings.Repeat("-", 50) + colorReset

	// helper to track line count; wraps long lines if Width is set
	writeLine := func(s string) {
		for _, wl := range WrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	header := session.Cwd
	if header == "" {
		header = session.Project
	}
	if session.GitBranch != "" {
		header += " (" + session.GitBranch + ")"
	}
	writeLine(fmt.Sprintf("%s--- %s %s ---%s", colorDim, sessionID, header, colorReset))

	if start > 0 {
		writeLine(fmt.Sprintf("%s... (%d prompts before) ...%s", colorDim, start, colorReset))
	}

	for i := start; i < end; i++ {
		p := prompts[i]
		if i > start {
			writeLine(separator)
		}

		if p.Turn == opts.HitTurn {
			hitLine = lineCount
			writeLine(fmt.Sprintf("%s>> #%d > %s <<%s", colorHit, p.Turn, p.Ts, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s#%d >%s %s%s%s", colorUser, p.Turn, colorReset, colorDim, p.Ts, colorReset))
		}

		text := HighlightKeywords(p.Text, opts.Query)
		for _, tl := range strings.Split(IndentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("") // blank line after prompt
	}

	if after := len(prompts) - end; after > 0 {
		writeLine(fmt.Sprintf("%s... (%d prompts after) ...%s", colorDim, after, colorReset))
	}

	return b.String(), hitLine, nil
}

// window returns the [start, end) range of prompts shown around the hit.
func window(prompts []index.PromptRow, opts Options) (int, int) {
	if opts.Context < 0 || opts.HitTurn <= 0 {
		return 0, len(prompts)
	}
	hit := -1
	for i, p := range prompts {
		if p.Turn == opts.HitTurn {
			hit = i
			break
		}
	}
	if hit < 0 {
		return 0, len(prompts)
	}
	start := hit - opts.Context
	if start < 0 {
		start = 0
	}
	end := hit + opts.Context + 1
	if end > len(prompts) {
		end = len(prompts)
	}
	return start, end
}
