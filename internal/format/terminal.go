package format

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/render"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
)

var (
	colorPrimary   = lipgloss.Color("12")  // bright blue
	colorSecondary = lipgloss.Color("10")  // bright green
	colorDim       = lipgloss.Color("240") // gray
	colorError     = lipgloss.Color("9")   // bright red

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleUser = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleAssistant = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	styleDim = lipgloss.NewStyle().
			Foreground(colorDim)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)
)

// TerminalFormatter writes colored output for an interactive terminal.
// Summaries are rendered as markdown.
type TerminalFormatter struct{}

func (TerminalFormatter) Format(w io.Writer, s *pipeline.Session, results []summarize.Result, opts Options) error {
	width := opts.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("Session "+shortID(s.ID, opts.Verbose)) + "\n")
	if opts.Metadata {
		b.WriteString(styleDim.Render(fmt.Sprintf("%d messages, %d turns, %d files",
			len(s.Messages), len(s.Turns), len(s.Files))) + "\n")
	}
	b.WriteString("\n")

	if results == nil {
		terminalMessages(&b, s, width, opts)
	} else {
		views, err := turnViews(s, results)
		if err != nil {
			return err
		}
		md := newMarkdownRenderer(opts.Style, width-2)
		for _, v := range views {
			terminalTurn(&b, v, md, width, opts)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func terminalMessages(b *strings.Builder, s *pipeline.Session, width int, opts Options) {
	msgs := s.Extract(selected(opts))
	if len(msgs) == 0 {
		b.WriteString(styleDim.Render("No messages found.") + "\n")
		return
	}
	for i := range msgs {
		m := &msgs[i]
		label := styleUser.Render(categoryLabel(m.Category))
		if opts.Metadata && m.HasTimestamp() {
			label += " " + styleDim.Render(formatTime(m.Timestamp))
		}
		b.WriteString(label + "\n")
		b.WriteString(render.IndentLines(render.Wrap(messageText(m), width-2), "  ") + "\n\n")
	}
}

func terminalTurn(b *strings.Builder, v turnView, md *glamour.TermRenderer, width int, opts Options) {
	header := "Before the first prompt"
	if v.Number > 0 {
		header = fmt.Sprintf("Turn %d", v.Number)
	}
	line := styleUser.Render(header)
	if opts.Metadata {
		if meta := turnMeta(v); len(meta) > 0 {
			line += " " + styleDim.Render(strings.Join(meta, " · "))
		}
	}
	b.WriteString(line + "\n")

	if text := promptText(v.Turn); text != "" {
		b.WriteString(render.IndentLines(render.Wrap(text, width-2), "  ") + "\n")
	}
	b.WriteString("\n")

	r := v.Result
	label := styleAssistant.Render("Assistant")
	if r.Cached {
		label += " " + styleDim.Render("(cached)")
	}
	if opts.Metadata && r.TokensUsed() > 0 {
		label += " " + styleDim.Render(fmt.Sprintf("%d tokens", r.TokensUsed()))
	}
	b.WriteString(label + "\n")

	switch {
	case r.Err != nil:
		b.WriteString("  " + styleError.Render("Summary failed: "+r.Err.Error()) + "\n")
	case summaryText(r) != "":
		b.WriteString(render.IndentLines(renderMarkdown(md, summaryText(r), width-2), "  ") + "\n")
	}
	if len(r.ToolCalls) > 0 {
		b.WriteString("  " + styleDim.Render("Tools: "+strings.Join(r.ToolCalls, ", ")) + "\n")
	}
	b.WriteString("\n" + styleDim.Render(strings.Repeat("─", width)) + "\n\n")
}

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	if style == "" {
		style = "dark" // avoid OSC background queries
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Debug().Err(err).Str("style", style).Msg("markdown renderer unavailable")
		return nil
	}
	return md
}

var (
	leadingSpaceANSI  = regexp.MustCompile(`^(?:\x1b\[[0-9;]*m|\s)*`)
	trailingSpaceANSI = regexp.MustCompile(`(?:\x1b\[[0-9;]*m|\s)*$`)
)

// renderMarkdown renders text with md, falling back to plain wrapping.
func renderMarkdown(md *glamour.TermRenderer, text string, width int) string {
	if md == nil {
		return render.Wrap(text, width)
	}
	out, err := md.Render(text)
	if err != nil {
		return render.Wrap(text, width)
	}
	out = leadingSpaceANSI.ReplaceAllString(out, "")
	return trailingSpaceANSI.ReplaceAllString(out, "")
}
