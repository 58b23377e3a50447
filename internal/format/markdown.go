package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
)

type MarkdownFormatter struct{}

func (MarkdownFormatter) Format(w io.Writer, s *pipeline.Session, results []summarize.Result, opts Options) error {
	var b strings.Builder

	b.WriteString("# Claude Code Session\n\n")
	fmt.Fprintf(&b, "**Session ID:** `%s`\n", shortID(s.ID, opts.Verbose))
	if opts.Metadata {
		fmt.Fprintf(&b, "**Messages:** %d\n", len(s.Messages))
		fmt.Fprintf(&b, "**Files:** %d\n", len(s.Files))
	}
	b.WriteString("\n---\n\n")

	if results == nil {
		markdownMessages(&b, s, opts)
	} else {
		views, err := turnViews(s, results)
		if err != nil {
			return err
		}
		markdownTurns(&b, views, opts)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func markdownMessages(b *strings.Builder, s *pipeline.Session, opts Options) {
	msgs := s.Extract(selected(opts))
	if len(msgs) == 0 {
		b.WriteString("_No messages found._\n")
		return
	}
	for i := range msgs {
		m := &msgs[i]
		fmt.Fprintf(b, "### %s", categoryLabel(m.Category))
		if opts.Metadata && m.HasTimestamp() {
			fmt.Fprintf(b, " _%s_", formatTime(m.Timestamp))
		}
		b.WriteString("\n\n")
		b.WriteString(messageText(m))
		b.WriteString("\n\n")
	}
}

func markdownTurns(b *strings.Builder, views []turnView, opts Options) {
	if len(views) > 1 {
		b.WriteString("## Contents\n\n")
		for _, v := range views {
			if v.Number == 0 {
				continue
			}
			first, _, _ := strings.Cut(promptText(v.Turn), "\n")
			fmt.Fprintf(b, "%d. [Turn %d: %s](#turn-%d)\n", v.Number, v.Number, truncate(first, 60), v.Number)
		}
		b.WriteString("\n---\n\n")
	}

	for _, v := range views {
		if v.Number == 0 {
			b.WriteString("## Before the first prompt\n\n")
		} else {
			fmt.Fprintf(b, "<a id=\"turn-%d\"></a>\n", v.Number)
			fmt.Fprintf(b, "## Turn %d", v.Number)
			if opts.Metadata {
				if meta := turnMeta(v); len(meta) > 0 {
					fmt.Fprintf(b, " _(%s)_", strings.Join(meta, ", "))
				}
			}
			b.WriteString("\n\n### User\n\n")
			for _, line := range strings.Split(promptText(v.Turn), "\n") {
				fmt.Fprintf(b, "> %s\n", line)
			}
			b.WriteString("\n")
		}

		r := v.Result
		b.WriteString("### Assistant")
		if opts.Metadata && r.TokensUsed() > 0 {
			fmt.Fprintf(b, " _%d tokens_", r.TokensUsed())
		}
		b.WriteString("\n\n")
		switch {
		case r.Err != nil:
			fmt.Fprintf(b, "**Error generating summary:**\n\n```\n%s\n```\n\n", r.Err)
		case summaryText(r) != "":
			b.WriteString(summaryText(r))
			b.WriteString("\n\n")
		default:
			b.WriteString("_No summary available_\n\n")
		}
		if len(r.ToolCalls) > 0 {
			b.WriteString("**Tools used:**\n\n")
			for _, c := range r.ToolCalls {
				fmt.Fprintf(b, "- `%s`\n", c)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
