package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
)

// PlainFormatter writes unstyled text with a separator line between
// prompts. It is the default when output is piped.
type PlainFormatter struct{}

func (PlainFormatter) Format(w io.Writer, s *pipeline.Session, results []summarize.Result, opts Options) error {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var lines []string
	if results == nil {
		lines = plainMessages(s, sep, opts)
	} else {
		views, err := turnViews(s, results)
		if err != nil {
			return err
		}
		lines = plainTurns(s, views, sep, opts)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func plainMessages(s *pipeline.Session, sep string, opts Options) []string {
	msgs := s.Extract(selected(opts))

	var lines []string
	if opts.Metadata {
		lines = append(lines, "Messages from Session "+shortID(s.ID, opts.Verbose), sep, "")
	}
	if len(msgs) == 0 {
		return append(lines, "No messages found.")
	}
	for i := range msgs {
		m := &msgs[i]
		if i > 0 {
			lines = append(lines, "", sep, "")
		}
		if opts.Metadata && m.HasTimestamp() {
			lines = append(lines, "["+formatTime(m.Timestamp)+"]")
		}
		if len(opts.Categories) == 0 {
			lines = append(lines, messageText(m))
		} else {
			lines = append(lines, fmt.Sprintf("[%s] %s", categoryLabel(m.Category), messageText(m)))
		}
	}
	return lines
}

func plainTurns(s *pipeline.Session, views []turnView, sep string, opts Options) []string {
	var lines []string
	if opts.Metadata {
		lines = append(lines,
			"Session: "+shortID(s.ID, opts.Verbose),
			fmt.Sprintf("Messages: %d", len(s.Messages)),
			sep,
		)
	}

	for i, v := range views {
		if i > 0 {
			lines = append(lines, "", sep, "")
		}
		if opts.Metadata {
			if meta := turnMeta(v); len(meta) > 0 {
				lines = append(lines, "["+strings.Join(meta, " | ")+"]")
			}
		}

		switch text := promptText(v.Turn); {
		case v.Turn.Orphan():
			lines = append(lines, "[Activity before the first prompt]")
		case text == "":
			lines = append(lines, "[Empty user message]")
		default:
			lines = append(lines, text)
		}

		r := v.Result
		if r.Err != nil {
			lines = append(lines, "", "Assistant:", "[Summary failed: "+r.Err.Error()+"]")
			continue
		}
		if summary := summaryText(r); summary != "" {
			lines = append(lines, "", "Assistant:")
			if opts.Metadata && r.TokensUsed() > 0 {
				lines = append(lines, fmt.Sprintf("[%d tokens]", r.TokensUsed()))
			}
			lines = append(lines, summary)
		}
		if len(r.ToolCalls) > 0 {
			lines = append(lines, "", "Tools used:")
			for _, c := range r.ToolCalls {
				lines = append(lines, "• "+c)
			}
		}
	}
	return lines
}
