package format

import (
	"encoding/json"
	"io"
	"time"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
)

// JSONLFormatter writes one JSON object per line: a session header followed
// by one record per turn, or per message when no summaries are given.
type JSONLFormatter struct{}

type sessionRecord struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	TurnCount    int    `json:"turn_count"`
	FileCount    int    `json:"file_count,omitempty"`
	Skipped      *int   `json:"skipped_lines,omitempty"`
	Duplicates   *int   `json:"duplicates_dropped,omitempty"`
}

type userRecord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	GitBranch string `json:"git_branch,omitempty"`
}

type summaryRecord struct {
	Summary    string   `json:"summary"`
	ToolCalls  []string `json:"tool_calls"`
	Error      string   `json:"error,omitempty"`
	TokensUsed int      `json:"tokens_used,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
}

type turnRecord struct {
	Type            string        `json:"type"`
	TurnNumber      int           `json:"turn_number"`
	User            *userRecord   `json:"user_message,omitempty"`
	Assistant       summaryRecord `json:"assistant_summary"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	TotalTokens     *int          `json:"total_tokens,omitempty"`
	ResponseCount   *int          `json:"response_count,omitempty"`
}

type messageRecord struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Category  string `json:"category"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`

	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

func (JSONLFormatter) Format(w io.Writer, s *pipeline.Session, results []summarize.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := sessionRecord{
		Type:         "session_header",
		SessionID:    s.ID,
		MessageCount: len(s.Messages),
		TurnCount:    len(s.Turns),
	}
	if opts.Metadata {
		skipped := s.Diagnostics.Skipped
		dups := s.Diagnostics.DroppedByID + s.Diagnostics.DroppedByContent
		header.FileCount = len(s.Files)
		header.Skipped = &skipped
		header.Duplicates = &dups
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	if results == nil {
		msgs := s.Extract(selected(opts))
		for i := range msgs {
			m := &msgs[i]
			rec := messageRecord{
				Type:     "message",
				ID:       m.ID,
				Category: string(m.Category),
				Role:     string(m.Role),
				Content:  messageText(m),
			}
			if opts.Metadata {
				rec.Timestamp = rfc3339(m)
				rec.Extra = m.Extra
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}

	views, err := turnViews(s, results)
	if err != nil {
		return err
	}
	for _, v := range views {
		if err := enc.Encode(jsonlTurn(v, opts)); err != nil {
			return err
		}
	}
	return nil
}

func jsonlTurn(v turnView, opts Options) turnRecord {
	r := v.Result
	rec := turnRecord{
		Type:       "conversation_turn",
		TurnNumber: v.Number,
		Assistant: summaryRecord{
			Summary:    summaryText(r),
			ToolCalls:  r.ToolCalls,
			TokensUsed: r.TokensUsed(),
			Cached:     r.Cached,
		},
	}
	if rec.Assistant.ToolCalls == nil {
		rec.Assistant.ToolCalls = []string{}
	}
	if r.Err != nil {
		rec.Assistant.Error = r.Err.Error()
	}

	if m := v.Turn.Initiating; m != nil {
		rec.User = &userRecord{
			ID:        m.ID,
			Content:   promptText(v.Turn),
			Timestamp: rfc3339(m),
		}
		if opts.Metadata {
			rec.User.Cwd = m.Cwd
			rec.User.GitBranch = m.GitBranch
		}
	}

	if opts.Metadata {
		if d, ok := v.Turn.Duration(); ok {
			secs := d.Seconds()
			rec.DurationSeconds = &secs
		}
		if n, ok := v.Turn.Tokens(); ok {
			rec.TotalTokens = &n
		}
		count := len(v.Turn.Responses)
		rec.ResponseCount = &count
	}
	return rec
}

func rfc3339(m *parse.Message) string {
	if !m.HasTimestamp() {
		return ""
	}
	return m.Timestamp.UTC().Format(time.RFC3339)
}
