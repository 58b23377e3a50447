// Package summarize turns conversation turns into short summaries, either
// through the Anthropic API or by extracting what the log already says.
package summarize

import (
	"context"

	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

const (
	noActionsSummary = "No relevant assistant actions found."
	noInfoSummary    = "No summary information available in logs."
)

// Request is one turn to summarize. Content and Fingerprint are filled by
// NewRequest and must not be changed independently of each other.
type Request struct {
	Turn        *turn.Turn
	Mode        Mode
	SessionID   string
	Content     string
	Fingerprint string
}

func NewRequest(t *turn.Turn, mode Mode) Request {
	content := BuildContent(t, mode)
	return Request{
		Turn:        t,
		Mode:        mode,
		SessionID:   t.SessionID(),
		Content:     content,
		Fingerprint: Fingerprint(mode, content),
	}
}

// Rekey returns r keyed for a summarizer whose output also depends on
// settings.
func (r Request) Rekey(settings string) Request {
	r.Fingerprint = fingerprintWith(r.Mode, r.Content, settings)
	return r
}

// Result is the summary of one turn. The exported JSON fields are what the
// cache stores.
type Result struct {
	Summary      string   `json:"summary"`
	Model        string   `json:"model,omitempty"`
	InputTokens  int      `json:"input_tokens,omitempty"`
	OutputTokens int      `json:"output_tokens,omitempty"`
	Truncated    bool     `json:"truncated,omitempty"`
	ToolCalls    []string `json:"-"`

	Fingerprint string `json:"-"`
	Cached      bool   `json:"-"`
	Err         error  `json:"-"`
}

func (r Result) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Result, error)
}

// Configured is implemented by summarizers whose output depends on settings
// outside the request, such as the model. Cached keys entries by them.
type Configured interface {
	Settings() string
}
