package scan

import (
	"strings"
	"time"

	"github.com/Zuo-Peng/cc-summarize/internal/category"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

const maxPromptPreview = 200

// Metadata is a cheap summary of one session file.
type Metadata struct {
	SessionID    string
	Start        time.Time
	End          time.Time
	MessageCount int
	FirstPrompt  string
	Cwd          string
	GitBranch    string
	Skipped      int
}

// ReadMetadata parses f and reports its first timestamp, message count and
// first user prompt.
func ReadMetadata(f SessionFile) (Metadata, error) {
	res, err := parse.ParseFile(f.Path, f.SessionID)
	if err != nil {
		return Metadata{SessionID: f.SessionID}, err
	}
	return MetadataOf(res), nil
}

// MetadataOf summarizes an already parsed file.
func MetadataOf(res *parse.Result) Metadata {
	md := Metadata{
		SessionID:    res.SessionID,
		MessageCount: len(res.Messages),
		Skipped:      res.Skipped(),
	}
	ctx := category.NewContext(res.Messages)
	for i := range res.Messages {
		m := &res.Messages[i]
		if m.HasTimestamp() {
			if md.Start.IsZero() || m.Timestamp.Before(md.Start) {
				md.Start = m.Timestamp
			}
			if m.Timestamp.After(md.End) {
				md.End = m.Timestamp
			}
		}
		if md.Cwd == "" {
			md.Cwd = m.Cwd
		}
		if md.GitBranch == "" {
			md.GitBranch = m.GitBranch
		}
		if md.FirstPrompt == "" && IsPrompt(m, ctx) {
			md.FirstPrompt = Preview(m.Text(), maxPromptPreview)
		}
	}
	return md
}

// IsPrompt reports whether m looks like something a person typed: a user
// message with text that categorizes as user and is not a tag echo.
func IsPrompt(m *parse.Message, ctx *category.Context) bool {
	if m.Role != parse.RoleUser || category.Of(m, ctx) != parse.CategoryUser {
		return false
	}
	text := m.Text()
	return text != "" && !strings.HasPrefix(text, "<")
}

// Preview collapses whitespace and cuts s to n runes.
func Preview(s string, n int) string {
	joined := strings.Join(strings.Fields(s), " ")
	r := []rune(joined)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return joined
}
