package summarize

import (
	"strings"

	"github.com/Zuo-Peng/cc-summarize/internal/fingerprint"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

// FingerprintAlgorithm versions the material hashed by Fingerprint. Bump it
// whenever BuildContent output changes shape.
const FingerprintAlgorithm = "ccsum-summary-v1"

const maxToolInputLen = 300

// BuildContent renders the responses of t as the text handed to a
// summarizer. The output depends only on the turn content and mode.
func BuildContent(t *turn.Turn, mode Mode) string {
	var parts []string
	for i := range t.Responses {
		m := &t.Responses[i]
		switch {
		case m.Category == parse.CategoryToolResponse:
			continue
		case m.Category == parse.CategorySubagent && m.Role == parse.RoleUser:
			if mode == ModeMinimal {
				continue
			}
			if text := m.Text(); text != "" {
				parts = append(parts, "[Subagent task: "+text+"]")
			}
			continue
		case m.Role != parse.RoleAssistant:
			continue
		}

		if s := renderAssistant(m, mode); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderAssistant(m *parse.Message, mode Mode) string {
	var lines []string
	for _, b := range m.Content {
		switch b.Type {
		case parse.BlockText:
			if t := strings.TrimSpace(b.Text); t != "" {
				lines = append(lines, t)
			}
		case parse.BlockThinking:
			if mode == ModeDetailed {
				if t := strings.TrimSpace(b.Thinking); t != "" {
					lines = append(lines, "[Thinking: "+t+"]")
				}
			}
		case parse.BlockToolUse:
			if !mode.AllowsTool(b.Name) {
				continue
			}
			lines = append(lines, "[Tool: "+b.Name+" with "+toolInput(b, mode)+"]")
		case parse.BlockObject:
			if raw, err := fingerprint.Canonical(b.Raw); err == nil {
				lines = append(lines, string(raw))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func toolInput(b parse.Block, mode Mode) string {
	if len(b.Input) == 0 {
		return "{}"
	}
	raw, err := fingerprint.Canonical(b.Input)
	if err != nil {
		return "{}"
	}
	s := string(raw)
	if mode != ModeDetailed {
		s = truncateRunes(s, maxToolInputLen)
	}
	return s
}

type fingerprintMaterial struct {
	Algorithm string `json:"algorithm"`
	Mode      Mode   `json:"mode"`
	Content   string `json:"content"`
	Settings  string `json:"settings,omitempty"`
}

// Fingerprint is the cache key of a summary of content in mode.
func Fingerprint(mode Mode, content string) string {
	return fingerprintWith(mode, content, "")
}

func fingerprintWith(mode Mode, content, settings string) string {
	fp, err := fingerprint.Sum(fingerprintMaterial{
		Algorithm: FingerprintAlgorithm,
		Mode:      mode,
		Content:   content,
		Settings:  settings,
	})
	if err != nil {
		// a struct of strings always marshals
		panic(err)
	}
	return fp
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
