package summarize

import (
	"github.com/pkg/errors"
)

// Mode selects how much of a turn is summarized.
type Mode string

const (
	ModeMinimal  Mode = "minimal"
	ModeNormal   Mode = "normal"
	ModeDetailed Mode = "detailed"
)

var Modes = []Mode{ModeMinimal, ModeNormal, ModeDetailed}

var (
	minimalTools = []string{"Edit", "MultiEdit", "Write", "Bash"}
	normalTools  = append(append([]string{}, minimalTools...), "Read", "Grep", "Glob", "LS", "Task")
)

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.Errorf("unknown detail mode %q (want minimal, normal or detailed)", s)
}

// AllowsTool reports whether tool calls named name are part of the mode.
// Detailed mode allows every tool.
func (m Mode) AllowsTool(name string) bool {
	var allowed []string
	switch m {
	case ModeMinimal:
		allowed = minimalTools
	case ModeNormal:
		allowed = normalTools
	default:
		return true
	}
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}

func (m Mode) systemPrompt() string {
	switch m {
	case ModeMinimal:
		return `You summarize what a coding assistant did between two user messages.
Report only file changes (Edit, MultiEdit, Write) and shell commands (Bash), one line each.
Name the files and the gist of each change. Skip every other tool call and any chatter.`
	case ModeNormal:
		return `You summarize what a coding assistant did between two user messages.
Cover file reads and changes, shell commands and searches (Read, Edit, MultiEdit, Write, Bash, Grep, Glob, LS, Task).
Describe the flow of work and why each step was taken. Do not reproduce tool output.
Keep it short.`
	default:
		return `You summarize what a coding assistant did between two user messages.
Cover every tool call and the reasoning the assistant gave for it, the overall approach,
and the decisions that were made along the way. Be thorough and keep it organized.`
	}
}
