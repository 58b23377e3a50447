package category

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

// taskPromptKeyLen is how many leading characters of a Task prompt are used
// to recognise the same prompt echoed back as a user message.
const taskPromptKeyLen = 150

const summaryMinLen = 1000

var planMarkers = []string{
	"## plan",
	"# plan",
	"implementation plan",
	"## comprehensive",
	"## step",
	"### step",
}

// Context carries session-wide facts collected before any message is
// categorized.
type Context struct {
	TaskPrompts map[string]bool
}

// NewContext collects the Task tool prompts issued by assistant messages.
func NewContext(msgs []parse.Message) *Context {
	ctx := &Context{TaskPrompts: map[string]bool{}}
	for i := range msgs {
		if msgs[i].Role != parse.RoleAssistant {
			continue
		}
		for _, b := range msgs[i].ToolUses() {
			if !strings.EqualFold(b.Name, "task") {
				continue
			}
			if p := b.InputString("prompt"); p != "" {
				ctx.TaskPrompts[promptKey(strings.TrimSpace(p))] = true
			}
		}
	}
	return ctx
}

// Rule assigns Category to messages accepted by Match.
type Rule struct {
	Name     string
	Category parse.Category
	Match    func(m *parse.Message, ctx *Context) bool
}

// Rules is evaluated top-down and the first match wins. Messages matching
// none of them fall back to user or assistant by role.
var Rules = []Rule{
	{Name: "tool_response", Category: parse.CategoryToolResponse, Match: isToolResponse},
	{Name: "session_summary", Category: parse.CategorySessionSummary, Match: isSessionSummary},
	{Name: "system_noise", Category: parse.CategorySystemNoise, Match: isSystemNoise},
	{Name: "subagent", Category: parse.CategorySubagent, Match: isSubagent},
	{Name: "plan", Category: parse.CategoryPlan, Match: isPlan},
}

// Categorize returns copies of msgs with Category set.
func Categorize(msgs []parse.Message) []parse.Message {
	return CategorizeWith(msgs, Rules)
}

// CategorizeWith is Categorize with an explicit rule list.
func CategorizeWith(msgs []parse.Message, rules []Rule) []parse.Message {
	ctx := NewContext(msgs)
	out := make([]parse.Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i]
		out[i].Category = classify(&out[i], ctx, rules)
	}
	return out
}

// Of categorizes a single message against ctx.
func Of(m *parse.Message, ctx *Context) parse.Category {
	if ctx == nil {
		ctx = &Context{TaskPrompts: map[string]bool{}}
	}
	return classify(m, ctx, Rules)
}

func classify(m *parse.Message, ctx *Context, rules []Rule) parse.Category {
	var (
		winner  *Rule
		matched []string
	)
	for i := range rules {
		if !rules[i].Match(m, ctx) {
			continue
		}
		if winner == nil {
			winner = &rules[i]
		}
		matched = append(matched, rules[i].Name)
	}

	if len(matched) > 1 {
		log.Debug().
			Str("id", m.ID).
			Strs("rules", matched).
			Str("chosen", winner.Name).
			Msg("ambiguous category")
	}
	if winner != nil {
		return winner.Category
	}
	return fallback(m)
}

func fallback(m *parse.Message) parse.Category {
	if m.Role == parse.RoleUser {
		return parse.CategoryUser
	}
	return parse.CategoryAssistant
}

func isToolResponse(m *parse.Message, _ *Context) bool {
	if m.Role == parse.RoleTool {
		return true
	}
	if m.OnlyToolResults() {
		return true
	}
	return m.Role == parse.RoleUser && m.HasToolResult()
}

func isSessionSummary(m *parse.Message, _ *Context) bool {
	if m.RecordType == "summary" || m.IsCompactSummary {
		return true
	}
	if m.Role != parse.RoleUser {
		return false
	}
	text := m.Text()
	return len(text) > summaryMinLen &&
		strings.HasPrefix(strings.ToLower(text), "this session is being continued")
}

func isSystemNoise(m *parse.Message, _ *Context) bool {
	if m.IsMeta || m.Role == parse.RoleSystem {
		return true
	}
	if m.Role != parse.RoleUser {
		return false
	}
	text := m.Text()
	switch {
	case strings.HasPrefix(text, "<command-"),
		strings.HasPrefix(text, "<local-command-"),
		strings.Contains(text, "command-message"):
		return true
	case text == "Warmup":
		return true
	}
	return false
}

func isSubagent(m *parse.Message, ctx *Context) bool {
	if m.AgentName != "" || m.IsSidechain {
		return true
	}
	if m.Role != parse.RoleUser || len(ctx.TaskPrompts) == 0 {
		return false
	}
	text := m.Text()
	return text != "" && ctx.TaskPrompts[promptKey(text)]
}

func isPlan(m *parse.Message, _ *Context) bool {
	if m.Role == parse.RoleUser {
		return false
	}
	if _, ok := m.ObjectField("plan"); ok {
		return true
	}
	for _, b := range m.Content {
		switch b.Type {
		case parse.BlockText:
			lower := strings.ToLower(b.Text)
			for _, marker := range planMarkers {
				if strings.Contains(lower, marker) {
					return true
				}
			}
		case parse.BlockToolUse:
			if b.Name == "ExitPlanMode" {
				return true
			}
		}
	}
	return false
}

func promptKey(s string) string {
	r := []rune(s)
	if len(r) > taskPromptKeyLen {
		r = r[:taskPromptKeyLen]
	}
	return string(r)
}
