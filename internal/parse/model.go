package parse

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Category is the semantic role assigned to a message by the categorizer.
type Category string

const (
	CategoryUser           Category = "user"
	CategoryAssistant      Category = "assistant"
	CategorySubagent       Category = "subagent"
	CategoryPlan           Category = "plan"
	CategorySessionSummary Category = "session_summary"
	CategoryToolResponse   Category = "tool_response"
	CategorySystemNoise    Category = "system_noise"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryUser,
	CategorySubagent,
	CategoryPlan,
	CategoryAssistant,
	CategorySessionSummary,
	CategoryToolResponse,
	CategorySystemNoise,
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockObject     = "object" // non-array structured content, kept as-is
)

// Block is one element of a message's content. Raw always holds the
// original JSON so fields this package does not model stay reachable.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Output    json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	Fields map[string]json.RawMessage `json:"-"` // set for object blocks
	Raw    json.RawMessage            `json:"-"`
}

// InputMap decodes a tool_use input into a generic map. Malformed input
// yields an empty map.
func (b Block) InputMap() map[string]any {
	out := map[string]any{}
	if len(b.Input) == 0 {
		return out
	}
	_ = json.Unmarshal(b.Input, &out)
	return out
}

// InputString returns a string-valued field of a tool_use input.
func (b Block) InputString(key string) string {
	if s, ok := b.InputMap()[key].(string); ok {
		return s
	}
	return ""
}

type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// Message is one logged event of a session.
type Message struct {
	ID         string
	ParentID   string
	Role       Role
	Category   Category // empty until categorized
	Content    []Block
	Timestamp  time.Time // zero when absent
	SessionID  string
	RecordType string // raw "type" discriminator, e.g. "summary"

	AgentName        string
	IsSidechain      bool
	IsMeta           bool
	IsCompactSummary bool
	Cwd              string
	GitBranch        string
	Usage            *Usage

	// Extra holds top-level fields the parser does not interpret.
	Extra map[string]json.RawMessage

	Source string // file the message was read from
	Line   int    // 1-based line number in Source
	Seq    int    // ordering tie-break, see SortMessages
}

func (m *Message) HasTimestamp() bool {
	return !m.Timestamp.IsZero()
}

// Text joins the narrative text blocks of the message.
func (m *Message) Text() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// Body is the displayable content: the narrative text, or for structured
// content a rendering of its object blocks.
func (m *Message) Body() string {
	if t := m.Text(); t != "" {
		return t
	}
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockObject {
			parts = append(parts, renderObject(b))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// renderObject lists an object block's fields in key order. String lists
// become bullet lines and other values stay as compact JSON.
func renderObject(b Block) string {
	if len(b.Fields) == 0 {
		return string(b.Raw)
	}
	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		v := b.Fields[k]
		var s string
		var list []string
		switch {
		case json.Unmarshal(v, &s) == nil:
			lines = append(lines, k+": "+s)
		case json.Unmarshal(v, &list) == nil:
			lines = append(lines, k+":")
			for _, item := range list {
				lines = append(lines, "- "+item)
			}
		default:
			lines = append(lines, k+": "+string(v))
		}
	}
	return strings.Join(lines, "\n")
}

// Thinking joins the thinking blocks of the message.
func (m *Message) Thinking() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockThinking && b.Thinking != "" {
			parts = append(parts, b.Thinking)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// PlainString reports whether the content was a bare JSON string.
func (m *Message) PlainString() (string, bool) {
	if len(m.Content) == 1 && m.Content[0].Type == BlockText && len(m.Content[0].Raw) > 0 && m.Content[0].Raw[0] == '"' {
		return m.Content[0].Text, true
	}
	return "", false
}

func (m *Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

func (m *Message) HasToolResult() bool {
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// OnlyToolResults reports whether the content is made of tool results with
// no narrative text around them.
func (m *Message) OnlyToolResults() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		switch b.Type {
		case BlockToolResult:
		case BlockText:
			if strings.TrimSpace(b.Text) != "" {
				return false
			}
		default:
			return false
		}
	}
	return m.HasToolResult()
}

// ObjectField returns a key of object-valued content.
func (m *Message) ObjectField(key string) (json.RawMessage, bool) {
	for _, b := range m.Content {
		if b.Type != BlockObject {
			continue
		}
		if v, ok := b.Fields[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Diagnostic records one skipped input line.
type Diagnostic struct {
	Line   int
	Reason string
}

type Result struct {
	SessionID   string
	Source      string
	Lines       int // lines read, blank ones included
	Messages    []Message
	Diagnostics []Diagnostic
}

func (r *Result) Skipped() int {
	return len(r.Diagnostics)
}
