package category

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

func parseOne(t *testing.T, line string) parse.Message {
	t.Helper()
	res, err := parse.ParseLines(strings.NewReader(line), "s", "t.jsonl")
	require.NoError(t, err)
	require.Len(t, res.Messages, 1, "line did not parse: %v", res.Diagnostics)
	return res.Messages[0]
}

func textMsg(id string, role parse.Role, text string) parse.Message {
	raw, _ := json.Marshal(text)
	return parse.Message{
		ID:      id,
		Role:    role,
		Content: []parse.Block{{Type: parse.BlockText, Text: text, Raw: raw}},
	}
}

func TestCategorize_PlanObjectContent(t *testing.T) {
	m := parseOne(t, `{"id":"3","role":"assistant","content":{"plan":["write parser","add tests"]}}`)
	out := Categorize([]parse.Message{m})
	require.Equal(t, parse.CategoryPlan, out[0].Category)
}

func TestCategorize_DoesNotMutateInput(t *testing.T) {
	in := []parse.Message{textMsg("1", parse.RoleUser, "fix bug")}
	out := Categorize(in)
	require.Empty(t, in[0].Category)
	require.Equal(t, parse.CategoryUser, out[0].Category)
}

func TestCategorize_EveryMessageGetsACategory(t *testing.T) {
	msgs := []parse.Message{
		textMsg("1", parse.RoleUser, "hello"),
		textMsg("2", parse.RoleAssistant, "hi"),
		textMsg("3", parse.RoleTool, "output"),
		textMsg("4", parse.RoleSystem, "boot"),
		{ID: "5", Role: parse.RoleAssistant},
		{ID: "6", Role: parse.RoleUser},
	}
	for _, m := range Categorize(msgs) {
		_, ok := parse.ParseCategory(string(m.Category))
		require.True(t, ok, "message %s has category %q", m.ID, m.Category)
	}
}

func TestCategorize_Rules(t *testing.T) {
	longSummary := "This session is being continued from a previous conversation. " + strings.Repeat("x", 1000)
	taskPrompt := "Search the repository for every caller of ParseFile and report the call sites."

	cases := []struct {
		name string
		line string
		want parse.Category
	}{
		{"plain user", `{"id":"1","role":"user","content":"fix bug"}`, parse.CategoryUser},
		{"plain assistant", `{"id":"1","role":"assistant","content":"done"}`, parse.CategoryAssistant},
		{"tool role", `{"id":"1","role":"tool","content":"ok"}`, parse.CategoryToolResponse},
		{"user tool result", `{"id":"1","role":"user","content":[{"type":"tool_result","tool_use_id":"t","content":"ok"}]}`, parse.CategoryToolResponse},
		{"compact summary flag", `{"uuid":"1","type":"user","isCompactSummary":true,"message":{"role":"user","content":"short"}}`, parse.CategorySessionSummary},
		{"summary record", `{"type":"summary","summary":"Did things","leafUuid":"x"}`, parse.CategorySessionSummary},
		{"continuation text", mustLine(t, map[string]any{"id": "1", "role": "user", "content": longSummary}), parse.CategorySessionSummary},
		{"short continuation is user", `{"id":"1","role":"user","content":"This session is being continued"}`, parse.CategoryUser},
		{"command tag", `{"id":"1","role":"user","content":"<command-name>/clear</command-name>"}`, parse.CategorySystemNoise},
		{"local command", `{"id":"1","role":"user","content":"<local-command-stdout></local-command-stdout>"}`, parse.CategorySystemNoise},
		{"command message", `{"id":"1","role":"user","content":"<command-message>init is analyzing</command-message>"}`, parse.CategorySystemNoise},
		{"meta", `{"uuid":"1","type":"user","isMeta":true,"message":{"role":"user","content":"caveat"}}`, parse.CategorySystemNoise},
		{"system role", `{"id":"1","role":"system","content":"init"}`, parse.CategorySystemNoise},
		{"warmup", `{"id":"1","role":"user","content":"Warmup"}`, parse.CategorySystemNoise},
		{"agent name", `{"id":"1","role":"assistant","agent_name":"explorer","content":"looking"}`, parse.CategorySubagent},
		{"sidechain", `{"uuid":"1","type":"assistant","isSidechain":true,"message":{"role":"assistant","content":"looking"}}`, parse.CategorySubagent},
		{"plan heading", `{"id":"1","role":"assistant","content":[{"type":"text","text":"## Plan\n1. do it"}]}`, parse.CategoryPlan},
		{"implementation plan", `{"id":"1","role":"assistant","content":"Here is the Implementation Plan"}`, parse.CategoryPlan},
		{"exit plan mode", `{"id":"1","role":"assistant","content":[{"type":"tool_use","id":"t","name":"ExitPlanMode","input":{}}]}`, parse.CategoryPlan},
		{"user plan heading stays user", `{"id":"1","role":"user","content":"## plan for today"}`, parse.CategoryUser},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := parseOne(t, tc.line)
			out := Categorize([]parse.Message{m})
			require.Equal(t, tc.want, out[0].Category)
		})
	}

	t.Run("task prompt echo", func(t *testing.T) {
		assistant := parseOne(t, mustLine(t, map[string]any{
			"id": "a", "role": "assistant",
			"content": []any{map[string]any{
				"type": "tool_use", "id": "t1", "name": "Task",
				"input": map[string]any{"prompt": taskPrompt, "description": "find callers"},
			}},
		}))
		user := parseOne(t, mustLine(t, map[string]any{"id": "u", "role": "user", "content": taskPrompt}))
		other := parseOne(t, `{"id":"o","role":"user","content":"unrelated"}`)

		out := Categorize([]parse.Message{assistant, user, other})
		require.Equal(t, parse.CategoryAssistant, out[0].Category)
		require.Equal(t, parse.CategorySubagent, out[1].Category)
		require.Equal(t, parse.CategoryUser, out[2].Category)
	})
}

// Messages that satisfy several rules take the category of the earliest
// rule in the list.
func TestCategorize_RuleOrder(t *testing.T) {
	names := make([]string, len(Rules))
	for i, r := range Rules {
		names[i] = r.Name
	}
	require.Equal(t, []string{"tool_response", "session_summary", "system_noise", "subagent", "plan"}, names)

	cases := []struct {
		name string
		line string
		want parse.Category
	}{
		// tool_response beats system_noise
		{"tool result in meta record", `{"uuid":"1","type":"user","isMeta":true,"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t","content":"x"}]}}`, parse.CategoryToolResponse},
		// session_summary beats system_noise
		{"meta compact summary", `{"uuid":"1","type":"user","isMeta":true,"isCompactSummary":true,"message":{"role":"user","content":"summary"}}`, parse.CategorySessionSummary},
		// system_noise beats subagent
		{"sidechain command", `{"uuid":"1","type":"user","isSidechain":true,"message":{"role":"user","content":"<command-name>x</command-name>"}}`, parse.CategorySystemNoise},
		// subagent beats plan
		{"sidechain plan", `{"uuid":"1","type":"assistant","isSidechain":true,"message":{"role":"assistant","content":"## Plan"}}`, parse.CategorySubagent},
		// tool_response beats subagent
		{"sidechain tool result", `{"uuid":"1","type":"user","isSidechain":true,"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t","content":"x"}]}}`, parse.CategoryToolResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := parseOne(t, tc.line)
			require.Equal(t, tc.want, Categorize([]parse.Message{m})[0].Category)
		})
	}
}

func TestCategorizeWith_CustomOrder(t *testing.T) {
	m := parseOne(t, `{"uuid":"1","type":"assistant","isSidechain":true,"message":{"role":"assistant","content":"## Plan"}}`)

	reordered := []Rule{Rules[4], Rules[3]}
	require.Equal(t, parse.CategoryPlan, CategorizeWith([]parse.Message{m}, reordered)[0].Category)
	require.Equal(t, parse.CategoryAssistant, CategorizeWith([]parse.Message{m}, nil)[0].Category)
}

func TestOf_NilContext(t *testing.T) {
	m := textMsg("1", parse.RoleUser, "hello")
	require.Equal(t, parse.CategoryUser, Of(&m, nil))
}

func mustLine(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
