package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactToolCalls(t *testing.T) {
	turns := turnsFrom(t,
		`{"id":"u1","role":"user","content":"refactor"}`,
		`{"id":"a1","role":"assistant","content":[`+strings.Join([]string{
			`{"type":"tool_use","id":"1","name":"Edit","input":{"file_path":"/p/main.go","old_string":"x","new_string":"y"}}`,
			`{"type":"tool_use","id":"2","name":"Read","input":{"file_path":"/p/main.go"}}`,
			`{"type":"tool_use","id":"3","name":"Edit","input":{"file_path":"/p/main.go","old_string":"y","new_string":"z"}}`,
			`{"type":"tool_use","id":"4","name":"Write","input":{"file_path":"/p/new.go","content":"a\nb\nc"}}`,
			`{"type":"tool_use","id":"5","name":"Bash","input":{"command":"go build ./...","description":"Build"}}`,
			`{"type":"tool_use","id":"6","name":"Bash","input":{"command":"go build ./...","description":"Build"}}`,
			`{"type":"tool_use","id":"7","name":"Grep","input":{"pattern":"TODO"}}`,
			`{"type":"tool_use","id":"8","name":"Task","input":{"description":"explore tests","prompt":"..."}}`,
			`{"type":"tool_use","id":"9","name":"WebFetch","input":{"url":"https://go.dev"}}`,
		}, ",")+`]}`,
	)
	require.Len(t, turns, 1)
	tr := &turns[0]

	require.Equal(t, []string{
		"Read + Edit: main.go",
		"Write: new.go",
		"Bash: Build",
		"Grep: TODO",
		"Task: explore tests",
	}, CompactToolCalls(tr, ModeNormal))

	require.Equal(t, []string{
		"Edit: main.go",
		"Write: new.go",
		"Bash: Build",
	}, CompactToolCalls(tr, ModeMinimal))

	detailed := CompactToolCalls(tr, ModeDetailed)
	require.Len(t, detailed, 9)
	require.Equal(t, "Edit: main.go (changed line)", detailed[0])
	require.Equal(t, "Read: main.go", detailed[1])
	require.Equal(t, "Write: new.go (3 lines)", detailed[3])
	require.Equal(t, "WebFetch", detailed[8])
}

func TestDescribeEdit(t *testing.T) {
	cases := []struct {
		old, new, want string
	}{
		{"", "func x() {}", "added: func x() {}"},
		{"", "a\nb\nc", "added 3 lines"},
		{"line", "", "deleted line"},
		{"a\nb", "", "deleted 2 lines"},
		{"a", "b", "changed line"},
		{"a\nb", "a\nb\nc\nd", "expanded (+2 lines)"},
		{"a\nb\nc", "a", "reduced (-2 lines)"},
		{"a\nb", "c\nd", "modified 2 lines"},
		{"", "", "modified"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, describeEdit(tc.old, tc.new), "old=%q new=%q", tc.old, tc.new)
	}
}
