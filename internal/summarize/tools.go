package summarize

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

const maxCommandLen = 50

var fileOpOrder = map[string]int{"Read": 0, "Edit": 1, "MultiEdit": 2, "Write": 3}

// CompactToolCalls describes the tool calls of t in one line each. Outside
// detailed mode, file operations are grouped per file ("Read + Edit: main.go")
// and repeated calls are collapsed.
func CompactToolCalls(t *turn.Turn, mode Mode) []string {
	calls := t.ToolCalls()
	if mode == ModeDetailed {
		out := make([]string, 0, len(calls))
		for _, c := range calls {
			desc := c.Name
			if args := describeArgs(c); args != "" {
				desc += ": " + args
			}
			out = append(out, desc)
		}
		return out
	}

	var (
		files  []string
		fileOp = map[string][]string{}
		other  []string
		seen   = map[string]bool{}
	)
	addOther := func(s string) {
		if !seen[s] {
			seen[s] = true
			other = append(other, s)
		}
	}

	for _, c := range calls {
		if _, ok := fileOpOrder[c.Name]; ok {
			path := c.InputString("file_path")
			if path == "" || !mode.AllowsTool(c.Name) {
				continue
			}
			if _, ok := fileOp[path]; !ok {
				files = append(files, path)
			}
			if !contains(fileOp[path], c.Name) {
				fileOp[path] = append(fileOp[path], c.Name)
			}
			continue
		}
		if !mode.AllowsTool(c.Name) {
			continue
		}
		switch c.Name {
		case "Bash":
			addOther("Bash: " + bashLabel(c))
		case "Grep", "Glob":
			addOther(c.Name + ": " + c.InputString("pattern"))
		case "Task":
			addOther("Task: " + c.InputString("description"))
		default:
			addOther(c.Name)
		}
	}

	out := make([]string, 0, len(files)+len(other))
	for _, path := range files {
		ops := fileOp[path]
		sort.SliceStable(ops, func(i, j int) bool { return fileOpOrder[ops[i]] < fileOpOrder[ops[j]] })
		out = append(out, strings.Join(ops, " + ")+": "+filepath.Base(path))
	}
	return append(out, other...)
}

func bashLabel(c parse.Block) string {
	if d := c.InputString("description"); d != "" {
		return d
	}
	return truncateRunes(c.InputString("command"), maxCommandLen)
}

func describeArgs(c parse.Block) string {
	base := func() string {
		if p := c.InputString("file_path"); p != "" {
			return filepath.Base(p)
		}
		return ""
	}
	in := c.InputMap()

	switch c.Name {
	case "Edit":
		return fmt.Sprintf("%s (%s)", base(), describeEdit(c.InputString("old_string"), c.InputString("new_string")))
	case "MultiEdit":
		edits, _ := in["edits"].([]any)
		return fmt.Sprintf("%s (%d edits)", base(), len(edits))
	case "Write":
		lines := 0
		if content := c.InputString("content"); content != "" {
			lines = strings.Count(content, "\n") + 1
		}
		return fmt.Sprintf("%s (%d lines)", base(), lines)
	case "Read":
		return base()
	case "Bash":
		if d := c.InputString("description"); d != "" {
			return d
		}
		return truncateRunes(c.InputString("command"), 80)
	case "Grep", "Glob":
		return c.InputString("pattern")
	case "Task":
		return c.InputString("description")
	}
	return ""
}

// describeEdit names the shape of an Edit call in a few words.
func describeEdit(oldS, newS string) string {
	switch {
	case oldS == "" && newS != "":
		lines := strings.Split(strings.TrimSpace(newS), "\n")
		if len(lines) == 1 {
			return "added: " + truncateRunes(lines[0], 40)
		}
		return fmt.Sprintf("added %d lines", len(lines))
	case oldS != "" && newS == "":
		lines := strings.Split(strings.TrimSpace(oldS), "\n")
		if len(lines) == 1 {
			return "deleted line"
		}
		return fmt.Sprintf("deleted %d lines", len(lines))
	case oldS == "" && newS == "":
		return "modified"
	}

	oldLines := strings.Split(oldS, "\n")
	newLines := strings.Split(newS, "\n")
	if len(oldLines) == 1 && len(newLines) == 1 {
		return "changed line"
	}
	switch diff := len(newLines) - len(oldLines); {
	case diff > 0:
		return fmt.Sprintf("expanded (%+d lines)", diff)
	case diff < 0:
		return fmt.Sprintf("reduced (%+d lines)", diff)
	}
	return fmt.Sprintf("modified %d lines", len(oldLines))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
