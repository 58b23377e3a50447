package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

const maxExtractedLen = 200

// Extractive builds summaries from what the log already records: the latest
// todo list, plan text and the tools used. It makes no external calls.
type Extractive struct{}

func (Extractive) Summarize(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res := Result{Fingerprint: req.Fingerprint, ToolCalls: CompactToolCalls(req.Turn, req.Mode)}

	var parts []string
	if todos := latestTodos(req.Turn.Responses); len(todos) > 0 {
		parts = append(parts, todos...)
	}
	if plan := planText(req.Turn.Responses); plan != "" {
		parts = append(parts, "Plan: "+plan)
	}
	if len(parts) == 0 {
		if names := toolNames(req.Turn.ToolCalls(), 5); len(names) > 0 {
			parts = append(parts, "Used tools: "+strings.Join(names, ", "))
		}
	}
	if len(parts) == 0 {
		if last := lastAssistantLine(req.Turn.Responses); last != "" {
			parts = append(parts, last)
		}
	}

	if len(parts) == 0 {
		res.Summary = noInfoSummary
	} else {
		res.Summary = strings.Join(parts, "\n")
	}
	return res, nil
}

// latestTodos renders the last TodoWrite call of the turn.
func latestTodos(msgs []parse.Message) []string {
	var todos []any
	for i := range msgs {
		for _, b := range msgs[i].ToolUses() {
			if b.Name != "TodoWrite" {
				continue
			}
			if list, ok := b.InputMap()["todos"].([]any); ok {
				todos = list
			}
		}
	}

	var out []string
	for _, item := range todos {
		todo, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := todo["content"].(string)
		status, _ := todo["status"].(string)
		if content == "" {
			continue
		}
		mark := " "
		switch status {
		case "completed":
			mark = "x"
		case "in_progress":
			mark = "~"
		}
		out = append(out, fmt.Sprintf("[%s] %s", mark, content))
	}
	return out
}

func planText(msgs []parse.Message) string {
	for i := range msgs {
		if msgs[i].Category != parse.CategoryPlan {
			continue
		}
		for _, b := range msgs[i].ToolUses() {
			if b.Name == "ExitPlanMode" {
				if p := b.InputString("plan"); p != "" {
					return firstLine(p)
				}
			}
		}
		if t := msgs[i].Text(); t != "" {
			return firstLine(t)
		}
	}
	return ""
}

func toolNames(calls []parse.Block, limit int) []string {
	var names []string
	seen := map[string]bool{}
	for _, c := range calls {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
		if len(names) == limit {
			break
		}
	}
	return names
}

func lastAssistantLine(msgs []parse.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != parse.RoleAssistant {
			continue
		}
		if t := msgs[i].Text(); t != "" {
			return firstLine(t)
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#*- "))
		if line != "" {
			return truncateRunes(line, maxExtractedLen)
		}
	}
	return ""
}
