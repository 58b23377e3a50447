package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/cc-summarize/internal/search"
)

// linesPerItem is the number of terminal lines each result occupies.
const linesPerItem = 2

// renderList renders the left panel with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		return styleEmpty.Width(width).Height(height).Render("No results")
	}

	var lines []string
	for i, r := range m.results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatResultLine(r, width, i == m.cursor)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatResultLine formats a single result as two lines:
//
//	line 1: [>] id8  MM-DD  #turn  first prompt
//	line 2:    snippet (dimmed)
func formatResultLine(r search.Result, width int, selected bool) []string {
	id := r.SessionID
	if len(id) > 8 {
		id = id[:8]
	}

	date := r.UpdatedAt
	if len(date) >= 10 {
		date = date[5:10]
	}

	turn := ""
	if r.Turn > 0 {
		turn = fmt.Sprintf("#%d ", r.Turn)
	}

	title := strings.Join(strings.Fields(r.FirstPrompt), " ")
	titleMax := width - 2 - 9 - 6 - runewidth.StringWidth(turn)
	if titleMax < 0 {
		titleMax = 0
	}
	if runewidth.StringWidth(title) > titleMax {
		title = runewidth.Truncate(title, titleMax, "")
	}

	line1 := fmt.Sprintf("%s %s %s%s", styleSessionID.Render(id), styleDate.Render(date), styleTurn.Render(turn), title)
	if selected {
		line1 = styleCursor.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	snippet := r.Snippet
	if snippet == "" {
		snippet = r.Cwd
	}
	snippet = strings.NewReplacer("\n", " ", "\t", " ", ">>>", "", "<<<", "").Replace(snippet)
	snippetMax := width - 4
	if snippetMax < 0 {
		snippetMax = 0
	}
	if runewidth.StringWidth(snippet) > snippetMax {
		snippet = runewidth.Truncate(snippet, snippetMax, "")
	}
	line2 := "    " + styleSnippet.Render(snippet)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
