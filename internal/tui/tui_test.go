package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/search"
)

func TestResumeCommand(t *testing.T) {
	require.Equal(t, "claude --resume abc", ResumeCommand(&index.SessionRow{SessionID: "abc"}))
	require.Equal(t, "cd /work/app && claude --resume abc",
		ResumeCommand(&index.SessionRow{SessionID: "abc", Cwd: "/work/app"}))
	require.Equal(t, "cd '/work/my app' && claude --resume abc",
		ResumeCommand(&index.SessionRow{SessionID: "abc", Cwd: "/work/my app"}))
}

func TestFormatResultLine(t *testing.T) {
	r := search.Result{
		SessionID:   "0123456789abcdef",
		Turn:        3,
		UpdatedAt:   "2025-01-02T10:00:00Z",
		FirstPrompt: "fix the\nflaky test",
		Snippet:     "the >>>cache<<< layer",
	}
	lines := formatResultLine(r, 60, true)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "01234567")
	require.Contains(t, lines[0], "01-02")
	require.Contains(t, lines[0], "#3")
	require.Contains(t, lines[0], "fix the flaky test")
	require.Contains(t, lines[1], "the cache layer")
}

func TestAdjustListScroll(t *testing.T) {
	m := model{cursor: 12}
	m.adjustListScroll(10) // five items visible
	require.Equal(t, 8, m.listOffset)

	m.cursor = 2
	m.adjustListScroll(10)
	require.Equal(t, 2, m.listOffset)
}

func TestUpdate_Selection(t *testing.T) {
	m := newModel(nil, modeSearch, "cache", search.Options{})
	m.results = []search.Result{{SessionID: "a"}, {SessionID: "b"}}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	require.Equal(t, 1, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	require.NotNil(t, m.selection)
	require.Equal(t, "b", m.selection.Result.SessionID)
	require.Equal(t, ActionSummarize, m.selection.Action)
	require.True(t, m.quitting)
}

func TestUpdate_EnterAndCopy(t *testing.T) {
	m := newModel(nil, modeList, "", search.Options{})
	m.results = []search.Result{{SessionID: "a"}}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ActionPrompts, next.(model).selection.Action)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, ActionResume, next.(model).selection.Action)
}

func TestUpdate_StaleSearchResultsDropped(t *testing.T) {
	m := newModel(nil, modeSearch, "new", search.Options{})
	next, _ := m.Update(searchResultMsg{query: "old", results: []search.Result{{SessionID: "x"}}})
	require.Empty(t, next.(model).results)
}

func TestLayout(t *testing.T) {
	l := newLayout(100, 30)
	require.Equal(t, layout{listW: 36, previewW: 56, panelH: 24}, l)
	require.Equal(t, layout{listW: 20, previewW: 20, panelH: 5}, newLayout(30, 8))

	region, item := l.hitTest(5, contentTop+5, 3)
	require.Equal(t, regionList, region)
	require.Equal(t, 5, item) // offset 3 plus the third two-line row

	region, _ = l.hitTest(60, contentTop, 0)
	require.Equal(t, regionPreview, region)

	region, _ = l.hitTest(5, 0, 0)
	require.Equal(t, regionNone, region)
}

func TestScrollList(t *testing.T) {
	m := newModel(nil, modeList, "", search.Options{})
	m.layout = newLayout(100, 16) // ten rows, five results visible
	m.results = make([]search.Result, 8)

	m.scrollList(-1)
	require.Equal(t, 0, m.listOffset)
	for i := 0; i < 10; i++ {
		m.scrollList(1)
	}
	require.Equal(t, 3, m.listOffset)
}
