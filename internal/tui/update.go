package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/cc-summarize/internal/search"
)

const debounceDelay = 200 * time.Millisecond

// actionFor maps the keys that end the picker to their action.
func actionFor(msg tea.KeyMsg) (Action, bool) {
	switch {
	case key.Matches(msg, keys.Enter):
		return ActionPrompts, true
	case key.Matches(msg, keys.Copy):
		return ActionResume, true
	case key.Matches(msg, keys.Summarize):
		return ActionSummarize, true
	}
	return ActionNone, false
}

func (m model) current() (search.Result, bool) {
	if m.cursor < 0 || m.cursor >= len(m.results) {
		return search.Result{}, false
	}
	return m.results[m.cursor], true
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if action, ok := actionFor(msg); ok {
		if r, ok := m.current(); ok {
			m.selection = &Selection{Result: r, Action: action}
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	half := m.layout.panelH / 2
	switch {
	case key.Matches(msg, keys.Up):
		return m.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		return m.moveCursor(1)
	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(half)
		return m, nil
	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(half)
		return m, nil
	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.layout.panelH)
		return m, nil
	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.layout.panelH)
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if q := m.filterInput.Value(); q != m.query {
		m.query = q
		return m, tea.Batch(cmd, debounce(q))
	}
	return m, cmd
}

// moveCursor moves the selection by delta and loads its preview.
func (m model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	next := m.cursor + delta
	if next < 0 || next >= len(m.results) {
		return m, nil
	}
	m.cursor = next
	m.adjustListScroll(m.layout.panelH)
	return m, m.loadCurrentPreview()
}

func (m model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.ready || len(m.results) == 0 {
		return m, nil
	}
	region, item := m.layout.hitTest(msg.X, msg.Y, m.listOffset)
	wheel := msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown

	switch region {
	case regionList:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.scrollList(-1)
		case msg.Button == tea.MouseButtonWheelDown:
			m.scrollList(1)
		case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if item >= 0 && item < len(m.results) && item != m.cursor {
				return m.moveCursor(item - m.cursor)
			}
		}
	case regionPreview:
		if wheel {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// scrollList shifts the list window without moving the cursor.
func (m *model) scrollList(delta int) {
	maxOffset := len(m.results) - m.layout.panelH/linesPerItem
	if maxOffset < 0 {
		maxOffset = 0
	}
	m.listOffset = min(max(m.listOffset+delta, 0), maxOffset)
}

func (m model) applyResults(msg searchResultMsg) (tea.Model, tea.Cmd) {
	if msg.query != m.query {
		return m, nil
	}
	m.cursor, m.listOffset = 0, 0
	m.previewKey = ""
	if msg.err != nil {
		m.results = nil
		m.preview.SetContent("Error: " + msg.err.Error())
		return m, nil
	}
	m.results = msg.results
	if len(m.results) == 0 {
		m.preview.SetContent("")
		return m, nil
	}
	return m, m.loadCurrentPreview()
}

// applyPreview shows a rendered preview unless the cursor moved on since
// it was requested.
func (m model) applyPreview(msg previewRenderedMsg) model {
	k := previewCacheKey(msg.sessionID, msg.turn)
	if k == m.previewKey {
		return m
	}
	if r, ok := m.current(); ok && k != previewCacheKey(r.SessionID, r.Turn) {
		return m
	}
	switch {
	case msg.err != nil:
		m.preview.SetContent("Preview error: " + msg.err.Error())
	case msg.hitLine > 0:
		m.preview.SetContent(msg.content)
		m.preview.SetYOffset(msg.hitLine)
	default:
		m.preview.SetContent(msg.content)
		m.preview.GotoTop()
	}
	m.previewKey = k
	return m
}

// fetch lists sessions (list mode, empty query) or searches prompts.
func (m model) fetch(query string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = query
	listing := m.mode == modeList && query == ""
	return func() tea.Msg {
		var (
			results []search.Result
			err     error
		)
		switch {
		case listing:
			results, err = search.List(db, opts)
		case query != "":
			results, err = search.Search(db, opts)
		}
		return searchResultMsg{query: query, results: results, err: err}
	}
}

func debounce(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	r, ok := m.current()
	if !ok || previewCacheKey(r.SessionID, r.Turn) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.db, r, m.query, m.layout.previewW)
}

func previewCacheKey(sessionID string, turn int) string {
	return fmt.Sprintf("%s:%d", sessionID, turn)
}
