package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/search"
)

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeList
)

// Action is what the user asked to do with the picked session.
type Action int

const (
	ActionNone Action = iota
	ActionPrompts
	ActionResume
	ActionSummarize
)

// Selection is the session picked when the TUI exits.
type Selection struct {
	Result search.Result
	Action Action
}

type searchResultMsg struct {
	query   string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

type model struct {
	db          *index.DB
	searchOpts  search.Options
	mode        tuiMode
	query       string
	results     []search.Result
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string // "sessionID:turn" to avoid duplicate renders
	layout      layout
	ready       bool
	quitting    bool
	selection   *Selection
}

func newModel(db *index.DB, mode tuiMode, query string, opts search.Options) model {
	ti := textinput.New()
	ti.Placeholder = "Search..."
	if mode == modeList {
		ti.Placeholder = "Filter..."
	}
	ti.Focus()
	ti.SetValue(query)
	ti.Prompt = "> "
	ti.PromptStyle = styleQuery
	ti.TextStyle = styleQuery
	ti.CharLimit = 256

	return model{
		db:          db,
		searchOpts:  opts,
		mode:        mode,
		query:       query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
		layout:      newLayout(0, 0),
	}
}

// Run starts the TUI over search results for query and blocks until it
// exits. It returns nil when the user quit without picking a session.
func Run(db *index.DB, query string, opts search.Options) (*Selection, error) {
	return run(newModel(db, modeSearch, query, opts))
}

// RunList starts the TUI listing catalog sessions by update time.
func RunList(db *index.DB, opts search.Options) (*Selection, error) {
	return run(newModel(db, modeList, "", opts))
}

func run(m model) (*Selection, error) {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.Wrap(err, "tui")
	}
	return finalModel.(model).selection, nil
}

// ResumeCommand returns the shell command that resumes session in Claude Code.
func ResumeCommand(session *index.SessionRow) string {
	cmd := "claude --resume " + session.SessionID
	if session.Cwd != "" {
		cmd = fmt.Sprintf("cd %s && %s", shellQuote(session.Cwd), cmd)
	}
	return cmd
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " '\"$`\\;&|()<>*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CopyResumeCommand copies the resume command of sessionID to the
// clipboard, printing it instead when no clipboard is available.
func CopyResumeCommand(db *index.DB, sessionID string) error {
	session, err := db.GetSession(sessionID)
	if err != nil {
		return errors.Wrap(err, "get session")
	}
	if session == nil {
		return errors.Errorf("session not found: %s", sessionID)
	}

	cmd := ResumeCommand(session)
	if err := clipboard.WriteAll(cmd); err != nil {
		fmt.Println(cmd)
		return nil
	}
	fmt.Printf("Copied to clipboard: %s\n", cmd)
	return nil
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeList {
		cmds = append(cmds, m.fetch(""))
	} else if m.query != "" {
		cmds = append(cmds, m.fetch(m.query))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = newLayout(msg.Width, msg.Height)
		m.ready = true
		m.preview = newViewport(m.layout.previewW, m.layout.panelH)
		m.previewKey = ""
		return m, m.loadCurrentPreview()
	case tea.KeyMsg:
		return m.updateKey(msg)
	case tea.MouseMsg:
		return m.updateMouse(msg)
	case debounceTickMsg:
		if msg.query != m.query {
			return m, nil
		}
		return m, m.fetch(msg.query)
	case searchResultMsg:
		return m.applyResults(msg)
	case previewRenderedMsg:
		return m.applyPreview(msg), nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}
	l := m.layout

	listPanel := styleListFrame.
		Width(l.listW).
		Height(l.panelH).
		Render(m.renderList(l.listW, l.panelH))

	m.preview.Width = l.previewW
	m.preview.Height = l.panelH
	previewPanel := stylePreviewFrame.
		Width(l.previewW).
		Height(l.panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

func (m model) statusBar() string {
	parts := []string{
		fmt.Sprintf("%d results", len(m.results)),
		"click/up/dn navigate",
		"scroll/C-u/C-d preview",
		"Enter prompts",
		"C-y copy resume cmd",
		"C-s summarize",
		"Esc quit",
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}
