package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/render"
	"github.com/Zuo-Peng/cc-summarize/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	sessionID string
	turn      int
	content   string
	hitLine   int
	err       error
}

// loadPreviewCmd renders the prompts of r's session in the background.
func loadPreviewCmd(db *index.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderPrompts(db, r.SessionID, render.Options{
			HitTurn: r.Turn,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return previewRenderedMsg{
			sessionID: r.SessionID,
			turn:      r.Turn,
			content:   content,
			hitLine:   hitLine,
			err:       err,
		}
	}
}

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = styleListFrame
	return vp
}
