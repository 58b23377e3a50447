package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/format"
	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/render"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
	"github.com/Zuo-Peng/cc-summarize/internal/since"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
	"github.com/Zuo-Peng/cc-summarize/internal/tui"
)

// openCatalog opens the session catalog and brings it up to date with the
// log directory.
func openCatalog(ctx context.Context, cfg *config.Config) (*index.DB, error) {
	db, err := index.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	stats, err := index.Refresh(ctx, db, cfg.ClaudeRoot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("index: %w", err)
	}
	log.Debug().Stringer("stats", stats).Msg("catalog refreshed")
	return db, nil
}

// handleSelection carries out what the user picked in the TUI.
func handleSelection(ctx context.Context, cfg *config.Config, db *index.DB, sel *tui.Selection) error {
	if sel == nil {
		return nil
	}
	id := sel.Result.SessionID

	switch sel.Action {
	case tui.ActionResume:
		return tui.CopyResumeCommand(db, id)

	case tui.ActionSummarize:
		session, err := db.GetSession(id)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		f := &summarizeFlags{
			sessions:    []string{session.SessionID},
			format:      format.Auto,
			separator:   format.DefaultSeparator,
			mode:        string(summarize.ModeNormal),
			concurrency: cfg.Concurrency,
			emitOrphans: cfg.EmitOrphanTurns,
		}
		if cfg.APIKey == "" {
			f.noAI = true
		}
		sf := scan.SessionFile{Path: session.FilePath, SessionID: session.SessionID, Project: session.Project}
		return runSummarizeFiles(ctx, cfg, f, []scan.SessionFile{sf}, since.Window{}, os.Stdout)

	default:
		out, _, err := render.RenderPrompts(db, id, render.Options{Context: -1})
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
}
