package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/render"
)

func previewCmd() *cobra.Command {
	var turn, context int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <session>",
		Short: "Preview a session's prompts around a turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// read-only: fzf runs this on every cursor move
			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			session, err := db.ResolveSession(args[0])
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("session not found: %s", args[0])
			}

			out, _, err := render.RenderPrompts(db, session.SessionID, render.Options{
				HitTurn: turn,
				Context: context,
				Query:   query,
			})
			if err != nil {
				return err
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&turn, "turn", 0, "Turn to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Prompts before/after the turn to show")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")

	return cmd
}
