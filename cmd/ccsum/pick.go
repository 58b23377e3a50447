package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/tui"
)

func pickCmd() *cobra.Command {
	var project, sinceStr string
	var limit int

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Browse all sessions sorted by update time",
		Long: `Opens a TUI panel showing every cataloged session, newest first, with a
preview of its prompts. Type to search prompts. Enter prints the session's
prompts, C-y copies the resume command, C-s summarizes the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			opts, err := searchOptions(project, sinceStr, limit)
			if err != nil {
				return err
			}

			db, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			sel, err := tui.RunList(db, opts)
			if err != nil {
				return err
			}
			return handleSelection(cmd.Context(), cfg, db, sel)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Filter by project directory name")
	cmd.Flags().StringVar(&sinceStr, "since", "", "Filter sessions updated since (1d, 2h, 1w or a date)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
