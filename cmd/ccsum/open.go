package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/open"
)

func openCmd() *cobra.Command {
	var turn int

	cmd := &cobra.Command{
		Use:   "open <session>",
		Short: "Open the session's JSONL file in $EDITOR at a turn's prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return open.OpenSession(db, args[0], turn)
		},
	}

	cmd.Flags().IntVar(&turn, "turn", 0, "Turn to jump to (0 = top of file)")

	return cmd
}
