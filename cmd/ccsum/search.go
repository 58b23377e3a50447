package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/search"
	"github.com/Zuo-Peng/cc-summarize/internal/since"
	"github.com/Zuo-Peng/cc-summarize/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// searchOptions builds search options from the shared filter flags.
func searchOptions(project, sinceStr string, limit int) (search.Options, error) {
	opts := search.Options{Project: project, Limit: limit}
	if sinceStr != "" {
		t, err := since.Parse(sinceStr, time.Now())
		if err != nil {
			return opts, fmt.Errorf("--since: %w", err)
		}
		opts.Since = t.UTC().Format(index.TimeLayout)
	}
	return opts, nil
}

func searchCmd() *cobra.Command {
	var project, sinceStr string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across the prompts of every session",
		Long: `Search user prompts using FTS5. On a terminal an interactive picker opens;
otherwise the output is TSV for fzf integration:
  sessionId, turn, updatedAt, cwd, first prompt, snippet

Recommended shell function (add to .zshrc):
  ccf() {
    ccsum search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'ccsum preview {1} --turn {2} --context 5 --query {q}' \
      --preview-window=right:60%:wrap \
      --preview-debounce=150 \
      --bind 'enter:execute(ccsum open {1} --turn {2})'
  }`,
		Args: cobra.ExactArgs(1),
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

			if term.IsTerminal(int(os.Stdout.Fd())) {
				sel, err := tui.Run(db, args[0], opts)
				if err != nil {
					return err
				}
				return handleSelection(cmd.Context(), cfg, db, sel)
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				cwd := r.Cwd
				if cwd == "" {
					cwd = "-"
				}
				// first two fields stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s%s%s\t%s%s%s\t%s\t%s\n",
					r.SessionID,
					r.Turn,
					sColorDim, r.UpdatedAt, sColorReset,
					sColorBlue, tsvField(cwd), sColorReset,
					tsvField(r.FirstPrompt),
					colorizeSnippet(tsvField(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Filter by project directory name")
	cmd.Flags().StringVar(&sinceStr, "since", "", "Filter sessions updated since (1d, 2h, 1w or a date)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
