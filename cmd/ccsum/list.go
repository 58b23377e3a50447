package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
	"github.com/Zuo-Peng/cc-summarize/internal/since"
)

func listCmd() *cobra.Command {
	var project, sinceStr string
	var all bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Long: `Lists the sessions of the project with their start time, size, message
count and first prompt. With --all the catalog of every project is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var from time.Time
			if sinceStr != "" {
				if from, err = since.Parse(sinceStr, time.Now()); err != nil {
					return fmt.Errorf("--since: %w", err)
				}
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()

			if all {
				db, err := openCatalog(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				opts := index.ListOptions{Limit: limit}
				if !from.IsZero() {
					opts.Since = from.UTC().Format(index.TimeLayout)
				}
				rows, err := db.ListSessions(opts)
				if err != nil {
					return err
				}
				for _, r := range rows {
					updated, _ := time.Parse(index.TimeLayout, r.UpdatedAt)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d msgs\t%s\t%s\n",
						shortID(r.SessionID), humanize.Time(updated), humanize.Bytes(uint64(r.Size)),
						r.MessageCount, r.Project, scan.Preview(r.FirstPrompt, 60))
				}
				return nil
			}

			files, err := scan.FindSessions(cfg.ClaudeRoot, project)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(os.Stderr, "No sessions in %s\n", scan.ProjectDir(cfg.ClaudeRoot, project))
				return nil
			}
			for i, f := range files {
				if limit > 0 && i >= limit {
					break
				}
				if !from.IsZero() && f.ModTime.Before(from) {
					continue
				}
				md, err := scan.ReadMetadata(f)
				if err != nil {
					fmt.Fprintf(tw, "%s\t%s\t%s\t-\t(unreadable: %v)\n",
						shortID(f.SessionID), humanize.Time(f.ModTime), humanize.Bytes(uint64(f.Size)), err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d msgs\t%s\n",
					shortID(f.SessionID), humanize.Time(f.ModTime), humanize.Bytes(uint64(f.Size)),
					md.MessageCount, scan.Preview(md.FirstPrompt, 60))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", ".", "Project directory")
	cmd.Flags().StringVar(&sinceStr, "since", "", "Only sessions modified since (1d, 2h, 1w or a date)")
	cmd.Flags().BoolVar(&all, "all", false, "List every project from the catalog")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max sessions (0 = no limit)")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 && !strings.HasPrefix(id, "merged-") {
		return id[:8]
	}
	return id
}
