package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/cache"
	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
)

func openStore() (*cache.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cache.New(afero.NewOsFs(), cfg.CacheDir), nil
}

func optionalSession(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the summary cache",
	}
	cmd.AddCommand(cacheStatsCmd(), cacheClearCmd(), cacheFailedCmd())
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			st, err := store.Stats()
			if err != nil {
				return err
			}

			fmt.Printf("Directory: %s\n", st.Dir)
			fmt.Printf("Summaries: %s\n", humanize.Comma(int64(st.Entries)))
			fmt.Printf("Failures:  %s\n", humanize.Comma(int64(st.Failures)))
			fmt.Printf("Size:      %s\n", humanize.Bytes(uint64(st.Bytes)))
			if st.Entries > 0 {
				fmt.Printf("Oldest:    %s\n", humanize.Time(st.Oldest))
				fmt.Printf("Newest:    %s\n", humanize.Time(st.Newest))
			}

			modes := make([]string, 0, len(st.ByMode))
			for m := range st.ByMode {
				modes = append(modes, m)
			}
			sort.Strings(modes)
			for _, m := range modes {
				fmt.Printf("  %-9s %s\n", m+":", humanize.Comma(int64(st.ByMode[m])))
			}
			return nil
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [session]",
		Short: "Remove cached summaries of one session, or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			n, err := store.Clear(optionalSession(args))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Removed %d cached summaries.\n", n)
			return nil
		},
	}
}

func cacheFailedCmd() *cobra.Command {
	var clearRecords bool

	cmd := &cobra.Command{
		Use:   "failed [session]",
		Short: "List recorded summary failures",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			sessionID := optionalSession(args)

			if clearRecords {
				n, err := store.ClearFailed(sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Removed %d failure records.\n", n)
				return nil
			}

			failures, err := store.Failed(sessionID)
			if err != nil {
				return err
			}
			if len(failures) == 0 {
				fmt.Fprintln(os.Stderr, "No failures recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			for _, f := range failures {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d attempts\t%s\t%s\n",
					shortFingerprint(f.Fingerprint), shortID(f.SourceSessionID), f.Mode,
					f.Attempts, humanize.Time(f.FailedAt), scan.Preview(f.Error, 80))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearRecords, "clear", false, "Remove the listed records so the turns are retried")

	return cmd
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
