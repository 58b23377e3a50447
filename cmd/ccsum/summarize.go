package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/cc-summarize/internal/cache"
	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/format"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
	"github.com/Zuo-Peng/cc-summarize/internal/since"
	"github.com/Zuo-Peng/cc-summarize/internal/summarize"
)

// summarizeFlags are the root command's flags.
type summarizeFlags struct {
	project   string
	sessions  []string
	sinceStr  string
	untilStr  string
	format    string
	output    string
	separator string
	style     string
	plain     bool
	metadata  bool

	withPlans     bool
	withSummaries bool
	withSubagent  bool
	withAssistant bool
	withAll       bool

	mode        string
	noAI        bool
	retryFailed bool
	emitOrphans bool
	concurrency int
	verbose     *bool
}

func summarizeCmd(verbose *bool) *cobra.Command {
	f := &summarizeFlags{verbose: verbose}

	cmd := &cobra.Command{
		Long: `Extract the prompts of a Claude Code session, or summarize each turn.

Without --session the most recent session of the project is used. With
--since and no --session, every session of the project modified in the
window is merged into one. Repeat --session to merge specific sessions.

Examples:
  ccsum                                  # prompts of the latest session
  ccsum -s 3f2a --with-plans             # prompts and plans of one session
  ccsum --summarize --format markdown    # per-turn summaries
  ccsum --summarize=minimal --no-ai      # summaries from the log alone
  ccsum --since 2d --format jsonl -o out.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("concurrency") {
				f.concurrency = cfg.Concurrency
			}
			if !cmd.Flags().Changed("emit-orphans") {
				f.emitOrphans = cfg.EmitOrphanTurns
			}
			return runSummarize(cmd.Context(), cfg, f, os.Stdout)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.project, "project", "p", ".", "Project directory whose sessions are read")
	fl.StringSliceVarP(&f.sessions, "session", "s", nil, "Session id or prefix (repeatable, merged)")
	fl.StringVar(&f.sinceStr, "since", "", "Only turns since (1d, 2h, 30m, 1w or a date)")
	fl.StringVar(&f.untilStr, "until", "", "Only turns before (1d, 2h, 30m, 1w or a date)")
	fl.StringVarP(&f.format, "format", "f", format.Auto, "Output format ("+strings.Join(format.Names, ", ")+")")
	fl.StringVarP(&f.output, "output", "o", "", "Write to file instead of stdout")
	fl.StringVar(&f.separator, "separator", format.DefaultSeparator, "Separator between prompts in plain output")
	fl.StringVar(&f.style, "style", "", "Glamour style for terminal summaries (dark, light, notty, ...)")
	fl.BoolVar(&f.plain, "plain", false, "Force plain output")
	fl.BoolVar(&f.metadata, "metadata", false, "Include timestamps, durations and token counts")

	fl.BoolVar(&f.withPlans, "with-plans", false, "Include plans")
	fl.BoolVar(&f.withSummaries, "with-summaries", false, "Include session summaries")
	fl.BoolVar(&f.withSubagent, "with-subagent", false, "Include subagent messages")
	fl.BoolVar(&f.withAssistant, "with-assistant", false, "Include assistant messages")
	fl.BoolVar(&f.withAll, "with-all", false, "Include every category except system noise")

	fl.StringVar(&f.mode, "summarize", "", "Summarize turns (minimal, normal, detailed)")
	fl.Lookup("summarize").NoOptDefVal = string(summarize.ModeNormal)
	fl.BoolVar(&f.noAI, "no-ai", false, "Summarize from the log without calling the API")
	fl.BoolVar(&f.retryFailed, "retry-failed", false, "Forget recorded summary failures of the session first")
	fl.BoolVar(&f.emitOrphans, "emit-orphans", false, "Keep activity before the first prompt as turn 0")
	fl.IntVar(&f.concurrency, "concurrency", summarize.DefaultConcurrency, "Parallel summary requests")

	return cmd
}

func (f *summarizeFlags) categories() map[parse.Category]bool {
	cats := map[parse.Category]bool{parse.CategoryUser: true}
	if f.withAll {
		for _, c := range parse.Categories {
			if c != parse.CategorySystemNoise {
				cats[c] = true
			}
		}
		return cats
	}
	if f.withPlans {
		cats[parse.CategoryPlan] = true
	}
	if f.withSummaries {
		cats[parse.CategorySessionSummary] = true
	}
	if f.withSubagent {
		cats[parse.CategorySubagent] = true
	}
	if f.withAssistant {
		cats[parse.CategoryAssistant] = true
	}
	return cats
}

// selectFiles resolves which session files the run reads.
func selectFiles(cfg *config.Config, f *summarizeFlags, w since.Window) ([]scan.SessionFile, error) {
	files, err := scan.FindSessions(cfg.ClaudeRoot, f.project)
	if err != nil {
		return nil, err
	}

	if len(f.sessions) > 0 {
		var all []scan.SessionFile
		var picked []scan.SessionFile
		for _, id := range f.sessions {
			sf, err := scan.FindByID(files, id)
			if err != nil {
				// sessions of other projects are looked up across the root
				if all == nil {
					if all, err = scan.ScanRoot(cfg.ClaudeRoot); err != nil {
						return nil, err
					}
				}
				if sf, err = scan.FindByID(all, id); err != nil {
					return nil, err
				}
			}
			picked = append(picked, sf)
		}
		return picked, nil
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", pipeline.ErrNoSessions, scan.ProjectDir(cfg.ClaudeRoot, f.project))
	}
	if !w.IsZero() {
		if in := pipeline.SelectFiles(files, w); len(in) > 0 {
			return in, nil
		}
		return nil, fmt.Errorf("%w modified in the window", pipeline.ErrNoSessions)
	}
	return files[:1], nil
}

func runSummarize(ctx context.Context, cfg *config.Config, f *summarizeFlags, stdout *os.File) error {
	now := time.Now()
	window, err := since.NewWindow(f.sinceStr, f.untilStr, now)
	if err != nil {
		return err
	}
	if f.sinceStr != "" {
		log.Debug().Str("window", since.Describe(f.sinceStr, window.From, now)).Msg("turn window")
	}

	files, err := selectFiles(cfg, f, window)
	if err != nil {
		return err
	}
	return runSummarizeFiles(ctx, cfg, f, files, window, stdout)
}

// runSummarizeFiles loads files as one session and writes it, summarized
// when f.mode is set.
func runSummarizeFiles(ctx context.Context, cfg *config.Config, f *summarizeFlags, files []scan.SessionFile, window since.Window, stdout *os.File) error {
	var mode summarize.Mode
	if f.mode != "" {
		var err error
		if mode, err = summarize.ParseMode(f.mode); err != nil {
			return err
		}
	}

	sess, err := pipeline.Load(ctx, files, pipeline.Options{
		EmitOrphan:  f.emitOrphans,
		Window:      window,
		Concurrency: f.concurrency,
	})
	if err != nil {
		return err
	}
	if d := sess.Diagnostics; d.Skipped > 0 {
		log.Warn().Int("lines", d.Skipped).Str("session", sess.ID).Msg("skipped unparsable lines")
	}

	var results []summarize.Result
	if mode != "" {
		results, err = summarizeSession(ctx, cfg, f, sess, mode)
		if err != nil {
			return err
		}
	}

	var w io.Writer = stdout
	isTTY := term.IsTerminal(int(stdout.Fd()))
	if f.output != "" {
		out, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer out.Close()
		w = out
		isTTY = false
	}

	name := format.Resolve(f.format, f.plain, isTTY)
	formatter, err := format.New(name)
	if err != nil {
		return err
	}
	opts := format.Options{
		Categories: f.categories(),
		Metadata:   f.metadata,
		Verbose:    f.verbose != nil && *f.verbose,
		Separator:  f.separator,
		Style:      f.style,
	}
	if isTTY {
		if width, _, err := term.GetSize(int(stdout.Fd())); err == nil {
			opts.Width = width
		}
	}
	return formatter.Format(w, sess, results, opts)
}

// summarizeSession runs one summary per turn through the cache.
func summarizeSession(ctx context.Context, cfg *config.Config, f *summarizeFlags, sess *pipeline.Session, mode summarize.Mode) ([]summarize.Result, error) {
	store := cache.New(afero.NewOsFs(), cfg.CacheDir)

	if f.retryFailed {
		for _, sf := range sess.Files {
			n, err := store.ClearFailed(sf.SessionID)
			if err != nil {
				return nil, fmt.Errorf("clear failures: %w", err)
			}
			log.Info().Int("records", n).Str("session", sf.SessionID).Msg("cleared summary failures")
		}
	}

	var s summarize.Summarizer
	if f.noAI {
		s = summarize.Extractive{}
	} else {
		api, err := summarize.NewAnthropic(cfg.APIKey,
			summarize.WithModel(cfg.Model),
			summarize.WithMaxInputTokens(cfg.MaxInputTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("%w (set it, or use --no-ai)", err)
		}
		s = summarize.NewCached(api, store)
	}

	fmt.Fprintf(os.Stderr, "Summarizing %d turns...\n", len(sess.Turns))
	results := summarize.Batch(ctx, s, sess.Turns, mode, f.concurrency)

	failed, cached := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if r.Cached {
			cached++
		}
	}
	log.Info().Int("turns", len(results)).Int("cached", cached).Int("failed", failed).Msg("summaries ready")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
