package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cc-summarize/internal/cache"
	"github.com/Zuo-Peng/cc-summarize/internal/config"
	"github.com/Zuo-Peng/cc-summarize/internal/index"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify log root, cache, catalog, FTS5 and API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Paths ===")
			checkDir("Logs", cfg.ClaudeRoot)
			checkDir("Cache", cfg.CacheDir)

			fmt.Println("\n=== Summaries ===")
			fmt.Printf("  Model: %s\n", cfg.Model)
			if cfg.APIKey == "" {
				fmt.Println("  ANTHROPIC_API_KEY: NOT SET (only --no-ai summaries)")
			} else {
				fmt.Println("  ANTHROPIC_API_KEY: set")
			}
			if st, err := cache.New(afero.NewOsFs(), cfg.CacheDir).Stats(); err != nil {
				fmt.Printf("  cache error: %v\n", err)
			} else {
				fmt.Printf("  Cached: %d (%s), failures: %d\n", st.Entries, humanize.Bytes(uint64(st.Bytes)), st.Failures)
			}

			fmt.Println("\n=== File Scan ===")
			files, err := scan.ScanRoot(cfg.ClaudeRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				projects := map[string]bool{}
				for _, f := range files {
					projects[f.Project] = true
				}
				fmt.Printf("  Session files: %d in %d projects\n", len(files), len(projects))
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'ccsum index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sessionCount, err := db.SessionCount()
			if err != nil {
				return fmt.Errorf("count sessions: %w", err)
			}
			promptCount, err := db.PromptCount()
			if err != nil {
				return fmt.Errorf("count prompts: %w", err)
			}
			fmt.Printf("  Sessions: %d\n", sessionCount)
			fmt.Printf("  Prompts:  %d\n", promptCount)

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = db.Raw().QueryRow("SELECT COUNT(*) FROM prompts_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == promptCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (prompts=%d, fts=%d)\n", promptCount, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %s ===\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
