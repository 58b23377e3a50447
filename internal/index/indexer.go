package index

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
	"github.com/Zuo-Peng/cc-summarize/internal/pipeline"
	"github.com/Zuo-Peng/cc-summarize/internal/scan"
)

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Empty   int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d empty=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Empty, s.Pruned, s.Errors)
}

// refreshConcurrency bounds how many changed files are parsed at once.
var refreshConcurrency = runtime.GOMAXPROCS(0)

// Refresh brings the catalog in line with the logs under root. Files whose
// mtime and size are unchanged are not parsed again; sessions whose file is
// gone are pruned. A session that fails to load or index keeps its old rows.
func Refresh(ctx context.Context, db *DB, root string) (Stats, error) {
	var stats Stats

	files, err := scan.ScanRoot(root)
	if err != nil {
		return stats, errors.Wrap(err, "scan")
	}
	// the most recent file wins when a session id shows up twice
	scan.SortByRecency(files)
	stats.Scanned = len(files)

	// track which sessions we see, for pruning
	seen := make(map[string]struct{})
	var changed []scan.SessionFile

	for _, f := range files {
		if _, dup := seen[f.SessionID]; dup {
			log.Debug().Str("path", f.Path).Msg("duplicate session id, keeping most recent file")
			continue
		}
		seen[f.SessionID] = struct{}{}

		needs, err := needsUpdate(db, f)
		if err != nil {
			stats.Errors++
			log.Warn().Err(err).Str("session", f.SessionID).Msg("check session")
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}
		changed = append(changed, f)
	}

	for _, r := range pipeline.LoadBatch(ctx, changed, pipeline.Options{Concurrency: refreshConcurrency}) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		f := r.File
		if errors.Is(r.Err, pipeline.ErrNoMessages) {
			// nothing to catalog; an older row for it is pruned below
			delete(seen, f.SessionID)
			stats.Empty++
			continue
		}
		if r.Err != nil {
			stats.Errors++
			continue
		}
		if err := indexSession(db, f, r.Session); err != nil {
			stats.Errors++
			log.Warn().Err(err).Str("path", f.Path).Msg("index session")
			continue
		}
		stats.Updated++
	}

	// prune sessions whose files no longer exist
	pruned, err := pruneSessions(db, seen)
	if err != nil {
		return stats, errors.Wrap(err, "prune")
	}
	stats.Pruned = pruned

	log.Debug().Str("root", root).Stringer("stats", stats).Msg("catalog refreshed")
	return stats, nil
}

func needsUpdate(db *DB, f scan.SessionFile) (bool, error) {
	info, err := db.GetFileInfo(f.SessionID)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new session
	}
	return info.Mtime != f.ModTime.Unix() || info.Size != f.Size, nil
}

func indexSession(db *DB, f scan.SessionFile, sess *pipeline.Session) error {
	md := scan.MetadataOf(&parse.Result{SessionID: f.SessionID, Messages: sess.Messages})
	prompts := sess.Prompts()

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// old rows go in the same transaction so a failed insert keeps them
	if err := deleteSessionTx(tx, f.SessionID); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, project, file_path, cwd, git_branch, started_at, updated_at,
		 message_count, turn_count, first_prompt, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID,
		f.Project,
		f.Path,
		md.Cwd,
		md.GitBranch,
		formatTime(md.Start),
		f.ModTime.UTC().Format(TimeLayout),
		md.MessageCount,
		len(prompts),
		md.FirstPrompt,
		f.ModTime.Unix(),
		f.Size,
	)
	if err != nil {
		return errors.Wrap(err, "insert session")
	}

	stmt, err := tx.Prepare(
		`INSERT INTO prompts (session_id, turn, message_id, ts, text, line_number)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range prompts {
		_, err := stmt.Exec(
			f.SessionID,
			p.Turn,
			p.Message.ID,
			formatTime(p.Message.Timestamp),
			p.Message.Text(),
			p.Message.Line,
		)
		if err != nil {
			return errors.Wrapf(err, "insert prompt %d", p.Turn)
		}
	}

	return tx.Commit()
}

func pruneSessions(db *DB, seen map[string]struct{}) (int, error) {
	all, err := db.AllSessionIDs()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for id := range all {
		if _, ok := seen[id]; !ok {
			if err := db.DeleteSession(id); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}
