package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
)

type Result struct {
	SessionID   string
	Turn        int
	Ts          string
	UpdatedAt   string
	Project     string
	Cwd         string
	FirstPrompt string
	Snippet     string
	Rank        float64
}

type Options struct {
	Query   string
	Project string // "" = all projects
	Since   string // "" = no filter, index.TimeLayout or a date prefix
	Limit   int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	runes := []rune(text)
	qRunes := []rune(strings.ToLower(query))
	lower := []rune(strings.ToLower(text))

	runePos := -1
	if len(lower) == len(runes) {
		runePos = indexRunes(lower, qRunes)
	}
	if runePos < 0 {
		// no match, return head
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	// wrap the matched part with markers
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Search finds user prompts matching opts.Query. Results are ranked with
// bm25, one per session. Queries with CJK characters use substring matching
// because the unicode61 tokenizer does not split them into words.
func Search(db *index.DB, opts Options) ([]Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// Fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deduplicate: keep only the best-ranked result per session
	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.SessionID] {
			continue
		}
		seen[r.SessionID] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

// List returns sessions as results, most recently updated first, with the
// first prompt as snippet.
func List(db *index.DB, opts Options) ([]Result, error) {
	rows, err := db.ListSessions(index.ListOptions{
		Project: opts.Project,
		Since:   opts.Since,
		Limit:   opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(rows))
	for _, s := range rows {
		results = append(results, Result{
			SessionID:   s.SessionID,
			Turn:        1,
			Ts:          s.StartedAt,
			UpdatedAt:   s.UpdatedAt,
			Project:     s.Project,
			Cwd:         s.Cwd,
			FirstPrompt: s.FirstPrompt,
			Snippet:     s.FirstPrompt,
		})
	}
	return results, nil
}

func filters(opts Options) ([]string, []any) {
	var conditions []string
	var args []any

	if opts.Project != "" {
		conditions = append(conditions, "s.project = ?")
		args = append(args, opts.Project)
	}
	if opts.Since != "" {
		conditions = append(conditions, "s.updated_at >= ?")
		args = append(args, opts.Since)
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"prompts_fts MATCH ?"}
	args := []any{ftsQuery(opts.Query)}

	extra, extraArgs := filters(opts)
	conditions = append(conditions, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`
		SELECT
			p.session_id,
			p.turn,
			p.ts,
			s.updated_at,
			s.project,
			s.cwd,
			s.first_prompt,
			snippet(prompts_fts, 0, '>>>','<<<', '...', 40) as snip,
			bm25(prompts_fts, 1.0) as rank
		FROM prompts_fts
		JOIN prompts p ON prompts_fts.rowid = p.rowid
		JOIN sessions s ON p.session_id = s.session_id
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search query")
	}
	defer rows.Close()

	return scanResults(rows)
}

// ftsQuery quotes each term so punctuation in prompts (paths, flags) is not
// read as FTS5 syntax. Bare AND/OR/NOT operators are kept.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		switch t {
		case "AND", "OR", "NOT":
			continue
		}
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"p.text LIKE ?"}
	args := []any{"%" + opts.Query + "%"}

	extra, extraArgs := filters(opts)
	conditions = append(conditions, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`
		SELECT
			p.session_id,
			p.turn,
			p.ts,
			s.updated_at,
			s.project,
			s.cwd,
			s.first_prompt,
			p.text
		FROM prompts p
		JOIN sessions s ON p.session_id = s.session_id
		WHERE %s
		ORDER BY s.updated_at DESC, p.turn
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search query")
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(
			&r.SessionID, &r.Turn, &r.Ts, &r.UpdatedAt,
			&r.Project, &r.Cwd, &r.FirstPrompt, &fullText,
		); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.SessionID, &r.Turn, &r.Ts, &r.UpdatedAt,
			&r.Project, &r.Cwd, &r.FirstPrompt,
			&r.Snippet, &r.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
