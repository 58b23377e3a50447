package index

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    session_id    TEXT PRIMARY KEY,
    project       TEXT NOT NULL DEFAULT '',
    file_path     TEXT NOT NULL,
    cwd           TEXT NOT NULL DEFAULT '',
    git_branch    TEXT NOT NULL DEFAULT '',
    started_at    TEXT NOT NULL DEFAULT '',
    updated_at    TEXT NOT NULL DEFAULT '',
    message_count INTEGER NOT NULL DEFAULT 0,
    turn_count    INTEGER NOT NULL DEFAULT 0,
    first_prompt  TEXT NOT NULL DEFAULT '',
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS prompts (
    session_id  TEXT NOT NULL,
    turn        INTEGER NOT NULL,
    message_id  TEXT NOT NULL DEFAULT '',
    ts          TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL,
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, turn)
);

CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
    text,
    content=prompts,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS prompts_ai AFTER INSERT ON prompts BEGIN
    INSERT INTO prompts_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS prompts_ad AFTER DELETE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS prompts_au AFTER UPDATE ON prompts BEGIN
    INSERT INTO prompts_fts(prompts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO prompts_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// TimeLayout is how timestamps are stored in the catalog.
const TimeLayout = "2006-01-02T15:04:05Z"

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	d := &DB{db: db}
	d.migrateSchemaVersion()
	return d, nil
}

// schemaVersion should be bumped whenever prompt extraction changes to
// force a full re-index.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		log.Debug().Str("from", ver).Str("to", schemaVersion).Msg("catalog schema changed, forcing re-index")
		// force re-index by resetting all session mtime/size to 0
		d.db.Exec("UPDATE sessions SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type FileInfo struct {
	Mtime int64
	Size  int64
}

func (d *DB) GetFileInfo(sessionID string) (*FileInfo, error) {
	var info FileInfo
	err := d.db.QueryRow(
		"SELECT mtime, size FROM sessions WHERE session_id = ?",
		sessionID,
	).Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get file info")
	}
	return &info, nil
}

func (d *DB) AllSessionIDs() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT session_id FROM sessions")
	if err != nil {
		return nil, errors.Wrap(err, "list session ids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (d *DB) DeleteSession(sessionID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteSessionTx(tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSessionTx(tx *sql.Tx, sessionID string) error {
	if _, err := tx.Exec("DELETE FROM prompts WHERE session_id = ?", sessionID); err != nil {
		return errors.Wrap(err, "delete prompts")
	}
	if _, err := tx.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

func (d *DB) PromptCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM prompts").Scan(&n)
	return n, err
}

type SessionRow struct {
	SessionID    string
	Project      string
	FilePath     string
	Cwd          string
	GitBranch    string
	StartedAt    string
	UpdatedAt    string
	MessageCount int
	TurnCount    int
	FirstPrompt  string
	Size         int64
}

const sessionColumns = `session_id, project, file_path, cwd, git_branch, started_at, updated_at,
	message_count, turn_count, first_prompt, size`

func scanSession(row interface{ Scan(...any) error }) (*SessionRow, error) {
	var s SessionRow
	err := row.Scan(&s.SessionID, &s.Project, &s.FilePath, &s.Cwd, &s.GitBranch,
		&s.StartedAt, &s.UpdatedAt, &s.MessageCount, &s.TurnCount, &s.FirstPrompt, &s.Size)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession returns the catalog row of sessionID, or nil if unknown.
func (d *DB) GetSession(sessionID string) (*SessionRow, error) {
	s, err := scanSession(d.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE session_id = ?", sessionID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	return s, nil
}

// ResolveSession finds a session by exact id, then by the most recently
// updated id starting with prefix.
func (d *DB) ResolveSession(prefix string) (*SessionRow, error) {
	if s, err := d.GetSession(prefix); err != nil || s != nil {
		return s, err
	}
	s, err := scanSession(d.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE session_id LIKE ? ESCAPE '\\' ORDER BY updated_at DESC LIMIT 1",
		escapeLike(prefix)+"%",
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve session")
	}
	return s, nil
}

// ListOptions filters ListSessions.
type ListOptions struct {
	Project string // encoded project directory name
	Since   string // lower bound on updated_at, TimeLayout
	Limit   int
}

// ListSessions returns catalog rows, most recently updated first.
func (d *DB) ListSessions(opts ListOptions) ([]SessionRow, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE 1=1"
	var args []any
	if opts.Project != "" {
		query += " AND project = ?"
		args = append(args, opts.Project)
	}
	if opts.Since != "" {
		query += " AND updated_at >= ?"
		args = append(args, opts.Since)
	}
	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type PromptRow struct {
	SessionID  string
	Turn       int
	MessageID  string
	Ts         string
	Text       string
	LineNumber int
}

func (d *DB) GetPrompts(sessionID string) ([]PromptRow, error) {
	rows, err := d.db.Query(
		"SELECT session_id, turn, message_id, ts, text, line_number FROM prompts WHERE session_id = ? ORDER BY turn",
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "get prompts")
	}
	defer rows.Close()

	var prompts []PromptRow
	for rows.Next() {
		var p PromptRow
		if err := rows.Scan(&p.SessionID, &p.Turn, &p.MessageID, &p.Ts, &p.Text, &p.LineNumber); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// GetPrompt returns prompt turn of sessionID, or nil if it does not exist.
func (d *DB) GetPrompt(sessionID string, turn int) (*PromptRow, error) {
	var p PromptRow
	err := d.db.QueryRow(
		"SELECT session_id, turn, message_id, ts, text, line_number FROM prompts WHERE session_id = ? AND turn = ?",
		sessionID, turn,
	).Scan(&p.SessionID, &p.Turn, &p.MessageID, &p.Ts, &p.Text, &p.LineNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get prompt")
	}
	return &p, nil
}

func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}
