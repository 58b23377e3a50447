package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/index"
)

// OpenSession opens the log of sessionID in $EDITOR, positioned at the
// initiating message of the given turn (1-based, 0 = top of file).
func OpenSession(db *index.DB, sessionID string, turn int) error {
	session, err := db.ResolveSession(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return errors.Errorf("session not found: %s", sessionID)
	}

	if _, err := os.Stat(session.FilePath); err != nil {
		return errors.Errorf("file not found: %s", session.FilePath)
	}

	lineNum, err := LineOf(db, session.SessionID, turn)
	if err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}
	log.Debug().Str("editor", editor).Str("path", session.FilePath).Int("line", lineNum).Msg("open session")

	cmd := EditorCommand(editor, session.FilePath, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// LineOf returns the log line of turn's prompt.
func LineOf(db *index.DB, sessionID string, turn int) (int, error) {
	if turn <= 0 {
		return 1, nil
	}
	p, err := db.GetPrompt(sessionID, turn)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, errors.Errorf("session %s has no turn %d", sessionID, turn)
	}
	if p.LineNumber < 1 {
		return 1, nil
	}
	return p.LineNumber, nil
}

// EditorCommand builds the command that opens filePath at lineNum. Editors
// with an unknown line syntax open the file at the top.
func EditorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	// $EDITOR may carry flags, e.g. "code -w"
	fields := strings.Fields(editor)
	name, args := fields[0], fields[1:]

	switch {
	case strings.Contains(name, "vim") || strings.Contains(name, "nvim") ||
		strings.Contains(name, "nano") || strings.Contains(name, "emacs"):
		args = append(args, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(name, "code") || strings.Contains(name, "cursor"):
		args = append(args, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(name, "less"):
		args = append(args, "+"+strconv.Itoa(lineNum), filePath)
	default:
		args = append(args, filePath)
	}
	return exec.Command(name, args...)
}
