package parse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// fields consumed by the parser; everything else lands in Message.Extra
var knownFields = map[string]bool{
	"id": true, "uuid": true, "role": true, "type": true,
	"content": true, "message": true, "timestamp": true,
	"sessionId": true, "session_id": true,
	"parentUuid": true, "parent_id": true,
	"agent_name": true, "agentId": true,
	"isSidechain": true, "isMeta": true, "isCompactSummary": true,
	"cwd": true, "gitBranch": true,
	"summary": true, "leafUuid": true,
}

type envelope struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Usage   *Usage          `json:"usage"`
}

// ParseFile parses one JSONL session file. An empty sessionID is derived
// from the file name.
func ParseFile(path, sessionID string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open session file")
	}
	defer f.Close()

	if sessionID == "" {
		sessionID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}
	return ParseLines(f, sessionID, path)
}

// ParseLines reads newline-delimited JSON records from r. Lines that cannot
// be turned into a Message are skipped with a Diagnostic; only a read error
// from r is returned.
func ParseLines(r io.Reader, sessionID, source string) (*Result, error) {
	result := &Result{SessionID: sessionID, Source: source}

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, tooLong, err := readLine(br)
		if err == io.EOF && line == nil && !tooLong {
			break
		}
		if err != nil && err != io.EOF {
			return result, errors.Wrapf(err, "read %s", source)
		}

		result.Lines++
		lineNum := result.Lines

		switch {
		case tooLong:
			result.skip(lineNum, "line exceeds 10MB")
		default:
			msg, reason := parseRecord(line)
			if reason != "" {
				result.skip(lineNum, reason)
				break
			}
			if msg.SessionID == "" {
				msg.SessionID = sessionID
			}
			msg.Source = source
			msg.Line = lineNum
			msg.Seq = len(result.Messages)
			result.Messages = append(result.Messages, msg)
		}

		if err == io.EOF {
			break
		}
	}

	if result.Skipped() > 0 {
		log.Debug().
			Str("source", source).
			Int("skipped", result.Skipped()).
			Int("lines", result.Lines).
			Msg("skipped malformed lines")
	}
	return result, nil
}

func (r *Result) skip(line int, reason string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Line: line, Reason: reason})
}

// readLine returns one line without its terminator. Lines longer than
// maxLineSize are drained and reported with tooLong set.
func readLine(br *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(buf) == 0 && !tooLong {
			return nil, false, io.EOF
		}
		if tooLong {
			return nil, true, err
		}
		return bytes.TrimRight(buf, "\r\n"), false, err
	}
}

func parseRecord(line []byte) (Message, string) {
	if len(bytes.TrimSpace(line)) == 0 {
		return Message{}, "blank line"
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, "invalid json: " + err.Error()
	}

	var env envelope
	if m, ok := raw["message"]; ok {
		// message may be a plain string in some generic logs
		if err := json.Unmarshal(m, &env); err != nil {
			env.Content = m
		}
	}

	recordType := rawString(raw["type"])
	msg := Message{
		ID:               rawString(raw["id"]),
		ParentID:         firstNonEmpty(rawString(raw["parentUuid"]), rawString(raw["parent_id"])),
		RecordType:       recordType,
		SessionID:        firstNonEmpty(rawString(raw["sessionId"]), rawString(raw["session_id"])),
		AgentName:        firstNonEmpty(rawString(raw["agent_name"]), rawString(raw["agentId"])),
		IsSidechain:      rawBool(raw["isSidechain"]),
		IsMeta:           rawBool(raw["isMeta"]),
		IsCompactSummary: rawBool(raw["isCompactSummary"]),
		Cwd:              rawString(raw["cwd"]),
		GitBranch:        rawString(raw["gitBranch"]),
		Timestamp:        parseTimestamp(rawString(raw["timestamp"])),
		Usage:            env.Usage,
	}
	if msg.ID == "" {
		msg.ID = rawString(raw["uuid"])
	}

	role := rawString(raw["role"])
	if role == "" {
		role = roleFromType(recordType)
	}
	if role == "" {
		role = env.Role
	}

	contentRaw := raw["content"]
	if len(contentRaw) == 0 {
		contentRaw = env.Content
	}

	if recordType == "summary" {
		if msg.ID == "" {
			if leaf := rawString(raw["leafUuid"]); leaf != "" {
				msg.ID = "summary:" + leaf
			}
		}
		if len(contentRaw) == 0 {
			contentRaw = raw["summary"]
		}
	}

	if msg.ID == "" {
		return Message{}, "missing id"
	}
	if role == "" {
		return Message{}, "missing role"
	}
	switch Role(role) {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		msg.Role = Role(role)
	default:
		return Message{}, fmt.Sprintf("unknown role %q", role)
	}

	msg.Content = decodeContent(contentRaw)

	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if msg.Extra == nil {
			msg.Extra = make(map[string]json.RawMessage)
		}
		msg.Extra[k] = v
	}

	return msg, ""
}

func roleFromType(t string) string {
	switch t {
	case "user", "assistant", "system", "tool":
		return t
	case "summary":
		return string(RoleSystem)
	}
	return ""
}

func decodeContent(raw json.RawMessage) []Block {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return []Block{{Type: BlockText, Text: s, Raw: raw}}

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		blocks := make([]Block, 0, len(items))
		for _, item := range items {
			blocks = append(blocks, decodeBlock(item))
		}
		return blocks

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil
		}
		return []Block{{Type: BlockObject, Fields: fields, Raw: raw}}
	}

	return []Block{{Type: BlockObject, Raw: raw}}
}

func decodeBlock(item json.RawMessage) Block {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '"' {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			return Block{Type: BlockText, Text: s, Raw: item}
		}
	}

	var b Block
	if err := json.Unmarshal(item, &b); err != nil || b.Type == "" {
		var fields map[string]json.RawMessage
		_ = json.Unmarshal(item, &fields)
		return Block{Type: BlockObject, Fields: fields, Raw: item}
	}
	b.Raw = item
	return b
}

func rawString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// numeric ids are accepted as their literal text
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawBool(v json.RawMessage) bool {
	var b bool
	if len(v) == 0 {
		return false
	}
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	// try RFC3339
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// try RFC3339Nano
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// try ISO8601 without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	// unix seconds
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}
