package turn

import (
	"time"

	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

// Turn is one user prompt and everything that answered it. Initiating is nil
// for an orphan turn made of activity seen before any user prompt.
type Turn struct {
	Initiating *parse.Message
	Responses  []parse.Message
}

func (t *Turn) Orphan() bool {
	return t.Initiating == nil
}

// Messages returns the initiating message followed by the responses.
func (t *Turn) Messages() []parse.Message {
	out := make([]parse.Message, 0, len(t.Responses)+1)
	if t.Initiating != nil {
		out = append(out, *t.Initiating)
	}
	return append(out, t.Responses...)
}

func (t *Turn) SessionID() string {
	if t.Initiating != nil {
		return t.Initiating.SessionID
	}
	if len(t.Responses) > 0 {
		return t.Responses[0].SessionID
	}
	return ""
}

// Start is the timestamp of the first message that has one.
func (t *Turn) Start() (time.Time, bool) {
	for _, m := range t.Messages() {
		if m.HasTimestamp() {
			return m.Timestamp, true
		}
	}
	return time.Time{}, false
}

// Duration spans the initiating message to the last timestamped response.
// ok is false when either end is unknown.
func (t *Turn) Duration() (d time.Duration, ok bool) {
	if t.Initiating == nil || !t.Initiating.HasTimestamp() {
		return 0, false
	}
	for i := len(t.Responses) - 1; i >= 0; i-- {
		if t.Responses[i].HasTimestamp() {
			return t.Responses[i].Timestamp.Sub(t.Initiating.Timestamp), true
		}
	}
	return 0, false
}

// Tokens sums the usage reported by assistant responses. ok is false when
// none reported usage.
func (t *Turn) Tokens() (total int, ok bool) {
	for _, m := range t.Responses {
		if m.Role != parse.RoleAssistant || m.Usage == nil {
			continue
		}
		total += m.Usage.Total()
		ok = true
	}
	return total, ok
}

// ToolCalls lists tool_use blocks in response order.
func (t *Turn) ToolCalls() []parse.Block {
	var out []parse.Block
	for i := range t.Responses {
		out = append(out, t.Responses[i].ToolUses()...)
	}
	return out
}

// Options controls policy choices of Group.
type Options struct {
	// EmitOrphan turns messages seen before the first user prompt into an
	// orphan turn instead of returning them as Unattached.
	EmitOrphan bool
}

type Result struct {
	Turns      []Turn
	Excluded   []parse.Message // system_noise and session_summary
	Unattached []parse.Message // pre-prompt activity when EmitOrphan is off
}

// Sort orders messages by timestamp with ties kept in Seq order.
func Sort(msgs []parse.Message) {
	parse.SortMessages(msgs)
}

// Group splits categorized messages into turns. Every user message opens a
// turn; excluded categories never open or close one. The input is not
// modified.
func Group(msgs []parse.Message, opts Options) Result {
	sorted := make([]parse.Message, len(msgs))
	copy(sorted, msgs)
	Sort(sorted)

	var (
		res     Result
		current *Turn
		leading []parse.Message
	)
	for i := range sorted {
		m := sorted[i]
		switch {
		case excluded(m.Category):
			res.Excluded = append(res.Excluded, m)
		case m.Category == parse.CategoryUser:
			if current != nil {
				res.Turns = append(res.Turns, *current)
			}
			initiating := m
			current = &Turn{Initiating: &initiating}
		case current == nil:
			leading = append(leading, m)
		default:
			current.Responses = append(current.Responses, m)
		}
	}
	if current != nil {
		res.Turns = append(res.Turns, *current)
	}

	if len(leading) > 0 {
		if opts.EmitOrphan {
			res.Turns = append([]Turn{{Responses: leading}}, res.Turns...)
		} else {
			res.Unattached = leading
		}
	}
	return res
}

func excluded(c parse.Category) bool {
	return c == parse.CategorySystemNoise || c == parse.CategorySessionSummary
}
