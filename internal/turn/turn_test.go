package turn

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cc-summarize/internal/category"
	"github.com/Zuo-Peng/cc-summarize/internal/parse"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id string, seq int, cat parse.Category, offset time.Duration) parse.Message {
	role := parse.RoleAssistant
	if cat == parse.CategoryUser {
		role = parse.RoleUser
	}
	m := parse.Message{ID: id, Role: role, Category: cat, Seq: seq}
	if offset >= 0 {
		m.Timestamp = t0.Add(offset)
	}
	return m
}

func ids(msgs []parse.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestGroup_FixBugDone(t *testing.T) {
	res, err := parse.ParseLines(strings.NewReader(`{"id":"1","role":"user","content":"fix bug"}
{"id":"2","role":"assistant","content":"done"}`), "s", "t.jsonl")
	require.NoError(t, err)

	g := Group(category.Categorize(res.Messages), Options{})
	require.Len(t, g.Turns, 1)
	require.Equal(t, "1", g.Turns[0].Initiating.ID)
	require.Equal(t, []string{"2"}, ids(g.Turns[0].Responses))
	require.Empty(t, g.Excluded)
	require.Empty(t, g.Unattached)
}

func TestGroup_Partition(t *testing.T) {
	in := []parse.Message{
		msg("a0", 0, parse.CategoryAssistant, 0),
		msg("n0", 1, parse.CategorySystemNoise, time.Second),
		msg("u1", 2, parse.CategoryUser, 2*time.Second),
		msg("a1", 3, parse.CategoryAssistant, 3*time.Second),
		msg("s1", 4, parse.CategorySessionSummary, 4*time.Second),
		msg("t1", 5, parse.CategoryToolResponse, 5*time.Second),
		msg("u2", 6, parse.CategoryUser, 6*time.Second),
		msg("p2", 7, parse.CategoryPlan, 7*time.Second),
		msg("g2", 8, parse.CategorySubagent, 8*time.Second),
	}

	for _, emit := range []bool{false, true} {
		g := Group(in, Options{EmitOrphan: emit})

		seen := map[string]int{}
		for _, tr := range g.Turns {
			for _, m := range tr.Messages() {
				seen[m.ID]++
			}
		}
		for _, m := range g.Excluded {
			seen[m.ID]++
		}
		for _, m := range g.Unattached {
			seen[m.ID]++
		}
		require.Len(t, seen, len(in))
		for id, n := range seen {
			require.Equal(t, 1, n, "message %s placed %d times", id, n)
		}

		require.Equal(t, []string{"n0", "s1"}, ids(g.Excluded))

		if emit {
			require.Len(t, g.Turns, 3)
			require.True(t, g.Turns[0].Orphan())
			require.Equal(t, []string{"a0"}, ids(g.Turns[0].Responses))
			require.Empty(t, g.Unattached)
		} else {
			require.Len(t, g.Turns, 2)
			require.Equal(t, []string{"a0"}, ids(g.Unattached))
		}

		last := g.Turns[len(g.Turns)-1]
		require.Equal(t, "u2", last.Initiating.ID)
		require.Equal(t, []string{"p2", "g2"}, ids(last.Responses))
		prev := g.Turns[len(g.Turns)-2]
		require.Equal(t, "u1", prev.Initiating.ID)
		require.Equal(t, []string{"a1", "t1"}, ids(prev.Responses))
	}
}

func TestGroup_NoUserMessages(t *testing.T) {
	in := []parse.Message{
		msg("a", 0, parse.CategoryAssistant, 0),
		msg("b", 1, parse.CategoryToolResponse, time.Second),
	}
	g := Group(in, Options{})
	require.Empty(t, g.Turns)
	require.Equal(t, []string{"a", "b"}, ids(g.Unattached))

	g = Group(in, Options{EmitOrphan: true})
	require.Len(t, g.Turns, 1)
	require.Nil(t, g.Turns[0].Initiating)
	require.Equal(t, "", g.Turns[0].SessionID())
}

func TestGroup_OrdersByTimestampThenSeq(t *testing.T) {
	in := []parse.Message{
		msg("a2", 0, parse.CategoryAssistant, 5*time.Second),
		msg("u1", 1, parse.CategoryUser, time.Second),
		msg("a1", 2, parse.CategoryAssistant, 2*time.Second),
		msg("a1b", 3, parse.CategoryAssistant, 2*time.Second),
		msg("u2", 4, parse.CategoryUser, 4*time.Second),
	}
	g := Group(in, Options{})
	require.Len(t, g.Turns, 2)
	require.Equal(t, []string{"a1", "a1b"}, ids(g.Turns[0].Responses))
	require.Equal(t, []string{"a2"}, ids(g.Turns[1].Responses))

	// input untouched
	require.Equal(t, "a2", in[0].ID)
}

func TestGroup_UntimedMessagesStayInPlace(t *testing.T) {
	in := []parse.Message{
		msg("u1", 0, parse.CategoryUser, 0),
		msg("a1", 1, parse.CategoryAssistant, -1),
		msg("u2", 2, parse.CategoryUser, time.Second),
		msg("a2", 3, parse.CategoryAssistant, -1),
	}
	g := Group(in, Options{})
	require.Len(t, g.Turns, 2)
	require.Equal(t, []string{"a1"}, ids(g.Turns[0].Responses))
	require.Equal(t, []string{"a2"}, ids(g.Turns[1].Responses))
}

func TestTurn_DurationAndTokens(t *testing.T) {
	u := msg("u", 0, parse.CategoryUser, 0)
	a1 := msg("a1", 1, parse.CategoryAssistant, 10*time.Second)
	a1.Usage = &parse.Usage{InputTokens: 100, OutputTokens: 20}
	a1.Content = []parse.Block{{Type: parse.BlockToolUse, Name: "Edit"}}
	tr := msg("t", 2, parse.CategoryToolResponse, 12*time.Second)
	tr.Role = parse.RoleUser
	a2 := msg("a2", 3, parse.CategoryAssistant, -1)
	a2.Usage = &parse.Usage{OutputTokens: 5, CacheReadInputTokens: 1}

	turn := Turn{Initiating: &u, Responses: []parse.Message{a1, tr, a2}}

	d, ok := turn.Duration()
	require.True(t, ok)
	require.Equal(t, 12*time.Second, d)

	tokens, ok := turn.Tokens()
	require.True(t, ok)
	require.Equal(t, 126, tokens)

	require.Len(t, turn.ToolCalls(), 1)
	require.Equal(t, "Edit", turn.ToolCalls()[0].Name)

	empty := Turn{Initiating: &u}
	_, ok = empty.Duration()
	require.False(t, ok)
	_, ok = empty.Tokens()
	require.False(t, ok)
}
