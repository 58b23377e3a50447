package summarize

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	errs  []error // returned in order before succeeding
	calls int
	last  anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	f.last = body
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	var msg anthropic.Message
	err := json.Unmarshal([]byte(`{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-20241022",
		"content": [{"type": "text", "text": "  Edited parser.go and ran the tests.  "}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 120, "output_tokens": 14}
	}`), &msg)
	return &msg, err
}

func newTestAnthropic(t *testing.T, f *fakeMessages) *Anthropic {
	t.Helper()
	a, err := NewAnthropic("test-key", withMessageCreator(f), WithMaxRetries(2))
	require.NoError(t, err)
	a.initialBackoff = time.Millisecond
	return a
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic("")
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAnthropic_Summarize(t *testing.T) {
	f := &fakeMessages{}
	a := newTestAnthropic(t, f)
	turns := turnsFrom(t, editTurn...)

	res, err := a.Summarize(context.Background(), NewRequest(&turns[0], ModeNormal))
	require.NoError(t, err)
	require.Equal(t, "Edited parser.go and ran the tests.", res.Summary)
	require.Equal(t, "claude-3-5-haiku-20241022", res.Model)
	require.Equal(t, 134, res.TokensUsed())
	require.Equal(t, 1, f.calls)
	require.Equal(t, anthropic.Model(DefaultModel), f.last.Model.Value)
	require.EqualValues(t, DefaultMaxTokens, f.last.MaxTokens.Value)
}

func TestAnthropic_EmptyContentSkipsCall(t *testing.T) {
	f := &fakeMessages{}
	a := newTestAnthropic(t, f)
	turns := turnsFrom(t,
		`{"id":"u1","role":"user","content":"hi"}`,
		`{"id":"r1","role":"tool","content":"output only"}`,
	)

	res, err := a.Summarize(context.Background(), NewRequest(&turns[0], ModeNormal))
	require.NoError(t, err)
	require.Equal(t, noActionsSummary, res.Summary)
	require.Zero(t, f.calls)
}

func TestAnthropic_RetriesTransientErrors(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", IsTemporary: true}}
	f := &fakeMessages{errs: []error{netErr, netErr}}
	a := newTestAnthropic(t, f)
	turns := turnsFrom(t, editTurn...)

	res, err := a.Summarize(context.Background(), NewRequest(&turns[0], ModeNormal))
	require.NoError(t, err)
	require.Equal(t, 3, f.calls)
	require.NotEmpty(t, res.Summary)
}

func TestAnthropic_GivesUpAfterRetries(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host"}}
	f := &fakeMessages{errs: []error{netErr, netErr, netErr, netErr}}
	a := newTestAnthropic(t, f)
	turns := turnsFrom(t, editTurn...)

	_, err := a.Summarize(context.Background(), NewRequest(&turns[0], ModeNormal))
	require.Error(t, err)
	require.Equal(t, 3, f.calls)
}

func TestAnthropic_CanceledIsPermanent(t *testing.T) {
	f := &fakeMessages{errs: []error{context.Canceled}}
	a := newTestAnthropic(t, f)
	turns := turnsFrom(t, editTurn...)

	_, err := a.Summarize(context.Background(), NewRequest(&turns[0], ModeNormal))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, f.calls)
}

func TestRetryable(t *testing.T) {
	require.True(t, retryable(&anthropic.Error{StatusCode: 429}))
	require.True(t, retryable(&anthropic.Error{StatusCode: 529}))
	require.True(t, retryable(&anthropic.Error{StatusCode: 500}))
	require.False(t, retryable(&anthropic.Error{StatusCode: 400}))
	require.False(t, retryable(&anthropic.Error{StatusCode: 401}))
	require.False(t, retryable(context.DeadlineExceeded))
}
