package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel          = "claude-3-5-haiku-20241022"
	DefaultMaxTokens      = 500
	DefaultTemperature    = 0.1
	DefaultMaxRetries     = 3
	DefaultMaxInputTokens = 100000
)

var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// messageCreator is the part of the SDK client used here.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Anthropic summarizes turns with a single Messages API call per turn.
type Anthropic struct {
	messages       messageCreator
	model          string
	maxTokens      int64
	temperature    float64
	maxRetries     uint64
	maxInputTokens int
	initialBackoff time.Duration
	tokens         *TokenCounter
}

type AnthropicOption func(*Anthropic)

func WithModel(model string) AnthropicOption {
	return func(a *Anthropic) {
		if model != "" {
			a.model = model
		}
	}
}

func WithMaxRetries(n uint64) AnthropicOption {
	return func(a *Anthropic) { a.maxRetries = n }
}

// WithMaxInputTokens caps the content sent per turn; zero disables the cap.
func WithMaxInputTokens(n int) AnthropicOption {
	return func(a *Anthropic) { a.maxInputTokens = n }
}

func withMessageCreator(m messageCreator) AnthropicOption {
	return func(a *Anthropic) { a.messages = m }
}

func NewAnthropic(apiKey string, opts ...AnthropicOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	a := &Anthropic{
		// SDK retries off, Summarize retries with backoff
		messages:       anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)).Messages,
		model:          DefaultModel,
		maxTokens:      DefaultMaxTokens,
		temperature:    DefaultTemperature,
		maxRetries:     DefaultMaxRetries,
		maxInputTokens: DefaultMaxInputTokens,
		initialBackoff: time.Second,
		tokens:         &TokenCounter{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Anthropic) Model() string {
	return a.model
}

// Settings lists what besides the content shapes a summary.
func (a *Anthropic) Settings() string {
	return fmt.Sprintf("model=%s max_tokens=%d temperature=%g max_input_tokens=%d",
		a.model, a.maxTokens, a.temperature, a.maxInputTokens)
}

func (a *Anthropic) Summarize(ctx context.Context, req Request) (Result, error) {
	res := Result{Fingerprint: req.Fingerprint, ToolCalls: CompactToolCalls(req.Turn, req.Mode)}
	if strings.TrimSpace(req.Content) == "" {
		res.Summary = noActionsSummary
		return res, nil
	}

	content, truncated := a.tokens.Truncate(req.Content, a.maxInputTokens)
	if truncated {
		log.Debug().Str("fingerprint", req.Fingerprint).Int("max_tokens", a.maxInputTokens).Msg("summary input truncated")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(a.model)),
		MaxTokens:   anthropic.F(a.maxTokens),
		Temperature: anthropic.F(a.temperature),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.Mode.systemPrompt()),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Summarize these coding assistant actions:\n\n" + content)),
		}),
	}

	var msg *anthropic.Message
	op := func() error {
		m, err := a.messages.New(ctx, params)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			log.Debug().Err(err).Str("fingerprint", req.Fingerprint).Msg("summary request failed, retrying")
			return err
		}
		msg = m
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, a.maxRetries), ctx)); err != nil {
		return res, errors.Wrap(err, "anthropic messages")
	}

	var text []string
	for _, block := range msg.Content {
		switch tb := block.AsUnion().(type) {
		case anthropic.TextBlock:
			text = append(text, tb.Text)
		}
	}

	res.Summary = strings.TrimSpace(strings.Join(text, "\n"))
	res.Model = string(msg.Model)
	res.InputTokens = int(msg.Usage.InputTokens)
	res.OutputTokens = int(msg.Usage.OutputTokens)
	res.Truncated = truncated
	if res.Summary == "" {
		return res, errors.New("anthropic returned no text")
	}
	return res, nil
}

// retryable reports whether err is worth another attempt: network errors,
// rate limits, overload and server errors.
func retryable(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode == 529,
		apiErr.StatusCode >= 500:
		return true
	}
	return false
}
