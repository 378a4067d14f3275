package llm

import (
	"context"
	"sync/atomic"
)

// CompletionRequest is a single prompt sent to the model.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the model's response text plus usage metadata.
type Completion struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

// Completer is the model boundary: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return f(ctx, req)
}

// CountingCompleter counts every call (successful or not) made through it.
// It is safe for concurrent use.
type CountingCompleter struct {
	next   Completer
	calls  atomic.Int64
	failed atomic.Int64
	tokens atomic.Int64
}

// NewCountingCompleter wraps next.
func NewCountingCompleter(next Completer) *CountingCompleter {
	return &CountingCompleter{next: next}
}

// Complete forwards to the wrapped completer and records the call.
func (c *CountingCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	c.calls.Add(1)
	completion, err := c.next.Complete(ctx, req)
	if err != nil {
		c.failed.Add(1)
		return completion, err
	}
	c.tokens.Add(int64(completion.Usage.TotalTokens))
	return completion, nil
}

// Calls returns the number of calls issued so far.
func (c *CountingCompleter) Calls() int64 { return c.calls.Load() }

// Failures returns the number of calls that returned an error.
func (c *CountingCompleter) Failures() int64 { return c.failed.Load() }

// Tokens returns the total tokens reported by successful calls.
func (c *CountingCompleter) Tokens() int64 { return c.tokens.Load() }
