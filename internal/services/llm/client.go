package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the attempt count (defaults to 1, no retries).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between retries.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete sends the prompt as a single user message and returns the response
// text with token usage.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Completion{}, errors.New("llm complete: prompt required")
	}
	if c.cfg.APIKey == "" {
		return Completion{}, errors.New("llm complete: api key required")
	}
	return c.do(ctx, "llm complete", chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: req.Temperature,
		MaxTokens:   max(req.MaxTokens, 0),
	})
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	completion, err := c.do(ctx, "llm health", chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		ResponseFormat: map[string]string{"type": jsonResponseType},
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(completion.Content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// do sends payload until it yields content or the retry policy gives up.
func (c *Client) do(ctx context.Context, op string, payload chatCompletionRequest) (Completion, error) {
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Completion{}, fmt.Errorf("%s: rate limiter: %w", op, err)
			}
		}
		completion, err := c.attempt(ctx, op, payload)
		if err == nil {
			return completion, nil
		}
		delay, again := c.retry.next(ctx, err, attempt)
		if !again {
			if attempt > 1 {
				return Completion{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return Completion{}, err
		}
		if err := c.retry.wait(ctx, delay); err != nil {
			return Completion{}, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, op string, payload chatCompletionRequest) (Completion, error) {
	response, body, err := c.post(ctx, payload)
	if err != nil {
		return Completion{}, err
	}
	choice := pickChoice(response)
	if choice.content != "" {
		completion := Completion{Content: choice.content, FinishReason: choice.finishReason, Model: response.Model}
		if response.Usage != nil {
			completion.Usage = *response.Usage
		}
		return completion, nil
	}
	if len(response.Choices) == 0 {
		return Completion{}, fmt.Errorf("%s: empty choices", op)
	}
	return Completion{}, &emptyContentError{
		Op:           op,
		FinishReason: choice.finishReason,
		Refusal:      choice.refusal,
		Snippet:      summarizePayloadSnippet(string(body)),
	}
}
