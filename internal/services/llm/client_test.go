package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func writeChoices(t *testing.T, w http.ResponseWriter, choice map[string]any, extra map[string]any) {
	t.Helper()
	payload := map[string]any{"choices": []any{choice}}
	for k, v := range extra {
		payload[k] = v
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientCompleteSendsPromptAndReturnsUsage(t *testing.T) {
	var captured chatCompletionRequest
	var headers http.Header
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeChoices(t, w,
			map[string]any{"finish_reason": "stop", "message": map[string]any{"content": `{"score": 7}`}},
			map[string]any{"model": "demo-model", "usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 6, "total_tokens": 126}},
		)
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Referer: "https://example.test", Title: "Demo"})
	completion, err := client.Complete(context.Background(), CompletionRequest{Prompt: "Score this lead", Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != `{"score": 7}` {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if completion.Usage.TotalTokens != 126 || completion.Usage.PromptTokens != 120 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
	if completion.FinishReason != "stop" || completion.Model != "demo-model" {
		t.Fatalf("unexpected metadata %+v", completion)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" || captured.Messages[0].Content != "Score this lead" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if captured.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", captured.Temperature)
	}
	if captured.ResponseFormat != nil {
		t.Fatalf("expected no response_format for plain completions, got %v", captured.ResponseFormat)
	}
	if headers.Get("Authorization") != "Bearer test" || headers.Get("X-Title") != "Demo" || headers.Get("HTTP-Referer") != "https://example.test" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestClientCompleteRequiresPromptAndKey(t *testing.T) {
	client := NewClient(Config{APIKey: "test", Model: "demo"})
	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "  "}); err == nil {
		t.Fatal("expected error for blank prompt")
	}
	client = NewClient(Config{Model: "demo"})
	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestClientCompleteToleratesProviderShapes(t *testing.T) {
	tests := []struct {
		name   string
		choice map[string]any
		want   string
	}{
		{
			name:   "delta",
			choice: map[string]any{"delta": map[string]any{"content": `{"score": 4}`}},
			want:   `{"score": 4}`,
		},
		{
			name:   "legacy text",
			choice: map[string]any{"finish_reason": "stop", "text": "score: 6"},
			want:   "score: 6",
		},
		{
			name: "tool call arguments",
			choice: map[string]any{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"content": "",
					"tool_calls": []any{map[string]any{
						"type":     "function",
						"id":       "call_1",
						"function": map[string]any{"name": "score", "arguments": `{"score": 9}`},
					}},
				},
			},
			want: `{"score": 9}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeChoices(t, w, tt.choice, nil)
			})
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			completion, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
			if err != nil {
				t.Fatalf("Complete returned error: %v", err)
			}
			if completion.Content != tt.want {
				t.Fatalf("got %q want %q", completion.Content, tt.want)
			}
		})
	}
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected http status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientRetriesOnHTTP429WhenEnabled(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		writeChoices(t, w, map[string]any{"message": map[string]any{"content": "7"}}, nil)
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(3),
	)
	completion, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != "7" {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, WithRetryMaxAttempts(5), WithSleeper(func(time.Duration) {}))
	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retries for 401, got %d calls", calls.Load())
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoices(t, w, map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}}, nil)
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected empty content error")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), `finish_reason="length"`) || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		writeChoices(t, w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}}, nil)
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestCountingCompleterCountsCallsAndFailures(t *testing.T) {
	var n atomic.Int32
	inner := CompleterFunc(func(ctx context.Context, req CompletionRequest) (Completion, error) {
		if n.Add(1)%2 == 0 {
			return Completion{}, errors.New("boom")
		}
		return Completion{Content: "5", Usage: Usage{TotalTokens: 10}}, nil
	})
	counter := NewCountingCompleter(inner)
	for i := 0; i < 4; i++ {
		_, _ = counter.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	}
	if counter.Calls() != 4 || counter.Failures() != 2 || counter.Tokens() != 20 {
		t.Fatalf("unexpected counters calls=%d failures=%d tokens=%d", counter.Calls(), counter.Failures(), counter.Tokens())
	}
}

func TestDecodeLLMJSONAndStripCodeFence(t *testing.T) {
	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := DecodeLLMJSON("Here you go: {\"score\": 8}", &parsed); err != nil || parsed.Score != 8 {
		t.Fatalf("expected embedded object to decode, got %v %v", parsed, err)
	}
	if err := DecodeLLMJSON("  ", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if got := StripCodeFence("```text\nYou are a scorer.\n```"); got != "You are a scorer." {
		t.Fatalf("unexpected stripped content %q", got)
	}
	if got := StripCodeFence("```\nYou are a scorer.\n```"); got != "You are a scorer." {
		t.Fatalf("unexpected stripped content %q", got)
	}
	if got := StripCodeFence("plain prompt"); got != "plain prompt" {
		t.Fatalf("unexpected passthrough %q", got)
	}
}

func TestRateLimitOptionBoundsBurst(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, WithRateLimit(0.5))
	if client.limiter == nil || client.limiter.Burst() != 1 {
		t.Fatalf("expected limiter with burst 1, got %+v", client.limiter)
	}
	client = NewClient(Config{APIKey: "k"}, WithRateLimit(0))
	if client.limiter != nil {
		t.Fatal("expected limiter disabled")
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := retryPolicy{attempts: 6, base: time.Second, max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}

	ctx := context.Background()
	if _, again := p.next(ctx, &httpStatusError{StatusCode: http.StatusBadRequest}, 1); again {
		t.Fatal("expected 400 to be final")
	}
	if d, again := p.next(ctx, &httpStatusError{StatusCode: http.StatusBadGateway, RetryAfter: time.Minute}, 1); !again || d != 5*time.Second {
		t.Fatalf("expected capped Retry-After, got %s %v", d, again)
	}
	if _, again := p.next(ctx, &emptyContentError{}, 6); again {
		t.Fatal("expected last attempt to be final")
	}
	if _, again := p.next(ctx, errors.New("decode failure"), 1); again {
		t.Fatal("expected unclassified errors to be final")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %s", got)
	}
	for _, value := range []string{"", "-4", "soon"} {
		if got := parseRetryAfter(value); got != 0 {
			t.Fatalf("parseRetryAfter(%q) = %s, want 0", value, got)
		}
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Hour {
		t.Fatalf("unexpected delay for HTTP date: %s", got)
	}
}
