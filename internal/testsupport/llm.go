package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// LLMRequest is the part of a chat-completions request tests inspect.
type LLMRequest struct {
	Model       string
	Prompt      string
	Temperature float64
}

// FakeLLM is an OpenAI-compatible chat-completions endpoint whose answers
// come from a callback.
type FakeLLM struct {
	server   *httptest.Server
	respond  func(LLMRequest) string
	mu       sync.Mutex
	requests []LLMRequest
}

// NewFakeLLM starts a fake endpoint and registers cleanup.
func NewFakeLLM(t testing.TB, respond func(LLMRequest) string) *FakeLLM {
	t.Helper()

	f := &FakeLLM{respond: respond}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the chat-completions endpoint.
func (f *FakeLLM) URL() string {
	return f.server.URL + "/v1/chat/completions"
}

// Requests returns every request received so far.
func (f *FakeLLM) Requests() []LLMRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LLMRequest(nil), f.requests...)
}

func (f *FakeLLM) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := LLMRequest{Model: body.Model, Temperature: body.Temperature}
	if n := len(body.Messages); n > 0 {
		req.Prompt = body.Messages[n-1].Content
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	content := f.respond(req)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": body.Model,
		"choices": []any{map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12},
	})
}
