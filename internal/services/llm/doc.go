// Package llm provides an OpenRouter-compatible chat client used as the
// model boundary for lead scoring and prompt generation.
//
// Callers depend on the Completer interface: a prompt goes in, response text
// and token usage come out. Client is the HTTP implementation;
// CountingCompleter wraps any Completer to count calls for run reports.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title, and
// timeout. Requests can be rate limited client-side with WithRateLimit.
//
// # Retry Behaviour
//
// By default a request is attempted once. WithRetryMaxAttempts enables
// retries on HTTP 408/429/5xx, empty content, and network timeouts with
// exponential backoff (base 1s, max 10s). Retry-After is honoured. Context
// cancellation aborts retries immediately.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send one prompt, receive text plus usage.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode JSON from model output, tolerating code fences.
package llm
