package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/schema"
)

const answerSchema = `{
	"type": "object",
	"properties": {"answer": {"type": "string"}},
	"required": ["answer"]
}`

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Compile("answer", []byte(answerSchema))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return s
}

func testRequest(t *testing.T) ParseRequest {
	t.Helper()
	return ParseRequest{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "ping"}},
		Schema:   testSchema(t),
	}
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(config.LLMConfig{BaseURL: url, APIKey: "sk-test"})
}

func TestParseSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		rf, ok := body["response_format"].(map[string]any)
		if !ok || rf["type"] != "json_schema" {
			t.Errorf("expected json_schema response_format, got %v", body["response_format"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"answer":"pong"}`}},
			},
		})
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL).Parse(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(raw) != `{"answer":"pong"}` {
		t.Errorf("unexpected value: %s", raw)
	}
}

func TestParseClassifiesAuthFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), testRequest(t))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindAuth {
		t.Errorf("expected auth kind, got %s", apiErr.Kind)
	}
	if apiErr.Retryable() {
		t.Error("auth failures must not be retryable")
	}
}

func TestParseClassifiesRateLimitWithRetryAfter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), testRequest(t))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindRateLimited {
		t.Errorf("expected rate_limited kind, got %s", apiErr.Kind)
	}
	if apiErr.RetryAfter != 7*time.Second {
		t.Errorf("expected retry-after 7s, got %v", apiErr.RetryAfter)
	}
	if !apiErr.Retryable() {
		t.Error("rate limits must be retryable")
	}
}

func TestParseClassifiesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), testRequest(t))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindRemote {
		t.Errorf("expected remote kind, got %s", apiErr.Kind)
	}
	if !apiErr.Retryable() {
		t.Error("server errors must be retryable")
	}
}

func TestParseClassifiesTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).Parse(ctx, testRequest(t))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindTimeout {
		t.Errorf("expected timeout kind, got %s", apiErr.Kind)
	}
}

func TestParseRejectsNonJSONContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "plain text, not json"}},
			},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), testRequest(t))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindValidation {
		t.Errorf("expected validation kind, got %s", apiErr.Kind)
	}
	if apiErr.Retryable() {
		t.Error("validation failures must not be retryable")
	}
}

func TestParseValidatesInput(t *testing.T) {
	t.Parallel()

	client := newTestClient("http://localhost:1")

	req := testRequest(t)
	req.Messages = nil
	if _, err := client.Parse(context.Background(), req); err == nil {
		t.Error("expected error for empty messages")
	}

	req = testRequest(t)
	req.Model = ""
	if _, err := client.Parse(context.Background(), req); err == nil {
		t.Error("expected error for empty model")
	}

	req = testRequest(t)
	bad := 1.5
	req.Params.TopP = &bad
	if _, err := client.Parse(context.Background(), req); err == nil {
		t.Error("expected error for out-of-range top_p")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                          "https://api.openai.com/v1",
		"localhost:1234":            "http://localhost:1234/v1",
		"http://localhost:1234/v1/": "http://localhost:1234/v1",
		"https://api.example.com":   "https://api.example.com/v1",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("expected 0 for garbage, got %v", got)
	}
}
