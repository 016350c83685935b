package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouterClient_Complete(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			var req openRouterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if len(req.Messages) != 2 {
				t.Errorf("expected system + user messages, got %d", len(req.Messages))
			}

			resp := map[string]any{
				"model": "anthropic/claude-3.5-sonnet",
				"choices": []map[string]any{
					{"message": map[string]any{"role": "assistant", "content": "주일 예배 안내"}},
				},
				"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 8},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Complete(context.Background(), &Request{
			System: "transcribe exactly",
			Prompt: "read this page",
			Images: [][]byte{[]byte("fake-jpeg")},
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if result.Content != "주일 예배 안내" {
			t.Errorf("content = %q", result.Content)
		}
		if result.Provider != OpenRouterName {
			t.Errorf("provider = %q", result.Provider)
		}
		if result.PromptTokens != 10 || result.CompletionTokens != 8 {
			t.Errorf("token counts = %d/%d", result.PromptTokens, result.CompletionTokens)
		}
		if result.RequestID == "" {
			t.Error("expected generated request ID")
		}
	})

	t.Run("429 returns rate-limited APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "quota exceeded"}})
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.RateLimited() {
			t.Errorf("expected RateLimited() true for status %d", apiErr.StatusCode)
		}
		if apiErr.Message != "quota exceeded" {
			t.Errorf("message = %q", apiErr.Message)
		}
	})

	t.Run("structured response parsed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"model": "test",
				"choices": []map[string]any{
					{"message": map[string]any{"content": "```json\n{\"title\":\"설교\"}\n```"}},
				},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Complete(context.Background(), &Request{
			Prompt:         "extract",
			ResponseFormat: &ResponseFormat{Type: "json_schema"},
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if string(result.ParsedJSON) != `{"title":"설교"}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
	})
}

func TestUpstageClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		resp := map[string]any{
			"model": "solar-pro2",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "교회 소식"}},
			},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 3},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewUpstageClient(UpstageConfig{APIKey: "k", BaseURL: server.URL})
	result, err := client.Complete(context.Background(), &Request{Prompt: "read"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if result.Content != "교회 소식" {
		t.Errorf("content = %q", result.Content)
	}
	if result.Provider != UpstageName {
		t.Errorf("provider = %q", result.Provider)
	}
}

func TestGeminiClient_Complete(t *testing.T) {
	t.Run("successful completion with inline image", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if key := r.Header.Get("x-goog-api-key"); key != "test-key" {
				t.Errorf("unexpected api key header: %s", key)
			}

			var req geminiRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
				t.Errorf("expected text + image parts, got %+v", req.Contents)
			}

			resp := map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]any{{"text": "오늘의 "}, {"text": "말씀"}}}},
				},
				"usageMetadata": map[string]int{"promptTokenCount": 7, "candidatesTokenCount": 2},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Complete(context.Background(), &Request{
			Prompt: "read this page",
			Images: [][]byte{[]byte("fake-jpeg")},
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if result.Content != "오늘의 말씀" {
			t.Errorf("content = %q", result.Content)
		}
		if result.PromptTokens != 7 {
			t.Errorf("prompt tokens = %d", result.PromptTokens)
		}
	})

	t.Run("no candidates is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		if _, err := client.Complete(context.Background(), &Request{Prompt: "x"}); err == nil {
			t.Fatal("expected error for empty candidates")
		}
	})
}

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced no tag", "```\n[1,2]\n```", `[1,2]`, false},
		{"surrounding prose", "Here is the result:\n{\"a\":1}\nDone.", `{"a":1}`, false},
		{"no json", "just some text", "", true},
		{"invalid json", `{"a":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStructuredJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Run("fallback order follows registration", func(t *testing.T) {
		r := NewRegistry()
		r.Register("openrouter", &MockClient{ClientName: "openrouter"})
		r.Register("upstage", &MockClient{ClientName: "upstage"})
		r.Register("gemini", &MockClient{ClientName: "gemini"})

		names := r.List()
		want := []string{"openrouter", "upstage", "gemini"}
		if len(names) != len(want) {
			t.Fatalf("List() = %v", names)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
			}
		}
	})

	t.Run("SetOrder reorders clients", func(t *testing.T) {
		r := NewRegistry()
		r.Register("a", &MockClient{ClientName: "a"})
		r.Register("b", &MockClient{ClientName: "b"})
		r.SetOrder([]string{"b", "a"})

		ordered := r.Ordered()
		if len(ordered) != 2 || ordered[0].Name() != "b" || ordered[1].Name() != "a" {
			t.Errorf("Ordered() names = %v", r.List())
		}
	})

	t.Run("get missing client", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Get("nope"); err == nil {
			t.Error("expected error for missing client")
		}
	})

	t.Run("unregister removes from order", func(t *testing.T) {
		r := NewRegistry()
		r.Register("a", &MockClient{ClientName: "a"})
		r.Register("b", &MockClient{ClientName: "b"})
		r.Unregister("a")

		if r.Has("a") {
			t.Error("client still registered after Unregister")
		}
		if names := r.List(); len(names) != 1 || names[0] != "b" {
			t.Errorf("List() = %v", names)
		}
	})
}

func TestMockClient_FailAfter(t *testing.T) {
	c := NewMockClient()
	c.FailAfter = 2
	c.FailStatus = 429

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Complete(ctx, &Request{Prompt: "ok"}); err != nil {
			t.Fatalf("request %d failed early: %v", i+1, err)
		}
	}
	_, err := c.Complete(ctx, &Request{Prompt: "ok"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.RateLimited() {
		t.Fatalf("expected rate-limited APIError on third request, got %v", err)
	}
}

func TestRateLimiter_ContextCancel(t *testing.T) {
	limiter := NewRateLimiter(1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
