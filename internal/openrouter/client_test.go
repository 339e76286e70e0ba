package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
)

func noDelay(attempt int) time.Duration { return 0 }

func newTestClient(url string) *Client {
	c := NewClient("test-key", WithBaseURL(url))
	c.backoffFunc = noDelay
	return c
}

func successResponse(content string) ChatResponse {
	return ChatResponse{
		Choices: []Choice{
			{Message: Message{Role: "assistant", Content: content}},
		},
	}
}

func TestGenerateSendsConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Title") != "chameleon" {
			t.Errorf("X-Title = %q", r.Header.Get("X-Title"))
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("failed to unmarshal request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		if len(req.Messages) != 3 || req.Messages[1].Role != "assistant" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}
		if req.MaxTokens != 64 {
			t.Errorf("max_tokens = %d, want 64", req.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(successResponse(`{"description": "I am tall"}`))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).Generate(context.Background(), controller.Request{
		Options: controller.Options{Model: "test-model", Temperature: 0.7, MaxTokens: 64},
		Messages: []controller.ChatMessage{
			{Role: "user", Content: "describe yourself"},
			{Role: "assistant", Content: "I am tall"},
			{Role: "user", Content: "format please"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != `{"description": "I am tall"}` {
		t.Errorf("reply = %q", reply)
	}
}

func TestChatCompletionOmitsZeroSampling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["temperature"]; ok {
			t.Error("temperature should be omitted when unset")
		}
		if _, ok := raw["max_tokens"]; ok {
			t.Error("max_tokens should be omitted when unset")
		}
		json.NewEncoder(w).Encode(successResponse("ok"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), controller.Request{
		Options:  controller.Options{Model: "m"},
		Messages: []controller.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), controller.Request{Options: controller.Options{Model: "m"}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerateEmbeddedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 402, "message": "insufficient credits"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), controller.Request{Options: controller.Options{Model: "m"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 402 {
		t.Errorf("expected APIError 402, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/models" {
			t.Errorf("expected /models, got %s", r.URL.Path)
		}
		resp := ModelsResponse{
			Data: []Model{
				{ID: "model-1", Name: "Model One", Pricing: &Pricing{Prompt: "0", Completion: "0"}},
				{ID: "model-2", Name: "Model Two", Pricing: nil},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	models, err := newTestClient(server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "model-1" {
		t.Errorf("expected 'model-1', got %q", models[0].ID)
	}
	if models[1].Pricing != nil {
		t.Errorf("expected nil pricing for model-2, got %+v", models[1].Pricing)
	}
}

func TestListModelsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListModels(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("my-key")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", client.baseURL)
	}
	if client.apiKey != "my-key" {
		t.Errorf("expected apiKey 'my-key', got %q", client.apiKey)
	}
	if client.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", client.maxRetries)
	}
}

func TestRetries429(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, "rate limited")
			return
		}
		json.NewEncoder(w).Encode(successResponse("ok"))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if resp.Choices[0].Message.Content != "ok" {
		t.Errorf("expected 'ok', got %q", resp.Choices[0].Message.Content)
	}
	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 total requests, got %d", got)
	}
}

func TestRetries500(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1) <= 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "server error")
			return
		}
		json.NewEncoder(w).Encode(successResponse("ok"))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).ChatCompletion(context.Background(), ChatRequest{Model: "m"}); err != nil {
		t.Fatalf("expected success after retry, got error: %v", err)
	}
	if got := count.Load(); got != 2 {
		t.Errorf("expected 2 total requests, got %d", got)
	}
}

func TestMaxRetries(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		want    int32
	}{
		{"default", 3, 4},
		{"disabled", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var count atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				count.Add(1)
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, "rate limited")
			}))
			defer server.Close()

			c := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(tt.retries))
			c.backoffFunc = noDelay
			_, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
				t.Fatalf("expected 429 StatusError, got %v", err)
			}
			if got := count.Load(); got != tt.want {
				t.Errorf("expected %d attempts, got %d", tt.want, got)
			}
		})
	}
}

func TestNoRetryOn400(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad request")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error for 400, got nil")
	}
	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 request (no retry), got %d", got)
	}
}

func TestBackoffHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL))
	c.backoffFunc = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ChatCompletion(ctx, ChatRequest{Model: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
