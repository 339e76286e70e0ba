// Package openrouter is the default automated backend: a small client for
// OpenRouter's chat completions and models endpoints.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
)

const (
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
	defaultMaxRetries = 3
)

// ErrEmptyResponse is returned when a completion has no choices.
var ErrEmptyResponse = errors.New("response has no choices")

// Client talks to OpenRouter. It retries 429 and 5xx responses with
// exponential backoff; every other failure is returned to the caller.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	appTitle    string
	maxRetries  int
	backoffFunc func(attempt int) time.Duration
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another OpenRouter-compatible server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMaxRetries sets how many times a 429 or 5xx is retried. Zero disables
// transport retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithAppTitle sets the X-Title header used for OpenRouter attribution.
func WithAppTitle(title string) Option {
	return func(c *Client) { c.appTitle = title }
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// NewClient creates a client for apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		appTitle:    "chameleon",
		maxRetries:  defaultMaxRetries,
		backoffFunc: defaultBackoff,
		tracer:      otel.Tracer("github.com/lorenzotomasdiez/chameleon/internal/openrouter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements controller.Backend.
func (c *Client) Generate(ctx context.Context, req controller.Request) (string, error) {
	msgs := make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content}
	}
	chat := ChatRequest{Model: req.Options.Model, Messages: msgs, MaxTokens: req.Options.MaxTokens}
	if req.Options.Temperature > 0 {
		t := req.Options.Temperature
		chat.Temperature = &t
	}

	resp, err := c.ChatCompletion(ctx, chat)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatCompletion sends a chat completions request.
func (c *Client) ChatCompletion(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "openrouter.chat", trace.WithAttributes(
		attribute.String("llm.model", chat.Model),
		attribute.Int("llm.messages", len(chat.Messages)),
	))
	defer span.End()

	resp, err := c.chatCompletion(ctx, chat)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.Usage != nil {
		span.SetAttributes(attribute.Int("llm.tokens", resp.Usage.TotalTokens))
	}
	return resp, nil
}

func (c *Client) chatCompletion(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("openrouter: decoding response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("openrouter: %w", chatResp.Error)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: model %s: %w", chat.Model, ErrEmptyResponse)
	}
	return &chatResp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.appTitle != "" {
		req.Header.Set("X-Title", c.appTitle)
	}
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func (c *Client) doWithRetry(ctx context.Context, do func(context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoffFunc(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := do(ctx)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if !isRetryable(resp.StatusCode) {
			return nil, lastErr
		}

		// Retry-After is waited on top of the backoff, unless backoff is
		// disabled.
		if resp.StatusCode == http.StatusTooManyRequests && c.backoffFunc(0) > 0 {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ListModels retrieves the models available on OpenRouter.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openrouter: %w", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	return modelsResp.Data, nil
}
