// Package gemini is an automated backend on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gemini-1.5-flash"

var (
	ErrEmptyResponse = errors.New("gemini: response has no text")
	ErrNoPrompt      = errors.New("gemini: conversation must end with a user message")
)

// Client implements controller.Backend.
type Client struct {
	client       *genai.Client
	defaultModel string
}

// New connects to Gemini with apiKey.
func New(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &Client{client: client, defaultModel: defaultModel}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Generate replays every message but the last as chat history and sends the
// last one.
func (c *Client) Generate(ctx context.Context, req controller.Request) (string, error) {
	history, prompt, err := toContents(req.Messages)
	if err != nil {
		return "", err
	}

	name := req.Options.Model
	if name == "" {
		name = c.defaultModel
	}
	model := c.client.GenerativeModel(name)
	if req.Options.Temperature > 0 {
		model.SetTemperature(float32(req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.Options.MaxTokens))
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, prompt.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: %s: %w", name, err)
	}
	text := extractText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// toContents converts chat messages to Gemini contents. Consecutive messages
// from the same side are merged, since Gemini expects turns to alternate.
func toContents(msgs []controller.ChatMessage) ([]*genai.Content, *genai.Content, error) {
	var contents []*genai.Content
	for _, m := range msgs {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(m.Content))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return nil, nil, ErrNoPrompt
	}
	last := len(contents) - 1
	return contents[:last], contents[last], nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}
