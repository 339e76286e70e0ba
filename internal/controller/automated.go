package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
)

// ChatMessage is a message in the wire shape shared by chat backends.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Options are forwarded to the backend untouched.
type Options struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Request is one generation call.
type Request struct {
	Options  Options
	Messages []ChatMessage
}

// Backend maps an ordered conversation to the next reply text.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Automated drives a chat backend with the player's full history.
type Automated struct {
	backend Backend
	opts    Options
}

// NewAutomated returns a controller backed by b.
func NewAutomated(b Backend, opts Options) *Automated {
	return &Automated{backend: b, opts: opts}
}

func newAutomatedFromSpec(spec Spec) (Controller, error) {
	if spec.Backend == nil {
		return nil, errors.New("controller: automated controller requires a backend")
	}
	return NewAutomated(spec.Backend, spec.Options), nil
}

func (a *Automated) Kind() Kind { return KindAutomated }

func (a *Automated) Policy() Policy { return Policy{} }

// Options returns the backend options this controller forwards.
func (a *Automated) Options() Options { return a.opts }

// Generate sends every message in msgs to the backend. Backend errors are
// returned as is; retries belong to the caller.
func (a *Automated) Generate(ctx context.Context, msgs []conversation.Message) (string, error) {
	req := Request{Options: a.opts, Messages: ToChat(msgs)}
	reply, err := a.backend.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("controller: %s backend: %w", a.opts.Model, err)
	}
	return reply, nil
}

// ToChat converts history messages to backend chat messages. Player-authored
// messages become "assistant" turns; everything else is "user".
func ToChat(msgs []conversation.Message) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		role := "user"
		if m.Role == conversation.RoleAgent {
			role = "assistant"
		}
		out[i] = ChatMessage{Role: role, Content: m.Content}
	}
	return out
}
