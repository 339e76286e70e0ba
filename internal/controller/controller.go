// Package controller produces a player's next message, either from an
// automated chat backend or from a person at a terminal.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
)

// Kind tags a controller implementation.
type Kind string

const (
	KindAutomated Kind = "ai"
	KindHuman     Kind = "human"
	KindScripted  Kind = "scripted"
)

// Policy tells callers how to drive a controller without knowing its type.
type Policy struct {
	// LatestOnly controllers receive only the newest message instead of the
	// full history.
	LatestOnly bool
	// Direct controllers have their raw reply mapped straight onto a
	// single-field schema, with no validation retries.
	Direct bool
}

// Controller generates the next reply for a conversation.
type Controller interface {
	Kind() Kind
	Policy() Policy
	Generate(ctx context.Context, msgs []conversation.Message) (string, error)
}

// Echoer is implemented by controllers that display appended messages.
type Echoer interface {
	Echo(msg conversation.Message)
}

// ErrUnknownKind is returned by Registry.New for unregistered kinds.
var ErrUnknownKind = errors.New("unknown controller kind")

// Spec carries everything a factory may need. Each factory reads only the
// fields relevant to its kind.
type Spec struct {
	Kind    Kind
	Backend Backend
	Options Options
	In      io.Reader
	Out     io.Writer
	Script  []string
}

// Factory builds a controller from a Spec.
type Factory func(Spec) (Controller, error)

// Registry is the dispatch table from kind to factory.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// DefaultRegistry returns a registry with the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindAutomated, newAutomatedFromSpec)
	r.Register(KindHuman, newHumanFromSpec)
	r.Register(KindScripted, newScriptedFromSpec)
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New builds a controller for spec.Kind.
func (r *Registry) New(spec Spec) (Controller, error) {
	f, ok := r.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("controller: %w: %q", ErrUnknownKind, spec.Kind)
	}
	return f(spec)
}
