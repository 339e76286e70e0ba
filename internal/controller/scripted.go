package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
)

// Scripted replays a fixed list of replies. It is driven exactly like an
// automated controller, which makes it useful for replays and dry runs.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	next    int
	seen    [][]conversation.Message
}

// NewScripted returns a controller that answers with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

func newScriptedFromSpec(spec Spec) (Controller, error) {
	return NewScripted(spec.Script...), nil
}

func (s *Scripted) Kind() Kind { return KindScripted }

func (s *Scripted) Policy() Policy { return Policy{} }

func (s *Scripted) Generate(ctx context.Context, msgs []conversation.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("controller: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, msgs)
	if s.next >= len(s.replies) {
		return "", fmt.Errorf("controller: script exhausted after %d replies", len(s.replies))
	}
	reply := s.replies[s.next]
	s.next++
	return reply, nil
}

// Calls returns how many times Generate has been invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Inputs returns the messages passed to each Generate call.
func (s *Scripted) Inputs() [][]conversation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]conversation.Message(nil), s.seen...)
}
