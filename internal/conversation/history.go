// Package conversation keeps the append-only message log each player sees.
package conversation

import (
	"slices"
	"sync"
	"time"
)

// Role classifies who authored a message.
type Role string

const (
	RoleInstruction Role = "instruction" // issued by the game
	RoleAgent       Role = "agent"       // authored by the player
	RoleFormat      Role = "format"      // output format directive
)

// Display is a styling hint for echoing messages to a human. It has no
// effect on the protocol.
type Display string

const (
	DisplayPlain   Display = "plain"
	DisplayVerbose Display = "verbose"
	DisplayDebug   Display = "debug"
)

// Message is a single entry in a player's history.
type Message struct {
	Index   int       `json:"index"`
	Role    Role      `json:"role"`
	Display Display   `json:"display"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// History is an append-only transcript owned by one player.
type History struct {
	mu       sync.Mutex
	messages []Message
	hooks    []func(Message)
	now      func() time.Time
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{now: time.Now}
}

// OnAppend registers fn to run after every append.
func (h *History) OnAppend(fn func(Message)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Append adds a message with the next sequence index and returns it.
func (h *History) Append(role Role, display Display, content string) Message {
	h.mu.Lock()
	msg := Message{
		Index:   len(h.messages),
		Role:    role,
		Display: display,
		Content: content,
		Time:    h.now(),
	}
	h.messages = append(h.messages, msg)
	hooks := slices.Clone(h.hooks)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(msg)
	}
	return msg
}

// Messages returns a copy of the transcript in append order.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Latest returns the most recent message, if any.
func (h *History) Latest() (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Len returns the number of messages appended so far.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
