package game

import (
	"context"
	"fmt"
	"time"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
	"github.com/lorenzotomasdiez/chameleon/internal/player"
)

// Phase is a step of the session state machine. Phases only move forward.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSetup
	PhaseDescribe
	PhaseVote
	PhaseResolve
	PhaseDone
)

var phaseNames = [...]string{"init", "setup", "describe", "vote", "resolve", "done"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return PhaseInit, fmt.Errorf("game: unknown phase %q", s)
}

// Winner is the session's outcome label.
type Winner string

const (
	WinnerHerd      Winner = "Herd"
	WinnerChameleon Winner = "Chameleon"
)

// Turn is one validated contribution, reported through Game.OnTurn.
type Turn struct {
	Phase    Phase       `json:"phase"`
	Index    int         `json:"index"`
	PlayerID string      `json:"player_id"`
	Player   string      `json:"player"`
	Role     player.Role `json:"role"`
	Content  string      `json:"content"`
}

// Vote is one player's accusation.
type Vote struct {
	Voter   string `json:"voter"`
	Accused string `json:"accused"`
}

// Slot describes a seat before its player exists.
type Slot struct {
	Index int
	ID    string
	Name  string
	Role  player.Role
	Human bool
}

// ControllerSource builds the controller for a seat. The returned name is
// recorded as the controller's identity (a model id, "human", ...).
type ControllerSource interface {
	Controller(slot Slot) (ctrl controller.Controller, name string, err error)
}

// ControllerSourceFunc adapts a function to ControllerSource.
type ControllerSourceFunc func(slot Slot) (controller.Controller, string, error)

func (f ControllerSourceFunc) Controller(slot Slot) (controller.Controller, string, error) {
	return f(slot)
}

// PlayerRecord is a player's identity and full transcript.
type PlayerRecord struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Role           player.Role            `json:"role"`
	Controller     controller.Kind        `json:"controller"`
	ControllerName string                 `json:"controller_name"`
	Messages       []conversation.Message `json:"messages"`
}

// Record is the archived result of a finished session.
type Record struct {
	SessionID    string         `json:"session_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Settings     Settings       `json:"settings"`
	Animal       string         `json:"animal"`
	Chameleon    string         `json:"chameleon"`
	Players      []PlayerRecord `json:"players"`
	Descriptions []Entry        `json:"descriptions"`
	Votes        []Vote         `json:"votes"`
	Tally        Tally          `json:"tally"`
	Guess        string         `json:"guess,omitempty"`
	Winner       Winner         `json:"winner"`
}

// Archiver receives the record of every finished session.
type Archiver interface {
	Archive(ctx context.Context, rec *Record) error
}

// SessionError aborts a session. It names the phase and, for turn
// failures, the player.
type SessionError struct {
	Phase  Phase
	Player string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Player == "" {
		return fmt.Sprintf("game: %s phase: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("game: %s phase: player %s: %v", e.Phase, e.Player, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
