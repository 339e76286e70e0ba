// Package player binds a game identity and role to a controller and the
// conversation history it answers from.
package player

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

// Role is the player's secret role.
type Role string

const (
	RoleChameleon Role = "chameleon"
	RoleHerd      Role = "herd"
)

// Recorder is the best-effort log destination for identity and message
// records.
type Recorder interface {
	Record(record any) error
}

// ControllerInfo describes the controller in identity records.
type ControllerInfo struct {
	Name string          `json:"name"`
	Type controller.Kind `json:"type"`
}

// IdentityRecord is written once when a player is created.
type IdentityRecord struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Role       Role           `json:"role"`
	Controller ControllerInfo `json:"controller"`
}

// MessageRecord is written for every message appended to a history.
type MessageRecord struct {
	Type     string               `json:"type"`
	PlayerID string               `json:"player_id"`
	Player   string               `json:"player"`
	Message  conversation.Message `json:"message"`
}

// Spec is a player's fixed identity.
type Spec struct {
	ID             string
	Name           string
	Role           Role
	ControllerName string // model id, "human", ...
}

// Player is one seat at the table.
type Player struct {
	spec      Spec
	ctrl      controller.Controller
	history   *conversation.History
	extractor *structured.Extractor
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithRecorder sends identity and message records to r.
func WithRecorder(r Recorder) Option {
	return func(p *Player) { p.recorder = r }
}

// WithLogger sets the logger used for recorder failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// WithExtractor overrides the default structured output extractor.
func WithExtractor(x *structured.Extractor) Option {
	return func(p *Player) { p.extractor = x }
}

// New creates a player. When a recorder is configured, an identity record is
// written before any turn.
func New(spec Spec, ctrl controller.Controller, opts ...Option) *Player {
	p := &Player{
		spec:    spec,
		ctrl:    ctrl,
		history: conversation.NewHistory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = structured.NewExtractor(structured.DefaultRetries)
	}
	if e, ok := ctrl.(controller.Echoer); ok {
		p.history.OnAppend(e.Echo)
	}
	if p.recorder != nil {
		p.history.OnAppend(p.recordMessage)
		p.record(IdentityRecord{
			Type: "player",
			ID:   spec.ID,
			Name: spec.Name,
			Role: spec.Role,
			Controller: ControllerInfo{
				Name: spec.ControllerName,
				Type: ctrl.Kind(),
			},
		})
	}
	return p
}

func (p *Player) ID() string { return p.spec.ID }
func (p *Player) Name() string { return p.spec.Name }
func (p *Player) Role() Role { return p.spec.Role }
func (p *Player) Spec() Spec { return p.spec }
func (p *Player) Kind() controller.Kind { return p.ctrl.Kind() }
func (p *Player) Policy() controller.Policy { return p.ctrl.Policy() }
func (p *Player) IsHuman() bool { return p.ctrl.Kind() == controller.KindHuman }
func (p *Player) Transcript() []conversation.Message { return p.history.Messages() }

// Exchange appends content, asks the controller for a reply and appends the
// reply. Controllers with a LatestOnly policy see only the new message.
func (p *Player) Exchange(ctx context.Context, role conversation.Role, content string) (string, error) {
	p.history.Append(role, conversation.DisplayPlain, content)

	input := p.history.Messages()
	if p.ctrl.Policy().LatestOnly {
		input = input[len(input)-1:]
	}
	reply, err := p.ctrl.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("player %s: %w", p.spec.Name, err)
	}
	p.history.Append(conversation.RoleAgent, conversation.DisplayPlain, reply)
	return reply, nil
}

// RespondTo asks the player to answer prompt with output matching schema.
func (p *Player) RespondTo(ctx context.Context, prompt string, schema structured.Schema) (structured.Result, error) {
	return p.extractor.Extract(ctx, p, prompt, schema)
}

// Notify appends an announcement that needs no reply.
func (p *Player) Notify(display conversation.Display, content string) {
	p.history.Append(conversation.RoleInstruction, display, content)
}

func (p *Player) recordMessage(msg conversation.Message) {
	p.record(MessageRecord{Type: "message", PlayerID: p.spec.ID, Player: p.spec.Name, Message: msg})
}

func (p *Player) record(rec any) {
	if err := p.recorder.Record(rec); err != nil {
		p.logger.Warn("failed to record player log entry", "player", p.spec.Name, "error", err)
	}
}
