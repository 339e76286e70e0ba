// Package game coordinates a Chameleon session: setup, the describe and vote
// phases, resolution and archival.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
	"github.com/lorenzotomasdiez/chameleon/internal/player"
	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

// Game is one session. Players take turns strictly in seat order and only
// one turn is ever in flight.
type Game struct {
	id        string
	settings  Settings
	players   []*player.Player
	chameleon int
	animal    string
	phase     Phase

	describeSchema structured.Schema
	voteSchema     structured.Schema

	descriptions *RoundContext
	votes        []Vote
	started      time.Time

	recorder  player.Recorder
	archivers []Archiver
	logger    *slog.Logger
	tracer    trace.Tracer

	OnTurn  func(Turn)
	OnPhase func(Phase)
}

func (g *Game) ID() string { return g.id }
func (g *Game) Phase() Phase { return g.phase }
func (g *Game) Animal() string { return g.animal }
func (g *Game) Settings() Settings { return g.settings }
func (g *Game) Players() []*player.Player { return append([]*player.Player(nil), g.players...) }
func (g *Game) Chameleon() *player.Player { return g.players[g.chameleon] }
func (g *Game) Descriptions() []Entry { return g.descriptions.Entries() }
func (g *Game) Votes() []Vote { return append([]Vote(nil), g.votes...) }

// advance moves to next, which must be the phase directly after the current
// one.
func (g *Game) advance(next Phase) error {
	if next != g.phase+1 {
		return fmt.Errorf("game: cannot move from %s to %s", g.phase, next)
	}
	g.phase = next
	if g.OnPhase != nil {
		g.OnPhase(next)
	}
	return nil
}

// Run plays the session to completion. Any failed turn aborts the session
// with a *SessionError and nothing is scored or archived.
func (g *Game) Run(ctx context.Context) (*Record, error) {
	ctx, span := g.tracer.Start(ctx, "game.session", trace.WithAttributes(
		attribute.String("session.id", g.id),
		attribute.Int("session.players", len(g.players)),
	))
	defer span.End()

	rec, err := g.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("session aborted", "session", g.id, "phase", g.phase.String(), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("session.winner", string(rec.Winner)))
	return rec, nil
}

func (g *Game) run(ctx context.Context) (*Record, error) {
	g.started = time.Now()

	if err := g.advance(PhaseDescribe); err != nil {
		return nil, err
	}
	for _, p := range g.players {
		p.Notify(conversation.DisplayVerbose, introMessage(p.Name()))
	}
	if err := g.describe(ctx); err != nil {
		return nil, err
	}

	if err := g.advance(PhaseVote); err != nil {
		return nil, err
	}
	if err := g.vote(ctx); err != nil {
		return nil, err
	}

	if err := g.advance(PhaseResolve); err != nil {
		return nil, err
	}
	rec, err := g.resolve(ctx)
	if err != nil {
		return nil, err
	}

	if err := g.advance(PhaseDone); err != nil {
		return nil, err
	}
	rec.FinishedAt = time.Now()
	g.archive(ctx, rec)
	return rec, nil
}

func (g *Game) describe(ctx context.Context) error {
	ctx, span := g.tracer.Start(ctx, "game.describe")
	defer span.End()

	for i, p := range g.players {
		var prompt string
		snapshot := g.descriptions.Snapshot()
		if p.Role() == player.RoleChameleon {
			prompt = chameleonPrompt(snapshot)
		} else {
			prompt = herdPrompt(g.animal, snapshot)
		}
		res, err := g.turn(ctx, p, prompt, g.describeSchema)
		if err != nil {
			return err
		}
		text := res.String(g.describeSchema.Fields[0].Name)
		g.descriptions.Append(p.Name(), text)
		g.emit(Turn{Phase: PhaseDescribe, Index: i, PlayerID: p.ID(), Player: p.Name(), Role: p.Role(), Content: text})
	}
	return nil
}

func (g *Game) vote(ctx context.Context) error {
	ctx, span := g.tracer.Start(ctx, "game.vote")
	defer span.End()

	names := make([]string, len(g.players))
	for i, p := range g.players {
		names[i] = p.Name()
	}
	prompt := votePrompt(g.descriptions.Snapshot(), names)
	for i, p := range g.players {
		res, err := g.turn(ctx, p, prompt, g.voteSchema)
		if err != nil {
			return err
		}
		accused := res.String(g.voteSchema.Fields[0].Name)
		g.votes = append(g.votes, Vote{Voter: p.Name(), Accused: accused})
		g.emit(Turn{Phase: PhaseVote, Index: i, PlayerID: p.ID(), Player: p.Name(), Role: p.Role(), Content: accused})
	}
	return nil
}

func (g *Game) resolve(ctx context.Context) (*Record, error) {
	chameleon := g.Chameleon()
	tally := Count(g.votes)
	winner := Decide(g.settings.VoteRule, tally, chameleon.Name())

	var guess string
	if winner == WinnerHerd && g.settings.ChameleonGuess {
		res, err := g.turn(ctx, chameleon, guessPrompt(g.descriptions.Snapshot()), guessSchema)
		if err != nil {
			return nil, err
		}
		guess = res.String("animal")
		g.emit(Turn{Phase: PhaseResolve, Index: g.chameleon, PlayerID: chameleon.ID(), Player: chameleon.Name(), Role: chameleon.Role(), Content: guess})
		if guessMatches(guess, g.animal) {
			winner = WinnerChameleon
		}
	}

	announcement := fmt.Sprintf("The Chameleon was %s and the animal was %s. The %s wins!", chameleon.Name(), g.animal, winner)
	for _, p := range g.players {
		p.Notify(conversation.DisplayVerbose, announcement)
		p.Notify(conversation.DisplayDebug, "Votes: "+tally.String())
	}
	g.logger.Info("session resolved", "session", g.id, "winner", string(winner), "tally", tally.String())

	return &Record{
		SessionID:    g.id,
		StartedAt:    g.started,
		Settings:     g.settings,
		Animal:       g.animal,
		Chameleon:    chameleon.Name(),
		Players:      g.playerRecords(),
		Descriptions: g.descriptions.Entries(),
		Votes:        g.Votes(),
		Tally:        tally,
		Guess:        guess,
		Winner:       winner,
	}, nil
}

func (g *Game) turn(ctx context.Context, p *player.Player, prompt string, schema structured.Schema) (structured.Result, error) {
	if err := ctx.Err(); err != nil {
		return structured.Result{}, &SessionError{Phase: g.phase, Player: p.Name(), Err: err}
	}
	ctx, span := g.tracer.Start(ctx, "game.turn", trace.WithAttributes(
		attribute.String("player.name", p.Name()),
		attribute.String("player.kind", string(p.Kind())),
		attribute.String("game.phase", g.phase.String()),
	))
	defer span.End()

	res, err := p.RespondTo(ctx, prompt, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return structured.Result{}, &SessionError{Phase: g.phase, Player: p.Name(), Err: err}
	}
	return res, nil
}

func (g *Game) emit(t Turn) {
	if g.OnTurn != nil {
		g.OnTurn(t)
	}
}

func (g *Game) playerRecords() []PlayerRecord {
	out := make([]PlayerRecord, len(g.players))
	for i, p := range g.players {
		out[i] = PlayerRecord{
			ID:             p.ID(),
			Name:           p.Name(),
			Role:           p.Role(),
			Controller:     p.Kind(),
			ControllerName: p.Spec().ControllerName,
			Messages:       p.Transcript(),
		}
	}
	return out
}

// archive hands rec to every archiver. Failures are logged only.
func (g *Game) archive(ctx context.Context, rec *Record) {
	for _, a := range g.archivers {
		if err := a.Archive(ctx, rec); err != nil {
			g.logger.Warn("failed to archive session", "session", g.id, "error", err)
		}
	}
}
