package game

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/lorenzotomasdiez/chameleon/internal/player"
	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

// MinPlayers is the smallest playable table.
const MinPlayers = 2

var (
	DefaultAnimals = []string{"Giraffe", "Elephant", "Lion", "Zebra", "Monkey", "Gorilla"}
	DefaultNames   = []string{"Jack", "Jill", "Bob", "Courtney", "Fizz", "Mallory"}
)

// Settings configures one session.
type Settings struct {
	Players        int      `json:"players"`
	HumanName      string   `json:"human_name,omitempty"`
	Animals        []string `json:"animals"`
	Names          []string `json:"names"`
	Retries        int      `json:"retries"`
	VoteRule       VoteRule `json:"vote_rule"`
	ChameleonGuess bool     `json:"chameleon_guess"`
}

// DefaultSettings returns a five player, all-automated table.
func DefaultSettings() Settings {
	return Settings{
		Players:  5,
		Animals:  DefaultAnimals,
		Names:    DefaultNames,
		Retries:  structured.DefaultRetries,
		VoteRule: RuleMajority,
	}
}

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the game's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Game) { g.logger = l }
}

// WithRecorder gives every player a record destination.
func WithRecorder(r player.Recorder) Option {
	return func(g *Game) { g.recorder = r }
}

// WithArchiver adds a destination for the final session record.
func WithArchiver(a Archiver) Option {
	return func(g *Game) { g.archivers = append(g.archivers, a) }
}

// WithSchemas replaces the describe and vote output schemas.
func WithSchemas(describe, vote structured.Schema) Option {
	return func(g *Game) { g.describeSchema, g.voteSchema = describe, vote }
}

// Setup validates settings, draws every random choice from dice and seats
// one player per slot. Nothing is sent to any player.
func Setup(s Settings, dice *Dice, src ControllerSource, opts ...Option) (*Game, error) {
	g := &Game{
		settings:       s,
		describeSchema: describeSchema,
		voteSchema:     voteSchema,
		descriptions:   &RoundContext{},
		logger:         slog.Default(),
		tracer:         otel.Tracer("github.com/lorenzotomasdiez/chameleon/internal/game"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.advance(PhaseSetup); err != nil {
		return nil, err
	}
	if err := validate(&g.settings); err != nil {
		return nil, err
	}
	for _, schema := range []structured.Schema{g.describeSchema, g.voteSchema} {
		if len(schema.Fields) == 0 {
			return nil, &SessionError{Phase: PhaseSetup, Err: fmt.Errorf("%w: schema %q declares no fields", structured.ErrConfiguration, schema.Title)}
		}
	}
	s = g.settings

	g.id = dice.ShortID()
	human := -1
	if s.HumanName != "" {
		human = dice.IntN(s.Players)
	}
	names := seatNames(dice, s, human)
	g.chameleon = dice.IntN(s.Players)
	g.animal = dice.Pick(s.Animals)

	extractor := structured.NewExtractor(s.Retries)
	for i, name := range names {
		slot := Slot{Index: i, ID: dice.UUID(), Name: name, Role: player.RoleHerd, Human: i == human}
		if i == g.chameleon {
			slot.Role = player.RoleChameleon
		}
		ctrl, ctrlName, err := src.Controller(slot)
		if err != nil {
			return nil, &SessionError{Phase: PhaseSetup, Player: name, Err: err}
		}
		if ctrl.Policy().Direct {
			if err := checkDirect(name, g.describeSchema, g.voteSchema, guessSchema); err != nil {
				return nil, &SessionError{Phase: PhaseSetup, Player: name, Err: err}
			}
		}
		popts := []player.Option{player.WithLogger(g.logger), player.WithExtractor(extractor)}
		if g.recorder != nil {
			popts = append(popts, player.WithRecorder(g.recorder))
		}
		g.players = append(g.players, player.New(player.Spec{
			ID:             slot.ID,
			Name:           slot.Name,
			Role:           slot.Role,
			ControllerName: ctrlName,
		}, ctrl, popts...))
	}

	g.logger.Info("session set up", "session", g.id, "players", s.Players, "human", s.HumanName != "")
	return g, nil
}

func validate(s *Settings) error {
	if s.Players < MinPlayers {
		return &SessionError{Phase: PhaseSetup, Err: fmt.Errorf("%w: need at least %d players, got %d", structured.ErrConfiguration, MinPlayers, s.Players)}
	}
	if len(s.Animals) == 0 {
		return &SessionError{Phase: PhaseSetup, Err: fmt.Errorf("%w: animal catalog is empty", structured.ErrConfiguration)}
	}
	if s.Retries < 0 {
		s.Retries = structured.DefaultRetries
	}
	if s.VoteRule == "" {
		s.VoteRule = RuleMajority
	}
	return nil
}

// seatNames samples automated names without replacement, skipping the
// human's name and catalog repeats, and falls back to Player-N when the
// catalog runs out. Every seat gets a distinct name.
func seatNames(dice *Dice, s Settings, human int) []string {
	taken := map[string]bool{}
	if human >= 0 {
		taken[s.HumanName] = true
	}
	var pool []string
	for _, n := range s.Names {
		if !taken[n] {
			taken[n] = true
			pool = append(pool, n)
		}
	}
	want := s.Players
	if human >= 0 {
		want--
	}
	drawn := dice.Sample(pool, want)
	clear(taken)
	if human >= 0 {
		taken[s.HumanName] = true
	}
	for _, n := range drawn {
		taken[n] = true
	}

	names := make([]string, s.Players)
	next := 0
	for i := range names {
		switch {
		case i == human:
			names[i] = s.HumanName
		case next < len(drawn):
			names[i] = drawn[next]
			next++
		default:
			names[i] = fallbackName(i+1, taken)
			taken[names[i]] = true
		}
	}
	return names
}

func fallbackName(seat int, taken map[string]bool) string {
	name := fmt.Sprintf("Player-%d", seat)
	for n := 2; taken[name]; n++ {
		name = fmt.Sprintf("Player-%d-%d", seat, n)
	}
	return name
}

func checkDirect(name string, schemas ...structured.Schema) error {
	for _, s := range schemas {
		if err := s.CheckDirect(); err != nil {
			return &structured.ConfigError{Player: name, Err: err}
		}
	}
	return nil
}
